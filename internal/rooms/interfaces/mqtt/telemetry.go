package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"roomguard/internal/observability/metrics"
	app "roomguard/internal/rooms/application"
	rooms "roomguard/internal/rooms/domain"
)

// DefaultTopic matches roomguard/rooms/<room_id>/gas.
const DefaultTopic = "roomguard/rooms/+/gas"

// Submitter accepts gas readings.
type Submitter interface {
	Submit(ctx context.Context, roomID int64, level float64, at time.Time) (*app.IngestResult, error)
}

type telemetryPayload struct {
	GasLevel *float64 `json:"gas_level"`
	TS       int64    `json:"ts"`
}

// TelemetryHandler feeds broker messages into the ingest pipeline.
type TelemetryHandler struct {
	ingest  Submitter
	logger  *zap.Logger
	timeout time.Duration
}

// NewTelemetryHandler constructs a handler.
func NewTelemetryHandler(ingest Submitter, logger *zap.Logger, timeout time.Duration) (*TelemetryHandler, error) {
	if ingest == nil {
		return nil, errors.New("telemetry handler: nil ingest service")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &TelemetryHandler{ingest: ingest, logger: logger, timeout: timeout}, nil
}

// HandleMessage parses a telemetry message and submits it. Duplicate
// readings within the hour are logged and dropped.
func (h *TelemetryHandler) HandleMessage(topic string, payload []byte) error {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveIngest(result, time.Since(start))
	}()

	roomID, err := roomIDFromTopic(topic)
	if err != nil {
		result = metrics.ResultError
		metrics.IncIngestError("bad_topic")
		return err
	}
	var msg telemetryPayload
	if err := json.Unmarshal(payload, &msg); err != nil {
		result = metrics.ResultError
		metrics.IncIngestError("decode")
		return fmt.Errorf("telemetry: decode payload: %w", err)
	}
	if msg.GasLevel == nil {
		result = metrics.ResultError
		metrics.IncIngestError("missing_gas_level")
		return errors.New("telemetry: gas_level is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()
	_, err = h.ingest.Submit(ctx, roomID, *msg.GasLevel, parseTimestamp(msg.TS))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, rooms.ErrDuplicateBucket):
		result = metrics.ResultError
		metrics.IncIngestError("duplicate_bucket")
		h.logger.Warn("telemetry reading dropped: hour already recorded",
			zap.Int64("room_id", roomID),
			zap.Float64("gas_level", *msg.GasLevel),
		)
		return nil
	default:
		result = metrics.ResultError
		metrics.IncIngestError(string(rooms.KindOf(err)))
		return err
	}
}

func roomIDFromTopic(topic string) (int64, error) {
	parts := strings.Split(strings.Trim(topic, "/"), "/")
	if len(parts) < 2 || parts[len(parts)-1] != "gas" {
		return 0, fmt.Errorf("telemetry: unexpected topic %q", topic)
	}
	id, err := strconv.ParseInt(parts[len(parts)-2], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("telemetry: invalid room id in topic %q", topic)
	}
	return id, nil
}

// parseTimestamp accepts unix seconds or milliseconds; zero means now.
func parseTimestamp(ts int64) time.Time {
	if ts <= 0 {
		return time.Time{}
	}
	if ts > 1_000_000_000_000 {
		return time.UnixMilli(ts).UTC()
	}
	return time.Unix(ts, 0).UTC()
}
