package http

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"roomguard/internal/audit"
	"roomguard/internal/auth"
	"roomguard/internal/observability/metrics"
	app "roomguard/internal/rooms/application"
	rooms "roomguard/internal/rooms/domain"
)

// Prefix is the mount point of the room API.
const Prefix = "/v1/room"

const dateLayout = "2006-01-02"

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	dateLayout,
}

// Handler provides room safety HTTP endpoints.
type Handler struct {
	safety *app.SafetyService
	ingest *app.IngestService
	rooms  *app.RoomService
	audit  audit.Logger
	logger *zap.Logger
}

// NewHandler constructs a handler. auditLogger may be nil.
func NewHandler(safety *app.SafetyService, ingest *app.IngestService, roomService *app.RoomService, auditLogger audit.Logger, logger *zap.Logger) (*Handler, error) {
	if safety == nil {
		return nil, errors.New("rooms handler: nil safety service")
	}
	if ingest == nil {
		return nil, errors.New("rooms handler: nil ingest service")
	}
	if roomService == nil {
		return nil, errors.New("rooms handler: nil room service")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{safety: safety, ingest: ingest, rooms: roomService, audit: auditLogger, logger: logger}, nil
}

// ServeHTTP handles /v1/room and subroutes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, Prefix)
	if path == r.URL.Path {
		writeError(w, http.StatusNotFound, "Not found", rooms.KindNotFound)
		return
	}
	path = strings.Trim(path, "/")
	if path == "" {
		switch r.Method {
		case http.MethodGet:
			h.handleListRooms(w, r)
		case http.MethodPost:
			h.handleCreateRoom(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	parts := strings.Split(path, "/")
	roomID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || roomID <= 0 {
		writeError(w, http.StatusBadRequest, "room id must be a positive integer", rooms.KindInvalid)
		return
	}

	switch len(parts) {
	case 1:
		if r.Method != http.MethodDelete {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleDeleteRoom(w, r, roomID)
	case 2:
		h.routeRoomAction(w, r, roomID, parts[1])
	case 3:
		if parts[1] != "gas-levels" {
			writeError(w, http.StatusNotFound, "Not found", rooms.KindNotFound)
			return
		}
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		switch parts[2] {
		case "export.xlsx":
			h.handleExport(w, r, roomID, formatXLSX)
		case "export.pdf":
			h.handleExport(w, r, roomID, formatPDF)
		default:
			writeError(w, http.StatusNotFound, "Not found", rooms.KindNotFound)
		}
	default:
		writeError(w, http.StatusNotFound, "Not found", rooms.KindNotFound)
	}
}

func (h *Handler) routeRoomAction(w http.ResponseWriter, r *http.Request, roomID int64, action string) {
	method := http.MethodPatch
	switch action {
	case "status", "gas-levels":
		method = http.MethodGet
	case "gas-level":
		method = http.MethodPost
	case "toggle-fire", "toggle-gas", "toggle-valve":
	default:
		writeError(w, http.StatusNotFound, "Not found", rooms.KindNotFound)
		return
	}
	if r.Method != method {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	switch action {
	case "status":
		h.handleStatus(w, r, roomID)
	case "gas-level":
		h.handleSubmitGasLevel(w, r, roomID)
	case "gas-levels":
		h.handleGasLevels(w, r, roomID)
	case "toggle-fire":
		h.handleToggleFire(w, r, roomID)
	case "toggle-gas":
		h.handleToggleGas(w, r, roomID)
	case "toggle-valve":
		h.handleToggleValve(w, r, roomID)
	}
}

type statusResponse struct {
	RoomID       int64     `json:"room_id"`
	FireDetected bool      `json:"fire_detected"`
	GasDetected  bool      `json:"gas_detected"`
	ValveOn      bool      `json:"valve_on"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request, roomID int64) {
	state, err := h.safety.Status(r.Context(), roomID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{
		RoomID:       state.RoomID,
		FireDetected: state.FireDetected,
		GasDetected:  state.GasDetected,
		ValveOn:      state.ValveOn,
		UpdatedAt:    state.UpdatedAt,
	})
}

func (h *Handler) handleToggleFire(w http.ResponseWriter, r *http.Request, roomID int64) {
	fire, err := h.safety.ToggleFire(r.Context(), roomID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	payload := map[string]bool{"fire_detected": fire}
	h.record(r, audit.ActionToggleFire, roomID, payload)
	writeJSON(w, http.StatusOK, payload)
}

func (h *Handler) handleToggleGas(w http.ResponseWriter, r *http.Request, roomID int64) {
	result, err := h.safety.ToggleGas(r.Context(), roomID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	payload := map[string]bool{"gas_detected": result.GasDetected, "valve_on": result.ValveOn}
	h.record(r, audit.ActionToggleGas, roomID, payload)
	writeJSON(w, http.StatusOK, payload)
}

func (h *Handler) handleToggleValve(w http.ResponseWriter, r *http.Request, roomID int64) {
	valve, err := h.safety.ToggleValve(r.Context(), roomID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	payload := map[string]bool{"valve_on": valve}
	h.record(r, audit.ActionToggleValve, roomID, payload)
	writeJSON(w, http.StatusOK, payload)
}

type ingestResponse struct {
	RoomID     int64     `json:"room_id"`
	GasLevel   float64   `json:"gas_level"`
	RecordedAt time.Time `json:"recorded_at"`
}

func (h *Handler) handleSubmitGasLevel(w http.ResponseWriter, r *http.Request, roomID int64) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveIngest(result, time.Since(start))
	}()

	query := r.URL.Query()
	raw := strings.TrimSpace(query.Get("gas_level"))
	if raw == "" {
		result = metrics.ResultError
		metrics.IncIngestError("missing_gas_level")
		writeError(w, http.StatusBadRequest, "gas_level is required", rooms.KindInvalid)
		return
	}
	level, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(level) || math.IsInf(level, 0) {
		result = metrics.ResultError
		metrics.IncIngestError("invalid_gas_level")
		writeError(w, http.StatusBadRequest, "gas_level must be a number", rooms.KindInvalid)
		return
	}
	at, err := parseOptionalTime(query.Get("recorded_at"))
	if err != nil {
		result = metrics.ResultError
		metrics.IncIngestError("invalid_recorded_at")
		writeError(w, http.StatusBadRequest, "recorded_at "+err.Error(), rooms.KindInvalid)
		return
	}

	accepted, err := h.ingest.Submit(r.Context(), roomID, level, at)
	if err != nil {
		result = metrics.ResultError
		metrics.IncIngestError(string(rooms.KindOf(err)))
		respondDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ingestResponse{
		RoomID:     accepted.RoomID,
		GasLevel:   accepted.GasLevel,
		RecordedAt: accepted.RecordedAt,
	})
}

type readingItem struct {
	GasLevel   float64   `json:"gas_level"`
	RecordedAt time.Time `json:"recorded_at"`
}

type historyResponse struct {
	RoomID int64         `json:"room_id"`
	Count  int           `json:"count"`
	Data   []readingItem `json:"data"`
}

func (h *Handler) handleGasLevels(w http.ResponseWriter, r *http.Request, roomID int64) {
	q, err := parseGasQuery(r, roomID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), rooms.KindInvalid)
		return
	}
	list, err := h.ingest.History(r.Context(), q)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	data := make([]readingItem, 0, len(list))
	for _, reading := range list {
		data = append(data, readingItem{GasLevel: reading.GasLevel, RecordedAt: reading.RecordedAt})
	}
	writeJSON(w, http.StatusOK, historyResponse{RoomID: roomID, Count: len(data), Data: data})
}

func parseGasQuery(r *http.Request, roomID int64) (rooms.GasQuery, error) {
	values := r.URL.Query()
	q := rooms.GasQuery{RoomID: roomID}
	var err error
	if q.Start, err = parseOptionalTime(values.Get("start_time")); err != nil {
		return q, errors.New("start_time " + err.Error())
	}
	if q.End, err = parseEndTime(values.Get("end_time")); err != nil {
		return q, errors.New("end_time " + err.Error())
	}
	if raw := strings.TrimSpace(values.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return q, errors.New("limit must be an integer")
		}
		if limit < rooms.MinQueryLimit || limit > rooms.MaxQueryLimit {
			return q, rooms.ErrInvalidLimit
		}
		q.Limit = limit
	}
	return q, nil
}

func parseOptionalTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed.UTC(), nil
		}
	}
	return time.Time{}, errors.New("must be RFC3339")
}

// parseEndTime reads a bare date as the last instant of that day.
func parseEndTime(value string) (time.Time, error) {
	if day, err := time.Parse(dateLayout, strings.TrimSpace(value)); err == nil {
		return day.Add(24*time.Hour - time.Nanosecond), nil
	}
	return parseOptionalTime(value)
}

func (h *Handler) record(r *http.Request, action string, roomID int64, payload any) {
	if h.audit == nil {
		return
	}
	metadata, _ := json.Marshal(payload)
	entry := audit.Entry{
		ActorID:   auth.UserIDFromContext(r.Context()),
		Actor:     auth.NameFromContext(r.Context()),
		Action:    action,
		RoomID:    roomID,
		Metadata:  metadata,
		IP:        audit.ClientIP(r),
		UserAgent: r.UserAgent(),
	}
	if err := h.audit.Log(context.WithoutCancel(r.Context()), entry); err != nil {
		h.logger.Warn("audit log failed",
			zap.String("action", action),
			zap.Int64("room_id", roomID),
			zap.Error(err),
		)
	}
}

type errorResponse struct {
	Detail string     `json:"detail"`
	Kind   rooms.Kind `json:"kind"`
}

func respondDomainError(w http.ResponseWriter, err error) {
	kind := rooms.KindOf(err)
	switch kind {
	case rooms.KindNotFound:
		detail := "Room not found"
		if errors.Is(err, rooms.ErrSafetyStateNotFound) {
			detail = "Safety status not found"
		}
		writeError(w, http.StatusNotFound, detail, kind)
	case rooms.KindDuplicateBucket:
		writeError(w, http.StatusConflict, "Gas level already recorded for this hour", kind)
	case rooms.KindInvalid:
		writeError(w, http.StatusBadRequest, err.Error(), kind)
	default:
		writeError(w, http.StatusInternalServerError, "internal error", rooms.KindPersistence)
	}
}

func writeError(w http.ResponseWriter, status int, detail string, kind rooms.Kind) {
	writeJSON(w, status, errorResponse{Detail: detail, Kind: kind})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
