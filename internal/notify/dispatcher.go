package notify

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"roomguard/internal/observability/metrics"
	app "roomguard/internal/rooms/application"
)

// Clock provides time for cooldown bookkeeping.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Dispatcher implements app.AlertNotifier on top of a Sink.
// An empty push target makes Notify a no-op.
type Dispatcher struct {
	sink         Sink
	sendLog      SendLog
	logger       *zap.Logger
	clock        Clock
	timeout      time.Duration
	cooldown     time.Duration
	dedupeWindow time.Duration
}

// Option configures the dispatcher.
type Option func(*Dispatcher)

// WithTimeout bounds each delivery.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// WithCooldown sets a minimum interval between alerts of the same kind for a room.
func WithCooldown(interval time.Duration) Option {
	return func(d *Dispatcher) {
		if interval > 0 {
			d.cooldown = interval
		}
	}
}

// WithDedupeWindow suppresses identical alerts within the window.
func WithDedupeWindow(window time.Duration) Option {
	return func(d *Dispatcher) {
		if window > 0 {
			d.dedupeWindow = window
		}
	}
}

// WithSendLog overrides the in-memory send log.
func WithSendLog(log SendLog) Option {
	return func(d *Dispatcher) {
		if log != nil {
			d.sendLog = log
		}
	}
}

// WithLogger assigns a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithClock overrides the default clock.
func WithClock(clock Clock) Option {
	return func(d *Dispatcher) {
		if clock != nil {
			d.clock = clock
		}
	}
}

// NewDispatcher constructs a dispatcher.
func NewDispatcher(sink Sink, opts ...Option) (*Dispatcher, error) {
	if sink == nil {
		return nil, errors.New("notify dispatcher: nil sink")
	}
	d := &Dispatcher{
		sink:    sink,
		logger:  zap.NewNop(),
		clock:   systemClock{},
		timeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.sendLog == nil {
		d.sendLog = NewMemorySendLog(d.clock)
	}
	return d, nil
}

// Notify delivers the alert. Failures are logged and counted, never returned.
func (d *Dispatcher) Notify(ctx context.Context, alert app.Alert) {
	if d == nil || d.sink == nil {
		return
	}
	kind := string(alert.Kind)
	if strings.TrimSpace(alert.Target) == "" {
		metrics.ObserveNotification(kind, metrics.ResultSkipped, 0)
		return
	}
	msg := MessageFromAlert(alert)
	if !d.shouldSend(ctx, msg) {
		metrics.ObserveNotification(kind, metrics.ResultSuppressed, 0)
		d.logger.Debug("notification suppressed",
			zap.Int64("room_id", msg.RoomID),
			zap.String("kind", kind),
		)
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	start := time.Now()
	err := d.sink.Send(sendCtx, msg)
	if err != nil {
		metrics.ObserveNotification(kind, metrics.ResultError, time.Since(start))
		d.logger.Warn("notification delivery failed",
			zap.Int64("room_id", msg.RoomID),
			zap.String("kind", kind),
			zap.String("title", msg.Title),
			zap.Error(err),
		)
		return
	}
	metrics.ObserveNotification(kind, metrics.ResultSuccess, time.Since(start))
	d.markSent(ctx, msg)
}

func (d *Dispatcher) shouldSend(ctx context.Context, msg Message) bool {
	if d.cooldown > 0 {
		seen, err := d.sendLog.Seen(ctx, cooldownKey(msg))
		if err != nil {
			d.logger.Warn("send log lookup failed", zap.Error(err))
		} else if seen {
			return false
		}
	}
	if d.dedupeWindow > 0 {
		seen, err := d.sendLog.Seen(ctx, dedupeKey(msg))
		if err != nil {
			d.logger.Warn("send log lookup failed", zap.Error(err))
		} else if seen {
			return false
		}
	}
	return true
}

func (d *Dispatcher) markSent(ctx context.Context, msg Message) {
	if d.cooldown > 0 {
		if err := d.sendLog.Mark(ctx, cooldownKey(msg), d.cooldown); err != nil {
			d.logger.Warn("send log write failed", zap.Error(err))
		}
	}
	if d.dedupeWindow > 0 {
		if err := d.sendLog.Mark(ctx, dedupeKey(msg), d.dedupeWindow); err != nil {
			d.logger.Warn("send log write failed", zap.Error(err))
		}
	}
}

func cooldownKey(msg Message) string {
	return "cooldown|" + strconv.FormatInt(msg.RoomID, 10) + "|" + msg.Kind
}

func dedupeKey(msg Message) string {
	return "dedupe|" + strconv.FormatInt(msg.RoomID, 10) + "|" + hashContent(msg.Title+"\n"+msg.Body)
}

func hashContent(content string) string {
	sum := sha1.Sum([]byte(content))
	return hex.EncodeToString(sum[:8])
}
