package application

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"roomguard/internal/observability/metrics"
	rooms "roomguard/internal/rooms/domain"
)

// Clock provides time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

type settings struct {
	notifier        AlertNotifier
	directory       rooms.OwnerDirectory
	clock           Clock
	logger          *zap.Logger
	policy          rooms.ThresholdPolicy
	valveAutoCreate bool
}

func defaultSettings() settings {
	return settings{
		clock:  systemClock{},
		logger: zap.NewNop(),
		policy: rooms.DefaultThresholdPolicy(),
	}
}

// Option customizes the room services.
type Option func(*settings)

// WithNotifier assigns the alert notifier.
func WithNotifier(notifier AlertNotifier) Option {
	return func(s *settings) {
		s.notifier = notifier
	}
}

// WithOwnerDirectory assigns the push target lookup.
func WithOwnerDirectory(directory rooms.OwnerDirectory) Option {
	return func(s *settings) {
		s.directory = directory
	}
}

// WithClock overrides the default clock.
func WithClock(clock Clock) Option {
	return func(s *settings) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithLogger assigns a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithThreshold overrides the gas detection threshold.
func WithThreshold(limitPPM float64) Option {
	return func(s *settings) {
		if limitPPM > 0 {
			s.policy = rooms.ThresholdPolicy{LimitPPM: limitPPM}
		}
	}
}

// WithValveAutoCreate lets ToggleValve create a missing safety status like the other toggles.
func WithValveAutoCreate(enabled bool) Option {
	return func(s *settings) {
		s.valveAutoCreate = enabled
	}
}

func newSettings(opts []Option) settings {
	cfg := defaultSettings()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// dispatch resolves the owner's push target and hands the alert to the notifier.
// It runs after commit; failures are logged and never reach the caller.
func (s settings) dispatch(ctx context.Context, alert Alert) {
	metrics.IncAlert(string(alert.Kind))
	if s.notifier == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	if s.directory != nil {
		target, err := s.directory.PushTarget(ctx, alert.OwnerID)
		if err != nil {
			s.logger.Warn("push target lookup failed",
				zap.Int64("room_id", alert.RoomID),
				zap.Int64("owner_id", alert.OwnerID),
				zap.Error(err),
			)
		}
		alert.Target = target
	}
	s.notifier.Notify(ctx, alert)
}

func wrapPersistence(op string, err error) error {
	if err == nil || rooms.IsDomainError(err) {
		return err
	}
	var perr *rooms.PersistenceError
	if errors.As(err, &perr) {
		return err
	}
	return &rooms.PersistenceError{Op: op, Err: err}
}
