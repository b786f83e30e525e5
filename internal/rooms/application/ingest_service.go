package application

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	rooms "roomguard/internal/rooms/domain"
)

// IngestResult describes an accepted reading.
type IngestResult struct {
	RoomID      int64
	GasLevel    float64
	RecordedAt  time.Time
	GasDetected bool
	ValveOn     bool
}

// IngestService records gas telemetry and derives gas detection from it.
type IngestService struct {
	store rooms.Store
	settings
}

// NewIngestService constructs an ingest service.
func NewIngestService(store rooms.Store, opts ...Option) (*IngestService, error) {
	if store == nil {
		return nil, errors.New("ingest service: nil store")
	}
	return &IngestService{store: store, settings: newSettings(opts)}, nil
}

// Submit records a reading taken at `at` (now when zero) and applies the threshold policy.
// The reading and the status update commit together; a second reading in the same
// hour fails with ErrDuplicateBucket and changes nothing.
func (s *IngestService) Submit(ctx context.Context, roomID int64, level float64, at time.Time) (*IngestResult, error) {
	if s == nil {
		return nil, errors.New("ingest service: nil service")
	}
	now := s.clock.Now().UTC()
	if at.IsZero() {
		at = now
	}
	reading := rooms.NewGasReading(roomID, level, at)

	var (
		room   *rooms.Room
		result IngestResult
	)
	err := s.store.Within(ctx, func(ctx context.Context, tx rooms.Repositories) error {
		var err error
		room, err = tx.Rooms().GetForUpdate(ctx, roomID)
		if err != nil {
			return err
		}
		if room == nil {
			return rooms.ErrRoomNotFound
		}
		if err := tx.GasReadings().Insert(ctx, reading); err != nil {
			return err
		}
		state, err := tx.SafetyStates().Get(ctx, roomID)
		if err != nil {
			return err
		}
		if state == nil {
			state = rooms.NewSafetyState(roomID, now)
		}
		result.GasDetected, result.ValveOn = state.ApplyGasReading(level, s.policy, now)
		return tx.SafetyStates().Save(ctx, state)
	})
	if err != nil {
		if rooms.KindOf(err) == rooms.KindPersistence {
			s.logger.Error("gas reading ingest failed",
				zap.Int64("room_id", roomID),
				zap.Float64("gas_level", level),
				zap.Error(err),
			)
		}
		return nil, wrapPersistence("ingest gas reading", err)
	}

	result.RoomID = roomID
	result.GasLevel = reading.GasLevel
	result.RecordedAt = reading.RecordedAt
	if result.GasDetected {
		s.logger.Info("gas detected",
			zap.Int64("room_id", roomID),
			zap.Float64("gas_level", level),
			zap.Float64("threshold_ppm", s.policy.LimitPPM),
		)
		s.dispatch(ctx, newGasLevelAlert(*room, level, now))
	}
	return &result, nil
}

// History returns the readings of an existing room, newest first.
func (s *IngestService) History(ctx context.Context, q rooms.GasQuery) ([]rooms.GasReading, error) {
	if s == nil {
		return nil, errors.New("ingest service: nil service")
	}
	q, err := q.Normalize()
	if err != nil {
		return nil, err
	}
	room, err := s.store.Rooms().Get(ctx, q.RoomID)
	if err != nil {
		return nil, wrapPersistence("get room", err)
	}
	if room == nil {
		return nil, rooms.ErrRoomNotFound
	}
	list, err := s.store.GasReadings().Query(ctx, q)
	if err != nil {
		return nil, wrapPersistence("query gas readings", err)
	}
	return list, nil
}

// Room returns a room by id.
func (s *IngestService) Room(ctx context.Context, roomID int64) (*rooms.Room, error) {
	room, err := s.store.Rooms().Get(ctx, roomID)
	if err != nil {
		return nil, wrapPersistence("get room", err)
	}
	if room == nil {
		return nil, rooms.ErrRoomNotFound
	}
	return room, nil
}
