package application

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"roomguard/internal/observability/metrics"
	rooms "roomguard/internal/rooms/domain"
)

// GasValve is the outcome of a gas toggle.
type GasValve struct {
	GasDetected bool
	ValveOn     bool
}

// SafetyService applies operator toggles to room safety status.
type SafetyService struct {
	store rooms.Store
	settings
}

// NewSafetyService constructs a toggle service.
func NewSafetyService(store rooms.Store, opts ...Option) (*SafetyService, error) {
	if store == nil {
		return nil, errors.New("safety service: nil store")
	}
	return &SafetyService{store: store, settings: newSettings(opts)}, nil
}

// Status returns the current safety status of a room.
func (s *SafetyService) Status(ctx context.Context, roomID int64) (*rooms.SafetyState, error) {
	if s == nil {
		return nil, errors.New("safety service: nil service")
	}
	room, err := s.store.Rooms().Get(ctx, roomID)
	if err != nil {
		return nil, wrapPersistence("get room", err)
	}
	if room == nil {
		return nil, rooms.ErrRoomNotFound
	}
	state, err := s.store.SafetyStates().Get(ctx, roomID)
	if err != nil {
		return nil, wrapPersistence("get safety status", err)
	}
	if state == nil {
		return nil, rooms.ErrSafetyStateNotFound
	}
	return state, nil
}

// ToggleFire flips fire detection and alerts the owner when fire becomes detected.
func (s *SafetyService) ToggleFire(ctx context.Context, roomID int64) (bool, error) {
	var fire bool
	room, err := s.mutate(ctx, "fire", roomID, true, func(state *rooms.SafetyState) {
		fire = state.ToggleFire(s.clock.Now())
	})
	if err != nil {
		return false, err
	}
	if fire {
		s.dispatch(ctx, newFireAlert(*room, s.clock.Now().UTC()))
	}
	return fire, nil
}

// ToggleGas flips gas detection; a detection closes the valve and alerts the owner.
func (s *SafetyService) ToggleGas(ctx context.Context, roomID int64) (GasValve, error) {
	var result GasValve
	room, err := s.mutate(ctx, "gas", roomID, true, func(state *rooms.SafetyState) {
		result.GasDetected, result.ValveOn = state.ToggleGas(s.clock.Now())
	})
	if err != nil {
		return GasValve{}, err
	}
	if result.GasDetected {
		s.dispatch(ctx, newGasLeakAlert(*room, s.clock.Now().UTC()))
	}
	return result, nil
}

// ToggleValve flips the valve. Without WithValveAutoCreate a room lacking a
// safety status fails with ErrSafetyStateNotFound.
func (s *SafetyService) ToggleValve(ctx context.Context, roomID int64) (bool, error) {
	var valve bool
	_, err := s.mutate(ctx, "valve", roomID, s.valveAutoCreate, func(state *rooms.SafetyState) {
		valve = state.ToggleValve(s.clock.Now())
	})
	if err != nil {
		return false, err
	}
	return valve, nil
}

func (s *SafetyService) mutate(ctx context.Context, field string, roomID int64, create bool, apply func(*rooms.SafetyState)) (*rooms.Room, error) {
	if s == nil {
		return nil, errors.New("safety service: nil service")
	}
	var room *rooms.Room
	err := s.store.Within(ctx, func(ctx context.Context, tx rooms.Repositories) error {
		var err error
		room, err = tx.Rooms().GetForUpdate(ctx, roomID)
		if err != nil {
			return err
		}
		if room == nil {
			return rooms.ErrRoomNotFound
		}
		state, err := tx.SafetyStates().Get(ctx, roomID)
		if err != nil {
			return err
		}
		if state == nil {
			if !create {
				return rooms.ErrSafetyStateNotFound
			}
			state = rooms.NewSafetyState(roomID, s.clock.Now())
		}
		apply(state)
		return tx.SafetyStates().Save(ctx, state)
	})
	metrics.IncToggle(field, resultOf(err))
	if err != nil {
		if rooms.KindOf(err) == rooms.KindPersistence {
			s.logger.Error("toggle failed",
				zap.String("field", field),
				zap.Int64("room_id", roomID),
				zap.Error(err),
			)
		}
		return nil, wrapPersistence("toggle "+field, err)
	}
	return room, nil
}

func resultOf(err error) string {
	if err != nil {
		return metrics.ResultError
	}
	return metrics.ResultSuccess
}
