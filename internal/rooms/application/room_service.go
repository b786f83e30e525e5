package application

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"roomguard/internal/observability/metrics"
	rooms "roomguard/internal/rooms/domain"
)

// RoomService manages the rooms of an owner.
type RoomService struct {
	store rooms.Store
	settings
}

// NewRoomService constructs a room service.
func NewRoomService(store rooms.Store, opts ...Option) (*RoomService, error) {
	if store == nil {
		return nil, errors.New("room service: nil store")
	}
	return &RoomService{store: store, settings: newSettings(opts)}, nil
}

// Create registers a room with the default safety status in one transaction.
func (s *RoomService) Create(ctx context.Context, room rooms.Room) (*rooms.RoomWithState, error) {
	if s == nil {
		return nil, errors.New("room service: nil service")
	}
	if err := room.Validate(); err != nil {
		return nil, err
	}
	now := s.clock.Now().UTC()
	room.ID = 0
	room.CreatedAt = now
	var state *rooms.SafetyState
	err := s.store.Within(ctx, func(ctx context.Context, tx rooms.Repositories) error {
		if err := tx.Rooms().Create(ctx, &room); err != nil {
			return err
		}
		state = rooms.NewSafetyState(room.ID, now)
		return tx.SafetyStates().Save(ctx, state)
	})
	if err != nil {
		return nil, wrapPersistence("create room", err)
	}
	metrics.IncRoomEvent("created")
	s.logger.Info("room created", zap.Int64("room_id", room.ID), zap.Int64("owner_id", room.OwnerID))
	return &rooms.RoomWithState{Room: room, State: state}, nil
}

// List returns the owner's rooms with their safety status.
func (s *RoomService) List(ctx context.Context, ownerID int64) ([]rooms.RoomWithState, error) {
	if s == nil {
		return nil, errors.New("room service: nil service")
	}
	list, err := s.store.Rooms().ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, wrapPersistence("list rooms", err)
	}
	result := make([]rooms.RoomWithState, 0, len(list))
	for _, room := range list {
		state, err := s.store.SafetyStates().Get(ctx, room.ID)
		if err != nil {
			return nil, wrapPersistence("get safety status", err)
		}
		result = append(result, rooms.RoomWithState{Room: room, State: state})
	}
	return result, nil
}

// Delete removes a room owned by ownerID together with its status and readings.
// Rooms of other owners are reported as not found.
func (s *RoomService) Delete(ctx context.Context, ownerID, roomID int64) error {
	if s == nil {
		return errors.New("room service: nil service")
	}
	err := s.store.Within(ctx, func(ctx context.Context, tx rooms.Repositories) error {
		room, err := tx.Rooms().GetForUpdate(ctx, roomID)
		if err != nil {
			return err
		}
		if room == nil || room.OwnerID != ownerID {
			return rooms.ErrRoomNotFound
		}
		if err := tx.GasReadings().DeleteByRoom(ctx, roomID); err != nil {
			return err
		}
		if err := tx.SafetyStates().Delete(ctx, roomID); err != nil {
			return err
		}
		return tx.Rooms().Delete(ctx, roomID)
	})
	if err != nil {
		return wrapPersistence("delete room", err)
	}
	metrics.IncRoomEvent("deleted")
	s.logger.Info("room deleted", zap.Int64("room_id", roomID), zap.Int64("owner_id", ownerID))
	return nil
}
