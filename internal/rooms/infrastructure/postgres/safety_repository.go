package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	rooms "roomguard/internal/rooms/domain"
)

// SafetyStateRepository stores room safety status rows.
type SafetyStateRepository struct {
	db DBTX
}

// NewSafetyStateRepository constructs a repository.
func NewSafetyStateRepository(db DBTX) *SafetyStateRepository {
	return &SafetyStateRepository{db: db}
}

// Get fetches the safety status of a room.
func (r *SafetyStateRepository) Get(ctx context.Context, roomID int64) (*rooms.SafetyState, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("safety repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT room_id, fire_detected, gas_detected, valve_on, updated_at
FROM room_safety_status
WHERE room_id = $1`, roomID)

	var state rooms.SafetyState
	if err := row.Scan(
		&state.RoomID,
		&state.FireDetected,
		&state.GasDetected,
		&state.ValveOn,
		&state.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	state.UpdatedAt = state.UpdatedAt.UTC()
	return &state, nil
}

// Save inserts or updates the safety status of a room.
func (r *SafetyStateRepository) Save(ctx context.Context, state *rooms.SafetyState) error {
	if r == nil || r.db == nil {
		return errors.New("safety repo: nil db")
	}
	if state == nil {
		return errors.New("safety repo: nil state")
	}
	if state.UpdatedAt.IsZero() {
		state.UpdatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO room_safety_status (room_id, fire_detected, gas_detected, valve_on, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (room_id)
DO UPDATE SET
	fire_detected = EXCLUDED.fire_detected,
	gas_detected = EXCLUDED.gas_detected,
	valve_on = EXCLUDED.valve_on,
	updated_at = EXCLUDED.updated_at`,
		state.RoomID,
		state.FireDetected,
		state.GasDetected,
		state.ValveOn,
		state.UpdatedAt.UTC(),
	)
	return err
}

// Delete removes the safety status of a room.
func (r *SafetyStateRepository) Delete(ctx context.Context, roomID int64) error {
	if r == nil || r.db == nil {
		return errors.New("safety repo: nil db")
	}
	_, err := r.db.ExecContext(ctx, `DELETE FROM room_safety_status WHERE room_id = $1`, roomID)
	return err
}
