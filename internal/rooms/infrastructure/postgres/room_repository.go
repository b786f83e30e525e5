package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	rooms "roomguard/internal/rooms/domain"
)

const roomColumns = `id, space_name, space_type, emergency_contact, owner_id, created_at`

// RoomRepository stores rooms.
type RoomRepository struct {
	db DBTX
}

// NewRoomRepository constructs a repository.
func NewRoomRepository(db DBTX) *RoomRepository {
	return &RoomRepository{db: db}
}

// Get loads a room by id.
func (r *RoomRepository) Get(ctx context.Context, id int64) (*rooms.Room, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("room repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = $1`, id)
	return scanRoom(row)
}

// GetForUpdate loads a room and locks its row for the rest of the transaction.
func (r *RoomRepository) GetForUpdate(ctx context.Context, id int64) (*rooms.Room, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("room repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = $1 FOR UPDATE`, id)
	return scanRoom(row)
}

// Create inserts a room and assigns its id.
func (r *RoomRepository) Create(ctx context.Context, room *rooms.Room) error {
	if r == nil || r.db == nil {
		return errors.New("room repo: nil db")
	}
	if room == nil {
		return errors.New("room repo: nil room")
	}
	if room.CreatedAt.IsZero() {
		room.CreatedAt = time.Now().UTC()
	}
	row := r.db.QueryRowContext(ctx, `
INSERT INTO rooms (space_name, space_type, emergency_contact, owner_id, created_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING id`,
		room.Name,
		room.SpaceType,
		nullString(room.EmergencyContact),
		room.OwnerID,
		room.CreatedAt.UTC(),
	)
	return row.Scan(&room.ID)
}

// ListByOwner returns the rooms of one owner ordered by id.
func (r *RoomRepository) ListByOwner(ctx context.Context, ownerID int64) ([]rooms.Room, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("room repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+roomColumns+` FROM rooms WHERE owner_id = $1 ORDER BY id`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []rooms.Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		if room != nil {
			result = append(result, *room)
		}
	}
	return result, rows.Err()
}

// Delete removes a room row.
func (r *RoomRepository) Delete(ctx context.Context, id int64) error {
	if r == nil || r.db == nil {
		return errors.New("room repo: nil db")
	}
	_, err := r.db.ExecContext(ctx, `DELETE FROM rooms WHERE id = $1`, id)
	return err
}

func scanRoom(row rowScanner) (*rooms.Room, error) {
	var room rooms.Room
	var spaceType, contact sql.NullString
	if err := row.Scan(
		&room.ID,
		&room.Name,
		&spaceType,
		&contact,
		&room.OwnerID,
		&room.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	room.SpaceType = spaceType.String
	room.EmergencyContact = contact.String
	room.CreatedAt = room.CreatedAt.UTC()
	return &room, nil
}

func nullString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}
