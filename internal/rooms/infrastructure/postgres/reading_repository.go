package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	rooms "roomguard/internal/rooms/domain"
)

const uniqueViolation = "23505"

// GasReadingRepository is the Postgres gas ledger.
type GasReadingRepository struct {
	db DBTX
}

// NewGasReadingRepository constructs a repository.
func NewGasReadingRepository(db DBTX) *GasReadingRepository {
	return &GasReadingRepository{db: db}
}

// Insert appends a reading. UNIQUE (room_id, bucket) rejects a second reading in the same hour.
func (r *GasReadingRepository) Insert(ctx context.Context, reading *rooms.GasReading) error {
	if r == nil || r.db == nil {
		return errors.New("gas reading repo: nil db")
	}
	if reading == nil {
		return errors.New("gas reading repo: nil reading")
	}
	reading.RecordedAt = reading.RecordedAt.UTC()
	reading.Bucket = rooms.Bucket(reading.RecordedAt)

	row := r.db.QueryRowContext(ctx, `
INSERT INTO gas_readings (room_id, gas_level, recorded_at, bucket)
VALUES ($1, $2, $3, $4)
ON CONFLICT (room_id, bucket) DO NOTHING
RETURNING id`,
		reading.RoomID,
		reading.GasLevel,
		reading.RecordedAt,
		reading.Bucket,
	)
	if err := row.Scan(&reading.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rooms.ErrDuplicateBucket
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return rooms.ErrDuplicateBucket
		}
		return err
	}
	return nil
}

// Query returns readings of one room, newest first.
func (r *GasReadingRepository) Query(ctx context.Context, q rooms.GasQuery) ([]rooms.GasReading, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("gas reading repo: nil db")
	}
	q, err := q.Normalize()
	if err != nil {
		return nil, err
	}

	var (
		conds = []string{"room_id = $1"}
		args  = []any{q.RoomID}
	)
	if !q.Start.IsZero() {
		args = append(args, q.Start)
		conds = append(conds, fmt.Sprintf("recorded_at >= $%d", len(args)))
	}
	if !q.End.IsZero() {
		args = append(args, q.End)
		conds = append(conds, fmt.Sprintf("recorded_at <= $%d", len(args)))
	}
	args = append(args, q.Limit)
	query := fmt.Sprintf(`
SELECT id, room_id, gas_level, recorded_at, bucket
FROM gas_readings
WHERE %s
ORDER BY recorded_at DESC
LIMIT $%d`, strings.Join(conds, " AND "), len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []rooms.GasReading
	for rows.Next() {
		var reading rooms.GasReading
		if err := rows.Scan(
			&reading.ID,
			&reading.RoomID,
			&reading.GasLevel,
			&reading.RecordedAt,
			&reading.Bucket,
		); err != nil {
			return nil, err
		}
		reading.RecordedAt = reading.RecordedAt.UTC()
		reading.Bucket = reading.Bucket.UTC()
		result = append(result, reading)
	}
	return result, rows.Err()
}

// DeleteByRoom removes every reading of a room.
func (r *GasReadingRepository) DeleteByRoom(ctx context.Context, roomID int64) error {
	if r == nil || r.db == nil {
		return errors.New("gas reading repo: nil db")
	}
	_, err := r.db.ExecContext(ctx, `DELETE FROM gas_readings WHERE room_id = $1`, roomID)
	return err
}
