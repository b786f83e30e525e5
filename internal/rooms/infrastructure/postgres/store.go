package postgres

import (
	"context"
	"database/sql"
	"errors"

	rooms "roomguard/internal/rooms/domain"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

// Store implements rooms.Store on a Postgres database.
type Store struct {
	db    *sql.DB
	repos repositories
}

// NewStore constructs a store.
func NewStore(db *sql.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("room store: nil db")
	}
	return &Store{db: db, repos: newRepositories(db)}, nil
}

// Rooms returns a room repository outside any transaction.
func (s *Store) Rooms() rooms.RoomRepository { return s.repos.rooms }

// SafetyStates returns a safety status repository outside any transaction.
func (s *Store) SafetyStates() rooms.SafetyStateRepository { return s.repos.states }

// GasReadings returns the gas ledger outside any transaction.
func (s *Store) GasReadings() rooms.GasReadingRepository { return s.repos.readings }

// Within runs fn in a database transaction.
func (s *Store) Within(ctx context.Context, fn func(ctx context.Context, tx rooms.Repositories) error) (err error) {
	if s == nil || s.db == nil {
		return errors.New("room store: nil db")
	}
	if fn == nil {
		return errors.New("room store: nil unit of work")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, newRepositories(tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

type repositories struct {
	rooms    *RoomRepository
	states   *SafetyStateRepository
	readings *GasReadingRepository
}

func newRepositories(db DBTX) repositories {
	return repositories{
		rooms:    NewRoomRepository(db),
		states:   NewSafetyStateRepository(db),
		readings: NewGasReadingRepository(db),
	}
}

func (r repositories) Rooms() rooms.RoomRepository               { return r.rooms }
func (r repositories) SafetyStates() rooms.SafetyStateRepository { return r.states }
func (r repositories) GasReadings() rooms.GasReadingRepository   { return r.readings }
