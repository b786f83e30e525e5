package rooms

import "context"

// RoomRepository persists rooms. Lookups return nil, nil when absent.
type RoomRepository interface {
	Get(ctx context.Context, id int64) (*Room, error)
	// GetForUpdate loads the room and holds its lock until the enclosing unit of work ends.
	GetForUpdate(ctx context.Context, id int64) (*Room, error)
	Create(ctx context.Context, room *Room) error
	ListByOwner(ctx context.Context, ownerID int64) ([]Room, error)
	Delete(ctx context.Context, id int64) error
}

// SafetyStateRepository persists one safety status per room.
type SafetyStateRepository interface {
	Get(ctx context.Context, roomID int64) (*SafetyState, error)
	Save(ctx context.Context, state *SafetyState) error
	Delete(ctx context.Context, roomID int64) error
}

// GasReadingRepository is the append-only gas ledger.
type GasReadingRepository interface {
	// Insert stores the reading or fails with ErrDuplicateBucket.
	Insert(ctx context.Context, reading *GasReading) error
	// Query returns readings newest first.
	Query(ctx context.Context, q GasQuery) ([]GasReading, error)
	DeleteByRoom(ctx context.Context, roomID int64) error
}

// Repositories groups the repositories sharing one connection or transaction.
type Repositories interface {
	Rooms() RoomRepository
	SafetyStates() SafetyStateRepository
	GasReadings() GasReadingRepository
}

// Store exposes non-transactional reads and atomic units of work.
type Store interface {
	Repositories
	// Within runs fn in one transaction. A nil return commits, anything else rolls back.
	Within(ctx context.Context, fn func(ctx context.Context, tx Repositories) error) error
}

// OwnerDirectory resolves push targets of room owners.
type OwnerDirectory interface {
	PushTarget(ctx context.Context, ownerID int64) (string, error)
}
