package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	rooms "roomguard/internal/rooms/domain"
)

// Store is an in-process rooms.Store. Units of work apply writes eagerly and
// undo them on rollback; GetForUpdate holds a per-room lock until the unit ends.
type Store struct {
	mu          sync.Mutex
	rooms       map[int64]rooms.Room
	states      map[int64]rooms.SafetyState
	readings    map[int64][]rooms.GasReading
	pushTargets map[int64]string
	roomLocks   map[int64]*sync.Mutex
	nextRoomID  int64
	nextReadID  int64
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{
		rooms:       make(map[int64]rooms.Room),
		states:      make(map[int64]rooms.SafetyState),
		readings:    make(map[int64][]rooms.GasReading),
		pushTargets: make(map[int64]string),
		roomLocks:   make(map[int64]*sync.Mutex),
	}
}

// SetPushTarget registers an owner's push token.
func (s *Store) SetPushTarget(ownerID int64, target string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pushTargets[ownerID] = target
}

// PushTarget implements rooms.OwnerDirectory.
func (s *Store) PushTarget(_ context.Context, ownerID int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pushTargets[ownerID], nil
}

// Rooms returns a room repository outside any unit of work.
func (s *Store) Rooms() rooms.RoomRepository { return roomRepo{&view{store: s}} }

// SafetyStates returns a safety status repository outside any unit of work.
func (s *Store) SafetyStates() rooms.SafetyStateRepository { return stateRepo{&view{store: s}} }

// GasReadings returns the gas ledger outside any unit of work.
func (s *Store) GasReadings() rooms.GasReadingRepository { return readingRepo{&view{store: s}} }

// Within runs fn as one unit of work.
func (s *Store) Within(ctx context.Context, fn func(ctx context.Context, tx rooms.Repositories) error) error {
	if fn == nil {
		return errors.New("memory store: nil unit of work")
	}
	tx := &view{store: s, tx: &unit{held: make(map[int64]*sync.Mutex)}}
	committed := false
	defer func() {
		if !committed {
			tx.rollback()
		}
		tx.release()
	}()
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	committed = true
	return nil
}

func (s *Store) roomLock(id int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.roomLocks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.roomLocks[id] = lock
	}
	return lock
}

type unit struct {
	held map[int64]*sync.Mutex
	undo []func()
}

// view binds repositories to the store and, inside a unit of work, to its undo log.
type view struct {
	store *Store
	tx    *unit
}

func (v *view) Rooms() rooms.RoomRepository               { return roomRepo{v} }
func (v *view) SafetyStates() rooms.SafetyStateRepository { return stateRepo{v} }
func (v *view) GasReadings() rooms.GasReadingRepository   { return readingRepo{v} }

func (v *view) record(undo func()) {
	if v.tx != nil {
		v.tx.undo = append(v.tx.undo, undo)
	}
}

func (v *view) rollback() {
	if v.tx == nil {
		return
	}
	v.store.mu.Lock()
	for i := len(v.tx.undo) - 1; i >= 0; i-- {
		v.tx.undo[i]()
	}
	v.store.mu.Unlock()
	v.tx.undo = nil
}

func (v *view) release() {
	if v.tx == nil {
		return
	}
	for id, lock := range v.tx.held {
		lock.Unlock()
		delete(v.tx.held, id)
	}
}

type roomRepo struct{ *view }

// Get loads a room.
func (v roomRepo) Get(_ context.Context, id int64) (*rooms.Room, error) {
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	room, ok := v.store.rooms[id]
	if !ok {
		return nil, nil
	}
	return &room, nil
}

// GetForUpdate locks the room for the rest of the unit of work.
func (v roomRepo) GetForUpdate(ctx context.Context, id int64) (*rooms.Room, error) {
	if v.tx != nil {
		if _, held := v.tx.held[id]; !held {
			lock := v.store.roomLock(id)
			lock.Lock()
			v.tx.held[id] = lock
		}
	}
	return v.Get(ctx, id)
}

// Create inserts a room.
func (v roomRepo) Create(_ context.Context, room *rooms.Room) error {
	if room == nil {
		return errors.New("memory store: nil room")
	}
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	v.store.nextRoomID++
	room.ID = v.store.nextRoomID
	if room.CreatedAt.IsZero() {
		room.CreatedAt = time.Now().UTC()
	}
	v.store.rooms[room.ID] = *room
	id := room.ID
	v.record(func() { delete(v.store.rooms, id) })
	return nil
}

// ListByOwner returns an owner's rooms ordered by id.
func (v roomRepo) ListByOwner(_ context.Context, ownerID int64) ([]rooms.Room, error) {
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	var result []rooms.Room
	for _, room := range v.store.rooms {
		if room.OwnerID == ownerID {
			result = append(result, room)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// Delete removes a room.
func (v roomRepo) Delete(_ context.Context, id int64) error {
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	room, ok := v.store.rooms[id]
	if !ok {
		return nil
	}
	delete(v.store.rooms, id)
	v.record(func() { v.store.rooms[id] = room })
	return nil
}

type stateRepo struct{ *view }

// Get fetches a room's safety status.
func (v stateRepo) Get(_ context.Context, roomID int64) (*rooms.SafetyState, error) {
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	state, ok := v.store.states[roomID]
	if !ok {
		return nil, nil
	}
	return &state, nil
}

// Save inserts or replaces a room's safety status.
func (v stateRepo) Save(_ context.Context, state *rooms.SafetyState) error {
	if state == nil {
		return errors.New("memory store: nil state")
	}
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	roomID := state.RoomID
	prev, existed := v.store.states[roomID]
	v.store.states[roomID] = *state
	v.record(func() {
		if existed {
			v.store.states[roomID] = prev
			return
		}
		delete(v.store.states, roomID)
	})
	return nil
}

// Delete removes a room's safety status.
func (v stateRepo) Delete(_ context.Context, roomID int64) error {
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	prev, ok := v.store.states[roomID]
	if !ok {
		return nil
	}
	delete(v.store.states, roomID)
	v.record(func() { v.store.states[roomID] = prev })
	return nil
}

type readingRepo struct{ *view }

// Insert appends a reading unless its hour bucket is taken.
func (v readingRepo) Insert(_ context.Context, reading *rooms.GasReading) error {
	if reading == nil {
		return errors.New("memory store: nil reading")
	}
	reading.RecordedAt = reading.RecordedAt.UTC()
	reading.Bucket = rooms.Bucket(reading.RecordedAt)

	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	roomID := reading.RoomID
	for _, existing := range v.store.readings[roomID] {
		if existing.Bucket.Equal(reading.Bucket) {
			return rooms.ErrDuplicateBucket
		}
	}
	v.store.nextReadID++
	reading.ID = v.store.nextReadID
	v.store.readings[roomID] = append(v.store.readings[roomID], *reading)
	id := reading.ID
	v.record(func() {
		list := v.store.readings[roomID]
		for i := range list {
			if list[i].ID == id {
				v.store.readings[roomID] = append(list[:i:i], list[i+1:]...)
				break
			}
		}
	})
	return nil
}

// Query returns matching readings newest first.
func (v readingRepo) Query(_ context.Context, q rooms.GasQuery) ([]rooms.GasReading, error) {
	q, err := q.Normalize()
	if err != nil {
		return nil, err
	}
	v.store.mu.Lock()
	var result []rooms.GasReading
	for _, reading := range v.store.readings[q.RoomID] {
		if q.Matches(reading.RecordedAt) {
			result = append(result, reading)
		}
	}
	v.store.mu.Unlock()

	sort.Slice(result, func(i, j int) bool { return result[i].RecordedAt.After(result[j].RecordedAt) })
	if len(result) > q.Limit {
		result = result[:q.Limit]
	}
	return result, nil
}

// DeleteByRoom removes every reading of a room.
func (v readingRepo) DeleteByRoom(_ context.Context, roomID int64) error {
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	prev, ok := v.store.readings[roomID]
	if !ok {
		return nil
	}
	delete(v.store.readings, roomID)
	v.record(func() { v.store.readings[roomID] = prev })
	return nil
}
