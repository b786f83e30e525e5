package rooms

import (
	"errors"
	"fmt"
)

var (
	// ErrRoomNotFound indicates a missing room record.
	ErrRoomNotFound = errors.New("room: not found")
	// ErrSafetyStateNotFound indicates a room without a safety status row.
	ErrSafetyStateNotFound = errors.New("room: safety status not found")
	// ErrDuplicateBucket indicates a reading already exists for the room in the same hour.
	ErrDuplicateBucket = errors.New("gas ledger: reading already recorded for this hour")
	// ErrInvalidLimit indicates a query limit outside [MinQueryLimit, MaxQueryLimit].
	ErrInvalidLimit = errors.New("gas ledger: limit out of range")
	// ErrInvalidWindow indicates a query window whose start is after its end.
	ErrInvalidWindow = errors.New("gas ledger: start_time after end_time")
	// ErrInvalidRoom indicates missing room attributes.
	ErrInvalidRoom = errors.New("room: invalid attributes")
)

// Kind classifies failures for callers that map them onto transport codes.
type Kind string

const (
	KindNone            Kind = ""
	KindNotFound        Kind = "not_found"
	KindDuplicateBucket Kind = "duplicate_bucket"
	KindInvalid         Kind = "invalid"
	KindPersistence     Kind = "persistence"
)

// PersistenceError wraps a storage failure after the unit of work was rolled back.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("room store: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// KindOf returns the failure kind for err.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrRoomNotFound), errors.Is(err, ErrSafetyStateNotFound):
		return KindNotFound
	case errors.Is(err, ErrDuplicateBucket):
		return KindDuplicateBucket
	case errors.Is(err, ErrInvalidLimit), errors.Is(err, ErrInvalidWindow), errors.Is(err, ErrInvalidRoom):
		return KindInvalid
	default:
		return KindPersistence
	}
}

// IsDomainError reports whether err is one of the domain sentinels.
func IsDomainError(err error) bool {
	kind := KindOf(err)
	return kind != KindNone && kind != KindPersistence
}
