package rooms

import "time"

const (
	DefaultQueryLimit = 24
	MinQueryLimit     = 1
	MaxQueryLimit     = 720
)

// GasReading is one accepted telemetry sample.
type GasReading struct {
	ID         int64
	RoomID     int64
	GasLevel   float64
	RecordedAt time.Time
	Bucket     time.Time
}

// NewGasReading builds a reading stamped with its hour bucket.
func NewGasReading(roomID int64, level float64, at time.Time) *GasReading {
	at = at.UTC()
	return &GasReading{
		RoomID:     roomID,
		GasLevel:   level,
		RecordedAt: at,
		Bucket:     Bucket(at),
	}
}

// Bucket truncates t to the start of its UTC hour.
func Bucket(t time.Time) time.Time {
	return t.UTC().Truncate(time.Hour)
}

// GasQuery selects readings of one room. Zero Start/End means unbounded.
type GasQuery struct {
	RoomID int64
	Start  time.Time
	End    time.Time
	Limit  int
}

// Normalize applies the default limit and validates bounds.
func (q GasQuery) Normalize() (GasQuery, error) {
	if q.Limit == 0 {
		q.Limit = DefaultQueryLimit
	}
	if q.Limit < MinQueryLimit || q.Limit > MaxQueryLimit {
		return q, ErrInvalidLimit
	}
	if !q.Start.IsZero() {
		q.Start = q.Start.UTC()
	}
	if !q.End.IsZero() {
		q.End = q.End.UTC()
	}
	if !q.Start.IsZero() && !q.End.IsZero() && q.Start.After(q.End) {
		return q, ErrInvalidWindow
	}
	return q, nil
}

// Matches reports whether at falls inside the inclusive window.
func (q GasQuery) Matches(at time.Time) bool {
	if !q.Start.IsZero() && at.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && at.After(q.End) {
		return false
	}
	return true
}
