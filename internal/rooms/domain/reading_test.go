package rooms

import (
	"errors"
	"testing"
	"time"
)

func TestBucketTruncatesToUTCHour(t *testing.T) {
	at := time.Date(2026, 1, 10, 10, 59, 59, 999, time.UTC)
	want := time.Date(2026, 1, 10, 10, 0, 0, 0, time.UTC)
	if got := Bucket(at); !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}

	shanghai := time.FixedZone("UTC+8", 8*3600)
	local := time.Date(2026, 1, 10, 18, 30, 0, 0, shanghai)
	if got := Bucket(local); !got.Equal(want) {
		t.Fatalf("expected %s for offset zone, got %s", want, got)
	}
	if Bucket(local).Location() != time.UTC {
		t.Fatalf("bucket must be UTC")
	}
}

func TestBucketBoundaries(t *testing.T) {
	first := Bucket(time.Date(2026, 1, 10, 10, 15, 0, 0, time.UTC))
	second := Bucket(time.Date(2026, 1, 10, 10, 45, 0, 0, time.UTC))
	third := Bucket(time.Date(2026, 1, 10, 11, 5, 0, 0, time.UTC))
	if !first.Equal(second) {
		t.Fatalf("10:15 and 10:45 share a bucket")
	}
	if first.Equal(third) {
		t.Fatalf("11:05 is a new bucket")
	}
}

func TestNewGasReadingKeepsExactTime(t *testing.T) {
	at := time.Date(2026, 1, 10, 10, 15, 30, 0, time.UTC)
	reading := NewGasReading(3, 120, at)
	if !reading.RecordedAt.Equal(at) {
		t.Fatalf("recorded_at must be the submitted instant")
	}
	if !reading.Bucket.Equal(time.Date(2026, 1, 10, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected bucket %s", reading.Bucket)
	}
}

func TestGasQueryNormalize(t *testing.T) {
	q, err := GasQuery{RoomID: 1}.Normalize()
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if q.Limit != DefaultQueryLimit {
		t.Fatalf("expected default limit, got %d", q.Limit)
	}
	for _, limit := range []int{-1, 721} {
		if _, err := (GasQuery{RoomID: 1, Limit: limit}).Normalize(); !errors.Is(err, ErrInvalidLimit) {
			t.Fatalf("limit %d: expected ErrInvalidLimit, got %v", limit, err)
		}
	}
	for _, limit := range []int{1, 720} {
		if _, err := (GasQuery{RoomID: 1, Limit: limit}).Normalize(); err != nil {
			t.Fatalf("limit %d: %v", limit, err)
		}
	}
	start := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	if _, err := (GasQuery{RoomID: 1, Start: start, End: start.Add(-time.Hour)}).Normalize(); !errors.Is(err, ErrInvalidWindow) {
		t.Fatalf("expected ErrInvalidWindow, got %v", err)
	}
}

func TestGasQueryMatchesInclusive(t *testing.T) {
	start := time.Date(2026, 1, 10, 10, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)
	q := GasQuery{Start: start, End: end}
	if !q.Matches(start) || !q.Matches(end) {
		t.Fatalf("bounds must be inclusive")
	}
	if q.Matches(start.Add(-time.Second)) || q.Matches(end.Add(time.Second)) {
		t.Fatalf("outside window matched")
	}
	if !(GasQuery{}).Matches(start) {
		t.Fatalf("unbounded query must match")
	}
}
