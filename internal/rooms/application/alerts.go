package application

import (
	"context"
	"fmt"
	"time"

	rooms "roomguard/internal/rooms/domain"
)

// AlertKind identifies why a notification was raised.
type AlertKind string

const (
	AlertFire     AlertKind = "fire"
	AlertGasLeak  AlertKind = "gas_leak"
	AlertGasLevel AlertKind = "gas_level"
)

// Alert is a notification request produced after a committed transition.
type Alert struct {
	Kind     AlertKind `json:"kind"`
	RoomID   int64     `json:"room_id"`
	RoomName string    `json:"room_name"`
	OwnerID  int64     `json:"owner_id"`
	Target   string    `json:"-"`
	Title    string    `json:"title"`
	Body     string    `json:"body"`
	GasLevel float64   `json:"gas_level,omitempty"`
	RaisedAt time.Time `json:"raised_at"`
}

// AlertNotifier delivers alerts. Implementations must not block past their own timeout.
type AlertNotifier interface {
	Notify(ctx context.Context, alert Alert)
}

func newFireAlert(room rooms.Room, at time.Time) Alert {
	return Alert{
		Kind:     AlertFire,
		RoomID:   room.ID,
		RoomName: room.Name,
		OwnerID:  room.OwnerID,
		Title:    "Fire Alert",
		Body:     fmt.Sprintf("Fire detected in %s", room.Name),
		RaisedAt: at,
	}
}

func newGasLeakAlert(room rooms.Room, at time.Time) Alert {
	return Alert{
		Kind:     AlertGasLeak,
		RoomID:   room.ID,
		RoomName: room.Name,
		OwnerID:  room.OwnerID,
		Title:    "Gas Leak Detected",
		Body:     fmt.Sprintf("Gas leak detected in %s. Valve turned OFF.", room.Name),
		RaisedAt: at,
	}
}

func newGasLevelAlert(room rooms.Room, level float64, at time.Time) Alert {
	return Alert{
		Kind:     AlertGasLevel,
		RoomID:   room.ID,
		RoomName: room.Name,
		OwnerID:  room.OwnerID,
		Title:    "Gas Alert",
		Body:     fmt.Sprintf("High gas level (%.1f PPM) detected in %s. Valve turned OFF.", level, room.Name),
		GasLevel: level,
		RaisedAt: at,
	}
}
