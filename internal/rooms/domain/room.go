package rooms

import (
	"strings"
	"time"
)

// Room is a monitored physical space owned by one user.
type Room struct {
	ID               int64
	Name             string
	SpaceType        string
	EmergencyContact string
	OwnerID          int64
	CreatedAt        time.Time
}

// Validate checks the attributes required to register a room.
func (r Room) Validate() error {
	if strings.TrimSpace(r.Name) == "" || r.OwnerID <= 0 {
		return ErrInvalidRoom
	}
	return nil
}

// RoomWithState pairs a room with its current safety status.
type RoomWithState struct {
	Room  Room
	State *SafetyState
}
