package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"roomguard/internal/audit"
	"roomguard/internal/auth"
	rooms "roomguard/internal/rooms/domain"
)

type roomResponse struct {
	ID               int64           `json:"id"`
	SpaceName        string          `json:"space_name"`
	SpaceType        string          `json:"space_type"`
	EmergencyContact string          `json:"emergency_contact"`
	OwnerID          int64           `json:"user_id"`
	CreatedAt        time.Time       `json:"date_added"`
	SafetyStatus     *statusResponse `json:"safety_status"`
}

func toRoomResponse(item rooms.RoomWithState) roomResponse {
	resp := roomResponse{
		ID:               item.Room.ID,
		SpaceName:        item.Room.Name,
		SpaceType:        item.Room.SpaceType,
		EmergencyContact: item.Room.EmergencyContact,
		OwnerID:          item.Room.OwnerID,
		CreatedAt:        item.Room.CreatedAt,
	}
	if item.State != nil {
		resp.SafetyStatus = &statusResponse{
			RoomID:       item.State.RoomID,
			FireDetected: item.State.FireDetected,
			GasDetected:  item.State.GasDetected,
			ValveOn:      item.State.ValveOn,
			UpdatedAt:    item.State.UpdatedAt,
		}
	}
	return resp
}

func (h *Handler) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.UserIDFromContext(r.Context())
	if ownerID <= 0 {
		writeError(w, http.StatusUnauthorized, "Not authenticated", rooms.KindInvalid)
		return
	}
	contact := r.FormValue("emergency_contact")
	if contact == "" {
		contact = r.FormValue("emegency_contact")
	}
	room := rooms.Room{
		Name:             strings.TrimSpace(r.FormValue("space_name")),
		SpaceType:        strings.TrimSpace(r.FormValue("space_type")),
		EmergencyContact: strings.TrimSpace(contact),
		OwnerID:          ownerID,
	}
	created, err := h.rooms.Create(r.Context(), room)
	if err != nil {
		if errors.Is(err, rooms.ErrInvalidRoom) {
			writeError(w, http.StatusBadRequest, "space_name is required", rooms.KindInvalid)
			return
		}
		respondDomainError(w, err)
		return
	}
	h.record(r, audit.ActionRoomCreate, created.Room.ID, map[string]string{
		"space_name": created.Room.Name,
		"space_type": created.Room.SpaceType,
	})
	writeJSON(w, http.StatusCreated, toRoomResponse(*created))
}

func (h *Handler) handleListRooms(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.UserIDFromContext(r.Context())
	if ownerID <= 0 {
		writeError(w, http.StatusUnauthorized, "Not authenticated", rooms.KindInvalid)
		return
	}
	list, err := h.rooms.List(r.Context(), ownerID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	resp := make([]roomResponse, 0, len(list))
	for _, item := range list {
		resp = append(resp, toRoomResponse(item))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleDeleteRoom(w http.ResponseWriter, r *http.Request, roomID int64) {
	ownerID := auth.UserIDFromContext(r.Context())
	if ownerID <= 0 {
		writeError(w, http.StatusUnauthorized, "Not authenticated", rooms.KindInvalid)
		return
	}
	if err := h.rooms.Delete(r.Context(), ownerID, roomID); err != nil {
		if errors.Is(err, rooms.ErrRoomNotFound) {
			writeError(w, http.StatusNotFound, "Room not found or not yours.", rooms.KindNotFound)
			return
		}
		respondDomainError(w, err)
		return
	}
	h.record(r, audit.ActionRoomDelete, roomID, nil)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Room deleted successfully"})
}
