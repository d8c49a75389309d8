package model

import (
	"fmt"
	"time"
)

// RoomID is the opaque identifier assigned to a room by the store
type RoomID string

// RoomCode is the short human-readable code players use to join a room
type RoomCode string

// RoomStatus represents the lifecycle state of a room
type RoomStatus string

const (
	RoomStatusWaiting RoomStatus = "waiting" // Accepting players
	RoomStatusActive  RoomStatus = "active"  // Round in progress
)

// IsValid reports whether s is a known status
func (s RoomStatus) IsValid() bool {
	return s == RoomStatusWaiting || s == RoomStatusActive
}

const (
	// RoomCodeLength is the length of generated room codes
	RoomCodeLength = 4
	// RoomCodeAlphabet is the characters used in room codes
	RoomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// IsValidRoomCode reports whether code has the generated code shape
func IsValidRoomCode(code RoomCode) bool {
	if len(code) != RoomCodeLength {
		return false
	}
	for _, c := range code {
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}

// Room is the shared session players join via its code.
// JSON field names are the persisted document shape.
type Room struct {
	ID            RoomID     `json:"-"`
	Code          RoomCode   `json:"code"`
	Status        RoomStatus `json:"status"`
	CreatedAt     time.Time  `json:"createdAt"`
	AssignedTasks []TaskID   `json:"assignedTasks,omitempty"`
}

// IsActive reports whether the room's round has started
func (r *Room) IsActive() bool {
	return r.Status == RoomStatusActive
}

// Validate checks a room read back from storage
func (r *Room) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("%w: room has no id", ErrMalformedDocument)
	}
	if !IsValidRoomCode(r.Code) {
		return fmt.Errorf("%w: room %s has code %q", ErrMalformedDocument, r.ID, r.Code)
	}
	if !r.Status.IsValid() {
		return fmt.Errorf("%w: room %s has status %q", ErrMalformedDocument, r.ID, r.Status)
	}
	return nil
}

// Clone returns a deep copy of the room
func (r *Room) Clone() *Room {
	c := *r
	if r.AssignedTasks != nil {
		c.AssignedTasks = append([]TaskID(nil), r.AssignedTasks...)
	}
	return &c
}
