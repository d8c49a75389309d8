package model

import (
	"fmt"
	"time"
)

// UserID is the opaque identifier assigned to a user by the store
type UserID string

// Role distinguishes the room creator from everyone else
type Role string

const (
	RoleHost   Role = "host"
	RolePlayer Role = "player"
)

// IsValid reports whether r is a known role
func (r Role) IsValid() bool {
	return r == RoleHost || r == RolePlayer
}

// User is a member of a room. JSON field names are the persisted document shape.
type User struct {
	ID       UserID           `json:"-"`
	Name     string           `json:"name"`
	Role     Role             `json:"role"`
	Ready    bool             `json:"ready"`
	JoinedAt time.Time        `json:"joinedAt"`
	Tasks    []TaskAssignment `json:"tasks,omitempty"`
}

// IsHost reports whether the user created the room
func (u *User) IsHost() bool {
	return u.Role == RoleHost
}

// HasTasks reports whether the user has been dealt tasks this round
func (u *User) HasTasks() bool {
	return len(u.Tasks) > 0
}

// Validate checks a user read back from storage
func (u *User) Validate() error {
	if u.ID == "" {
		return fmt.Errorf("%w: user has no id", ErrMalformedDocument)
	}
	if !u.Role.IsValid() {
		return fmt.Errorf("%w: user %s has role %q", ErrMalformedDocument, u.ID, u.Role)
	}
	for _, t := range u.Tasks {
		if t.TaskID == "" || t.TargetUserID == "" {
			return fmt.Errorf("%w: user %s has an incomplete task", ErrMalformedDocument, u.ID)
		}
	}
	return nil
}

// Clone returns a deep copy of the user
func (u *User) Clone() *User {
	c := *u
	if u.Tasks != nil {
		c.Tasks = append([]TaskAssignment(nil), u.Tasks...)
	}
	return &c
}
