package model

// ChangeKind identifies which part of a room changed
type ChangeKind string

const (
	ChangeRoom  ChangeKind = "room"  // Room document (status, assigned tasks)
	ChangeUsers ChangeKind = "users" // Membership, readiness or user tasks
)

// Change is a notification that a room's stored state has changed.
// It carries no data; subscribers re-read the current snapshot.
type Change struct {
	RoomID RoomID
	Kind   ChangeKind
}
