package storage

import (
	"context"
	"time"

	"github.com/mcoot/partytasks/internal/model"
)

// DefaultAssignmentLease is how long a claimed assignment marker blocks other
// callers when its holder never releases it
const DefaultAssignmentLease = 30 * time.Second

// Store defines the persistence and change-notification contract for rooms.
// Implementations assign ids, apply conditional writes atomically, and
// publish a Change to room subscribers after every successful write.
type Store interface {
	// Room operations
	CreateRoom(ctx context.Context, room *model.Room) (model.RoomID, error)
	GetRoom(ctx context.Context, id model.RoomID) (*model.Room, error)
	FindRoomsByCode(ctx context.Context, code model.RoomCode) ([]*model.Room, error)
	// UpdateRoomStatus sets the status to `to` only if it is currently `from`.
	// A mismatch returns model.ErrInvalidStatusTransition.
	UpdateRoomStatus(ctx context.Context, id model.RoomID, from, to model.RoomStatus) error
	SetAssignedTasks(ctx context.Context, id model.RoomID, taskIDs []model.TaskID) error

	// Assignment marker operations. ClaimAssignment returns false if the
	// marker is already held for the room. A claim lapses after the store's
	// lease, so a crashed holder cannot block the room forever.
	ClaimAssignment(ctx context.Context, id model.RoomID) (bool, error)
	ReleaseAssignment(ctx context.Context, id model.RoomID) error

	// User operations. GetUsers returns users in join order. AddUser returns
	// model.ErrRoomNotJoinable once the room is active, its marker is held,
	// or any user has tasks.
	AddUser(ctx context.Context, roomID model.RoomID, user *model.User) (model.UserID, error)
	GetUsers(ctx context.Context, roomID model.RoomID) ([]*model.User, error)
	UpdateUserReady(ctx context.Context, roomID model.RoomID, userID model.UserID, ready bool) error
	SetUserTasks(ctx context.Context, roomID model.RoomID, userID model.UserID, tasks []model.TaskAssignment) error

	// Task template operations
	ListTaskTemplates(ctx context.Context) ([]*model.TaskTemplate, error)
	SaveTaskTemplates(ctx context.Context, templates []*model.TaskTemplate) error

	// Subscribe delivers a Change whenever the room's stored state changes.
	// Notifications coalesce: a slow reader sees at least one pending Change
	// after any number of writes, never one per write.
	Subscribe(ctx context.Context, roomID model.RoomID) (Subscription, error)
}

// Subscription is a live change feed for one room
type Subscription interface {
	Changes() <-chan model.Change
	Close() error
}

// Notify performs a non-blocking, coalescing send of c on ch
func Notify(ch chan model.Change, c model.Change) {
	select {
	case ch <- c:
	default:
	}
}
