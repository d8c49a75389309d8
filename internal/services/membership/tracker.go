package membership

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/mcoot/partytasks/internal/dependencies/clock"
	"github.com/mcoot/partytasks/internal/model"
	"github.com/mcoot/partytasks/internal/storage"
)

// MaxNameLength is the longest display name accepted, in characters
const MaxNameLength = 32

// Tracker manages the per-room roster and ready flags
type Tracker struct {
	store  storage.Store
	clock  clock.Clock
	logger *slog.Logger
}

// New creates a new membership Tracker
func New(store storage.Store, clk clock.Clock, logger *slog.Logger) *Tracker {
	return &Tracker{
		store:  store,
		clock:  clk,
		logger: logger.With(slog.String("component", "membership")),
	}
}

// NormalizeName trims a display name and checks its length
func NormalizeName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", model.ErrEmptyName
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return "", fmt.Errorf("%w: at most %d characters", model.ErrNameTooLong, MaxNameLength)
	}
	return name, nil
}

// JoinRoom adds a user to a waiting room. Host uniqueness is up to the
// caller: only the room creation workflow should ask for RoleHost.
func (t *Tracker) JoinRoom(ctx context.Context, roomID model.RoomID, name string, role model.Role) (*model.User, error) {
	name, err := NormalizeName(name)
	if err != nil {
		return nil, err
	}
	if !role.IsValid() {
		return nil, fmt.Errorf("%w: %q", model.ErrInvalidRole, role)
	}

	room, err := t.store.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room.IsActive() {
		return nil, model.ErrRoomNotJoinable
	}

	user := &model.User{
		Name:     name,
		Role:     role,
		Ready:    false,
		JoinedAt: t.clock.Now(),
	}
	// The store refuses the add if a deal has started since the read above
	id, err := t.store.AddUser(ctx, roomID, user)
	if err != nil {
		return nil, err
	}
	user.ID = id

	t.logger.Info("user joined",
		slog.String("room_id", string(roomID)),
		slog.String("user_id", string(id)),
		slog.String("role", string(role)))
	return user, nil
}

// UpdateUserReady sets a user's ready flag
func (t *Tracker) UpdateUserReady(ctx context.Context, roomID model.RoomID, userID model.UserID, ready bool) error {
	if err := t.store.UpdateUserReady(ctx, roomID, userID, ready); err != nil {
		return err
	}
	t.logger.Debug("user ready changed",
		slog.String("room_id", string(roomID)),
		slog.String("user_id", string(userID)),
		slog.Bool("ready", ready))
	return nil
}

// ListUsers returns the room's roster in join order
func (t *Tracker) ListUsers(ctx context.Context, roomID model.RoomID) ([]*model.User, error) {
	return t.store.GetUsers(ctx, roomID)
}

// GetUser returns one member of the room
func (t *Tracker) GetUser(ctx context.Context, roomID model.RoomID, userID model.UserID) (*model.User, error) {
	users, err := t.store.GetUsers(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if u := FindUser(users, userID); u != nil {
		return u, nil
	}
	return nil, model.ErrUserNotFound
}

// ComputeReadiness reports whether the roster is non-empty and everyone is ready
func ComputeReadiness(users []*model.User) bool {
	if len(users) == 0 {
		return false
	}
	for _, u := range users {
		if !u.Ready {
			return false
		}
	}
	return true
}

// IsHost reports whether userID is in the roster with the host role
func IsHost(users []*model.User, userID model.UserID) bool {
	u := FindUser(users, userID)
	return u != nil && u.IsHost()
}

// FindUser returns the roster entry for userID, or nil
func FindUser(users []*model.User, userID model.UserID) *model.User {
	for _, u := range users {
		if u.ID == userID {
			return u
		}
	}
	return nil
}
