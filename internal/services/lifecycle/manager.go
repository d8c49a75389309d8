package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mcoot/partytasks/internal/dependencies/clock"
	"github.com/mcoot/partytasks/internal/dependencies/random"
	"github.com/mcoot/partytasks/internal/model"
	"github.com/mcoot/partytasks/internal/storage"
)

// MaxCodeAttempts bounds how many codes are drawn before giving up on a free one
const MaxCodeAttempts = 10

// Manager creates rooms, resolves join codes and drives the room status
type Manager struct {
	store  storage.Store
	clock  clock.Clock
	random random.Random
	logger *slog.Logger
}

// New creates a new lifecycle Manager
func New(store storage.Store, clk clock.Clock, rnd random.Random, logger *slog.Logger) *Manager {
	return &Manager{
		store:  store,
		clock:  clk,
		random: rnd,
		logger: logger.With(slog.String("component", "lifecycle")),
	}
}

// CreateRoom creates a waiting room with a fresh code
func (m *Manager) CreateRoom(ctx context.Context) (*model.Room, error) {
	code, err := m.generateCode(ctx)
	if err != nil {
		return nil, err
	}

	room := &model.Room{
		Code:      code,
		Status:    model.RoomStatusWaiting,
		CreatedAt: m.clock.Now(),
	}
	id, err := m.store.CreateRoom(ctx, room)
	if err != nil {
		return nil, err
	}
	room.ID = id

	m.logger.Info("room created",
		slog.String("room_id", string(room.ID)),
		slog.String("code", string(room.Code)))
	return room, nil
}

// generateCode draws codes until one is not in use
func (m *Manager) generateCode(ctx context.Context) (model.RoomCode, error) {
	for attempt := 0; attempt < MaxCodeAttempts; attempt++ {
		code := model.RoomCode(m.random.String(model.RoomCodeLength, model.RoomCodeAlphabet))
		if !model.IsValidRoomCode(code) {
			continue
		}
		existing, err := m.store.FindRoomsByCode(ctx, code)
		if err != nil {
			return "", err
		}
		if len(existing) == 0 {
			return code, nil
		}
		m.logger.Debug("room code collision", slog.String("code", string(code)))
	}
	return "", model.ErrCodeSpaceExhausted
}

// NormalizeCode trims and upper-cases a user-entered code
func NormalizeCode(raw string) model.RoomCode {
	return model.RoomCode(strings.ToUpper(strings.TrimSpace(raw)))
}

// FindRoomByCode resolves a user-entered code to its room
func (m *Manager) FindRoomByCode(ctx context.Context, raw string) (*model.Room, error) {
	code := NormalizeCode(raw)
	if code == "" {
		return nil, model.ErrEmptyCode
	}
	if !model.IsValidRoomCode(code) {
		return nil, fmt.Errorf("%w: %q", model.ErrInvalidCode, code)
	}

	rooms, err := m.store.FindRoomsByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	switch len(rooms) {
	case 0:
		return nil, model.ErrRoomNotFound
	case 1:
		return rooms[0], nil
	default:
		m.logger.Warn("room code matches multiple rooms",
			slog.String("code", string(code)),
			slog.Int("matches", len(rooms)))
		return nil, model.ErrAmbiguousCode
	}
}

// GetRoom retrieves a room by id
func (m *Manager) GetRoom(ctx context.Context, id model.RoomID) (*model.Room, error) {
	return m.store.GetRoom(ctx, id)
}

// UpdateRoomStatus moves a room to status. Only waiting -> active is legal.
func (m *Manager) UpdateRoomStatus(ctx context.Context, id model.RoomID, status model.RoomStatus) error {
	if !status.IsValid() {
		return fmt.Errorf("%w: %q", model.ErrInvalidStatus, status)
	}
	if status != model.RoomStatusActive {
		return fmt.Errorf("%w: cannot move to %s", model.ErrInvalidStatusTransition, status)
	}

	if err := m.store.UpdateRoomStatus(ctx, id, model.RoomStatusWaiting, status); err != nil {
		return err
	}

	m.logger.Info("room status changed",
		slog.String("room_id", string(id)),
		slog.String("status", string(status)))
	return nil
}
