package round

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mcoot/partytasks/internal/model"
	"github.com/mcoot/partytasks/internal/services/assignment"
	"github.com/mcoot/partytasks/internal/services/lifecycle"
	"github.com/mcoot/partytasks/internal/services/membership"
)

// Coordinator runs the multi-step room workflows: hosting a new room,
// joining by code and starting a round
type Coordinator struct {
	lifecycle  *lifecycle.Manager
	membership *membership.Tracker
	engine     *assignment.Engine
	logger     *slog.Logger
}

// New creates a new round Coordinator
func New(
	lifecycle *lifecycle.Manager,
	membership *membership.Tracker,
	engine *assignment.Engine,
	logger *slog.Logger,
) *Coordinator {
	return &Coordinator{
		lifecycle:  lifecycle,
		membership: membership,
		engine:     engine,
		logger:     logger.With(slog.String("component", "round")),
	}
}

// CreateAndHost creates a room and joins its creator as host
func (c *Coordinator) CreateAndHost(ctx context.Context, hostName string) (*model.Room, *model.User, error) {
	// Validate before creating so a bad name doesn't leave an empty room
	if _, err := membership.NormalizeName(hostName); err != nil {
		return nil, nil, err
	}

	room, err := c.lifecycle.CreateRoom(ctx)
	if err != nil {
		return nil, nil, err
	}
	host, err := c.membership.JoinRoom(ctx, room.ID, hostName, model.RoleHost)
	if err != nil {
		return nil, nil, err
	}
	return room, host, nil
}

// JoinByCode resolves a code and joins the room as a player
func (c *Coordinator) JoinByCode(ctx context.Context, code, name string) (*model.Room, *model.User, error) {
	if _, err := membership.NormalizeName(name); err != nil {
		return nil, nil, err
	}

	room, err := c.lifecycle.FindRoomByCode(ctx, code)
	if err != nil {
		return nil, nil, err
	}
	user, err := c.membership.JoinRoom(ctx, room.ID, name, model.RolePlayer)
	if err != nil {
		return nil, nil, err
	}
	return room, user, nil
}

// StartRound deals tasks and activates the room. Only the host may start,
// and only once everyone is ready.
func (c *Coordinator) StartRound(ctx context.Context, roomID model.RoomID, requester model.UserID) (*assignment.Result, error) {
	users, err := c.membership.ListUsers(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !membership.IsHost(users, requester) {
		return nil, model.ErrNotHost
	}
	if !membership.ComputeReadiness(users) {
		return nil, model.ErrNotAllReady
	}

	result, err := c.engine.AssignTasksToRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	// Whoever holds the marker activates the room when it finishes
	if result.Outcome == assignment.OutcomeInProgress {
		return result, nil
	}

	err = c.lifecycle.UpdateRoomStatus(ctx, roomID, model.RoomStatusActive)
	if err != nil && !errors.Is(err, model.ErrInvalidStatusTransition) {
		return nil, err
	}

	c.logger.Info("round started",
		slog.String("room_id", string(roomID)),
		slog.String("user_id", string(requester)),
		slog.String("outcome", string(result.Outcome)))
	return result, nil
}
