package assignment

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mcoot/partytasks/internal/dependencies/random"
	"github.com/mcoot/partytasks/internal/model"
	"github.com/mcoot/partytasks/internal/services/templates"
	"github.com/mcoot/partytasks/internal/storage"
)

// Outcome describes what an assignment call did
type Outcome string

const (
	OutcomeAssigned        Outcome = "assigned"         // Tasks were dealt and persisted
	OutcomeAlreadyAssigned Outcome = "already_assigned" // The room already had tasks
	OutcomeInProgress      Outcome = "in_progress"      // Another caller holds the marker
)

// Result is returned by a successful AssignTasksToRoom
type Result struct {
	Outcome Outcome
	// Plan is set only when Outcome is OutcomeAssigned
	Plan *Plan
}

// Engine deals tasks to every user of a room, at most once per round
type Engine struct {
	store     storage.Store
	templates *templates.Repository
	random    random.Random
	logger    *slog.Logger
}

// New creates a new assignment Engine
func New(store storage.Store, repo *templates.Repository, rnd random.Random, logger *slog.Logger) *Engine {
	return &Engine{
		store:     store,
		templates: repo,
		random:    rnd,
		logger:    logger.With(slog.String("component", "assignment")),
	}
}

// AssignTasksToRoom deals model.TasksPerUser tasks to every user in the room.
// It is a no-op when any user already has tasks or another call holds the
// room's assignment marker.
func (e *Engine) AssignTasksToRoom(ctx context.Context, roomID model.RoomID) (*Result, error) {
	logger := e.logger.With(slog.String("room_id", string(roomID)))

	users, err := e.store.GetUsers(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if anyHasTasks(users) {
		logger.Info("tasks already assigned")
		return &Result{Outcome: OutcomeAlreadyAssigned}, nil
	}
	if len(users) < MinPlayers {
		return nil, fmt.Errorf("%w: have %d, need %d", model.ErrInsufficientPlayers, len(users), MinPlayers)
	}

	claimed, err := e.store.ClaimAssignment(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		logger.Info("assignment already in progress")
		return &Result{Outcome: OutcomeInProgress}, nil
	}

	// The roster may have moved while the marker was being claimed
	users, err = e.store.GetUsers(ctx, roomID)
	if err != nil {
		e.release(ctx, roomID)
		return nil, err
	}
	if anyHasTasks(users) {
		logger.Info("tasks already assigned")
		return &Result{Outcome: OutcomeAlreadyAssigned}, nil
	}

	pool, err := e.templates.LoadAll(ctx)
	if err != nil {
		e.release(ctx, roomID)
		return nil, err
	}

	plan, err := BuildPlan(users, pool, e.random)
	if err != nil {
		logger.Error("failed to deal tasks",
			slog.Int("users", len(users)),
			slog.Int("templates", len(pool)),
			slog.String("error", err.Error()))
		e.release(ctx, roomID)
		return nil, err
	}

	logger.Info("round dealt",
		slog.Int("users", len(users)),
		slog.Int("templates", len(pool)),
		slog.Int("tasks", len(plan.TaskIDs)))

	if err := e.persist(ctx, logger, roomID, plan); err != nil {
		return nil, err
	}

	logger.Info("tasks assigned", slog.Int("tasks", len(plan.TaskIDs)))
	return &Result{Outcome: OutcomeAssigned, Plan: plan}, nil
}

func (e *Engine) persist(ctx context.Context, logger *slog.Logger, roomID model.RoomID, plan *Plan) error {
	for i, userID := range plan.Order {
		err := e.store.SetUserTasks(ctx, roomID, userID, plan.Tasks[userID])
		if err == nil {
			logger.Debug("user tasks written",
				slog.String("user_id", string(userID)),
				slog.Any("task_ids", taskIDs(plan.Tasks[userID])))
			continue
		}

		written := i
		if i == 0 {
			// A failed write may still have landed, so confirm before releasing
			landed, checkErr := e.anyWritten(ctx, roomID)
			if checkErr != nil {
				logger.Warn("could not confirm failed task write, leaving marker to expire",
					slog.String("user_id", string(userID)),
					slog.String("error", checkErr.Error()))
				return err
			}
			if !landed {
				e.release(ctx, roomID)
				return err
			}
			written = 1
		}
		partial := fmt.Errorf("%w: wrote %d of %d users: %w",
			model.ErrPartialAssignment, written, len(plan.Order), err)
		logger.Error("task assignment left room partially assigned",
			slog.String("user_id", string(userID)),
			slog.String("error", partial.Error()))
		return partial
	}

	if err := e.store.SetAssignedTasks(ctx, roomID, plan.TaskIDs); err != nil {
		partial := fmt.Errorf("%w: wrote %d of %d users, room audit failed: %w",
			model.ErrPartialAssignment, len(plan.Order), len(plan.Order), err)
		logger.Error("task assignment left room without audit trail",
			slog.String("error", partial.Error()))
		return partial
	}
	return nil
}

// release frees the marker so the host can retry. It must run even if the
// caller's context was cancelled.
func (e *Engine) release(ctx context.Context, roomID model.RoomID) {
	if err := e.store.ReleaseAssignment(context.WithoutCancel(ctx), roomID); err != nil {
		e.logger.Warn("failed to release assignment marker",
			slog.String("room_id", string(roomID)),
			slog.String("error", err.Error()))
	}
}

// anyWritten re-reads the roster to see whether any tasks were stored
func (e *Engine) anyWritten(ctx context.Context, roomID model.RoomID) (bool, error) {
	users, err := e.store.GetUsers(context.WithoutCancel(ctx), roomID)
	if err != nil {
		return false, err
	}
	return anyHasTasks(users), nil
}

func anyHasTasks(users []*model.User) bool {
	for _, u := range users {
		if u.HasTasks() {
			return true
		}
	}
	return false
}

func taskIDs(tasks []model.TaskAssignment) []model.TaskID {
	ids := make([]model.TaskID, 0, len(tasks))
	for _, t := range tasks {
		ids = append(ids, t.TaskID)
	}
	return ids
}
