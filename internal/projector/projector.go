// Package projector turns a room's change feed into a stream of fresh
// snapshots for observers such as the SSE and WebSocket transports.
package projector

import (
	"context"
	"log/slog"
	"sync"

	"github.com/mcoot/partytasks/internal/model"
	"github.com/mcoot/partytasks/internal/storage"
)

// Projector re-reads room state on every change and hands it to observers
type Projector struct {
	store  storage.Store
	logger *slog.Logger
}

// New creates a new Projector
func New(store storage.Store, logger *slog.Logger) *Projector {
	return &Projector{
		store:  store,
		logger: logger.With(slog.String("component", "projector")),
	}
}

// RoomUpdate is one snapshot of the room document
type RoomUpdate struct {
	Room *model.Room
	// Activated is true on the first snapshot an observation sees with the
	// room active, and false on every other
	Activated bool
}

// Observation is a running observer. Callbacks are made from a single
// goroutine, one at a time, until Cancel is called or the feed ends.
type Observation struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

// Cancel stops the observation. It does not wait for an in-flight callback
// to return; use Done for that. Safe to call more than once.
func (o *Observation) Cancel() {
	o.cancel()
}

// Done is closed once no further callbacks will be made
func (o *Observation) Done() <-chan struct{} {
	return o.done
}

// Err reports why the observation ended: nil after Cancel or context
// cancellation, model.ErrFeedClosed if the store closed the feed.
func (o *Observation) Err() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.err
}

// ObserveRoomUsers calls fn with the roster now and after every change to
// the room, in join order
func (p *Projector) ObserveRoomUsers(ctx context.Context, roomID model.RoomID, fn func([]*model.User)) (*Observation, error) {
	return observe(ctx, p, roomID,
		func(ctx context.Context) ([]*model.User, error) {
			return p.store.GetUsers(ctx, roomID)
		},
		fn)
}

// ObserveRoomStatus calls fn with the room document now and after every
// change to the room
func (p *Projector) ObserveRoomStatus(ctx context.Context, roomID model.RoomID, fn func(RoomUpdate)) (*Observation, error) {
	activated := false
	return observe(ctx, p, roomID,
		func(ctx context.Context) (*model.Room, error) {
			return p.store.GetRoom(ctx, roomID)
		},
		func(room *model.Room) {
			update := RoomUpdate{Room: room}
			if room.IsActive() && !activated {
				activated = true
				update.Activated = true
			}
			fn(update)
		})
}

// observe subscribes before the first read so no change between the two
// is lost. Changes carry no data, so any change triggers a fresh read.
func observe[T any](
	ctx context.Context,
	p *Projector,
	roomID model.RoomID,
	fetch func(context.Context) (T, error),
	fn func(T),
) (*Observation, error) {
	ctx, cancel := context.WithCancel(ctx)
	sub, err := p.store.Subscribe(ctx, roomID)
	if err != nil {
		cancel()
		return nil, err
	}

	initial, err := fetch(ctx)
	if err != nil {
		_ = sub.Close()
		cancel()
		return nil, err
	}
	fn(initial)

	obs := &Observation{cancel: cancel, done: make(chan struct{})}
	logger := p.logger.With(slog.String("room_id", string(roomID)))

	go func() {
		defer close(obs.done)
		defer sub.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-sub.Changes():
				if !ok {
					if ctx.Err() == nil {
						obs.mu.Lock()
						obs.err = model.ErrFeedClosed
						obs.mu.Unlock()
						logger.Warn("change feed closed")
					}
					return
				}
				snapshot, err := fetch(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					logger.Warn("failed to refresh room snapshot",
						slog.String("error", err.Error()))
					continue
				}
				if ctx.Err() != nil {
					return
				}
				fn(snapshot)
			}
		}
	}()

	return obs, nil
}
