package sse

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/mcoot/partytasks/internal/api/response"
	"github.com/mcoot/partytasks/internal/model"
	"github.com/mcoot/partytasks/internal/projector"
)

// Event names sent to clients
const (
	EventRoster       = "roster"        // JSON roster
	EventRosterHTML   = "roster-html"   // Roster fragment for hx-swap-oob
	EventStatus       = "status"        // JSON room document
	EventRoundStarted = "round-started" // Sent once when the room becomes active
)

// Broadcaster turns room snapshots into SSE events on a hub
type Broadcaster struct {
	projector *projector.Projector
	renderer  *Renderer
	logger    *slog.Logger
}

// NewBroadcaster creates a new Broadcaster
func NewBroadcaster(p *projector.Projector, renderer *Renderer, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		projector: p,
		renderer:  renderer,
		logger:    logger.With(slog.String("component", "sse-broadcaster")),
	}
}

// Watch observes the hub's room and broadcasts every snapshot until the hub
// is closed. The current roster and status are broadcast before it returns.
func (b *Broadcaster) Watch(ctx context.Context, hub *Hub) error {
	users, err := b.projector.ObserveRoomUsers(ctx, hub.roomID, func(u []*model.User) {
		b.BroadcastRoster(ctx, hub, u)
	})
	if err != nil {
		return err
	}
	status, err := b.projector.ObserveRoomStatus(ctx, hub.roomID, func(u projector.RoomUpdate) {
		b.BroadcastStatus(hub, u)
	})
	if err != nil {
		users.Cancel()
		return err
	}
	hub.attach(users, status)
	return nil
}

// BroadcastRoster sends the roster as JSON and as an HTML fragment
func (b *Broadcaster) BroadcastRoster(ctx context.Context, hub *Hub, users []*model.User) {
	data, err := json.Marshal(response.RosterFromModel(users))
	if err != nil {
		b.logger.Error("sse failed to encode roster",
			slog.String("room_id", string(hub.roomID)),
			slog.String("error", err.Error()))
		return
	}
	hub.BroadcastEvent(EventRoster, string(data))

	html, err := b.renderer.RenderRoster(ctx, users)
	if err != nil {
		b.logger.Error("sse failed to render roster",
			slog.String("room_id", string(hub.roomID)),
			slog.String("error", err.Error()))
		return
	}
	hub.BroadcastEvent(EventRosterHTML, WrapForOOBSwap("roster", html))
}

// BroadcastStatus sends the room document, plus round-started on activation
func (b *Broadcaster) BroadcastStatus(hub *Hub, update projector.RoomUpdate) {
	data, err := json.Marshal(response.RoomFromModel(update.Room))
	if err != nil {
		b.logger.Error("sse failed to encode room",
			slog.String("room_id", string(hub.roomID)),
			slog.String("error", err.Error()))
		return
	}
	hub.BroadcastEvent(EventStatus, string(data))

	if update.Activated {
		hub.BroadcastEvent(EventRoundStarted, string(update.Room.ID))
	}
}
