package sse

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mcoot/partytasks/internal/model"
	"github.com/mcoot/partytasks/internal/projector"
)

// event is a formatted SSE message tagged with its event name
type event struct {
	name string
	msg  []byte
}

// Hub manages SSE clients for a single room. The latest message of each
// event name is replayed to clients as they register.
type Hub struct {
	roomID  model.RoomID
	clients map[*Client]bool
	mu      sync.RWMutex
	logger  *slog.Logger

	// Latest message per event, in first-seen order. Owned by Run.
	last      map[string][]byte
	lastOrder []string

	observations []*projector.Observation
	closeOnce    sync.Once

	// Channels for managing clients
	register   chan *Client
	unregister chan *Client
	broadcast  chan event
	done       chan struct{}
}

// NewHub creates a new Hub for a room
func NewHub(roomID model.RoomID, logger *slog.Logger) *Hub {
	return &Hub{
		roomID:     roomID,
		clients:    make(map[*Client]bool),
		logger:     logger.With(slog.String("room_id", string(roomID))),
		last:       make(map[string][]byte),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan event, 256),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's event loop
func (h *Hub) Run() {
	h.logger.Info("sse hub started")
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			clientCount := len(h.clients)
			h.mu.Unlock()
			for _, name := range h.lastOrder {
				select {
				case client.send <- h.last[name]:
				default:
				}
			}
			h.logger.Info("sse client registered",
				slog.String("user_id", string(client.userID)),
				slog.Int("total_clients", clientCount))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				clientCount := len(h.clients)
				h.mu.Unlock()
				h.logger.Info("sse client unregistered",
					slog.String("user_id", string(client.userID)),
					slog.Duration("connection_duration", time.Since(client.connectedAt)),
					slog.Int("total_clients", clientCount))
			} else {
				h.mu.Unlock()
			}

		case ev := <-h.broadcast:
			if _, seen := h.last[ev.name]; !seen {
				h.lastOrder = append(h.lastOrder, ev.name)
			}
			h.last[ev.name] = ev.msg

			h.mu.RLock()
			sentCount := 0
			droppedCount := 0
			for client := range h.clients {
				select {
				case client.send <- ev.msg:
					sentCount++
				default:
					droppedCount++
					h.logger.Warn("sse message dropped - client buffer full",
						slog.String("user_id", string(client.userID)))
				}
			}
			h.mu.RUnlock()
			if droppedCount > 0 {
				h.logger.Warn("sse broadcast partial failure",
					slog.Int("sent", sentCount),
					slog.Int("dropped", droppedCount))
			}

		case <-h.done:
			h.mu.Lock()
			clientCount := len(h.clients)
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			h.logger.Info("sse hub stopped", slog.Int("disconnected_clients", clientCount))
			return
		}
	}
}

// Register adds a client to the hub. It returns false if the hub is closed.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// BroadcastEvent sends an SSE event with a name and data to all clients
func (h *Hub) BroadcastEvent(eventName, data string) {
	select {
	case h.broadcast <- event{name: eventName, msg: formatSSEMessage(eventName, data)}:
	default:
		h.logger.Warn("sse broadcast dropped - hub buffer full")
	}
}

// Close stops the hub and its room observations. Safe to call more than once.
func (h *Hub) Close() {
	h.closeOnce.Do(func() {
		h.mu.Lock()
		observations := h.observations
		h.observations = nil
		h.mu.Unlock()
		for _, obs := range observations {
			obs.Cancel()
		}
		close(h.done)
	})
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// attach ties observations to the hub's lifetime
func (h *Hub) attach(observations ...*projector.Observation) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.observations = append(h.observations, observations...)
}

// formatSSEMessage formats an SSE message with event name and data
// Multi-line data is properly formatted with "data: " prefix on each line
func formatSSEMessage(eventName, data string) []byte {
	var b strings.Builder
	b.WriteString("event: " + eventName + "\n")
	// SSE requires each line of data to be prefixed with "data: "
	for _, line := range splitLines(data) {
		b.WriteString("data: " + line + "\n")
	}
	b.WriteString("\n")
	return []byte(b.String())
}

// splitLines splits a string into lines, handling various line endings
func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.TrimSuffix(s, "\n")
	return strings.Split(s, "\n")
}

// HubManager manages hubs for all rooms
type HubManager struct {
	hubs        map[model.RoomID]*Hub
	mu          sync.Mutex
	broadcaster *Broadcaster
	logger      *slog.Logger
}

// NewHubManager creates a new HubManager. Hubs it creates are fed from
// the broadcaster's room observations.
func NewHubManager(broadcaster *Broadcaster, logger *slog.Logger) *HubManager {
	return &HubManager{
		hubs:        make(map[model.RoomID]*Hub),
		broadcaster: broadcaster,
		logger:      logger.With(slog.String("component", "sse")),
	}
}

// GetOrCreateHub returns the hub for a room, creating and wiring one if it
// doesn't exist. Unknown rooms return model.ErrRoomNotFound.
func (m *HubManager) GetOrCreateHub(roomID model.RoomID) (*Hub, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if hub, ok := m.hubs[roomID]; ok {
		return hub, nil
	}

	hub := NewHub(roomID, m.logger)
	go hub.Run()
	// Observations outlive the request that created the hub
	if err := m.broadcaster.Watch(context.Background(), hub); err != nil {
		hub.Close()
		return nil, err
	}
	m.hubs[roomID] = hub
	return hub, nil
}

// GetHub returns the hub for a room, or nil if it doesn't exist
func (m *HubManager) GetHub(roomID model.RoomID) *Hub {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hubs[roomID]
}

// RemoveHub removes and closes a hub
func (m *HubManager) RemoveHub(roomID model.RoomID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if hub, ok := m.hubs[roomID]; ok {
		hub.Close()
		delete(m.hubs, roomID)
		m.logger.Info("sse hub removed", slog.String("room_id", string(roomID)))
	}
}

// CleanupEmptyHubs removes hubs with no clients
func (m *HubManager) CleanupEmptyHubs() {
	m.mu.Lock()
	defer m.mu.Unlock()

	removedCount := 0
	for id, hub := range m.hubs {
		if hub.ClientCount() == 0 {
			hub.Close()
			delete(m.hubs, id)
			removedCount++
		}
	}
	if removedCount > 0 {
		m.logger.Info("sse empty hubs cleaned up", slog.Int("removed", removedCount))
	}
}

// RunJanitor calls CleanupEmptyHubs every interval until ctx is done
func (m *HubManager) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CleanupEmptyHubs()
		}
	}
}

// Close closes every hub
func (m *HubManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, hub := range m.hubs {
		hub.Close()
		delete(m.hubs, id)
	}
}
