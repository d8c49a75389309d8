// Package ws serves a room's roster and status over a WebSocket, and lets a
// connected user toggle their ready flag from the same socket.
package ws

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mcoot/partytasks/internal/api/apierr"
	"github.com/mcoot/partytasks/internal/api/response"
	"github.com/mcoot/partytasks/internal/model"
	"github.com/mcoot/partytasks/internal/projector"
	"github.com/mcoot/partytasks/internal/services/membership"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong from the peer
	pongWait = 60 * time.Second

	// Send pings with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Largest message accepted from the peer
	maxMessageSize = 4096

	sendBufferSize = 64
)

// Message types
const (
	TypeRoster = "roster" // server: roster snapshot
	TypeRoom   = "room"   // server: room document snapshot
	TypeError  = "error"  // server: a client request failed
	TypeReady  = "ready"  // client: set the connected user's ready flag
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ServerMessage is sent to clients. Exactly one payload field is set,
// matching Type.
type ServerMessage struct {
	Type      string           `json:"type"`
	Roster    *response.Roster `json:"roster,omitempty"`
	Room      *response.Room   `json:"room,omitempty"`
	Activated bool             `json:"activated,omitempty"`
	Error     *apierr.APIError `json:"error,omitempty"`
}

// ClientMessage is received from clients
type ClientMessage struct {
	Type  string `json:"type"`
	Ready *bool  `json:"ready,omitempty"`
}

// Handler upgrades room observers to WebSocket connections
type Handler struct {
	projector  *projector.Projector
	membership *membership.Tracker
	logger     *slog.Logger
}

// NewHandler creates a new Handler
func NewHandler(p *projector.Projector, m *membership.Tracker, logger *slog.Logger) *Handler {
	return &Handler{
		projector:  p,
		membership: m,
		logger:     logger.With(slog.String("component", "ws")),
	}
}

// conn is one client connection. Only writePump writes to ws.
type conn struct {
	ws     *websocket.Conn
	send   chan ServerMessage
	roomID model.RoomID
	userID model.UserID
	logger *slog.Logger
}

// Serve streams the room's roster and status to the client until it
// disconnects. userID is the user whose ready flag the client may set;
// it is empty for spectators.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request, roomID model.RoomID, userID model.UserID) {
	if userID != "" {
		if _, err := h.membership.GetUser(r.Context(), roomID, userID); err != nil {
			apierr.WriteError(w, err)
			return
		}
	}

	c := &conn{
		send:   make(chan ServerMessage, sendBufferSize),
		roomID: roomID,
		userID: userID,
		logger: h.logger.With(
			slog.String("room_id", string(roomID)),
			slog.String("user_id", string(userID))),
	}

	// Observations end with the connection, not the upgrade request
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initial snapshots are queued before the upgrade and written first
	_, err := h.projector.ObserveRoomUsers(ctx, roomID, func(users []*model.User) {
		roster := response.RosterFromModel(users)
		c.push(ServerMessage{Type: TypeRoster, Roster: &roster})
	})
	if err != nil {
		apierr.WriteError(w, err)
		return
	}
	_, err = h.projector.ObserveRoomStatus(ctx, roomID, func(u projector.RoomUpdate) {
		room := response.RoomFromModel(u.Room)
		c.push(ServerMessage{Type: TypeRoom, Room: &room, Activated: u.Activated})
	})
	if err != nil {
		apierr.WriteError(w, err)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already replied to the client
		c.logger.Warn("ws upgrade failed", slog.String("error", err.Error()))
		return
	}
	c.ws = ws
	c.logger.Info("ws client connected")

	go c.writePump(ctx)
	h.readPump(ctx, c)
	c.logger.Info("ws client disconnected")
}

// push queues a message without blocking the caller
func (c *conn) push(msg ServerMessage) {
	select {
	case c.send <- msg:
	default:
		c.logger.Warn("ws message dropped - client buffer full", slog.String("type", msg.Type))
	}
}

func (c *conn) pushError(err error) {
	_, apiErr := apierr.FromError(err)
	c.push(ServerMessage{Type: TypeError, Error: &apiErr})
}

func (h *Handler) readPump(ctx context.Context, c *conn) {
	defer func() {
		_ = c.ws.Close()
	}()

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg ClientMessage
		if err := c.ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("ws read failed", slog.String("error", err.Error()))
			}
			return
		}

		switch msg.Type {
		case TypeReady:
			h.handleReady(ctx, c, msg)
		default:
			c.pushError(apierr.NewInvalidRequestError("Unknown message type"))
		}
	}
}

func (h *Handler) handleReady(ctx context.Context, c *conn, msg ClientMessage) {
	if c.userID == "" {
		c.pushError(apierr.NewInvalidRequestError("Connect with user_id to set ready"))
		return
	}
	if msg.Ready == nil {
		c.pushError(apierr.NewInvalidRequestError("ready is required"))
		return
	}
	// The roster observation delivers the result
	if err := h.membership.UpdateUserReady(ctx, c.roomID, c.userID, *msg.Ready); err != nil {
		c.pushError(err)
	}
}

func (c *conn) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(msg); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-ctx.Done():
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}
