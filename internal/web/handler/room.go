package handler

import (
	"log/slog"
	"net/http"

	"github.com/a-h/templ"
	"github.com/gorilla/mux"

	"github.com/mcoot/partytasks/internal/api/apierr"
	"github.com/mcoot/partytasks/internal/model"
	"github.com/mcoot/partytasks/internal/services/lifecycle"
	"github.com/mcoot/partytasks/internal/services/membership"
	"github.com/mcoot/partytasks/internal/web/sse"
	"github.com/mcoot/partytasks/internal/web/templates/layout"
	"github.com/mcoot/partytasks/internal/web/templates/pages"
	"github.com/mcoot/partytasks/internal/web/ws"
)

// RoomHandler serves the browser-facing room pages and live streams
type RoomHandler struct {
	lifecycle  *lifecycle.Manager
	membership *membership.Tracker
	hubManager *sse.HubManager
	ws         *ws.Handler
	logger     *slog.Logger
}

// NewRoomHandler creates a new RoomHandler
func NewRoomHandler(
	lc *lifecycle.Manager,
	m *membership.Tracker,
	hubManager *sse.HubManager,
	wsHandler *ws.Handler,
	logger *slog.Logger,
) *RoomHandler {
	return &RoomHandler{
		lifecycle:  lc,
		membership: m,
		hubManager: hubManager,
		ws:         wsHandler,
		logger:     logger.With(slog.String("component", "web")),
	}
}

// Join renders the join page for ?code=, or the code form if none is given
func (h *RoomHandler) Join(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	data := pages.JoinData{PageData: layout.PageData{Title: "Join"}, Code: code}

	if code == "" {
		h.render(w, r, http.StatusOK, pages.JoinPage(data))
		return
	}

	room, err := h.lifecycle.FindRoomByCode(r.Context(), code)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	users, err := h.membership.ListUsers(r.Context(), room.ID)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	data.Room = room
	data.Users = users
	data.Title = "Room " + string(room.Code)
	h.render(w, r, http.StatusOK, pages.JoinPage(data))
}

// Events streams the room's roster and status over SSE
func (h *RoomHandler) Events(w http.ResponseWriter, r *http.Request) {
	roomID := model.RoomID(mux.Vars(r)["room_id"])
	userID := model.UserID(r.URL.Query().Get("user_id"))

	if userID != "" {
		if _, err := h.membership.GetUser(r.Context(), roomID, userID); err != nil {
			apierr.WriteError(w, err)
			return
		}
	}

	hub, err := h.hubManager.GetOrCreateHub(roomID)
	if err != nil {
		apierr.WriteError(w, err)
		return
	}

	sse.ServeSSE(w, r, hub, userID)
}

// WebSocket streams the room's roster and status over a WebSocket
func (h *RoomHandler) WebSocket(w http.ResponseWriter, r *http.Request) {
	roomID := model.RoomID(mux.Vars(r)["room_id"])
	userID := model.UserID(r.URL.Query().Get("user_id"))
	h.ws.Serve(w, r, roomID, userID)
}

func (h *RoomHandler) render(w http.ResponseWriter, r *http.Request, status int, page templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := page.Render(r.Context(), w); err != nil {
		h.logger.Error("failed to render page", slog.String("error", err.Error()))
	}
}

func (h *RoomHandler) renderError(w http.ResponseWriter, r *http.Request, err error) {
	status, apiErr := apierr.FromError(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("web request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()))
	}
	h.render(w, r, status, pages.ErrorPage(pages.ErrorData{
		PageData: layout.PageData{Title: "Room unavailable"},
		Message:  apiErr.Message,
	}))
}
