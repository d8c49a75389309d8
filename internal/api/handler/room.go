package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/partytasks/internal/api/request"
	"github.com/mcoot/partytasks/internal/api/response"
	"github.com/mcoot/partytasks/internal/model"
	"github.com/mcoot/partytasks/internal/services/lifecycle"
	"github.com/mcoot/partytasks/internal/services/membership"
	"github.com/mcoot/partytasks/internal/services/round"
)

// RoomHandler handles room and membership endpoints
type RoomHandler struct {
	lifecycle   *lifecycle.Manager
	membership  *membership.Tracker
	coordinator *round.Coordinator
}

// NewRoomHandler creates a new room handler
func NewRoomHandler(lc *lifecycle.Manager, m *membership.Tracker, c *round.Coordinator) *RoomHandler {
	return &RoomHandler{
		lifecycle:   lc,
		membership:  m,
		coordinator: c,
	}
}

// Create handles POST /api/v1/rooms
func (h *RoomHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req request.CreateRoomRequest
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, err)
		return
	}

	room, host, err := h.coordinator.CreateAndHost(r.Context(), req.Name)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, response.JoinResponse{
		Room: response.RoomFromModel(room),
		User: response.UserFromModel(host),
	})
}

// Find handles GET /api/v1/rooms?code=
func (h *RoomHandler) Find(w http.ResponseWriter, r *http.Request) {
	room, err := h.lifecycle.FindRoomByCode(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.RoomFromModel(room))
}

// Get handles GET /api/v1/rooms/{room_id}
func (h *RoomHandler) Get(w http.ResponseWriter, r *http.Request) {
	roomID := model.RoomID(mux.Vars(r)["room_id"])

	room, err := h.lifecycle.GetRoom(r.Context(), roomID)
	if err != nil {
		WriteError(w, err)
		return
	}
	users, err := h.membership.ListUsers(r.Context(), roomID)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.RoomDetailFromModel(room, users))
}

// UpdateStatus handles PATCH /api/v1/rooms/{room_id}/status
func (h *RoomHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	roomID := model.RoomID(mux.Vars(r)["room_id"])

	var req request.UpdateStatusRequest
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, err)
		return
	}

	if err := h.lifecycle.UpdateRoomStatus(r.Context(), roomID, model.RoomStatus(req.Status)); err != nil {
		WriteError(w, err)
		return
	}

	room, err := h.lifecycle.GetRoom(r.Context(), roomID)
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.RoomFromModel(room))
}

// Join handles POST /api/v1/rooms/{room_id}/users
func (h *RoomHandler) Join(w http.ResponseWriter, r *http.Request) {
	roomID := model.RoomID(mux.Vars(r)["room_id"])

	var req request.JoinRoomRequest
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, err)
		return
	}

	user, err := h.membership.JoinRoom(r.Context(), roomID, req.Name, model.RolePlayer)
	if err != nil {
		WriteError(w, err)
		return
	}
	room, err := h.lifecycle.GetRoom(r.Context(), roomID)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, response.JoinResponse{
		Room: response.RoomFromModel(room),
		User: response.UserFromModel(user),
	})
}

// JoinByCode handles POST /api/v1/rooms/join
func (h *RoomHandler) JoinByCode(w http.ResponseWriter, r *http.Request) {
	var req request.JoinByCodeRequest
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, err)
		return
	}

	room, user, err := h.coordinator.JoinByCode(r.Context(), req.Code, req.Name)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, response.JoinResponse{
		Room: response.RoomFromModel(room),
		User: response.UserFromModel(user),
	})
}

// UpdateReady handles PATCH /api/v1/rooms/{room_id}/users/{user_id}/ready
func (h *RoomHandler) UpdateReady(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	roomID := model.RoomID(vars["room_id"])
	userID := model.UserID(vars["user_id"])

	var req request.UpdateReadyRequest
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	if req.Ready == nil {
		WriteError(w, NewInvalidRequestError("ready is required"))
		return
	}

	if err := h.membership.UpdateUserReady(r.Context(), roomID, userID, *req.Ready); err != nil {
		WriteError(w, err)
		return
	}

	users, err := h.membership.ListUsers(r.Context(), roomID)
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.RosterFromModel(users))
}

// Tasks handles GET /api/v1/rooms/{room_id}/users/{user_id}/tasks
func (h *RoomHandler) Tasks(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	roomID := model.RoomID(vars["room_id"])
	userID := model.UserID(vars["user_id"])

	user, err := h.membership.GetUser(r.Context(), roomID, userID)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.UserTasks{
		UserID: string(user.ID),
		Tasks:  response.TasksFromModel(user.Tasks),
	})
}
