package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/partytasks/internal/api/request"
	"github.com/mcoot/partytasks/internal/api/response"
	"github.com/mcoot/partytasks/internal/model"
	"github.com/mcoot/partytasks/internal/services/assignment"
	"github.com/mcoot/partytasks/internal/services/round"
	"github.com/mcoot/partytasks/internal/services/templates"
)

// RoundHandler handles task assignment and round start endpoints
type RoundHandler struct {
	engine      *assignment.Engine
	coordinator *round.Coordinator
	templates   *templates.Repository
}

// NewRoundHandler creates a new round handler
func NewRoundHandler(engine *assignment.Engine, c *round.Coordinator, repo *templates.Repository) *RoundHandler {
	return &RoundHandler{
		engine:      engine,
		coordinator: c,
		templates:   repo,
	}
}

// Assign handles POST /api/v1/rooms/{room_id}/assignments
func (h *RoundHandler) Assign(w http.ResponseWriter, r *http.Request) {
	roomID := model.RoomID(mux.Vars(r)["room_id"])

	result, err := h.engine.AssignTasksToRoom(r.Context(), roomID)
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, statusForOutcome(result.Outcome), response.AssignmentFromResult(result))
}

// Start handles POST /api/v1/rooms/{room_id}/round
func (h *RoundHandler) Start(w http.ResponseWriter, r *http.Request) {
	roomID := model.RoomID(mux.Vars(r)["room_id"])

	var req request.StartRoundRequest
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	if req.UserID == "" {
		WriteError(w, NewInvalidRequestError("user_id is required"))
		return
	}

	result, err := h.coordinator.StartRound(r.Context(), roomID, model.UserID(req.UserID))
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, statusForOutcome(result.Outcome), response.AssignmentFromResult(result))
}

// Templates handles GET /api/v1/templates
func (h *RoundHandler) Templates(w http.ResponseWriter, r *http.Request) {
	ts, err := h.templates.LoadAll(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.TemplatesFromModel(ts))
}

// statusForOutcome is 201 when tasks were created, 202 while another
// request is still dealing, 200 otherwise
func statusForOutcome(o assignment.Outcome) int {
	switch o {
	case assignment.OutcomeAssigned:
		return http.StatusCreated
	case assignment.OutcomeInProgress:
		return http.StatusAccepted
	default:
		return http.StatusOK
	}
}
