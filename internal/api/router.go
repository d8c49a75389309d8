package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/partytasks/internal/api/handler"
	"github.com/mcoot/partytasks/internal/api/middleware"
	"github.com/mcoot/partytasks/internal/api/response"
	"github.com/mcoot/partytasks/internal/services/assignment"
	"github.com/mcoot/partytasks/internal/services/lifecycle"
	"github.com/mcoot/partytasks/internal/services/membership"
	"github.com/mcoot/partytasks/internal/services/round"
	"github.com/mcoot/partytasks/internal/services/templates"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger      *slog.Logger
	Lifecycle   *lifecycle.Manager
	Membership  *membership.Tracker
	Templates   *templates.Repository
	Engine      *assignment.Engine
	Coordinator *round.Coordinator
	// PublicURL is the externally reachable base URL used in join links
	PublicURL string
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) *mux.Router {
	r := mux.NewRouter()
	Register(r, cfg)
	return r
}

// Register mounts the API under /api/v1 on an existing router
func Register(r *mux.Router, cfg RouterConfig) {
	roomHandler := handler.NewRoomHandler(cfg.Lifecycle, cfg.Membership, cfg.Coordinator)
	roundHandler := handler.NewRoundHandler(cfg.Engine, cfg.Coordinator, cfg.Templates)
	qrHandler := handler.NewQRHandler(cfg.Lifecycle, cfg.PublicURL)

	// API subrouter with common middleware
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.Recovery(cfg.Logger))
	api.Use(middleware.Logging(cfg.Logger))

	// Room routes
	api.HandleFunc("/rooms", roomHandler.Create).Methods(http.MethodPost)
	api.HandleFunc("/rooms", roomHandler.Find).Methods(http.MethodGet)
	api.HandleFunc("/rooms/join", roomHandler.JoinByCode).Methods(http.MethodPost)
	api.HandleFunc("/rooms/{room_id}", roomHandler.Get).Methods(http.MethodGet)
	api.HandleFunc("/rooms/{room_id}/status", roomHandler.UpdateStatus).Methods(http.MethodPatch)
	api.HandleFunc("/rooms/{room_id}/qr", qrHandler.Get).Methods(http.MethodGet)

	// Membership routes
	api.HandleFunc("/rooms/{room_id}/users", roomHandler.Join).Methods(http.MethodPost)
	api.HandleFunc("/rooms/{room_id}/users/{user_id}/ready", roomHandler.UpdateReady).Methods(http.MethodPatch)
	api.HandleFunc("/rooms/{room_id}/users/{user_id}/tasks", roomHandler.Tasks).Methods(http.MethodGet)

	// Round routes
	api.HandleFunc("/rooms/{room_id}/assignments", roundHandler.Assign).Methods(http.MethodPost)
	api.HandleFunc("/rooms/{room_id}/round", roundHandler.Start).Methods(http.MethodPost)
	api.HandleFunc("/templates", roundHandler.Templates).Methods(http.MethodGet)

	// Health check endpoint
	api.HandleFunc("/health", healthHandler).Methods(http.MethodGet)
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, response.Health{Status: "ok"})
}
