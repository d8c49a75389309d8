package web

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/partytasks/internal/middleware"
	"github.com/mcoot/partytasks/internal/services/lifecycle"
	"github.com/mcoot/partytasks/internal/services/membership"
	"github.com/mcoot/partytasks/internal/web/handler"
	webmw "github.com/mcoot/partytasks/internal/web/middleware"
	"github.com/mcoot/partytasks/internal/web/sse"
	"github.com/mcoot/partytasks/internal/web/ws"
)

// RouterConfig holds configuration for the web router
type RouterConfig struct {
	Logger     *slog.Logger
	Lifecycle  *lifecycle.Manager
	Membership *membership.Tracker
	HubManager *sse.HubManager
	WebSocket  *ws.Handler
}

// NewRouter creates a new web router with all routes configured
func NewRouter(cfg RouterConfig) *mux.Router {
	r := mux.NewRouter()
	Register(r, cfg)
	return r
}

// Register mounts the web routes on r
func Register(r *mux.Router, cfg RouterConfig) {
	web := r.NewRoute().Subrouter()

	// Apply middleware to all web routes
	web.Use(webmw.Recovery(cfg.Logger))
	web.Use(middleware.Logging(cfg.Logger.With(slog.String("component", "web"))))

	roomHandler := handler.NewRoomHandler(cfg.Lifecycle, cfg.Membership, cfg.HubManager, cfg.WebSocket, cfg.Logger)

	web.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/join", http.StatusSeeOther)
	}).Methods(http.MethodGet)
	web.HandleFunc("/join", roomHandler.Join).Methods(http.MethodGet)

	// Live room streams
	web.HandleFunc("/rooms/{room_id}/events", roomHandler.Events).Methods(http.MethodGet)
	web.HandleFunc("/rooms/{room_id}/ws", roomHandler.WebSocket).Methods(http.MethodGet)
}
