package factory

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/mcoot/partytasks/internal/api"
	"github.com/mcoot/partytasks/internal/dependencies/clock"
	"github.com/mcoot/partytasks/internal/dependencies/random"
	"github.com/mcoot/partytasks/internal/projector"
	"github.com/mcoot/partytasks/internal/services/assignment"
	"github.com/mcoot/partytasks/internal/services/lifecycle"
	"github.com/mcoot/partytasks/internal/services/membership"
	"github.com/mcoot/partytasks/internal/services/round"
	"github.com/mcoot/partytasks/internal/services/templates"
	"github.com/mcoot/partytasks/internal/storage"
	"github.com/mcoot/partytasks/internal/storage/memory"
	redisstorage "github.com/mcoot/partytasks/internal/storage/redis"
	"github.com/mcoot/partytasks/internal/web"
	"github.com/mcoot/partytasks/internal/web/sse"
	"github.com/mcoot/partytasks/internal/web/ws"
)

// Storage type constants
const (
	StorageTypeMemory = "memory"
	StorageTypeRedis  = "redis"
)

// App contains all wired application components
type App struct {
	// Storage
	Store storage.Store

	// External dependencies
	Clock  clock.Clock
	Random random.Random

	// Services
	Lifecycle   *lifecycle.Manager
	Membership  *membership.Tracker
	Templates   *templates.Repository
	Engine      *assignment.Engine
	Coordinator *round.Coordinator

	// Observers and transports
	Projector   *projector.Projector
	Broadcaster *sse.Broadcaster
	HubManager  *sse.HubManager
	WebSocket   *ws.Handler

	logger *slog.Logger
	closer io.Closer
}

// Config holds configuration for the application factory
type Config struct {
	// TemplatesPath is the path to a task template catalog (optional)
	// If empty, templates must be loaded manually
	TemplatesPath string
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend ("memory" or "redis")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// AssignmentLease bounds how long an unreleased assignment marker blocks
	// a room in the memory store. The Redis store uses RedisConfig.MarkerTTL.
	// If zero, storage.DefaultAssignmentLease is used.
	AssignmentLease time.Duration
}

// New creates a new application with all dependencies wired
func New(cfg Config) (*App, error) {
	// Use no-op logger if not provided
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	// Create storage based on type
	var store storage.Store
	var closer io.Closer
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	switch storageType {
	case StorageTypeMemory:
		lease := cfg.AssignmentLease
		if lease <= 0 {
			lease = storage.DefaultAssignmentLease
		}
		store = memory.New(memory.WithAssignmentLease(lease))
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		redisStore, err := redisstorage.New(*cfg.RedisConfig, logger)
		if err != nil {
			return nil, err
		}
		store = redisStore
		closer = redisStore
	default:
		return nil, errors.New("invalid StorageType: must be 'memory' or 'redis'")
	}

	app := newWithDependencies(store, clock.New(), random.New(), logger)
	app.closer = closer

	if cfg.TemplatesPath != "" {
		if _, err := app.Templates.LoadFromFile(context.Background(), cfg.TemplatesPath); err != nil {
			_ = app.Close()
			return nil, err
		}
	}
	return app, nil
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(store storage.Store, clk clock.Clock, rnd random.Random, logger *slog.Logger) *App {
	// Create services
	lifecycleManager := lifecycle.New(store, clk, rnd, logger)
	tracker := membership.New(store, clk, logger)
	repo := templates.New(store, logger)
	engine := assignment.New(store, repo, rnd, logger)
	coordinator := round.New(lifecycleManager, tracker, engine, logger)

	// Create observers
	proj := projector.New(store, logger)
	broadcaster := sse.NewBroadcaster(proj, sse.NewRenderer(), logger)
	hubManager := sse.NewHubManager(broadcaster, logger)
	wsHandler := ws.NewHandler(proj, tracker, logger)

	return &App{
		Store:       store,
		Clock:       clk,
		Random:      rnd,
		Lifecycle:   lifecycleManager,
		Membership:  tracker,
		Templates:   repo,
		Engine:      engine,
		Coordinator: coordinator,
		Projector:   proj,
		Broadcaster: broadcaster,
		HubManager:  hubManager,
		WebSocket:   wsHandler,
		logger:      logger,
	}
}

// Handler returns the HTTP handler serving the API and the web routes.
// publicURL is the base URL put in join links; if empty, links are built
// from the request.
func (a *App) Handler(publicURL string) http.Handler {
	r := mux.NewRouter()
	api.Register(r, api.RouterConfig{
		Logger:      a.logger,
		Lifecycle:   a.Lifecycle,
		Membership:  a.Membership,
		Templates:   a.Templates,
		Engine:      a.Engine,
		Coordinator: a.Coordinator,
		PublicURL:   publicURL,
	})
	web.Register(r, web.RouterConfig{
		Logger:     a.logger,
		Lifecycle:  a.Lifecycle,
		Membership: a.Membership,
		HubManager: a.HubManager,
		WebSocket:  a.WebSocket,
	})
	return r
}

// Close stops the SSE hubs and releases the storage connection
func (a *App) Close() error {
	a.HubManager.Close()
	if a.closer != nil {
		return a.closer.Close()
	}
	return nil
}
