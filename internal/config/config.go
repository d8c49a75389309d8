// Package config holds the server settings, read from flags with
// PARTYTASKS_* environment variables as fallback.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/mcoot/partytasks/internal/api"
	"github.com/mcoot/partytasks/internal/factory"
	"github.com/mcoot/partytasks/internal/storage"
	redisstorage "github.com/mcoot/partytasks/internal/storage/redis"
)

// EnvPrefix is prepended to every flag name to form its environment variable
const EnvPrefix = "PARTYTASKS"

// Config holds the server settings
type Config struct {
	Bind            string
	Port            int
	PublicURL       string
	StorageType     string
	RedisURL        string
	RoomTTL         time.Duration
	AssignmentLease time.Duration
	TemplatesPath   string
	LogLevel        string
	JanitorInterval time.Duration
	ShutdownTimeout time.Duration
}

// Default returns the settings used when nothing is configured
func Default() Config {
	return Config{
		Bind:            "0.0.0.0",
		Port:            8080,
		StorageType:     factory.StorageTypeMemory,
		RedisURL:        redisstorage.DefaultConfig().URL,
		RoomTTL:         redisstorage.DefaultConfig().RoomTTL,
		AssignmentLease: storage.DefaultAssignmentLease,
		TemplatesPath:   "data/templates.json",
		LogLevel:        "info",
		JanitorInterval: time.Minute,
		ShutdownTimeout: 30 * time.Second,
	}
}

// RegisterFlags defines a flag for every setting on fs, defaulting to c
func (c *Config) RegisterFlags(fs *pflag.FlagSet) {
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&c.Bind, "bind", "b", c.Bind, "address to bind to (env: PARTYTASKS_BIND)")
	fs.IntVarP(&c.Port, "port", "p", c.Port, "port to listen on (env: PARTYTASKS_PORT)")
	fs.StringVar(&c.PublicURL, "public-url", c.PublicURL, "base URL used in join links and QR codes; derived from the request if empty (env: PARTYTASKS_PUBLIC_URL)")
	fs.StringVar(&c.StorageType, "storage", c.StorageType, "storage backend: memory or redis (env: PARTYTASKS_STORAGE)")
	fs.StringVar(&c.RedisURL, "redis-url", c.RedisURL, "redis connection URL (env: PARTYTASKS_REDIS_URL)")
	fs.DurationVar(&c.RoomTTL, "room-ttl", c.RoomTTL, "how long redis keeps a room, 0 to keep forever (env: PARTYTASKS_ROOM_TTL)")
	fs.DurationVar(&c.AssignmentLease, "assignment-lease", c.AssignmentLease, "how long a stalled task deal blocks retries (env: PARTYTASKS_ASSIGNMENT_LEASE)")
	fs.StringVar(&c.TemplatesPath, "templates", c.TemplatesPath, "task template catalog to load at startup, empty to skip (env: PARTYTASKS_TEMPLATES)")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level: debug, info, warn or error (env: PARTYTASKS_LOG_LEVEL)")
	fs.DurationVar(&c.JanitorInterval, "janitor-interval", c.JanitorInterval, "how often idle event hubs are closed (env: PARTYTASKS_JANITOR_INTERVAL)")
	fs.DurationVar(&c.ShutdownTimeout, "shutdown-timeout", c.ShutdownTimeout, "grace period for in-flight requests on shutdown (env: PARTYTASKS_SHUTDOWN_TIMEOUT)")
}

// BindEnv fills every flag not set on the command line from its
// PARTYTASKS_* environment variable. Call it before parsing.
func BindEnv(fs *pflag.FlagSet) error {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	var errs []error
	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			if err := fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name))); err != nil {
				errs = append(errs, fmt.Errorf("%s_%s: %w", EnvPrefix, strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_")), err))
			}
		}
	})
	return errors.Join(errs...)
}

// Validate checks the settings for consistency
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Port)
	}
	switch c.StorageType {
	case factory.StorageTypeMemory:
	case factory.StorageTypeRedis:
		if c.RedisURL == "" {
			return errors.New("--redis-url is required when --storage is redis")
		}
	default:
		return fmt.Errorf("invalid storage %q: must be memory or redis", c.StorageType)
	}
	if c.RoomTTL < 0 {
		return fmt.Errorf("invalid room TTL: %s", c.RoomTTL)
	}
	if c.AssignmentLease <= 0 {
		return fmt.Errorf("invalid assignment lease: %s", c.AssignmentLease)
	}
	if c.JanitorInterval <= 0 {
		return fmt.Errorf("invalid janitor interval: %s", c.JanitorInterval)
	}
	if c.PublicURL != "" {
		u, err := url.Parse(c.PublicURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("invalid public URL %q: must be an absolute http(s) URL", c.PublicURL)
		}
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses LogLevel
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return level, nil
}

// Factory returns the application factory settings
func (c *Config) Factory(logger *slog.Logger) factory.Config {
	cfg := factory.Config{
		TemplatesPath:   c.TemplatesPath,
		Logger:          logger,
		StorageType:     c.StorageType,
		AssignmentLease: c.AssignmentLease,
	}
	if c.StorageType == factory.StorageTypeRedis {
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = c.RedisURL
		redisCfg.RoomTTL = c.RoomTTL
		redisCfg.MarkerTTL = c.AssignmentLease
		cfg.RedisConfig = &redisCfg
	}
	return cfg
}

// Server returns the HTTP server settings
func (c *Config) Server() api.ServerConfig {
	cfg := api.DefaultServerConfig()
	cfg.Host = c.Bind
	cfg.Port = c.Port
	cfg.ShutdownTimeout = c.ShutdownTimeout
	return cfg
}
