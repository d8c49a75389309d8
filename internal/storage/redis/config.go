package redis

import (
	"time"

	"github.com/mcoot/partytasks/internal/storage"
)

// Config holds Redis connection and behavior settings
type Config struct {
	// URL is the Redis connection URL (e.g., redis://localhost:6379)
	URL string

	// Pool settings
	PoolSize     int
	MinIdleConns int

	// RoomTTL bounds how long a room and its users are kept. Zero disables expiry.
	RoomTTL time.Duration

	// MarkerTTL is the lease on a room's assignment marker. A claim not
	// released within it lapses. Zero keeps the marker until released.
	MarkerTTL time.Duration

	// StatusRetries is how many times an optimistic status update is retried
	// when the watched key changes underneath it
	StatusRetries int
}

// DefaultConfig returns sensible defaults for Redis configuration
func DefaultConfig() Config {
	return Config{
		URL:           "redis://localhost:6379",
		PoolSize:      10,
		MinIdleConns:  2,
		RoomTTL:       24 * time.Hour,
		MarkerTTL:     storage.DefaultAssignmentLease,
		StatusRetries: 5,
	}
}
