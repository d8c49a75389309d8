package factory

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisstorage "github.com/mcoot/partytasks/internal/storage/redis"
)

func TestNewDefaultsToMemory(t *testing.T) {
	app, err := New(Config{})
	require.NoError(t, err)
	defer app.Close()

	assert.NotNil(t, app.Store)
	assert.NotNil(t, app.Coordinator)
	assert.NotNil(t, app.HubManager)
}

func TestNewInvalidStorageType(t *testing.T) {
	_, err := New(Config{StorageType: "postgres"})
	assert.Error(t, err)
}

func TestNewRedisRequiresConfig(t *testing.T) {
	_, err := New(Config{StorageType: StorageTypeRedis})
	assert.Error(t, err)
}

func TestNewRedis(t *testing.T) {
	mini := miniredis.RunT(t)
	cfg := redisstorage.DefaultConfig()
	cfg.URL = "redis://" + mini.Addr()

	app, err := New(Config{StorageType: StorageTypeRedis, RedisConfig: &cfg})
	require.NoError(t, err)
	assert.NoError(t, app.Close())
}

func TestNewLoadsTemplates(t *testing.T) {
	app, err := New(Config{TemplatesPath: "../../data/templates.json"})
	require.NoError(t, err)
	defer app.Close()

	loaded, err := app.Templates.LoadAll(t.Context())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(loaded), 30)
}

func TestNewMissingTemplates(t *testing.T) {
	_, err := New(Config{TemplatesPath: "does-not-exist.json"})
	assert.Error(t, err)
}
