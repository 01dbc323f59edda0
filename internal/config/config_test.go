package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManagerDefaults(t *testing.T) {
	manager, err := NewManager()
	require.NoError(t, err)

	cfg := manager.GetConfig()
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, "https://rxnav.nlm.nih.gov/REST", cfg.ExternalAPI.RxNorm.BaseURL)
	assert.Equal(t, "https://api.fda.gov", cfg.ExternalAPI.OpenFDA.BaseURL)
	assert.Empty(t, cfg.Cache.RedisURL, "Redis stays off by default")

	assert.NoError(t, manager.Validate())
}

func TestEnvironmentOverride(t *testing.T) {
	t.Setenv("MEDSAFE_SERVER_PORT", "9090")
	t.Setenv("MEDSAFE_LOGGING_LEVEL", "debug")

	manager, err := NewManager()
	require.NoError(t, err)

	cfg := manager.GetConfig()
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestValidateRejectsBadPort(t *testing.T) {
	manager, err := NewManager()
	require.NoError(t, err)

	manager.config.Server.Port = -1
	assert.Error(t, manager.Validate())
}

func TestValidateRejectsUnknownStorageDriver(t *testing.T) {
	manager, err := NewManager()
	require.NoError(t, err)

	manager.config.Storage.Driver = "etcd"
	assert.Error(t, manager.Validate())
}

func TestValidatePostgresRequiresHost(t *testing.T) {
	manager, err := NewManager()
	require.NoError(t, err)

	manager.config.Storage.Driver = "postgres"
	manager.config.Database.Host = ""
	assert.Error(t, manager.Validate())
}

func TestGetDatabaseURL(t *testing.T) {
	manager, err := NewManager()
	require.NoError(t, err)

	manager.config.Database.Username = "app"
	manager.config.Database.Password = "pw"
	manager.config.Database.Host = "db.internal"
	manager.config.Database.Port = 5433
	manager.config.Database.Database = "medsafe"
	manager.config.Database.SSLMode = "require"

	assert.Equal(t, "postgres://app:pw@db.internal:5433/medsafe?sslmode=require", manager.GetDatabaseURL())
}
