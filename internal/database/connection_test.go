package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/medsafe-server/internal/domain"
)

func TestConfigDSN(t *testing.T) {
	cfg := Config{
		Host:     "localhost",
		Port:     5432,
		Database: "medsafe",
		Username: "postgres",
		Password: "secret",
		SSLMode:  "disable",
	}

	assert.Equal(t,
		"host=localhost port=5432 dbname=medsafe user=postgres password=secret sslmode=disable",
		cfg.DSN())
}

func TestConfigFromDomain(t *testing.T) {
	cfg := ConfigFromDomain(domain.DatabaseConfig{
		Host:            "db.internal",
		Port:            5433,
		Database:        "medsafe",
		Username:        "app",
		Password:        "pw",
		SSLMode:         "require",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
	})

	assert.Equal(t, "db.internal", cfg.Host)
	assert.Equal(t, 5433, cfg.Port)
	assert.Equal(t, int32(25), cfg.MaxConns)
	assert.Equal(t, int32(5), cfg.MinConns)
	assert.Equal(t, time.Hour, cfg.MaxConnLife)
	assert.Equal(t, "require", cfg.SSLMode)
}
