package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DB_DRIVER", "")
	t.Setenv("DB_DSN", "host=localhost dbname=resplan")
	t.Setenv("SERVER_PORT", "")
	t.Setenv("SESSION_SECRET", "")
	t.Setenv("ADMIN_USERNAME", "")
	t.Setenv("ADMIN_EMAIL", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("LOG_FORMAT", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, "admin", cfg.AdminUsername)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Error(t, cfg.RequireServe())
}

func TestLoadRejectsBadInput(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_DSN", "")
	_, err := Load()
	assert.EqualError(t, err, "DB_DSN is not set")

	t.Setenv("DB_DRIVER", "oracle")
	t.Setenv("DB_DSN", "x")
	_, err = Load()
	assert.Error(t, err)
}
