package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labreg/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, config.DefaultServerURL, cfg.Server.URL)
	assert.Equal(t, config.DefaultHTTPTimeout, cfg.Server.Timeout.Std())
	assert.Equal(t, config.DefaultIdleTimeout, cfg.Gate.IdleTimeout.Std())
	assert.Equal(t, config.DefaultMaxAttempts, cfg.Gate.MaxAttempts)
	assert.Equal(t, config.DefaultCooldown, cfg.Gate.Cooldown.Std())
	assert.NotEmpty(t, cfg.State.Dir)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, config.DefaultServerURL, cfg.Server.URL)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labreg.yaml")
	data := `
server:
  url: https://registry.example.edu
  timeout: 10s
state:
  dir: /var/lib/labreg
gate:
  idle_timeout: 2m
  max_attempts: 5
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://registry.example.edu", cfg.Server.URL)
	assert.Equal(t, 10*time.Second, cfg.Server.Timeout.Std())
	assert.Equal(t, "/var/lib/labreg", cfg.State.Dir)
	assert.Equal(t, 2*time.Minute, cfg.Gate.IdleTimeout.Std())
	assert.Equal(t, 5, cfg.Gate.MaxAttempts)
	// Omitted values still pick up defaults.
	assert.Equal(t, config.DefaultCooldown, cfg.Gate.Cooldown.Std())
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadRejectsBadURL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labreg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  url: ftp://bad\n"), 0o600))

	_, err := config.Load(path)
	assert.Error(t, err)
}
