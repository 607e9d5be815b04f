package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.Equal(t, "file", cfg.Store.Backend)
	assert.Equal(t, "./data", cfg.Store.Dir)
	assert.Equal(t, time.Second, cfg.Queues.Requests.SweepInterval)
	assert.Equal(t, time.Second, cfg.Queues.Background.SweepInterval)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: 9090
  log_level: debug
store:
  backend: sqlite
  path: /tmp/drift.db
queues:
  requests:
    sweep_interval: 500ms
  background:
    sweep_interval: 5s
`)

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Server.LogLevel)
	assert.Equal(t, "sqlite", cfg.Store.Backend)
	assert.Equal(t, "/tmp/drift.db", cfg.Store.Path)
	assert.Equal(t, 500*time.Millisecond, cfg.Queues.Requests.SweepInterval)
	assert.Equal(t, 5*time.Second, cfg.Queues.Background.SweepInterval)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: 9090
`)
	t.Setenv("DRIFT_SERVER_PORT", "7070")
	t.Setenv("DRIFT_SERVER_LOG_LEVEL", "warn")

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Server.LogLevel)
}

func TestLoadValidationFailures(t *testing.T) {
	tests := []struct {
		name   string
		envVar string
		value  string
	}{
		{name: "invalid log level", envVar: "DRIFT_SERVER_LOG_LEVEL", value: "verbose"},
		{name: "invalid port", envVar: "DRIFT_SERVER_PORT", value: "-1"},
		{name: "invalid backend", envVar: "DRIFT_STORE_BACKEND", value: "dynamo"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.envVar, tc.value)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "validation failed")
		})
	}
}

func TestLoadBackendRequiresItsSetting(t *testing.T) {
	t.Setenv("DRIFT_STORE_BACKEND", "postgres")

	// URL is unset, so required_if should fail validation.
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestLoadMalformedFile(t *testing.T) {
	path := writeConfigFile(t, "server: [not a map")

	_, err := LoadWithFile(path)
	require.Error(t, err)
}
