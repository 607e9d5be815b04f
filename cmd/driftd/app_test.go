package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/drift/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Server: config.ServerConfig{Port: 0, LogLevel: "error"},
		Store:  config.StoreConfig{Backend: "file", Dir: t.TempDir()},
		Queues: config.QueuesConfig{
			Requests:   config.QueueConfig{SweepInterval: time.Second},
			Background: config.QueueConfig{SweepInterval: time.Second},
		},
	}
}

func TestNewApplicationWiresBothQueues(t *testing.T) {
	app, err := newApplication(testConfig(t), discardLogger())
	require.NoError(t, err)
	defer app.cleanup()

	require.Contains(t, app.engines, "requests")
	require.Contains(t, app.engines, "background")
	assert.NotNil(t, app.snaps)
	assert.True(t, app.monitor.IsOnline())
}

func TestNewApplicationRejectsUnknownBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store.Backend = "dynamo"

	_, err := newApplication(cfg, discardLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown store backend")
}

func TestNewApplicationSqliteBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store.Backend = "sqlite"
	cfg.Store.Path = cfg.Store.Dir + "/drift.db"

	app, err := newApplication(cfg, discardLogger())
	require.NoError(t, err)
	defer app.cleanup()

	assert.NotNil(t, app.snaps)
	assert.Len(t, app.closers, 1)
}

func TestRouterServesQueueEndpoints(t *testing.T) {
	app, err := newApplication(testConfig(t), discardLogger())
	require.NoError(t, err)
	defer app.cleanup()

	for name, eng := range app.engines {
		require.NoError(t, eng.Start(context.Background()), "starting %s", name)
	}

	srv := httptest.NewServer(app.setupRouter())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/health")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = srv.Client().Get(srv.URL + "/api/queues/background/status")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
