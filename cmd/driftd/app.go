package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/phrazzld/drift/internal/api"
	"github.com/phrazzld/drift/internal/config"
	"github.com/phrazzld/drift/internal/queue"
	"github.com/phrazzld/drift/internal/store"
	"github.com/phrazzld/drift/internal/store/filestore"
	"github.com/phrazzld/drift/internal/store/pgstore"
	"github.com/phrazzld/drift/internal/store/sqlitestore"
)

// application holds all the shared application dependencies to simplify
// management and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger

	snaps   store.SnapshotStore
	monitor *queue.NetworkMonitor
	engines map[string]*queue.Engine

	// closers run in reverse order during cleanup.
	closers []func() error
}

// newApplication wires together the snapshot store, the network monitor,
// the executor registry, and the two engine instances that share them.
func newApplication(cfg *config.Config, log *slog.Logger) (*application, error) {
	app := &application{
		config:  cfg,
		logger:  log,
		monitor: queue.NewNetworkMonitor(log),
		engines: make(map[string]*queue.Engine),
	}

	if err := app.setupStore(); err != nil {
		return nil, err
	}

	registry := queue.NewExecutorRegistry()
	if err := registerExecutors(registry, log); err != nil {
		return nil, fmt.Errorf("failed to register executors: %w", err)
	}

	if err := app.setupEngines(registry); err != nil {
		return nil, err
	}

	return app, nil
}

// setupStore opens the snapshot store backend selected by configuration.
func (app *application) setupStore() error {
	switch app.config.Store.Backend {
	case "file":
		snaps, err := filestore.New(app.config.Store.Dir, app.logger)
		if err != nil {
			return fmt.Errorf("failed to open file store: %w", err)
		}
		app.snaps = snaps

	case "sqlite":
		snaps, err := sqlitestore.Open(app.config.Store.Path, app.logger)
		if err != nil {
			return fmt.Errorf("failed to open sqlite store: %w", err)
		}
		app.snaps = snaps
		app.closers = append(app.closers, snaps.Close)

	case "postgres":
		snaps, db, err := pgstore.Open(context.Background(), app.config.Store.URL, app.logger)
		if err != nil {
			return fmt.Errorf("failed to open postgres store: %w", err)
		}
		if err := pgstore.Migrate(db); err != nil {
			_ = db.Close()
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		app.snaps = snaps
		app.closers = append(app.closers, db.Close)

	default:
		return fmt.Errorf("unknown store backend %q", app.config.Store.Backend)
	}

	app.logger.Info("snapshot store ready", "backend", app.config.Store.Backend)
	return nil
}

// setupEngines constructs the two queue instances: "requests" replays
// buffered request-style work in strict order, "background" runs
// longer-lived tasks independently by priority.
func (app *application) setupEngines(registry *queue.ExecutorRegistry) error {
	specs := []struct {
		name   string
		flavor queue.Flavor
		prof   queue.Profile
		sweep  time.Duration
	}{
		{
			name:   "requests",
			flavor: queue.FlavorOrdered,
			prof:   queue.RequestProfile(),
			sweep:  app.config.Queues.Requests.SweepInterval,
		},
		{
			name:   "background",
			flavor: queue.FlavorIndependent,
			prof:   queue.BackgroundProfile(),
			sweep:  app.config.Queues.Background.SweepInterval,
		},
	}

	for _, s := range specs {
		eng, err := queue.New(queue.Config{
			Name:          s.name,
			Flavor:        s.flavor,
			Profile:       s.prof,
			SweepInterval: s.sweep,
		}, app.snaps, app.monitor, registry, nil, nil, app.logger)
		if err != nil {
			return fmt.Errorf("failed to build %s engine: %w", s.name, err)
		}
		app.engines[s.name] = eng
	}

	return nil
}

// setupRouter creates and configures the application router with all
// routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	queueHandler := api.NewQueueHandler(app.engines, app.logger)
	r.Route("/api", queueHandler.Routes)
	r.Get("/health", api.HealthCheck)

	return r
}

// run starts the engines and serves HTTP until a shutdown signal
// arrives, then drains everything gracefully.
func (app *application) run(ctx context.Context) error {
	for name, eng := range app.engines {
		if err := eng.Start(ctx); err != nil {
			return fmt.Errorf("failed to start %s engine: %w", name, err)
		}
		eng.OnError(func(err error) {
			app.logger.Warn("queue error", "queue", name, "error", err)
		})
	}

	return app.startHTTPServer(ctx, app.setupRouter())
}

// startHTTPServer starts the HTTP server with graceful shutdown support.
func (app *application) startHTTPServer(ctx context.Context, router http.Handler) error {
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", app.config.Server.Port),
		Handler: router,
	}

	serverCtx, cancelServer := context.WithCancel(ctx)
	defer cancelServer()

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		app.logger.Info("starting server", "port", app.config.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.logger.Error("server failed", "error", err)
			cancelServer()
		}
	}()

	select {
	case <-shutdownCh:
		app.logger.Info("shutting down server...")
	case <-serverCtx.Done():
		app.logger.Info("server context canceled, shutting down...")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		app.logger.Error("server shutdown failed", "error", err)
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	app.cleanup()

	app.logger.Info("server shutdown completed")
	return nil
}

// cleanup stops the engines (persisting their final snapshots) and
// closes the store backend.
func (app *application) cleanup() {
	for name, eng := range app.engines {
		app.logger.Debug("stopping engine", "queue", name)
		eng.Stop()
	}
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](); err != nil {
			app.logger.Error("cleanup failed", "error", err)
		}
	}
}
