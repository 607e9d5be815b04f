// Package main implements the entry point for the drift queue daemon,
// which runs durable task queues with offline buffering, retry with
// exponential backoff, and persistent snapshots.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"

	"github.com/phrazzld/drift/internal/config"
	"github.com/phrazzld/drift/internal/platform/logger"
)

func main() {
	app, err := initializeApp()
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	if err := app.run(context.Background()); err != nil {
		app.logger.Error("daemon exited with error", "error", err)
		app.cleanup()
		log.Fatalf("Daemon failed: %v", err)
	}
}

// initializeApp loads configuration and wires up the application
// components: the snapshot store, the executor registry, the network
// monitor, and one engine per configured queue.
func initializeApp() (*application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log := logger.Setup(cfg.Server)
	slog.Info("daemon configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"store_backend", cfg.Store.Backend)

	app, err := newApplication(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to build application: %w", err)
	}

	return app, nil
}
