package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server ServerConfig `mapstructure:"server" validate:"required"`
	Store  StoreConfig  `mapstructure:"store"  validate:"required"`
	Queues QueuesConfig `mapstructure:"queues" validate:"required"`
}

// ServerConfig contains the daemon's HTTP and logging settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// StoreConfig selects and parameterizes the snapshot store backend.
type StoreConfig struct {
	// Backend is one of "file", "sqlite", or "postgres".
	Backend string `mapstructure:"backend" validate:"required,oneof=file sqlite postgres"`

	// Dir is the snapshot directory for the file backend.
	Dir string `mapstructure:"dir" validate:"required_if=Backend file"`

	// Path is the database file for the sqlite backend.
	Path string `mapstructure:"path" validate:"required_if=Backend sqlite"`

	// URL is the connection string for the postgres backend.
	URL string `mapstructure:"url" validate:"required_if=Backend postgres"`
}

// QueuesConfig parameterizes the two engine instances the daemon runs:
// the ordered request-replay queue and the independent background queue.
type QueuesConfig struct {
	Requests   QueueConfig `mapstructure:"requests"   validate:"required"`
	Background QueueConfig `mapstructure:"background" validate:"required"`
}

// QueueConfig tunes one engine instance.
type QueueConfig struct {
	// SweepInterval is how often the engine checks for due retries.
	SweepInterval time.Duration `mapstructure:"sweep_interval" validate:"required,gt=0"`
}
