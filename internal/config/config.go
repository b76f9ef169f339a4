// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - New(ctx) builds a Config holding every default.
// - Load(ctx) layers a YAML file, a .env file and AFFINITY_ env vars on top.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"context"
	"runtime"
	"time"

	"github.com/okian/affinity/internal/domain/model"
)

// Store backends.
const (
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat is json or console.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// Store selects the backend: sqlite or memory.
	Store string `koanf:"store"`

	// DBPath is the sqlite database file.
	DBPath string `koanf:"db_path"`

	// QueueSize bounds the pending recompute queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of recompute workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets the size of the client event id cache.
	DedupeSize int `koanf:"dedupe_size"`

	// AsyncRecompute enqueues a snapshot refresh after every completion.
	AsyncRecompute bool `koanf:"async_recompute"`

	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitRequests int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RequestTimeout    time.Duration `koanf:"request_timeout"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout"`

	// BreakerMaxFailures consecutive store failures open the breaker for
	// BreakerTimeout.
	BreakerMaxFailures uint32        `koanf:"breaker_max_failures"`
	BreakerTimeout     time.Duration `koanf:"breaker_timeout"`

	// GameDomains maps game keys to domain names.
	GameDomains map[string]string `koanf:"game_domains"`
}

// New creates a Config with defaults. The context is reserved for loaders
// that need one.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:           "info",
		LogFormat:          "json",
		Addr:               ":8080",
		Store:              StoreSQLite,
		DBPath:             "data/affinity.db",
		QueueSize:          1024,
		WorkerCount:        runtime.NumCPU(),
		DedupeSize:         50_000,
		AsyncRecompute:     true,
		CORSOrigins:        []string{"http://localhost:3000"},
		RateLimitRequests:  100,
		RateLimitWindow:    15 * time.Minute,
		RequestTimeout:     30 * time.Second,
		ShutdownTimeout:    30 * time.Second,
		BreakerMaxFailures: 5,
		BreakerTimeout:     30 * time.Second,
		GameDomains:        model.DefaultGameDomains(),
	}
}

// Catalog freezes GameDomains into a catalog.
func (c *Config) Catalog() (*model.Catalog, error) {
	cat, err := model.NewCatalog(c.GameDomains)
	if err != nil {
		return nil, wrapInvalid("game_domains", err)
	}
	return cat, nil
}
