// FlixFinder - Movie Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/flixfinder

package config

import (
	"time"

	"github.com/tomtom215/flixfinder/internal/events"
	"github.com/tomtom215/flixfinder/internal/logging"
	"github.com/tomtom215/flixfinder/internal/recommend"
	"github.com/tomtom215/flixfinder/internal/recommend/storage"
	"github.com/tomtom215/flixfinder/internal/supervisor"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Database   DatabaseConfig   `koanf:"database"`
	Recommend  RecommendConfig  `koanf:"recommend"`
	Store      StoreConfig      `koanf:"store"`
	Events     EventsConfig     `koanf:"events"`
	Logging    LoggingConfig    `koanf:"logging"`
	Supervisor SupervisorConfig `koanf:"supervisor"`
}

// ServerConfig holds the operational HTTP server settings.
type ServerConfig struct {
	Port    int           `koanf:"port" validate:"min=1,max=65535"`
	Host    string        `koanf:"host"`
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`

	// TrainRateLimit is the number of admin train requests allowed per
	// TrainRateWindow from one client. Zero disables the limiter.
	TrainRateLimit  int           `koanf:"train_rate_limit" validate:"gte=0"`
	TrainRateWindow time.Duration `koanf:"train_rate_window" validate:"gte=0"`
}

// DatabaseConfig holds DuckDB settings.
type DatabaseConfig struct {
	Path               string        `koanf:"path" validate:"required"`
	MaxMemory          string        `koanf:"max_memory" validate:"required,memsize"`
	Threads            int           `koanf:"threads" validate:"gte=0"` // 0 = use NumCPU
	CheckpointInterval time.Duration `koanf:"checkpoint_interval" validate:"gte=0"`
	SeedMockData       bool          `koanf:"seed_mock_data"` // Random ratings for development runs
}

// RecommendConfig holds recommendation engine settings. It is a flat view of
// recommend.Config so every field maps to one environment variable.
type RecommendConfig struct {
	// Training hyperparameters
	Factors        int     `koanf:"factors" validate:"min=1,max=1024"`
	LearningRate   float64 `koanf:"learning_rate" validate:"gt=0,lte=1"`
	Regularization float64 `koanf:"regularization" validate:"gte=0"`
	Epochs         int     `koanf:"epochs" validate:"min=1,max=10000"`
	InitStdDev     float64 `koanf:"init_std_dev" validate:"gte=0"`
	Seed           int64   `koanf:"seed"`
	MinScore       float64 `koanf:"min_score"`
	MaxScore       float64 `koanf:"max_score"`

	// Strategy selection
	ColdStartThreshold int `koanf:"cold_start_threshold" validate:"gte=0"`
	MinGenreOverlap    int `koanf:"min_genre_overlap" validate:"min=1"`

	// Request limits
	DefaultN int `koanf:"default_n" validate:"min=1"`
	MaxN     int `koanf:"max_n" validate:"min=1"`

	// Response cache
	CacheEnabled    bool          `koanf:"cache_enabled"`
	CacheTTL        time.Duration `koanf:"cache_ttl"`
	CacheMaxEntries int           `koanf:"cache_max_entries" validate:"gte=0"`

	// Training schedule. A zero TrainInterval disables scheduled training.
	TrainInterval   time.Duration `koanf:"train_interval" validate:"gte=0"`
	TrainOnStartup  bool          `koanf:"train_on_startup"`
	TrainTimeout    time.Duration `koanf:"train_timeout" validate:"gt=0"`
	RetainVersions  int           `koanf:"retain_versions" validate:"gte=0"`
	TriggerInterval time.Duration `koanf:"trigger_interval" validate:"gte=0"`
	TriggerBurst    int           `koanf:"trigger_burst" validate:"min=1"`

	// WatchInterval is how often the model watcher polls the artifact store
	// for versions written by other processes. Zero disables polling.
	WatchInterval time.Duration `koanf:"watch_interval" validate:"gte=0"`
}

// EngineConfig converts the flat settings into a recommend.Config.
func (c *RecommendConfig) EngineConfig() *recommend.Config {
	cfg := recommend.DefaultConfig()
	cfg.Model.Factors = c.Factors
	cfg.Model.LearningRate = c.LearningRate
	cfg.Model.Regularization = c.Regularization
	cfg.Model.Epochs = c.Epochs
	cfg.Model.InitStdDev = c.InitStdDev
	cfg.Model.Seed = c.Seed
	cfg.Model.MinScore = c.MinScore
	cfg.Model.MaxScore = c.MaxScore

	cfg.ColdStart.Threshold = c.ColdStartThreshold
	cfg.ColdStart.MinGenreOverlap = c.MinGenreOverlap

	cfg.Limits.DefaultN = c.DefaultN
	cfg.Limits.MaxN = c.MaxN

	cfg.Cache.Enabled = c.CacheEnabled
	cfg.Cache.TTL = c.CacheTTL
	cfg.Cache.MaxEntries = c.CacheMaxEntries

	cfg.Training.Interval = c.TrainInterval
	cfg.Training.Timeout = c.TrainTimeout
	cfg.Training.RetainVersions = c.RetainVersions
	cfg.Training.TriggerInterval = c.TriggerInterval
	cfg.Training.TriggerBurst = c.TriggerBurst
	return cfg
}

// StoreConfig selects the model artifact backend.
type StoreConfig struct {
	// Backend is one of filesystem, badger or memory.
	Backend string        `koanf:"backend" validate:"oneof=filesystem badger memory"`
	Path    string        `koanf:"path"`
	Breaker BreakerConfig `koanf:"breaker"`
}

// BreakerConfig configures the circuit breaker around the artifact store.
type BreakerConfig struct {
	Enabled      bool          `koanf:"enabled"`
	MaxRequests  uint32        `koanf:"max_requests" validate:"min=1"`
	Interval     time.Duration `koanf:"interval" validate:"gte=0"`
	Timeout      time.Duration `koanf:"timeout" validate:"gt=0"`
	MinRequests  uint32        `koanf:"min_requests" validate:"min=1"`
	FailureRatio float64       `koanf:"failure_ratio" validate:"gt=0,lte=1"`
}

// StorageConfig converts the settings into a storage.Config.
func (c *StoreConfig) StorageConfig() storage.Config {
	return storage.Config{
		Backend: c.Backend,
		Path:    c.Path,
		Breaker: storage.BreakerConfig{
			Enabled:      c.Breaker.Enabled,
			MaxRequests:  c.Breaker.MaxRequests,
			Interval:     c.Breaker.Interval,
			Timeout:      c.Breaker.Timeout,
			MinRequests:  c.Breaker.MinRequests,
			FailureRatio: c.Breaker.FailureRatio,
		},
	}
}

// EventsConfig holds in-process event bus settings.
type EventsConfig struct {
	BufferSize int64 `koanf:"buffer_size" validate:"gte=0"`
}

// BusConfig converts the settings into an events.Config.
func (c *EventsConfig) BusConfig() events.Config {
	return events.Config{BufferSize: c.BufferSize}
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	// Default: info
	Level string `koanf:"level" validate:"oneof=trace debug info warn warning error fatal panic disabled"`

	// Format is the output format: json or console.
	// Default: json
	Format string `koanf:"format" validate:"oneof=json console"`

	// Caller includes caller file and line number in logs.
	Caller bool `koanf:"caller"`
}

// LoggerConfig converts the settings into a logging.Config.
func (c *LoggingConfig) LoggerConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = c.Level
	cfg.Format = c.Format
	cfg.Caller = c.Caller
	return cfg
}

// SupervisorConfig holds suture restart policy settings.
type SupervisorConfig struct {
	FailureThreshold float64       `koanf:"failure_threshold" validate:"gt=0"`
	FailureDecay     float64       `koanf:"failure_decay" validate:"gt=0"`
	FailureBackoff   time.Duration `koanf:"failure_backoff" validate:"gt=0"`
	ShutdownTimeout  time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}

// TreeConfig converts the settings into a supervisor.TreeConfig.
func (c *SupervisorConfig) TreeConfig() supervisor.TreeConfig {
	return supervisor.TreeConfig{
		FailureThreshold: c.FailureThreshold,
		FailureDecay:     c.FailureDecay,
		FailureBackoff:   c.FailureBackoff,
		ShutdownTimeout:  c.ShutdownTimeout,
	}
}
