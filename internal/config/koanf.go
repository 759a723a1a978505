// FlixFinder - Movie Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/flixfinder

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/flixfinder/config.yaml",
	"/etc/flixfinder/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			Host:            "0.0.0.0",
			Timeout:         30 * time.Second,
			TrainRateLimit:  5,
			TrainRateWindow: time.Minute,
		},
		Database: DatabaseConfig{
			Path:               "/data/flixfinder.duckdb",
			MaxMemory:          "1GB",
			Threads:            0,
			CheckpointInterval: 10 * time.Minute,
			SeedMockData:       false,
		},
		Recommend: RecommendConfig{
			Factors:        100,
			LearningRate:   0.01,
			Regularization: 0.2,
			Epochs:         20,
			InitStdDev:     0.1,
			Seed:           42,
			MinScore:       0,
			MaxScore:       10,

			ColdStartThreshold: 5,
			MinGenreOverlap:    2,

			DefaultN: 10,
			MaxN:     100,

			CacheEnabled:    true,
			CacheTTL:        5 * time.Minute,
			CacheMaxEntries: 10000,

			TrainInterval:   24 * time.Hour,
			TrainOnStartup:  false,
			TrainTimeout:    30 * time.Minute,
			RetainVersions:  5,
			TriggerInterval: time.Minute,
			TriggerBurst:    1,
			WatchInterval:   time.Minute,
		},
		Store: StoreConfig{
			Backend: "filesystem",
			Path:    "/data/models",
			Breaker: BreakerConfig{
				Enabled:      true,
				MaxRequests:  1,
				Interval:     time.Minute,
				Timeout:      30 * time.Second,
				MinRequests:  5,
				FailureRatio: 0.6,
			},
		},
		Events: EventsConfig{
			BufferSize: 16,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Supervisor: SupervisorConfig{
			FailureThreshold: 5.0,
			FailureDecay:     30.0,
			FailureBackoff:   15 * time.Second,
			ShutdownTimeout:  10 * time.Second,
		},
	}
}

// Load loads configuration with layered sources:
//  1. Defaults: built-in defaults
//  2. Config File: optional YAML config file (if exists)
//  3. Environment Variables: override any setting
//
// Precedence is ENV > File > Defaults. The result is validated.
func Load() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	// RECOMMEND_FACTORS -> recommend.factors
	// DUCKDB_PATH -> database.path
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// envMappings maps environment variable names (lower-cased) to koanf paths.
var envMappings = map[string]string{
	// Server
	"http_host":               "server.host",
	"http_port":               "server.port",
	"http_timeout":            "server.timeout",
	"train_rate_limit":        "server.train_rate_limit",
	"train_rate_limit_window": "server.train_rate_window",

	// Database
	"duckdb_path":                "database.path",
	"duckdb_max_memory":          "database.max_memory",
	"duckdb_threads":             "database.threads",
	"duckdb_checkpoint_interval": "database.checkpoint_interval",
	"seed_mock_data":             "database.seed_mock_data",

	// Recommendation engine
	"recommend_factors":              "recommend.factors",
	"recommend_learning_rate":        "recommend.learning_rate",
	"recommend_regularization":       "recommend.regularization",
	"recommend_epochs":               "recommend.epochs",
	"recommend_init_std_dev":         "recommend.init_std_dev",
	"recommend_seed":                 "recommend.seed",
	"recommend_min_score":            "recommend.min_score",
	"recommend_max_score":            "recommend.max_score",
	"recommend_cold_start_threshold": "recommend.cold_start_threshold",
	"recommend_min_genre_overlap":    "recommend.min_genre_overlap",
	"recommend_default_n":            "recommend.default_n",
	"recommend_max_n":                "recommend.max_n",
	"recommend_cache_enabled":        "recommend.cache_enabled",
	"recommend_cache_ttl":            "recommend.cache_ttl",
	"recommend_cache_max_entries":    "recommend.cache_max_entries",
	"recommend_train_interval":       "recommend.train_interval",
	"recommend_train_on_startup":     "recommend.train_on_startup",
	"recommend_train_timeout":        "recommend.train_timeout",
	"recommend_retain_versions":      "recommend.retain_versions",
	"recommend_trigger_interval":     "recommend.trigger_interval",
	"recommend_trigger_burst":        "recommend.trigger_burst",
	"recommend_watch_interval":       "recommend.watch_interval",

	// Model artifact store
	"model_store_backend":               "store.backend",
	"model_store_path":                  "store.path",
	"model_store_breaker_enabled":       "store.breaker.enabled",
	"model_store_breaker_max_requests":  "store.breaker.max_requests",
	"model_store_breaker_interval":      "store.breaker.interval",
	"model_store_breaker_timeout":       "store.breaker.timeout",
	"model_store_breaker_min_requests":  "store.breaker.min_requests",
	"model_store_breaker_failure_ratio": "store.breaker.failure_ratio",

	// Events
	"events_buffer_size": "events.buffer_size",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	// Supervisor
	"supervisor_failure_threshold": "supervisor.failure_threshold",
	"supervisor_failure_decay":     "supervisor.failure_decay",
	"supervisor_failure_backoff":   "supervisor.failure_backoff",
	"supervisor_shutdown_timeout":  "supervisor.shutdown_timeout",
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - DUCKDB_PATH -> database.path
//   - RECOMMEND_FACTORS -> recommend.factors
//   - MODEL_STORE_BACKEND -> store.backend
//   - LOG_LEVEL -> logging.level
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}

	// For unmapped keys, return empty string to skip them
	// This prevents random environment variables from polluting config
	return ""
}
