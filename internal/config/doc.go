// FlixFinder - Movie Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/flixfinder

/*
Package config loads FlixFinder configuration.

Configuration is layered with koanf: built-in defaults, then an optional
YAML file (CONFIG_PATH, ./config.yaml or /etc/flixfinder/config.yaml), then
environment variables. Later layers win.

# Sections

  - server: operational HTTP endpoint (health, metrics, admin training)
  - database: DuckDB ratings and catalog database
  - recommend: hyperparameters, cold-start policy, limits, cache, training schedule
  - store: model artifact backend and its circuit breaker
  - events: in-process event bus
  - logging: zerolog level and format
  - supervisor: suture restart policy

# Environment Variables

Only mapped variables are read; everything else in the environment is
ignored. A selection:

  - HTTP_PORT: ops server port (default: 8080)
  - DUCKDB_PATH: database file (default: /data/flixfinder.duckdb)
  - DUCKDB_MAX_MEMORY: DuckDB memory limit (default: 1GB)
  - DUCKDB_CHECKPOINT_INTERVAL: how often the database is checkpointed (default: 10m)
  - SEED_MOCK_DATA: seed random ratings on startup (default: false)
  - RECOMMEND_FACTORS: latent dimensionality (default: 100)
  - RECOMMEND_EPOCHS: SGD epochs (default: 20)
  - RECOMMEND_COLD_START_THRESHOLD: ratings required for the model path (default: 5)
  - RECOMMEND_MIN_GENRE_OVERLAP: genre overlap for multi-genre users (default: 2)
  - RECOMMEND_TRAIN_INTERVAL: scheduled training interval, 0 disables (default: 24h)
  - RECOMMEND_TRAIN_ON_STARTUP: train once when the server starts (default: false)
  - MODEL_STORE_BACKEND: filesystem, badger or memory (default: filesystem)
  - MODEL_STORE_PATH: artifact directory (default: /data/models)
  - LOG_LEVEL, LOG_FORMAT: logging (default: info, json)

# Example

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}
	engineCfg := cfg.Recommend.EngineConfig()
*/
package config
