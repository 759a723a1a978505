// FlixFinder - Movie Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/flixfinder

/*
Package main is the entry point for the FlixFinder server.

FlixFinder recommends movies. Users with enough ratings are served from a
matrix factorization model trained with stochastic gradient descent; new
users are served by genre overlap with their stated preferences.

# Application Architecture

	RootSupervisor ("flixfinder")
	├── DataSupervisor ("data-layer")
	│   └── DuckDB checkpoint service
	├── TrainingSupervisor ("training-layer")
	│   ├── Model watcher (event bus + artifact store polling)
	│   └── Training scheduler (startup and interval runs)
	└── APISupervisor ("api-layer")
	    └── HTTP server (health, metrics, model status, admin train)

Component initialization order:

 1. Configuration: Koanf v2 with defaults, config file and environment
 2. Logging: zerolog with JSON or console output
 3. Database: DuckDB catalog, ratings and prediction history
 4. Model store: filesystem, BadgerDB or in-memory artifacts, optional circuit breaker
 5. Event bus: Watermill GoChannel for model publication events
 6. Engine: SGD trainer, content ranker and model holder
 7. Supervisor tree: Suture v4 process supervision

# Configuration

	Priority: Environment variables > Config file > Defaults

Core environment variables:

	HTTP_PORT=8080                     # ops HTTP port
	LOG_LEVEL=info                     # trace, debug, info, warn, error
	LOG_FORMAT=json                    # json or console
	DUCKDB_PATH=/data/flixfinder.duckdb
	SEED_MOCK_DATA=false               # random ratings for development
	MODEL_STORE_BACKEND=filesystem     # filesystem, badger or memory
	MODEL_STORE_PATH=/data/models
	RECOMMEND_FACTORS=100
	RECOMMEND_EPOCHS=20
	RECOMMEND_TRAIN_INTERVAL=24h       # 0 disables scheduled training
	RECOMMEND_TRAIN_ON_STARTUP=false

# Signal Handling

SIGINT and SIGTERM cancel the root context. The supervisor stops the HTTP
server gracefully, the checkpoint service flushes DuckDB, and the database,
model store and event bus are closed on the way out.

# Example Usage

	SEED_MOCK_DATA=true LOG_FORMAT=console ./flixfinder
	curl -X POST localhost:8080/api/v1/admin/train -d '{"epochs": 30}'
	curl localhost:8080/api/v1/model
*/
package main
