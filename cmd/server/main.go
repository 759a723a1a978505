// FlixFinder - Movie Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/flixfinder

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/flixfinder/internal/api"
	"github.com/tomtom215/flixfinder/internal/config"
	"github.com/tomtom215/flixfinder/internal/database"
	"github.com/tomtom215/flixfinder/internal/events"
	"github.com/tomtom215/flixfinder/internal/logging"
	"github.com/tomtom215/flixfinder/internal/recommend"
	"github.com/tomtom215/flixfinder/internal/recommend/algorithms"
	"github.com/tomtom215/flixfinder/internal/recommend/storage"
	"github.com/tomtom215/flixfinder/internal/supervisor"
	"github.com/tomtom215/flixfinder/internal/supervisor/services"
)

func main() {
	if err := run(); err != nil {
		logging.Error().Err(err).Msg("FlixFinder stopped with an error")
		os.Exit(1)
	}
}

//nolint:gocyclo // Sequential setup steps
func run() error {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	logging.Init(cfg.Logging.LoggerConfig())

	logging.Info().
		Str("db_path", cfg.Database.Path).
		Str("model_store", cfg.Store.Backend).
		Msg("Starting FlixFinder with supervisor tree")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// === DATA LAYER ===

	db, err := database.New(&cfg.Database, logging.WithComponent("database"))
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()

	if cfg.Database.SeedMockData {
		logging.Info().Msg("Mock data seeding enabled (SEED_MOCK_DATA=true)")
		result, err := db.SeedMockData(ctx, database.SeedOptions{})
		if err != nil {
			return fmt.Errorf("seed mock data: %w", err)
		}
		logging.Info().
			Int("movies", result.Movies).
			Int("users", result.Users).
			Int("ratings", result.Ratings).
			Msg("Mock data seeded")
	}

	store, err := storage.Open(cfg.Store.StorageConfig(), logging.WithComponent("model-store"))
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing model store")
		}
	}()

	bus := events.NewBus(cfg.Events.BusConfig(), logging.WithComponent("events"))
	defer func() {
		if err := bus.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event bus")
		}
	}()

	// === RECOMMENDATION ENGINE ===

	holder := recommend.NewModelHolder(store, logging.WithComponent("model-holder"))
	engine, err := recommend.NewEngine(recommend.Dependencies{
		Ratings: db,
		Catalog: db,
		History: db,
		Trainer: algorithms.NewSGDTrainer(logging.WithComponent("sgd")),
		Ranker:  algorithms.NewContentBased(cfg.Recommend.MinGenreOverlap),
		Store:   store,
		Models:  holder,
		Events:  bus,
	}, cfg.Recommend.EngineConfig(), logging.Logger())
	if err != nil {
		return fmt.Errorf("initialize recommendation engine: %w", err)
	}

	// === HTTP ===

	router, err := api.NewRouter(engine, db, api.Config{
		Timeout:         cfg.Server.Timeout,
		TrainRateLimit:  cfg.Server.TrainRateLimit,
		TrainRateWindow: cfg.Server.TrainRateWindow,
	}, logging.Logger())
	if err != nil {
		return fmt.Errorf("initialize router: %w", err)
	}

	// Admin training runs are bounded by the engine's training timeout, so
	// the write timeout leaves room for them.
	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Recommend.TrainTimeout + cfg.Server.Timeout,
		IdleTimeout:       120 * time.Second,
	}

	// === SUPERVISOR TREE ===

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(logging.Logger()), cfg.Supervisor.TreeConfig())
	if err != nil {
		return fmt.Errorf("create supervisor tree: %w", err)
	}

	tree.AddDataService(services.NewCheckpointService(db, cfg.Database.CheckpointInterval, logging.WithComponent("checkpoint")))

	tree.AddTrainingService(services.NewModelWatcherService(bus, holder, cfg.Recommend.WatchInterval, logging.WithComponent("model-watcher")))
	tree.AddTrainingService(services.NewTrainingService(engine, services.TrainingServiceConfig{
		TrainOnStartup: cfg.Recommend.TrainOnStartup,
		Interval:       cfg.Recommend.TrainInterval,
	}, logging.WithComponent("training")))

	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Supervisor.ShutdownTimeout))

	logging.Info().Str("addr", server.Addr).Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	// errCh receives exactly one value when the root supervisor returns.
	var serveErr error
	select {
	case <-ctx.Done():
		logging.Info().Msg("Received shutdown signal, waiting for supervisor to finish...")
		if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			serveErr = fmt.Errorf("supervisor tree: %w", err)
		}
	}
	stop()

	// Report any services that failed to stop within timeout
	unstopped, _ := tree.UnstoppedServiceReport() //nolint:errcheck // report is best effort after shutdown
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
	}

	logging.Info().Msg("FlixFinder stopped")
	return serveErr
}
