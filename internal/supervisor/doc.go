// FlixFinder - Movie Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/flixfinder

/*
Package supervisor provides process supervision for FlixFinder using suture v4.

Long-running work is organised into a three-layer tree:

	RootSupervisor ("flixfinder")
	├── DataSupervisor ("data-layer")
	│   └── CheckpointService
	├── TrainingSupervisor ("training-layer")
	│   ├── TrainingService
	│   └── ModelWatcherService
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

Each layer counts failures independently. A crashing trainer backs off
without restarting the HTTP server, and the serving model stays whatever was
last loaded.

# Logging

Supervisor events (service panics, restarts, backoff) are emitted through
sutureslog. Pass a slog.Logger built on the zerolog adapter so these events
share the application's log format:

	tree, err := supervisor.NewSupervisorTree(
	    logging.NewSlogLogger(logger),
	    cfg.Supervisor.TreeConfig(),
	)

# Usage

	tree.AddDataService(services.NewCheckpointService(db, 10*time.Minute, logger))
	tree.AddTrainingService(services.NewTrainingService(engine, trainCfg, logger))
	tree.AddTrainingService(services.NewModelWatcherService(bus, holder, time.Minute, logger))
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
	    return err
	}

# Configuration

TreeConfig maps directly onto suture.Spec. Zero values fall back to
DefaultTreeConfig, which matches suture's own defaults.
*/
package supervisor
