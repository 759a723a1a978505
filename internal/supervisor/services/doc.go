// FlixFinder - Movie Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/flixfinder

/*
Package services provides suture.Service wrappers for FlixFinder components.

Every wrapper blocks in Serve until its context is cancelled and implements
fmt.Stringer so suture can name it in log events. Collaborators are taken as
small interfaces (ModelTrainer, ModelRefresher, Checkpointer, HTTPServer) so
the services can be tested with fakes.

# Available Services

TrainingService:
  - Calls TriggerTraining on startup (optional) and on a fixed interval
  - Busy, throttled and empty-dataset outcomes are logged, not returned

ModelWatcherService:
  - Refreshes the ModelHolder when a model.published event arrives
  - Polls the artifact store as a backstop for missed events and for
    models written by other processes
  - A broken subscription is returned so the supervisor restarts it

CheckpointService:
  - Runs a DuckDB CHECKPOINT on an interval and once on shutdown

HTTPServerService:
  - Runs *http.Server, shutting it down gracefully on cancellation
*/
package services
