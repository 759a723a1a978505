// FlixFinder - Movie Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/flixfinder

// Package recommend implements the movie recommendation engine.
//
// # Architecture
//
// Two strategies produce ranked movie lists:
//
//   - Collaborative: a latent-factor model (FactorModel) trained with
//     stochastic gradient descent over explicit ratings.
//   - Content-based: genre-overlap ranking over the catalog, used for
//     cold-start users and whenever no trained model is available.
//
// The Engine picks a strategy per request. Users with more than
// ColdStart.Threshold ratings take the collaborative path; everybody else,
// and every request that cannot be served by the model, takes the
// content-based path.
//
// # Model Lifecycle
//
// Training and serving are decoupled by an ArtifactStore:
//
//	ratings snapshot -> Trainer.Fit -> ArtifactStore.Save -> ModelHolder
//
// The ModelHolder owns the process-wide current model. It loads lazily on
// first use, is replaced when a training run publishes a new version, and
// reloads when the store reports a newer version than the one held.
// A FactorModel is immutable once built, so concurrent requests read it
// without locks.
//
// # Usage
//
//	holder := recommend.NewModelHolder(store, logger)
//	engine, err := recommend.NewEngine(recommend.Dependencies{
//	    Ratings: db,
//	    Catalog: db,
//	    Trainer: algorithms.NewSGDTrainer(logger),
//	    Ranker:  algorithms.NewContentBased(cfg.ColdStart.MinGenreOverlap),
//	    Store:   store,
//	    Models:  holder,
//	}, cfg, logger)
//
//	resp, err := engine.GetRecommendations(ctx, userID, 10)
//
// Implementations of the Trainer and ContentRanker live in the algorithms
// subpackage; artifact backends live in the storage subpackage.
package recommend
