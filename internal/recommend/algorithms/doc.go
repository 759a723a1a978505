// FlixFinder - Movie Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/flixfinder

// Package algorithms implements the trainer and ranker used by the
// recommendation engine.
//
//   - SGDTrainer: biased matrix factorization trained with stochastic
//     gradient descent. Implements recommend.Trainer.
//   - ContentBased: genre-overlap ranking over catalog metadata. Implements
//     recommend.ContentRanker.
//
// # Determinism
//
// SGDTrainer visits observations in source order and seeds its factor
// initialization from Hyperparameters.Seed, so two runs over the same
// source produce identical models. ContentBased breaks rating ties by item
// id.
//
// # Usage
//
//	trainer := algorithms.NewSGDTrainer(logger).
//	    WithEpochObserver(func(epoch int, rmse float64) {
//	        metrics.RecordEpoch(rmse)
//	    })
//	model, err := trainer.Fit(ctx, recommend.SliceSource(ratings), recommend.DefaultHyperparameters())
//
//	ranker := algorithms.NewContentBased(2)
//	items := ranker.Rank([]string{"Drama", "Comedy"}, catalog, 10)
package algorithms
