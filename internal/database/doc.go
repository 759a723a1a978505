// FlixFinder - Movie Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/flixfinder

/*
Package database stores users, movies, genres, ratings and prediction
history in DuckDB.

DB implements the recommend.RatingStore, recommend.CatalogStore and
recommend.HistoryRecorder interfaces, so the recommendation engine reads
its training data and catalog straight from DuckDB.

# Writes

UpsertRating and DeleteRating keep movies.average_rating and
movies.rating_count in step with the ratings table. Bulk loads go through
ImportMovies and ImportRatings, which read MovieLens-style CSV files, count
bad rows instead of failing, and refresh all aggregates once at the end.

# Usage

	db, err := database.New(&cfg.Database, logger)
	if err != nil {
	    return err
	}
	defer db.Close()

	result, err := db.ImportRatings(ctx, f, database.ImportOptions{ScaleFactor: 2})

# Testing

Tests use an in-memory database (Path ":memory:").
*/
package database
