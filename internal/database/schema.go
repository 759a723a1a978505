// FlixFinder - Movie Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/flixfinder

/*
schema.go - Database Schema Management

Tables:
  - users: known user ids
  - genres: genre names, unique
  - movies: catalog with the aggregate rating and rating count
  - movie_genres: movie to genre links
  - user_genres: user genre preferences
  - ratings: one score per (user, movie), one decimal place
  - recommendation_history: served single predictions

Foreign keys are not declared. Referential checks happen in the write paths.
*/

//nolint:staticcheck // File documentation, not package doc
package database

import (
	"context"
	"fmt"
	"time"
)

// schemaContext returns a context with timeout for schema operations
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

// tableCreationQueries returns the DDL in dependency order.
func tableCreationQueries() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY,
			created_at TIMESTAMP NOT NULL DEFAULT current_timestamp
		)`,

		`CREATE SEQUENCE IF NOT EXISTS genre_id_seq START 1`,
		`CREATE TABLE IF NOT EXISTS genres (
			id INTEGER PRIMARY KEY DEFAULT nextval('genre_id_seq'),
			name VARCHAR NOT NULL UNIQUE
		)`,

		`CREATE TABLE IF NOT EXISTS movies (
			id INTEGER PRIMARY KEY,
			title VARCHAR NOT NULL,
			average_rating DOUBLE NOT NULL DEFAULT 0,
			rating_count INTEGER NOT NULL DEFAULT 0
		)`,

		`CREATE TABLE IF NOT EXISTS movie_genres (
			movie_id INTEGER NOT NULL,
			genre_id INTEGER NOT NULL,
			PRIMARY KEY (movie_id, genre_id)
		)`,

		`CREATE TABLE IF NOT EXISTS user_genres (
			user_id INTEGER NOT NULL,
			genre_id INTEGER NOT NULL,
			PRIMARY KEY (user_id, genre_id)
		)`,

		`CREATE TABLE IF NOT EXISTS ratings (
			user_id INTEGER NOT NULL,
			movie_id INTEGER NOT NULL,
			score DOUBLE NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT current_timestamp,
			updated_at TIMESTAMP NOT NULL DEFAULT current_timestamp,
			PRIMARY KEY (user_id, movie_id)
		)`,

		`CREATE SEQUENCE IF NOT EXISTS recommendation_history_id_seq START 1`,
		`CREATE TABLE IF NOT EXISTS recommendation_history (
			id BIGINT PRIMARY KEY DEFAULT nextval('recommendation_history_id_seq'),
			user_id INTEGER NOT NULL,
			movie_id INTEGER NOT NULL,
			predicted_score DOUBLE NOT NULL,
			source VARCHAR NOT NULL,
			model_version INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL DEFAULT current_timestamp
		)`,
	}
}

// indexQueries returns secondary indexes.
func indexQueries() []string {
	return []string{
		`CREATE INDEX IF NOT EXISTS idx_ratings_movie ON ratings(movie_id)`,
		`CREATE INDEX IF NOT EXISTS idx_movie_genres_genre ON movie_genres(genre_id)`,
		`CREATE INDEX IF NOT EXISTS idx_history_user ON recommendation_history(user_id)`,
	}
}

// createTables creates the database tables and indexes.
func (db *DB) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	for _, query := range tableCreationQueries() {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	for _, query := range indexQueries() {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}
