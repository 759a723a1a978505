// FlixFinder - Movie Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/flixfinder

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/tomtom215/flixfinder/internal/recommend"
)

// genreSeparator joins genre names in aggregated query results and in the
// movies CSV format.
const genreSeparator = "|"

const selectItems = `
	SELECT m.id, m.title, m.average_rating, m.rating_count,
		COALESCE(string_agg(g.name, '|' ORDER BY g.name), '') AS genres
	FROM movies m
	LEFT JOIN movie_genres mg ON mg.movie_id = m.id
	LEFT JOIN genres g ON g.id = mg.genre_id`

// AddMovie inserts a movie and links its genres, creating unknown genres.
// It returns ErrMovieExists when the id is taken.
func (db *DB) AddMovie(ctx context.Context, item recommend.Item) (err error) {
	defer observe("insert", "movies", time.Now(), &err)
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin movie transaction: %w", err)
	}
	defer rollbackQuietly(tx)

	if err := insertMovie(ctx, tx, item); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit movie: %w", err)
	}
	return nil
}

func insertMovie(ctx context.Context, q querier, item recommend.Item) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO movies (id, title, average_rating, rating_count) VALUES (?, ?, ?, ?)`,
		item.ID, item.Title, item.AverageRating, item.RatingCount)
	if isConstraintError(err) {
		return fmt.Errorf("movie %d: %w", item.ID, ErrMovieExists)
	}
	if err != nil {
		return fmt.Errorf("insert movie %d: %w", item.ID, err)
	}

	for _, name := range normalizeGenres(item.Genres) {
		genreID, err := ensureGenre(ctx, q, name)
		if err != nil {
			return err
		}
		if _, err := q.ExecContext(ctx,
			`INSERT INTO movie_genres (movie_id, genre_id) VALUES (?, ?) ON CONFLICT DO NOTHING`,
			item.ID, genreID); err != nil {
			return fmt.Errorf("link movie %d to genre %q: %w", item.ID, name, err)
		}
	}
	return nil
}

// AddUser registers a user and replaces their genre preferences.
func (db *DB) AddUser(ctx context.Context, userID int, genres ...string) (err error) {
	defer observe("upsert", "users", time.Now(), &err)
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin user transaction: %w", err)
	}
	defer rollbackQuietly(tx)

	if err := ensureUser(ctx, tx, userID); err != nil {
		return err
	}
	// Rows that stay are never deleted and re-inserted: DuckDB rejects a
	// primary key deleted and inserted again in one transaction.
	keep := make([]any, 0, len(genres))
	for _, name := range normalizeGenres(genres) {
		genreID, err := ensureGenre(ctx, tx, name)
		if err != nil {
			return err
		}
		keep = append(keep, genreID)
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO user_genres (user_id, genre_id) VALUES (?, ?) ON CONFLICT DO NOTHING`, userID, genreID); err != nil {
			return fmt.Errorf("add preference %q for user %d: %w", name, userID, err)
		}
	}
	if err := deleteStalePreferences(ctx, tx, userID, keep); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit user: %w", err)
	}
	return nil
}

func deleteStalePreferences(ctx context.Context, q querier, userID int, keep []any) error {
	query := `DELETE FROM user_genres WHERE user_id = ?`
	args := []any{userID}
	if len(keep) > 0 {
		query += ` AND genre_id NOT IN (` + strings.TrimSuffix(strings.Repeat("?, ", len(keep)), ", ") + `)`
		args = append(args, keep...)
	}
	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("clear stale preferences of user %d: %w", userID, err)
	}
	return nil
}

// ensureGenre returns the id of the named genre, creating it if needed.
func ensureGenre(ctx context.Context, q querier, name string) (int, error) {
	if _, err := q.ExecContext(ctx,
		`INSERT INTO genres (name) VALUES (?) ON CONFLICT (name) DO NOTHING`, name); err != nil {
		return 0, fmt.Errorf("ensure genre %q: %w", name, err)
	}
	var id int
	if err := q.QueryRowContext(ctx, `SELECT id FROM genres WHERE name = ?`, name).Scan(&id); err != nil {
		return 0, fmt.Errorf("lookup genre %q: %w", name, err)
	}
	return id, nil
}

// normalizeGenres trims names and drops blanks and duplicates.
func normalizeGenres(genres []string) []string {
	trimmed := lo.Map(genres, func(g string, _ int) string { return strings.TrimSpace(g) })
	return lo.Uniq(lo.Compact(trimmed))
}

// ListItems implements recommend.CatalogStore. Items are ordered by id.
func (db *DB) ListItems(ctx context.Context) (items []recommend.Item, err error) {
	defer observe("select", "movies", time.Now(), &err)
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, selectItems+` GROUP BY m.id, m.title, m.average_rating, m.rating_count ORDER BY m.id`)
	if err != nil {
		return nil, fmt.Errorf("query movies: %w", err)
	}
	defer closeWithLog(rows, db.logger, "rows")

	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate movies: %w", err)
	}
	return items, nil
}

// GetItem implements recommend.CatalogStore.
func (db *DB) GetItem(ctx context.Context, itemID int) (item recommend.Item, err error) {
	defer observe("select", "movies", time.Now(), &err)
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	row := db.conn.QueryRowContext(ctx,
		selectItems+` WHERE m.id = ? GROUP BY m.id, m.title, m.average_rating, m.rating_count`, itemID)
	item, err = scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return recommend.Item{}, fmt.Errorf("item %d: %w", itemID, recommend.ErrItemNotFound)
	}
	return item, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(s scanner) (recommend.Item, error) {
	var (
		item   recommend.Item
		genres string
	)
	if err := s.Scan(&item.ID, &item.Title, &item.AverageRating, &item.RatingCount, &genres); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return recommend.Item{}, err
		}
		return recommend.Item{}, fmt.Errorf("scan movie: %w", err)
	}
	item.Genres = splitGenres(genres)
	return item, nil
}

func splitGenres(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, genreSeparator)
}

// UserExists implements recommend.CatalogStore.
func (db *DB) UserExists(ctx context.Context, userID int) (exists bool, err error) {
	defer observe("select", "users", time.Now(), &err)
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	err = db.conn.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = ?)`, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("lookup user %d: %w", userID, err)
	}
	return exists, nil
}

// GetUserGenrePreferences implements recommend.CatalogStore. Names are
// sorted.
func (db *DB) GetUserGenrePreferences(ctx context.Context, userID int) (genres []string, err error) {
	defer observe("select", "user_genres", time.Now(), &err)

	exists, err := db.UserExists(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("user %d: %w", userID, recommend.ErrUserNotFound)
	}

	ctx, cancel := ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT g.name FROM user_genres ug
		JOIN genres g ON g.id = ug.genre_id
		WHERE ug.user_id = ?
		ORDER BY g.name`, userID)
	if err != nil {
		return nil, fmt.Errorf("query preferences of user %d: %w", userID, err)
	}
	defer closeWithLog(rows, db.logger, "rows")

	genres = []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan genre: %w", err)
		}
		genres = append(genres, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate preferences: %w", err)
	}
	return genres, nil
}

// ListGenres returns every genre name, sorted.
func (db *DB) ListGenres(ctx context.Context) (names []string, err error) {
	defer observe("select", "genres", time.Now(), &err)
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `SELECT name FROM genres ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query genres: %w", err)
	}
	defer closeWithLog(rows, db.logger, "rows")

	names = []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan genre: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate genres: %w", err)
	}
	return names, nil
}
