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
	"time"

	"github.com/tomtom215/flixfinder/internal/recommend"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ListRatings implements recommend.RatingStore. Ratings are ordered by user
// then movie.
func (db *DB) ListRatings(ctx context.Context) (ratings []recommend.Rating, err error) {
	defer observe("select", "ratings", time.Now(), &err)
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `SELECT user_id, movie_id, score FROM ratings ORDER BY user_id, movie_id`)
	if err != nil {
		return nil, fmt.Errorf("query ratings: %w", err)
	}
	defer closeWithLog(rows, db.logger, "rows")

	for rows.Next() {
		var r recommend.Rating
		if err := rows.Scan(&r.UserID, &r.ItemID, &r.Score); err != nil {
			return nil, fmt.Errorf("scan rating: %w", err)
		}
		ratings = append(ratings, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ratings: %w", err)
	}
	return ratings, nil
}

// CountRatings implements recommend.RatingStore.
func (db *DB) CountRatings(ctx context.Context, userID int) (count int, err error) {
	defer observe("count", "ratings", time.Now(), &err)
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	err = db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM ratings WHERE user_id = ?`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count ratings for user %d: %w", userID, err)
	}
	return count, nil
}

// RatedItemIDs implements recommend.RatingStore.
func (db *DB) RatedItemIDs(ctx context.Context, userID int) (ids []int, err error) {
	defer observe("select", "ratings", time.Now(), &err)
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `SELECT movie_id FROM ratings WHERE user_id = ? ORDER BY movie_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query rated movies for user %d: %w", userID, err)
	}
	defer closeWithLog(rows, db.logger, "rows")

	ids = []int{}
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan movie id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rated movies: %w", err)
	}
	return ids, nil
}

// UpsertRating stores a user's score for a movie, replacing any previous
// score, and refreshes the movie's aggregate rating. The user is created if
// unknown. The score is stored with one decimal place and is not range
// checked here; training rejects out-of-range observations.
func (db *DB) UpsertRating(ctx context.Context, r recommend.Rating) (err error) {
	defer observe("upsert", "ratings", time.Now(), &err)
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin rating transaction: %w", err)
	}
	defer rollbackQuietly(tx)

	if err := requireMovie(ctx, tx, r.ItemID); err != nil {
		return err
	}
	if err := ensureUser(ctx, tx, r.UserID); err != nil {
		return err
	}
	if err := upsertRating(ctx, tx, r, time.Now().UTC()); err != nil {
		return err
	}
	if err := refreshMovieAggregate(ctx, tx, r.ItemID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit rating: %w", err)
	}
	return nil
}

// DeleteRating removes a user's rating for a movie and refreshes the movie's
// aggregate rating. It reports whether a rating was removed.
func (db *DB) DeleteRating(ctx context.Context, userID, itemID int) (deleted bool, err error) {
	defer observe("delete", "ratings", time.Now(), &err)
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin rating transaction: %w", err)
	}
	defer rollbackQuietly(tx)

	res, err := tx.ExecContext(ctx, `DELETE FROM ratings WHERE user_id = ? AND movie_id = ?`, userID, itemID)
	if err != nil {
		return false, fmt.Errorf("delete rating: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete rating: %w", err)
	}
	if n == 0 {
		return false, nil
	}
	if err := refreshMovieAggregate(ctx, tx, itemID); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit rating delete: %w", err)
	}
	return true, nil
}

// RefreshAverageRatings recomputes the aggregate rating of every movie.
// Movies without ratings are reset to zero. It returns the number of movies
// updated.
func (db *DB) RefreshAverageRatings(ctx context.Context) (updated int, err error) {
	defer observe("update", "movies", time.Now(), &err)
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	return db.refreshAll(ctx)
}

// refreshAll must be called with writeMu held.
func (db *DB) refreshAll(ctx context.Context) (int, error) {
	res, err := db.conn.ExecContext(ctx, `
		UPDATE movies SET
			average_rating = COALESCE((SELECT ROUND(AVG(r.score), 1) FROM ratings r WHERE r.movie_id = movies.id), 0),
			rating_count = (SELECT COUNT(*) FROM ratings r WHERE r.movie_id = movies.id)`)
	if err != nil {
		return 0, fmt.Errorf("refresh average ratings: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("refresh average ratings: %w", err)
	}
	return int(n), nil
}

func requireMovie(ctx context.Context, q querier, movieID int) error {
	var exists bool
	err := q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM movies WHERE id = ?)`, movieID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("lookup movie %d: %w", movieID, err)
	}
	if !exists {
		return fmt.Errorf("movie %d: %w", movieID, recommend.ErrItemNotFound)
	}
	return nil
}

func ensureUser(ctx context.Context, q querier, userID int) error {
	if _, err := q.ExecContext(ctx, `INSERT INTO users (id) VALUES (?) ON CONFLICT (id) DO NOTHING`, userID); err != nil {
		return fmt.Errorf("ensure user %d: %w", userID, err)
	}
	return nil
}

func upsertRating(ctx context.Context, q querier, r recommend.Rating, at time.Time) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO ratings (user_id, movie_id, score, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id, movie_id) DO UPDATE SET
			score = excluded.score,
			updated_at = excluded.updated_at`,
		r.UserID, r.ItemID, recommend.RoundScore(r.Score), at, at)
	if err != nil {
		return fmt.Errorf("upsert rating (%d, %d): %w", r.UserID, r.ItemID, err)
	}
	return nil
}

func refreshMovieAggregate(ctx context.Context, q querier, movieID int) error {
	var (
		avg   sql.NullFloat64
		count int
	)
	err := q.QueryRowContext(ctx,
		`SELECT ROUND(AVG(score), 1), COUNT(*) FROM ratings WHERE movie_id = ?`, movieID).Scan(&avg, &count)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("aggregate ratings for movie %d: %w", movieID, err)
	}
	_, err = q.ExecContext(ctx,
		`UPDATE movies SET average_rating = ?, rating_count = ? WHERE id = ?`, avg.Float64, count, movieID)
	if err != nil {
		return fmt.Errorf("update aggregate for movie %d: %w", movieID, err)
	}
	return nil
}
