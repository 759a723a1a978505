// FlixFinder - Movie Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/flixfinder

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/flixfinder/internal/recommend"
)

// HistoryEntry is a stored single prediction.
type HistoryEntry struct {
	ID        int64
	CreatedAt time.Time
	recommend.Prediction
}

// RecordPrediction implements recommend.HistoryRecorder.
func (db *DB) RecordPrediction(ctx context.Context, p recommend.Prediction) (err error) {
	defer observe("insert", "recommendation_history", time.Now(), &err)
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO recommendation_history (user_id, movie_id, predicted_score, source, model_version, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.UserID, p.ItemID, p.Score, string(p.Source), p.ModelVersion, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("record prediction (%d, %d): %w", p.UserID, p.ItemID, err)
	}
	return nil
}

// ListHistory returns the most recent predictions served to userID, newest
// first. A limit of zero or less returns all of them.
func (db *DB) ListHistory(ctx context.Context, userID, limit int) (entries []HistoryEntry, err error) {
	defer observe("select", "recommendation_history", time.Now(), &err)
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	query := `
		SELECT id, user_id, movie_id, predicted_score, source, model_version, created_at
		FROM recommendation_history
		WHERE user_id = ?
		ORDER BY id DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history for user %d: %w", userID, err)
	}
	defer closeWithLog(rows, db.logger, "rows")

	entries = []HistoryEntry{}
	for rows.Next() {
		var (
			e      HistoryEntry
			source string
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.ItemID, &e.Score, &source, &e.ModelVersion, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		e.Source = recommend.PredictionSource(source)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return entries, nil
}
