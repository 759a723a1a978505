// FlixFinder - Movie Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/flixfinder

package database

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/tomtom215/flixfinder/internal/metrics"
	"github.com/tomtom215/flixfinder/internal/recommend"
)

// Import kinds, as used in results and metric labels.
const (
	ImportKindMovies  = "movies"
	ImportKindRatings = "ratings"
)

// noGenres is the MovieLens marker for a movie without genres.
const noGenres = "(no genres listed)"

const defaultImportBatchSize = 1000

// ImportOptions tunes a CSV import.
type ImportOptions struct {
	// ScaleFactor multiplies every imported score. Zero means 1; use 2 to
	// bring a 0-5 dataset onto the 0-10 scale.
	ScaleFactor float64

	// BatchSize is the number of rows committed per transaction.
	// Default: 1000.
	BatchSize int

	// MinScore and MaxScore bound a scaled score. Rows outside the range
	// fail. Both zero means the default training range.
	MinScore float64
	MaxScore float64
}

func (o ImportOptions) withDefaults() ImportOptions {
	if o.ScaleFactor == 0 {
		o.ScaleFactor = 1
	}
	if o.BatchSize <= 0 {
		o.BatchSize = defaultImportBatchSize
	}
	if o.MinScore == 0 && o.MaxScore == 0 {
		defaults := recommend.DefaultHyperparameters()
		o.MinScore, o.MaxScore = defaults.MinScore, defaults.MaxScore
	}
	return o
}

// ImportResult summarises a CSV import. Bad rows are counted, not fatal.
type ImportResult struct {
	Kind     string        `json:"kind"`
	Imported int           `json:"imported"`
	Skipped  int           `json:"skipped"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration"`
}

// batch commits a transaction every size rows.
type batch struct {
	db   *DB
	tx   *sql.Tx
	n    int
	size int
}

func (b *batch) querier(ctx context.Context) (querier, error) {
	if b.tx == nil {
		tx, err := b.db.conn.BeginTx(ctx, nil)
		if err != nil {
			return nil, fmt.Errorf("begin import batch: %w", err)
		}
		b.tx = tx
	}
	return b.tx, nil
}

func (b *batch) done() error {
	b.n++
	if b.n < b.size {
		return nil
	}
	return b.flush()
}

func (b *batch) flush() error {
	if b.tx == nil {
		return nil
	}
	err := b.tx.Commit()
	b.tx = nil
	b.n = 0
	if err != nil {
		return fmt.Errorf("commit import batch: %w", err)
	}
	return nil
}

func (b *batch) abort() {
	if b.tx != nil {
		rollbackQuietly(b.tx)
		b.tx = nil
	}
}

// rowError marks a row that is skipped and counted as failed.
type rowError struct {
	line int
	err  error
}

func (e *rowError) Error() string { return fmt.Sprintf("line %d: %v", e.line, e.err) }
func (e *rowError) Unwrap() error { return e.err }

// newCSVReader returns a reader that tolerates ragged rows.
func newCSVReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true
	return cr
}

// isHeader reports whether record is a header row starting with name.
func isHeader(record []string, name string) bool {
	return len(record) > 0 && strings.EqualFold(strings.TrimSpace(record[0]), name)
}

// ImportMovies reads movieId,title,genres rows with pipe-separated genres.
// Unknown genres are created. Movies whose id already exists are skipped.
func (db *DB) ImportMovies(ctx context.Context, r io.Reader, opts ImportOptions) (*ImportResult, error) {
	opts = opts.withDefaults()
	start := time.Now()
	result := &ImportResult{Kind: ImportKindMovies}

	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	known, err := db.idSet(ctx, `SELECT id FROM movies`)
	if err != nil {
		return nil, err
	}

	b := &batch{db: db, size: opts.BatchSize}
	defer b.abort()

	cr := newCSVReader(r)
	for line := 1; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err != nil {
			result.Failed++
			db.logger.Warn().Err(err).Int("line", line).Msg("skipping unreadable movie row")
			continue
		}
		if line == 1 && isHeader(record, "movieId") {
			continue
		}

		item, err := parseMovieRecord(record)
		if err != nil {
			result.Failed++
			db.logger.Warn().Err(&rowError{line: line, err: err}).Msg("skipping movie row")
			continue
		}
		if _, ok := known[item.ID]; ok {
			result.Skipped++
			continue
		}

		q, err := b.querier(ctx)
		if err != nil {
			return nil, err
		}
		if err := insertMovie(ctx, q, item); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		known[item.ID] = struct{}{}
		result.Imported++
		if err := b.done(); err != nil {
			return nil, err
		}
	}
	if err := b.flush(); err != nil {
		return nil, err
	}

	result.Duration = time.Since(start)
	metrics.RecordImport(result.Kind, result.Imported, result.Failed)
	db.logger.Info().
		Int("imported", result.Imported).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Dur("duration", result.Duration).
		Msg("movies imported")
	return result, nil
}

func parseMovieRecord(record []string) (recommend.Item, error) {
	if len(record) < 2 {
		return recommend.Item{}, fmt.Errorf("expected at least 2 fields, got %d", len(record))
	}
	id, err := strconv.Atoi(strings.TrimSpace(record[0]))
	if err != nil {
		return recommend.Item{}, fmt.Errorf("invalid movie id %q", record[0])
	}
	title := strings.TrimSpace(record[1])
	if title == "" {
		return recommend.Item{}, fmt.Errorf("movie %d has no title", id)
	}

	item := recommend.Item{ID: id, Title: title}
	if len(record) > 2 && strings.TrimSpace(record[2]) != noGenres {
		item.Genres = normalizeGenres(strings.Split(record[2], genreSeparator))
	}
	return item, nil
}

// ImportRatings reads userId,movieId,rating[,timestamp] rows. Unknown users
// are created; rows for unknown movies fail. Scores are multiplied by
// ScaleFactor and stored with one decimal place; rows whose scaled score
// falls outside [MinScore, MaxScore] fail. Aggregate movie ratings are
// refreshed once at the end.
func (db *DB) ImportRatings(ctx context.Context, r io.Reader, opts ImportOptions) (*ImportResult, error) {
	opts = opts.withDefaults()
	start := time.Now()
	result := &ImportResult{Kind: ImportKindRatings}

	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	movies, err := db.idSet(ctx, `SELECT id FROM movies`)
	if err != nil {
		return nil, err
	}
	users, err := db.idSet(ctx, `SELECT id FROM users`)
	if err != nil {
		return nil, err
	}

	b := &batch{db: db, size: opts.BatchSize}
	defer b.abort()

	cr := newCSVReader(r)
	for line := 1; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err != nil {
			result.Failed++
			db.logger.Warn().Err(err).Int("line", line).Msg("skipping unreadable rating row")
			continue
		}
		if line == 1 && isHeader(record, "userId") {
			continue
		}

		rating, at, err := parseRatingRecord(record, opts)
		if err == nil {
			if _, ok := movies[rating.ItemID]; !ok {
				err = fmt.Errorf("movie %d: %w", rating.ItemID, recommend.ErrItemNotFound)
			}
		}
		if err != nil {
			result.Failed++
			db.logger.Warn().Err(&rowError{line: line, err: err}).Msg("skipping rating row")
			continue
		}

		q, err := b.querier(ctx)
		if err != nil {
			return nil, err
		}
		if _, ok := users[rating.UserID]; !ok {
			if err := ensureUser(ctx, q, rating.UserID); err != nil {
				return nil, err
			}
			users[rating.UserID] = struct{}{}
		}
		if err := upsertRating(ctx, q, rating, at); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		result.Imported++
		if err := b.done(); err != nil {
			return nil, err
		}
	}
	if err := b.flush(); err != nil {
		return nil, err
	}

	if _, err := db.refreshAll(ctx); err != nil {
		return nil, err
	}

	result.Duration = time.Since(start)
	metrics.RecordImport(result.Kind, result.Imported, result.Failed)
	db.logger.Info().
		Int("imported", result.Imported).
		Int("failed", result.Failed).
		Float64("scale_factor", opts.ScaleFactor).
		Dur("duration", result.Duration).
		Msg("ratings imported")
	return result, nil
}

func parseRatingRecord(record []string, opts ImportOptions) (recommend.Rating, time.Time, error) {
	if len(record) < 3 {
		return recommend.Rating{}, time.Time{}, fmt.Errorf("expected at least 3 fields, got %d", len(record))
	}
	userID, err := strconv.Atoi(strings.TrimSpace(record[0]))
	if err != nil {
		return recommend.Rating{}, time.Time{}, fmt.Errorf("invalid user id %q", record[0])
	}
	movieID, err := strconv.Atoi(strings.TrimSpace(record[1]))
	if err != nil {
		return recommend.Rating{}, time.Time{}, fmt.Errorf("invalid movie id %q", record[1])
	}
	score, err := strconv.ParseFloat(strings.TrimSpace(record[2]), 64)
	if err != nil {
		return recommend.Rating{}, time.Time{}, fmt.Errorf("invalid rating %q", record[2])
	}
	score = recommend.RoundScore(score * opts.ScaleFactor)
	if score < opts.MinScore || score > opts.MaxScore {
		return recommend.Rating{}, time.Time{}, fmt.Errorf("rating %q scales to %v outside [%v, %v]: %w",
			record[2], score, opts.MinScore, opts.MaxScore, recommend.ErrInvalidScore)
	}

	at := time.Now().UTC()
	if len(record) > 3 && strings.TrimSpace(record[3]) != "" {
		secs, err := strconv.ParseInt(strings.TrimSpace(record[3]), 10, 64)
		if err != nil {
			return recommend.Rating{}, time.Time{}, fmt.Errorf("invalid timestamp %q", record[3])
		}
		at = time.Unix(secs, 0).UTC()
	}

	return recommend.Rating{
		UserID: userID,
		ItemID: movieID,
		Score:  score,
	}, at, nil
}

// idSet loads a single integer column into a set.
func (db *DB) idSet(ctx context.Context, query string) (map[int]struct{}, error) {
	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("load ids: %w", err)
	}
	defer closeWithLog(rows, db.logger, "rows")

	ids := make(map[int]struct{})
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}
