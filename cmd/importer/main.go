// FlixFinder - Movie Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/flixfinder

// Command importer loads MovieLens-style CSV files into the FlixFinder
// database. Movies are imported before ratings so rating rows can reference
// them.
//
//	importer -movies movies.csv -ratings ratings.csv -scale 2
//
// The database location and logging settings come from the same
// configuration sources as the server (config file and environment).
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/flixfinder/internal/config"
	"github.com/tomtom215/flixfinder/internal/database"
	"github.com/tomtom215/flixfinder/internal/logging"
)

type importFunc func(ctx context.Context, r io.Reader, opts database.ImportOptions) (*database.ImportResult, error)

func main() {
	moviesPath := flag.String("movies", "", "Path to movies.csv (movieId,title,genres)")
	ratingsPath := flag.String("ratings", "", "Path to ratings.csv (userId,movieId,rating,timestamp)")
	scale := flag.Float64("scale", 2, "Factor applied to every rating score (2 maps 0-5 onto 0-10)")
	batchSize := flag.Int("batch", 1000, "Rows committed per transaction")
	refresh := flag.Bool("refresh-averages", false, "Recompute every movie's average rating after the import")
	flag.Parse()

	if *moviesPath == "" && *ratingsPath == "" && !*refresh {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(*moviesPath, *ratingsPath, *refresh, database.ImportOptions{
		ScaleFactor: *scale,
		BatchSize:   *batchSize,
	}); err != nil {
		logging.Error().Err(err).Msg("Import failed")
		os.Exit(1)
	}
}

func run(moviesPath, ratingsPath string, refresh bool, opts database.ImportOptions) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	logging.Init(cfg.Logging.LoggerConfig())
	// Rows must fit the range the trainer accepts.
	opts.MinScore, opts.MaxScore = cfg.Recommend.MinScore, cfg.Recommend.MaxScore

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.New(&cfg.Database, logging.WithComponent("database"))
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()

	if moviesPath != "" {
		if err := importFile(ctx, moviesPath, db.ImportMovies, opts); err != nil {
			return err
		}
	}
	if ratingsPath != "" {
		if err := importFile(ctx, ratingsPath, db.ImportRatings, opts); err != nil {
			return err
		}
	}

	if refresh {
		updated, err := db.RefreshAverageRatings(ctx)
		if err != nil {
			return fmt.Errorf("refresh average ratings: %w", err)
		}
		logging.Info().Int("movies", updated).Msg("Average ratings refreshed")
	}

	return db.Checkpoint(ctx)
}

func importFile(ctx context.Context, path string, fn importFunc, opts database.ImportOptions) error {
	f, err := os.Open(path) //nolint:gosec // path is an operator-supplied CLI argument
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }() //nolint:errcheck // read-only handle

	result, err := fn(ctx, f, opts)
	if err != nil {
		return fmt.Errorf("import %s: %w", path, err)
	}

	logging.Info().
		Str("file", path).
		Str("kind", result.Kind).
		Int("imported", result.Imported).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Dur("duration", result.Duration).
		Msg("CSV import finished")
	return nil
}
