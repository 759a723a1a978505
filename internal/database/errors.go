// FlixFinder - Movie Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/flixfinder

package database

import (
	"errors"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/flixfinder/internal/metrics"
)

// ErrMovieExists is returned by AddMovie when the id is already taken.
var ErrMovieExists = errors.New("database: movie already exists")

// closeWithLog closes a resource and logs any error.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func closeWithLog(closer io.Closer, logger zerolog.Logger, resourceType string) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logger.Warn().Str("type", resourceType).Err(err).Msg("failed to close resource")
	}
}

// closeQuietly closes a resource and explicitly ignores any error.
// Use this in error paths where Close() errors are not actionable.
func closeQuietly(closer io.Closer) {
	if closer != nil {
		_ = closer.Close() // Explicitly ignore error - cleanup is best-effort
	}
}

// rollbackQuietly rolls back a transaction that may already be committed.
func rollbackQuietly(tx interface{ Rollback() error }) {
	_ = tx.Rollback() // ErrTxDone after a successful commit is expected
}

// isConstraintError reports whether err is a DuckDB constraint violation.
func isConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "Constraint Error") || strings.Contains(msg, "violates primary key")
}

// observe records the duration and outcome of a query.
func observe(operation, table string, start time.Time, errp *error) {
	metrics.RecordDBQuery(operation, table, time.Since(start), *errp)
}
