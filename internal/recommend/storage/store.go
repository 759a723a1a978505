// FlixFinder - Movie Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/flixfinder

package storage

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/flixfinder/internal/metrics"
	"github.com/tomtom215/flixfinder/internal/recommend"
)

// Backend names, as used in configuration and metric labels.
const (
	BackendFilesystem = "filesystem"
	BackendBadger     = "badger"
	BackendMemory     = "memory"
)

// Store is an ArtifactStore that owns resources which must be released.
type Store interface {
	recommend.ArtifactStore
	io.Closer
}

// Config selects and configures a backend.
type Config struct {
	// Backend is one of "filesystem", "badger" or "memory".
	Backend string

	// Path is the artifact directory (filesystem) or database directory
	// (badger). Ignored by the memory backend.
	Path string

	// Breaker wraps the backend in a circuit breaker when enabled.
	Breaker BreakerConfig
}

// Open creates the configured backend.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func Open(cfg Config, logger zerolog.Logger) (Store, error) {
	var (
		store Store
		err   error
	)

	switch cfg.Backend {
	case BackendFilesystem, "":
		store, err = NewFileStore(cfg.Path, logger)
	case BackendBadger:
		store, err = OpenBadgerStore(cfg.Path, logger)
	case BackendMemory:
		store, err = OpenMemoryStore(logger)
	default:
		return nil, fmt.Errorf("unknown model store backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s model store: %w", cfg.Backend, err)
	}

	if cfg.Breaker.Enabled {
		store = NewBreakerStore(store, cfg.Breaker, logger)
	}
	return store, nil
}

// observe records the duration and outcome of a store operation. A missing
// artifact is an expected answer, not an error.
func observe(backend, operation string, start time.Time, errp *error) {
	err := *errp
	if errors.Is(err, recommend.ErrNotFound) {
		err = nil
	}
	metrics.RecordStoreOperation(backend, operation, time.Since(start), err)
}

func recordSize(backend string, size int64) {
	metrics.RecordArtifactSize(backend, size)
}
