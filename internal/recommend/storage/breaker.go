// FlixFinder - Movie Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/flixfinder

package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/rs/zerolog"

	"github.com/tomtom215/flixfinder/internal/metrics"
	"github.com/tomtom215/flixfinder/internal/recommend"
)

// BreakerConfig configures the artifact store circuit breaker.
type BreakerConfig struct {
	Enabled bool

	// MaxRequests is the number of probes allowed while half-open.
	MaxRequests uint32

	// Interval resets the failure counts while closed. Zero never resets.
	Interval time.Duration

	// Timeout is how long the breaker stays open before probing.
	Timeout time.Duration

	// MinRequests and FailureRatio decide when the breaker opens.
	MinRequests  uint32
	FailureRatio float64
}

// DefaultBreakerConfig returns the production breaker settings.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Enabled:      true,
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      30 * time.Second,
		MinRequests:  5,
		FailureRatio: 0.6,
	}
}

const breakerName = "model-store"

// BreakerStore guards a Store with a circuit breaker.
type BreakerStore struct {
	next   Store
	cb     *gobreaker.CircuitBreaker[any]
	logger zerolog.Logger
}

// loadResult carries the two values of Load through the breaker.
type loadResult struct {
	model *recommend.FactorModel
	info  recommend.ArtifactInfo
}

// NewBreakerStore wraps next. Missing artifacts and cancelled contexts do
// not count as failures.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewBreakerStore(next Store, cfg BreakerConfig, logger zerolog.Logger) *BreakerStore {
	logger = logger.With().Str("component", "model_store_breaker").Logger()

	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0) // 0 = closed

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := failureRatio >= cfg.FailureRatio
			if shouldTrip {
				logger.Warn().
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", failureRatio*100).
					Msg("opening model store circuit")
			}
			return shouldTrip
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info().Str("from", from.String()).Str("to", to.String()).Msg("model store circuit state transition")
			metrics.RecordCircuitBreakerTransition(name, from.String(), to.String(), stateValue(to))
		},

		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, recommend.ErrNotFound) ||
				errors.Is(err, context.Canceled) ||
				errors.Is(err, context.DeadlineExceeded)
		},
	})

	return &BreakerStore{next: next, cb: cb, logger: logger}
}

// stateValue converts a breaker state to its metric value.
func stateValue(state gobreaker.State) int {
	switch state {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// State returns the current breaker state.
func (b *BreakerStore) State() gobreaker.State {
	return b.cb.State()
}

func (b *BreakerStore) execute(fn func() (any, error)) (any, error) {
	result, err := b.cb.Execute(fn)
	switch {
	case errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.RecordCircuitBreakerRequest(breakerName, "rejected")
		return nil, fmt.Errorf("%w: %w", recommend.ErrStoreUnavailable, err)
	case err != nil && !errors.Is(err, recommend.ErrNotFound):
		metrics.RecordCircuitBreakerRequest(breakerName, "failure")
		return nil, err
	case err != nil:
		metrics.RecordCircuitBreakerRequest(breakerName, "success")
		return nil, err
	}
	metrics.RecordCircuitBreakerRequest(breakerName, "success")
	return result, nil
}

// castResult type-asserts a breaker result.
func castResult[T any](result any, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	typed, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return typed, nil
}

// Save implements recommend.ArtifactStore.
func (b *BreakerStore) Save(ctx context.Context, model *recommend.FactorModel) (int, error) {
	return castResult[int](b.execute(func() (any, error) {
		return b.next.Save(ctx, model)
	}))
}

// Load implements recommend.ArtifactStore.
func (b *BreakerStore) Load(ctx context.Context, version int) (*recommend.FactorModel, recommend.ArtifactInfo, error) {
	res, err := castResult[loadResult](b.execute(func() (any, error) {
		model, info, err := b.next.Load(ctx, version)
		if err != nil {
			return nil, err
		}
		return loadResult{model: model, info: info}, nil
	}))
	if err != nil {
		return nil, recommend.ArtifactInfo{}, err
	}
	return res.model, res.info, nil
}

// LatestVersion implements recommend.ArtifactStore.
func (b *BreakerStore) LatestVersion(ctx context.Context) (int, error) {
	return castResult[int](b.execute(func() (any, error) {
		return b.next.LatestVersion(ctx)
	}))
}

// List implements recommend.ArtifactStore.
func (b *BreakerStore) List(ctx context.Context) ([]recommend.ArtifactInfo, error) {
	return castResult[[]recommend.ArtifactInfo](b.execute(func() (any, error) {
		return b.next.List(ctx)
	}))
}

// DeleteOlderThan implements recommend.ArtifactStore.
func (b *BreakerStore) DeleteOlderThan(ctx context.Context, retain int) (int, error) {
	return castResult[int](b.execute(func() (any, error) {
		return b.next.DeleteOlderThan(ctx, retain)
	}))
}

// Close closes the wrapped store.
func (b *BreakerStore) Close() error {
	return b.next.Close()
}

var _ Store = (*BreakerStore)(nil)
