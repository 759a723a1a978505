// FlixFinder - Movie Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/flixfinder

package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/flixfinder/internal/events"
	"github.com/tomtom215/flixfinder/internal/recommend"
)

// ModelSubscriber delivers model published events.
//
// Satisfied by *events.Bus.
type ModelSubscriber interface {
	SubscribeModels(ctx context.Context, handler events.ModelHandler) error
}

// ModelRefresher reloads the serving model when a newer version exists.
//
// Satisfied by *recommend.ModelHolder.
type ModelRefresher interface {
	Refresh(ctx context.Context) (bool, error)
	Version() int
}

// ModelWatcherService keeps the serving model at the latest stored version.
// It refreshes on every model.published event and also polls the store, so
// versions written by another process are picked up too.
type ModelWatcherService struct {
	subscriber ModelSubscriber
	holder     ModelRefresher
	interval   time.Duration
	logger     zerolog.Logger
	name       string
}

// NewModelWatcherService creates a watcher. subscriber may be nil, in which
// case only polling is used. An interval of zero or less disables polling.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewModelWatcherService(subscriber ModelSubscriber, holder ModelRefresher, interval time.Duration, logger zerolog.Logger) *ModelWatcherService {
	return &ModelWatcherService{
		subscriber: subscriber,
		holder:     holder,
		interval:   interval,
		logger:     logger.With().Str("service", "model_watcher").Logger(),
		name:       "model-watcher",
	}
}

// Serve implements suture.Service. A subscription that ends unexpectedly is
// returned as an error so the supervisor restarts the watcher.
func (s *ModelWatcherService) Serve(ctx context.Context) error {
	s.refresh(ctx, "startup")

	subErr := make(chan error, 1)
	if s.subscriber != nil {
		go func() {
			subErr <- s.subscriber.SubscribeModels(ctx, func(ctx context.Context, evt recommend.ModelPublishedEvent) error {
				if evt.Version <= s.holder.Version() {
					return nil
				}
				_, err := s.refreshOnce(ctx, "event")
				return err
			})
		}()
	}

	var tick <-chan time.Time
	if s.interval > 0 {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-subErr:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, events.ErrClosed) {
				// The bus is gone; keep polling.
				s.logger.Info().Msg("event bus closed, continuing with polling only")
				subErr = nil
				continue
			}
			if err == nil {
				err = errors.New("subscription ended")
			}
			return fmt.Errorf("model event subscription: %w", err)
		case <-tick:
			s.refresh(ctx, "poll")
		}
	}
}

func (s *ModelWatcherService) refresh(ctx context.Context, reason string) {
	if _, err := s.refreshOnce(ctx, reason); err != nil && ctx.Err() == nil {
		s.logger.Warn().Err(err).Str("reason", reason).Msg("model refresh failed")
	}
}

func (s *ModelWatcherService) refreshOnce(ctx context.Context, reason string) (bool, error) {
	installed, err := s.holder.Refresh(ctx)
	if err != nil {
		return false, err
	}
	if installed {
		s.logger.Info().Int("version", s.holder.Version()).Str("reason", reason).Msg("serving model updated")
	}
	return installed, nil
}

// String returns the service name for logging.
func (s *ModelWatcherService) String() string {
	return s.name
}
