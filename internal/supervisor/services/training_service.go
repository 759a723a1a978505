// FlixFinder - Movie Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/flixfinder

package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/flixfinder/internal/recommend"
)

// ModelTrainer is the training entry point of the engine.
//
// Satisfied by *recommend.Engine.
type ModelTrainer interface {
	TriggerTraining(ctx context.Context, hp *recommend.Hyperparameters) (*recommend.TrainingResult, error)
}

// TrainingServiceConfig holds configuration for the training service.
type TrainingServiceConfig struct {
	// TrainOnStartup runs a training cycle as soon as the service starts.
	TrainOnStartup bool

	// Interval is how often to retrain. Zero or less disables scheduled runs.
	Interval time.Duration
}

// TrainingService retrains the collaborative model on a schedule.
type TrainingService struct {
	trainer ModelTrainer
	config  TrainingServiceConfig
	logger  zerolog.Logger
	name    string
}

// NewTrainingService creates a new training service.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewTrainingService(trainer ModelTrainer, cfg TrainingServiceConfig, logger zerolog.Logger) *TrainingService {
	return &TrainingService{
		trainer: trainer,
		config:  cfg,
		logger:  logger.With().Str("service", "training").Logger(),
		name:    "training-service",
	}
}

// Serve implements suture.Service. Failed runs are logged and retried on
// the next tick; they never stop the service.
func (s *TrainingService) Serve(ctx context.Context) error {
	s.logger.Info().
		Bool("train_on_startup", s.config.TrainOnStartup).
		Dur("interval", s.config.Interval).
		Msg("training service starting")

	if s.config.TrainOnStartup {
		s.run(ctx, "startup")
	}

	var tick <-chan time.Time
	if s.config.Interval > 0 {
		ticker := time.NewTicker(s.config.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("training service shutting down")
			return ctx.Err()
		case <-tick:
			s.run(ctx, "schedule")
		}
	}
}

func (s *TrainingService) run(ctx context.Context, trigger string) {
	result, err := s.trainer.TriggerTraining(ctx, nil)
	switch {
	case err == nil:
		s.logger.Info().
			Str("trigger", trigger).
			Int("version", result.Version).
			Int("observations", result.Observations).
			Float64("rmse", result.TrainingRMSE).
			Dur("duration", result.Duration).
			Msg("scheduled training complete")
	case errors.Is(err, recommend.ErrTrainingInProgress), errors.Is(err, recommend.ErrTrainingThrottled):
		s.logger.Debug().Err(err).Str("trigger", trigger).Msg("scheduled training skipped")
	case errors.Is(err, recommend.ErrEmptyDataset):
		s.logger.Info().Str("trigger", trigger).Msg("no ratings yet, training skipped")
	case ctx.Err() != nil:
		// Shutdown interrupted the run.
	default:
		s.logger.Warn().Err(err).Str("trigger", trigger).Msg("scheduled training failed")
	}
}

// String returns the service name for logging.
func (s *TrainingService) String() string {
	return s.name
}
