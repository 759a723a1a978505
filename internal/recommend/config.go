// FlixFinder - Movie Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/flixfinder

package recommend

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/flixfinder/internal/validation"
)

// Config contains all configuration for the recommendation engine.
type Config struct {
	// Model holds the default training hyperparameters.
	Model Hyperparameters `json:"model"`

	// ColdStart controls strategy selection per user.
	ColdStart ColdStartConfig `json:"cold_start"`

	// Training contains training schedule and housekeeping parameters.
	Training TrainingConfig `json:"training"`

	// Limits contains operational limits.
	Limits LimitsConfig `json:"limits"`

	// Cache contains response caching parameters.
	Cache CacheConfig `json:"cache"`
}

// Hyperparameters are the named knobs of the SGD matrix factorization trainer.
type Hyperparameters struct {
	// Factors is the latent dimensionality k.
	// Default: 100.
	Factors int `json:"factors" validate:"min=1,max=1024"`

	// LearningRate is the SGD step size (alpha).
	// Default: 0.01.
	LearningRate float64 `json:"learning_rate" validate:"gt=0,lte=1"`

	// Regularization is the L2 penalty (lambda) on biases and factors.
	// Default: 0.2.
	Regularization float64 `json:"regularization" validate:"gte=0"`

	// Epochs is the number of full passes over the observations.
	// Default: 20.
	Epochs int `json:"epochs" validate:"min=1,max=10000"`

	// InitMean and InitStdDev parameterize the Gaussian factor initialization.
	InitMean   float64 `json:"init_mean"`
	InitStdDev float64 `json:"init_std_dev" validate:"gte=0"`

	// MinScore and MaxScore bound valid observations and clamp predictions.
	MinScore float64 `json:"min_score"`
	MaxScore float64 `json:"max_score" validate:"gtfield=MinScore"`

	// Seed makes factor initialization reproducible.
	Seed int64 `json:"seed"`
}

// DefaultHyperparameters returns the production training defaults.
func DefaultHyperparameters() Hyperparameters {
	return Hyperparameters{
		Factors:        100,
		LearningRate:   0.01,
		Regularization: 0.2,
		Epochs:         20,
		InitMean:       0,
		InitStdDev:     0.1,
		MinScore:       0,
		MaxScore:       10,
		Seed:           42,
	}
}

// Validate checks hyperparameter ranges.
//
//nolint:gocritic // value receiver keeps Hyperparameters usable as a plain value type
func (h Hyperparameters) Validate() error {
	if err := validation.ValidateStruct(&h); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidHyperparameters, err)
	}
	return nil
}

// InRange reports whether score lies in the closed interval [MinScore, MaxScore].
//
//nolint:gocritic // value receiver keeps Hyperparameters usable as a plain value type
func (h Hyperparameters) InRange(score float64) bool {
	return score >= h.MinScore && score <= h.MaxScore
}

// ColdStartConfig controls the choice between collaborative and content paths.
type ColdStartConfig struct {
	// Threshold is the rating count a user must exceed to be served by the
	// collaborative model.
	// Default: 5.
	Threshold int `json:"threshold" validate:"gte=0"`

	// MinGenreOverlap is the number of preferred genres an item must match
	// when a user prefers more than one genre.
	// Default: 2.
	MinGenreOverlap int `json:"min_genre_overlap" validate:"min=1"`
}

// TrainingConfig contains training schedule parameters.
type TrainingConfig struct {
	// Interval is how often scheduled training runs.
	// Default: 24h.
	Interval time.Duration `json:"interval"`

	// Timeout bounds a single training run.
	// Default: 30m.
	Timeout time.Duration `json:"timeout" validate:"gt=0"`

	// RetainVersions is how many artifact versions to keep after a run.
	// Zero disables pruning.
	// Default: 5.
	RetainVersions int `json:"retain_versions" validate:"gte=0"`

	// TriggerInterval is the minimum spacing between manually triggered runs.
	// Default: 1m.
	TriggerInterval time.Duration `json:"trigger_interval" validate:"gte=0"`

	// TriggerBurst is how many manual triggers may happen back to back.
	// Default: 1.
	TriggerBurst int `json:"trigger_burst" validate:"min=1"`
}

// LimitsConfig contains operational limits.
type LimitsConfig struct {
	// DefaultN is used when the caller passes n == 0.
	// Default: 10.
	DefaultN int `json:"default_n" validate:"min=1"`

	// MaxN caps the number of recommendations per request.
	// Default: 100.
	MaxN int `json:"max_n" validate:"gtefield=DefaultN"`
}

// CacheConfig contains response caching parameters.
type CacheConfig struct {
	// Enabled toggles response caching.
	Enabled bool `json:"enabled"`

	// TTL is the maximum age of a cached response.
	// Default: 5m.
	TTL time.Duration `json:"ttl"`

	// MaxEntries bounds the cache size.
	// Default: 10000.
	MaxEntries int `json:"max_entries" validate:"gte=0"`
}

// DefaultConfig returns a configuration with production defaults.
func DefaultConfig() *Config {
	return &Config{
		Model: DefaultHyperparameters(),
		ColdStart: ColdStartConfig{
			Threshold:       5,
			MinGenreOverlap: 2,
		},
		Training: TrainingConfig{
			Interval:        24 * time.Hour,
			Timeout:         30 * time.Minute,
			RetainVersions:  5,
			TriggerInterval: time.Minute,
			TriggerBurst:    1,
		},
		Limits: LimitsConfig{
			DefaultN: 10,
			MaxN:     100,
		},
		Cache: CacheConfig{
			Enabled:    true,
			TTL:        5 * time.Minute,
			MaxEntries: 10000,
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return fmt.Errorf("invalid recommend config: %w", err)
	}
	if c.Cache.Enabled && c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive when caching is enabled, got %v", c.Cache.TTL)
	}
	return nil
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// MarshalJSON renders durations as strings.
func (c *Config) MarshalJSON() ([]byte, error) {
	type durations struct {
		Interval        string `json:"interval"`
		Timeout         string `json:"timeout"`
		RetainVersions  int    `json:"retain_versions"`
		TriggerInterval string `json:"trigger_interval"`
		TriggerBurst    int    `json:"trigger_burst"`
	}
	type cache struct {
		Enabled    bool   `json:"enabled"`
		TTL        string `json:"ttl"`
		MaxEntries int    `json:"max_entries"`
	}
	return json.Marshal(&struct {
		Model     Hyperparameters `json:"model"`
		ColdStart ColdStartConfig `json:"cold_start"`
		Training  durations       `json:"training"`
		Limits    LimitsConfig    `json:"limits"`
		Cache     cache           `json:"cache"`
	}{
		Model:     c.Model,
		ColdStart: c.ColdStart,
		Training: durations{
			Interval:        c.Training.Interval.String(),
			Timeout:         c.Training.Timeout.String(),
			RetainVersions:  c.Training.RetainVersions,
			TriggerInterval: c.Training.TriggerInterval.String(),
			TriggerBurst:    c.Training.TriggerBurst,
		},
		Limits: c.Limits,
		Cache: cache{
			Enabled:    c.Cache.Enabled,
			TTL:        c.Cache.TTL.String(),
			MaxEntries: c.Cache.MaxEntries,
		},
	})
}
