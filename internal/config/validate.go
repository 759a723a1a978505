// FlixFinder - Movie Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/flixfinder

package config

import (
	"fmt"

	"github.com/tomtom215/flixfinder/internal/validation"
)

// Validate checks that the configuration is complete and consistent.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return err
	}

	if err := c.validateRecommend(); err != nil {
		return err
	}

	return c.validateStore()
}

// validateRecommend checks the cross-field constraints struct tags cannot express.
func (c *Config) validateRecommend() error {
	r := &c.Recommend
	if r.MinScore >= r.MaxScore {
		return fmt.Errorf("RECOMMEND_MIN_SCORE (%v) must be less than RECOMMEND_MAX_SCORE (%v)", r.MinScore, r.MaxScore)
	}
	if r.DefaultN > r.MaxN {
		return fmt.Errorf("RECOMMEND_DEFAULT_N (%d) must not exceed RECOMMEND_MAX_N (%d)", r.DefaultN, r.MaxN)
	}
	if r.CacheEnabled && r.CacheTTL <= 0 {
		return fmt.Errorf("RECOMMEND_CACHE_TTL must be positive when caching is enabled, got %v", r.CacheTTL)
	}
	return r.EngineConfig().Validate()
}

func (c *Config) validateStore() error {
	if c.Store.Backend != "memory" && c.Store.Path == "" {
		return fmt.Errorf("MODEL_STORE_PATH is required for the %s backend", c.Store.Backend)
	}
	return nil
}
