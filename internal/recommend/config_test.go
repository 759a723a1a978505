// FlixFinder - Movie Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/flixfinder

package recommend

import (
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() error = %v", err)
	}

	hp := cfg.Model
	if hp.Factors != 100 || hp.LearningRate != 0.01 || hp.Regularization != 0.2 || hp.Epochs != 20 {
		t.Errorf("hyperparameters = %+v, want k=100 lr=0.01 reg=0.2 epochs=20", hp)
	}
	if hp.MinScore != 0 || hp.MaxScore != 10 {
		t.Errorf("score interval = [%v, %v], want [0, 10]", hp.MinScore, hp.MaxScore)
	}
	if cfg.ColdStart.Threshold != 5 {
		t.Errorf("ColdStart.Threshold = %d, want 5", cfg.ColdStart.Threshold)
	}
	if cfg.ColdStart.MinGenreOverlap != 2 {
		t.Errorf("ColdStart.MinGenreOverlap = %d, want 2", cfg.ColdStart.MinGenreOverlap)
	}
	if cfg.Limits.MaxN < cfg.Limits.DefaultN {
		t.Errorf("Limits.MaxN = %d, want >= DefaultN (%d)", cfg.Limits.MaxN, cfg.Limits.DefaultN)
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"zero factors", func(c *Config) { c.Model.Factors = 0 }, true},
		{"zero learning rate", func(c *Config) { c.Model.LearningRate = 0 }, true},
		{"negative regularization", func(c *Config) { c.Model.Regularization = -1 }, true},
		{"zero epochs", func(c *Config) { c.Model.Epochs = 0 }, true},
		{"negative init std dev", func(c *Config) { c.Model.InitStdDev = -0.1 }, true},
		{"inverted score interval", func(c *Config) { c.Model.MinScore, c.Model.MaxScore = 10, 0 }, true},
		{"negative threshold", func(c *Config) { c.ColdStart.Threshold = -1 }, true},
		{"zero threshold", func(c *Config) { c.ColdStart.Threshold = 0 }, false},
		{"zero genre overlap", func(c *Config) { c.ColdStart.MinGenreOverlap = 0 }, true},
		{"zero timeout", func(c *Config) { c.Training.Timeout = 0 }, true},
		{"zero trigger burst", func(c *Config) { c.Training.TriggerBurst = 0 }, true},
		{"max below default", func(c *Config) { c.Limits.MaxN = 5 }, true},
		{"cache without ttl", func(c *Config) { c.Cache.TTL = 0 }, true},
		{"cache disabled without ttl", func(c *Config) { c.Cache.Enabled = false; c.Cache.TTL = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestHyperparameters_InRange(t *testing.T) {
	t.Parallel()

	hp := DefaultHyperparameters()
	tests := []struct {
		score float64
		want  bool
	}{
		{0, true},
		{10, true},
		{5.5, true},
		{-0.1, false},
		{10.1, false},
	}
	for _, tt := range tests {
		if got := hp.InRange(tt.score); got != tt.want {
			t.Errorf("InRange(%v) = %v, want %v", tt.score, got, tt.want)
		}
	}
}

func TestConfig_Clone(t *testing.T) {
	t.Parallel()

	original := DefaultConfig()
	clone := original.Clone()

	clone.Model.Factors = 7
	clone.ColdStart.Threshold = 99
	if original.Model.Factors == 7 || original.ColdStart.Threshold == 99 {
		t.Error("modifying clone affected original")
	}
}

func TestConfig_MarshalJSON(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Training.Interval = 90 * time.Minute

	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var parsed map[string]any
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	training, ok := parsed["training"].(map[string]any)
	if !ok {
		t.Fatal("training field not found or wrong type")
	}
	if got := training["interval"]; got != "1h30m0s" {
		t.Errorf("training.interval = %v, want 1h30m0s", got)
	}
	model, ok := parsed["model"].(map[string]any)
	if !ok {
		t.Fatal("model field not found or wrong type")
	}
	if got := model["factors"]; got != float64(100) {
		t.Errorf("model.factors = %v, want 100", got)
	}
}
