// FlixFinder - Movie Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/flixfinder

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/tomtom215/flixfinder/internal/recommend"
)

// Engine is the part of *recommend.Engine the ops API uses.
type Engine interface {
	TriggerTraining(ctx context.Context, hp *recommend.Hyperparameters) (*recommend.TrainingResult, error)
	Status() recommend.TrainingStatus
	Config() *recommend.Config
}

// Pinger reports database health. Satisfied by *database.DB.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config configures the router.
type Config struct {
	// Timeout bounds every request except admin training, which is bounded
	// by the engine's training timeout.
	Timeout time.Duration

	// TrainRateLimit admin train requests are allowed per TrainRateWindow
	// and client IP. Zero disables the limiter.
	TrainRateLimit  int
	TrainRateWindow time.Duration
}

// Router serves the ops endpoints: health probes, Prometheus metrics, model
// status and the admin training trigger.
type Router struct {
	engine Engine
	db     Pinger
	config Config
	logger zerolog.Logger
}

// NewRouter creates a router. db may be nil when no database is wired, in
// which case readiness only reflects the engine.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewRouter(engine Engine, db Pinger, cfg Config, logger zerolog.Logger) (*Router, error) {
	if engine == nil {
		return nil, errors.New("api: engine is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Router{
		engine: engine,
		db:     db,
		config: cfg,
		logger: logger.With().Str("component", "api").Logger(),
	}, nil
}

// Handler builds the chi route tree.
func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDWithLogging(rt.logger))
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(AccessLog)

	r.Get("/healthz", rt.Healthz)
	r.With(chimiddleware.Timeout(rt.config.Timeout)).Get("/readyz", rt.Readyz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.With(chimiddleware.Timeout(rt.config.Timeout)).Get("/model", rt.ModelStatus)

		r.Route("/admin", func(r chi.Router) {
			r.Use(RateLimit("/api/v1/admin/train", rt.config.TrainRateLimit, rt.config.TrainRateWindow))
			r.Post("/train", rt.TriggerTraining)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusNotFound, "NOT_FOUND", "Resource not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})

	return r
}
