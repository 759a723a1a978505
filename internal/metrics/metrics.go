// FlixFinder - Movie Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/flixfinder

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Database Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table", "error_type"},
	)

	DBImportRows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_import_rows_total",
			Help: "Rows processed by CSV imports",
		},
		[]string{"kind", "outcome"}, // kind: movies, ratings; outcome: imported, failed
	)

	// Recommendation Metrics
	RecommendationRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommend_requests_total",
			Help: "Total number of recommendation requests",
		},
		[]string{"strategy", "fallback"},
	)

	RecommendationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommend_request_errors_total",
			Help: "Recommendation requests that returned an error",
		},
		[]string{"kind"}, // client, internal
	)

	RecommendationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recommend_request_duration_seconds",
			Help:    "Recommendation request latency in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"strategy"},
	)

	RecommendationCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recommend_cache_hits_total",
			Help: "Recommendation responses served from cache",
		},
	)

	RecommendationCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recommend_cache_misses_total",
			Help: "Recommendation requests that missed the cache",
		},
	)

	Predictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommend_predictions_total",
			Help: "Single predictions served, by source",
		},
		[]string{"source"}, // model, item_average
	)

	HistoryWriteErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recommend_history_write_errors_total",
			Help: "Failed recommendation history writes",
		},
	)

	// Training Metrics
	TrainingRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "training_runs_total",
			Help: "Training runs by final status",
		},
		[]string{"status"}, // success, failed, cancelled, rejected
	)

	TrainingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "training_duration_seconds",
			Help:    "Duration of successful training runs in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 900, 1800},
		},
	)

	TrainingEpochRMSE = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "training_epoch_rmse",
			Help: "Training RMSE after the most recent epoch",
		},
	)

	TrainingEpochs = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "training_epochs_total",
			Help: "Total completed SGD epochs",
		},
	)

	TrainingObservations = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "training_observations",
			Help: "Observations used by the most recent successful training run",
		},
	)

	ModelVersion = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "model_version",
			Help: "Currently installed model artifact version",
		},
	)

	// Artifact Store Metrics
	StoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "artifact_store_operation_duration_seconds",
			Help:    "Duration of model artifact store operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "operation"},
	)

	StoreOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "artifact_store_operation_errors_total",
			Help: "Failed model artifact store operations",
		},
		[]string{"backend", "operation"},
	)

	StoreArtifactBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "artifact_store_last_artifact_bytes",
			Help: "Compressed size of the most recently saved artifact",
		},
		[]string{"backend"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Requests through the circuit breaker by result",
		},
		[]string{"name", "result"}, // success, failure, rejected
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Event Bus Metrics
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Events published on the in-process bus",
		},
		[]string{"topic"},
	)

	EventsConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_consumed_total",
			Help: "Events handled from the in-process bus",
		},
		[]string{"topic", "outcome"},
	)

	// Ops API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of ops API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Ops API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)
)

// RecordDBQuery records a database query metric
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		errorType := err.Error()
		// Truncate long error messages
		if len(errorType) > 50 {
			errorType = errorType[:50]
		}
		DBQueryErrors.WithLabelValues(operation, table, errorType).Inc()
	}
}

// RecordImport records the outcome of a CSV import.
func RecordImport(kind string, imported, failed int) {
	DBImportRows.WithLabelValues(kind, "imported").Add(float64(imported))
	DBImportRows.WithLabelValues(kind, "failed").Add(float64(failed))
}

// RecordRecommendation records a served recommendation request.
func RecordRecommendation(strategy, fallback string, cacheHit bool, duration time.Duration) {
	if fallback == "" {
		fallback = "none"
	}
	RecommendationRequests.WithLabelValues(strategy, fallback).Inc()
	RecommendationDuration.WithLabelValues(strategy).Observe(duration.Seconds())
	if cacheHit {
		RecommendationCacheHits.Inc()
	} else {
		RecommendationCacheMisses.Inc()
	}
}

// RecordRecommendationError records a failed recommendation or prediction.
func RecordRecommendationError(client bool) {
	kind := "internal"
	if client {
		kind = "client"
	}
	RecommendationErrors.WithLabelValues(kind).Inc()
}

// RecordPrediction records a served single prediction.
func RecordPrediction(source string) {
	Predictions.WithLabelValues(source).Inc()
}

// RecordTraining records the outcome of a training run. Duration and
// observation count are only tracked for successful runs.
func RecordTraining(status string, duration time.Duration, observations int) {
	TrainingRuns.WithLabelValues(status).Inc()
	if status == "success" {
		TrainingDuration.Observe(duration.Seconds())
		TrainingObservations.Set(float64(observations))
	}
}

// RecordEpoch records a completed SGD epoch.
func RecordEpoch(rmse float64) {
	TrainingEpochs.Inc()
	TrainingEpochRMSE.Set(rmse)
}

// SetModelVersion records the installed model version.
func SetModelVersion(version int) {
	ModelVersion.Set(float64(version))
}

// RecordStoreOperation records an artifact store operation.
func RecordStoreOperation(backend, operation string, duration time.Duration, err error) {
	StoreOperationDuration.WithLabelValues(backend, operation).Observe(duration.Seconds())
	if err != nil {
		StoreOperationErrors.WithLabelValues(backend, operation).Inc()
	}
}

// RecordArtifactSize records the size of a saved artifact.
func RecordArtifactSize(backend string, bytes int64) {
	StoreArtifactBytes.WithLabelValues(backend).Set(float64(bytes))
}

// RecordCircuitBreakerTransition records a breaker state change.
// States use the gauge encoding 0=closed, 1=half-open, 2=open.
func RecordCircuitBreakerTransition(name, from, to string, state int) {
	CircuitBreakerTransitions.WithLabelValues(name, from, to).Inc()
	CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}

// RecordCircuitBreakerRequest records a request result through a breaker.
func RecordCircuitBreakerRequest(name, result string) {
	CircuitBreakerRequests.WithLabelValues(name, result).Inc()
}

// RecordEventPublished records a published bus event.
func RecordEventPublished(topic string) {
	EventsPublished.WithLabelValues(topic).Inc()
}

// RecordEventConsumed records a handled bus event.
func RecordEventConsumed(topic string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	EventsConsumed.WithLabelValues(topic, outcome).Inc()
}

// RecordAPIRequest records an ops API request metric
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordRateLimitHit records a rejected rate-limited request.
func RecordRateLimitHit(endpoint string) {
	APIRateLimitHits.WithLabelValues(endpoint).Inc()
}
