// FlixFinder - Movie Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/flixfinder

/*
Package metrics provides Prometheus metrics collection and export for observability.

All collectors are registered with the default registry through promauto and
exposed by the ops router at /metrics.

# Available Metrics

Recommendation:
  - recommend_requests_total{strategy, fallback}
  - recommend_request_duration_seconds{strategy}
  - recommend_request_errors_total{kind}
  - recommend_cache_hits_total, recommend_cache_misses_total
  - recommend_predictions_total{source}
  - recommend_history_write_errors_total

Training:
  - training_runs_total{status}: success, failed, cancelled, rejected
  - training_duration_seconds
  - training_epochs_total, training_epoch_rmse
  - training_observations
  - model_version

Artifact store:
  - artifact_store_operation_duration_seconds{backend, operation}
  - artifact_store_operation_errors_total{backend, operation}
  - artifact_store_last_artifact_bytes{backend}
  - circuit_breaker_state{name}: 0=closed, 1=half-open, 2=open
  - circuit_breaker_requests_total{name, result}
  - circuit_breaker_transitions_total{name, from, to}

Database:
  - duckdb_query_duration_seconds{operation, table}
  - duckdb_query_errors_total{operation, table, error_type}
  - duckdb_import_rows_total{kind, outcome}

Example PromQL queries:

	# Share of requests served by the content path
	sum(rate(recommend_requests_total{strategy="content"}[5m])) / sum(rate(recommend_requests_total[5m]))

	# p95 recommendation latency
	histogram_quantile(0.95, rate(recommend_request_duration_seconds_bucket[5m]))

# Thread Safety

All recording functions are safe for concurrent use.
*/
package metrics
