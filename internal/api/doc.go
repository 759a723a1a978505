// FlixFinder - Movie Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/flixfinder

/*
Package api provides the operational HTTP surface of FlixFinder on a chi
router.

# Endpoints

	GET  /healthz             liveness, always 200 while the process serves HTTP
	GET  /readyz              readiness, 503 when DuckDB does not answer
	GET  /metrics             Prometheus exposition
	GET  /api/v1/model        training status and effective engine configuration
	POST /api/v1/admin/train  run a training cycle, optional hyperparameter overrides

Recommendations themselves are served through the Go API of
recommend.Engine; this package only exposes what operators need.

# Responses

Every JSON response uses the same envelope:

	{
	  "status": "success",
	  "data": {...},
	  "metadata": {"timestamp": "...", "request_id": "..."}
	}

Errors set status to "error" and carry {"code", "message"} in error.

# Rate limiting

The admin training route is limited per client IP with go-chi/httprate
(Config.TrainRateLimit per Config.TrainRateWindow). The engine applies its
own global trigger throttle on top, reported as 429 TRAINING_THROTTLED.
*/
package api
