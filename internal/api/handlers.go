// FlixFinder - Movie Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/flixfinder

package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/flixfinder/internal/recommend"
)

// maxTrainBodyBytes bounds the hyperparameter override body.
const maxTrainBodyBytes = 64 << 10

// HealthStatus is the body of the health probes.
type HealthStatus struct {
	Status   string `json:"status"`
	Database string `json:"database,omitempty"`
	Model    string `json:"model,omitempty"`
}

// ModelStatus is the body of GET /api/v1/model.
type ModelStatus struct {
	Training recommend.TrainingStatus `json:"training"`
	Config   *recommend.Config        `json:"config"`
}

// Healthz handles GET /healthz. It only reports that the process serves HTTP.
func (rt *Router) Healthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, HealthStatus{Status: "ok"})
}

// Readyz handles GET /readyz. The service is ready when the database answers.
// A missing model is reported but does not fail readiness: the engine serves
// content-based results until the first training run.
func (rt *Router) Readyz(w http.ResponseWriter, r *http.Request) {
	health := HealthStatus{Status: "ok", Model: "ready"}
	if rt.engine.Status().LoadedVersion == 0 {
		health.Model = "none"
	}

	if rt.db != nil {
		health.Database = "ok"
		if err := rt.db.Ping(r.Context()); err != nil {
			health.Status = "unavailable"
			health.Database = "unreachable"
			rt.logger.Warn().Err(err).Msg("readiness check failed")
			writeJSON(w, r, http.StatusServiceUnavailable, &Response{
				Status:   "error",
				Data:     health,
				Metadata: newMetadata(r),
				Error:    &APIError{Code: "NOT_READY", Message: "Database unavailable"},
			})
			return
		}
	}

	respondJSON(w, r, http.StatusOK, health)
}

// ModelStatus handles GET /api/v1/model.
func (rt *Router) ModelStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, ModelStatus{
		Training: rt.engine.Status(),
		Config:   rt.engine.Config(),
	})
}

// TriggerTraining handles POST /api/v1/admin/train. An optional JSON body
// overrides individual hyperparameters; omitted fields keep the configured
// values. The call blocks until the run finishes.
func (rt *Router) TriggerTraining(w http.ResponseWriter, r *http.Request) {
	hp, err := decodeHyperparameters(r, rt.engine.Config().Model)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "INVALID_BODY", "Request body must be a JSON hyperparameter object", err)
		return
	}

	// The run continues even if the client disconnects.
	ctx := context.WithoutCancel(r.Context())

	start := time.Now()
	result, err := rt.engine.TriggerTraining(ctx, hp)
	if err != nil {
		status, code, message := trainingErrorStatus(err)
		respondError(w, r, status, code, message, err)
		return
	}

	rt.logger.Info().
		Int("version", result.Version).
		Dur("elapsed", time.Since(start)).
		Msg("training triggered via admin API")
	respondJSON(w, r, http.StatusOK, result)
}

// decodeHyperparameters returns nil when the body is empty.
//
//nolint:gocritic // hugeParam: defaults is copied on purpose
func decodeHyperparameters(r *http.Request, defaults recommend.Hyperparameters) (*recommend.Hyperparameters, error) {
	if r.Body == nil || r.ContentLength == 0 {
		return nil, nil
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxTrainBodyBytes+1))
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, nil
	}
	if len(body) > maxTrainBodyBytes {
		return nil, errors.New("request body too large")
	}

	hp := defaults
	if err := json.Unmarshal(body, &hp); err != nil {
		return nil, err
	}
	return &hp, nil
}

func trainingErrorStatus(err error) (status int, code, message string) {
	switch {
	case errors.Is(err, recommend.ErrTrainingInProgress):
		return http.StatusConflict, "TRAINING_IN_PROGRESS", "A training run is already in progress"
	case errors.Is(err, recommend.ErrTrainingThrottled):
		return http.StatusTooManyRequests, "TRAINING_THROTTLED", "Training was triggered too recently"
	case errors.Is(err, recommend.ErrEmptyDataset):
		return http.StatusUnprocessableEntity, "EMPTY_DATASET", "There are no ratings to train on"
	case errors.Is(err, recommend.ErrInvalidHyperparameters):
		return http.StatusBadRequest, "INVALID_HYPERPARAMETERS", err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "TRAINING_TIMEOUT", "Training exceeded its time limit"
	default:
		return http.StatusInternalServerError, "TRAINING_FAILED", "Training failed"
	}
}
