// FlixFinder - Movie Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/flixfinder

package recommend

import "errors"

// Training errors. They abort the run; the latest artifact is left untouched.
var (
	// ErrEmptyDataset is returned when the ratings snapshot has no observations.
	ErrEmptyDataset = errors.New("recommend: empty dataset")

	// ErrInvalidScore is returned when an observation lies outside the
	// configured score interval.
	ErrInvalidScore = errors.New("recommend: score out of range")

	// ErrInvalidHyperparameters is returned when training parameters fail
	// validation. No run is started.
	ErrInvalidHyperparameters = errors.New("recommend: invalid hyperparameters")
)

// Model coverage errors. These are absorbed by the Engine.
var (
	// ErrUnknownEntity is returned by FactorModel.Predict when the user or
	// item has no learned vector.
	ErrUnknownEntity = errors.New("recommend: unknown entity")

	// ErrNotFound is returned by an ArtifactStore when no model (or the
	// requested version) has been saved.
	ErrNotFound = errors.New("recommend: model artifact not found")

	// ErrCorruptArtifact is returned when a stored artifact fails its
	// checksum or cannot be decoded.
	ErrCorruptArtifact = errors.New("recommend: corrupt model artifact")

	// ErrStoreUnavailable is returned when the artifact store circuit
	// breaker is open.
	ErrStoreUnavailable = errors.New("recommend: model store unavailable")
)

// Caller-facing errors.
var (
	// ErrUserNotFound is returned when the requested user does not exist.
	ErrUserNotFound = errors.New("recommend: user not found")

	// ErrItemNotFound is returned when the requested movie does not exist.
	ErrItemNotFound = errors.New("recommend: item not found")

	// ErrInvalidN is returned when the requested result count is out of range.
	ErrInvalidN = errors.New("recommend: invalid result count")

	// ErrTrainingInProgress is returned when a training run is already active.
	ErrTrainingInProgress = errors.New("recommend: training already in progress")

	// ErrTrainingThrottled is returned when training is triggered more often
	// than the configured rate allows.
	ErrTrainingThrottled = errors.New("recommend: training trigger rate exceeded")
)

// IsClientError reports whether err should be surfaced to the caller as a
// request error rather than an internal failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrItemNotFound) ||
		errors.Is(err, ErrInvalidN)
}
