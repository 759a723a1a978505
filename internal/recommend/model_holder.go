// FlixFinder - Movie Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/flixfinder

package recommend

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// loadedModel pairs a model with the artifact it was loaded from.
type loadedModel struct {
	model *FactorModel
	info  ArtifactInfo
}

// ModelHolder owns the process-wide current model.
//
// The model is loaded lazily from the ArtifactStore on first use, replaced
// by Publish after a local training run, and reloaded by Refresh when the
// store reports a newer version. Readers never block on a load in progress
// once a model is installed.
type ModelHolder struct {
	store  ArtifactStore
	logger zerolog.Logger

	current atomic.Pointer[loadedModel]
	loadMu  sync.Mutex

	subMu       sync.RWMutex
	subscribers []func(version int)
}

// NewModelHolder creates a holder backed by store.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewModelHolder(store ArtifactStore, logger zerolog.Logger) *ModelHolder {
	return &ModelHolder{
		store:  store,
		logger: logger.With().Str("component", "model_holder").Logger(),
	}
}

// Current returns the installed model and its artifact info, loading the
// latest version on first use. It returns ErrNotFound when no model has ever
// been saved.
func (h *ModelHolder) Current(ctx context.Context) (*FactorModel, ArtifactInfo, error) {
	if lm := h.current.Load(); lm != nil {
		return lm.model, lm.info, nil
	}

	h.loadMu.Lock()
	defer h.loadMu.Unlock()

	if lm := h.current.Load(); lm != nil {
		return lm.model, lm.info, nil
	}

	model, info, err := h.store.Load(ctx, 0)
	if err != nil {
		return nil, ArtifactInfo{}, fmt.Errorf("load latest model: %w", err)
	}
	h.install(model, info, "lazy_load")
	return model, info, nil
}

// Refresh reloads the model when the store has a newer version than the one
// installed. It reports whether a new model was installed.
func (h *ModelHolder) Refresh(ctx context.Context) (bool, error) {
	latest, err := h.store.LatestVersion(ctx)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check latest version: %w", err)
	}
	if latest <= h.Version() {
		return false, nil
	}

	h.loadMu.Lock()
	defer h.loadMu.Unlock()

	if latest <= h.Version() {
		return false, nil
	}

	model, info, err := h.store.Load(ctx, latest)
	if err != nil {
		return false, fmt.Errorf("load model version %d: %w", latest, err)
	}
	return h.install(model, info, "refresh"), nil
}

// Publish installs a freshly saved model. Older versions than the one
// installed are ignored.
func (h *ModelHolder) Publish(model *FactorModel, info ArtifactInfo) bool {
	h.loadMu.Lock()
	defer h.loadMu.Unlock()
	return h.install(model, info, "publish")
}

// install must be called with loadMu held.
func (h *ModelHolder) install(model *FactorModel, info ArtifactInfo, reason string) bool {
	if cur := h.current.Load(); cur != nil && info.Version <= cur.info.Version {
		return false
	}
	h.current.Store(&loadedModel{model: model, info: info})

	h.logger.Info().
		Int("version", info.Version).
		Str("run_id", info.RunID).
		Int("users", model.NumUsers()).
		Int("items", model.NumItems()).
		Str("reason", reason).
		Msg("model installed")

	h.notify(info.Version)
	return true
}

// Version returns the installed version, or 0 when none is installed.
func (h *ModelHolder) Version() int {
	if lm := h.current.Load(); lm != nil {
		return lm.info.Version
	}
	return 0
}

// Subscribe registers fn to be called with the version of every newly
// installed model.
func (h *ModelHolder) Subscribe(fn func(version int)) {
	h.subMu.Lock()
	defer h.subMu.Unlock()
	h.subscribers = append(h.subscribers, fn)
}

func (h *ModelHolder) notify(version int) {
	h.subMu.RLock()
	subs := h.subscribers
	h.subMu.RUnlock()

	for _, fn := range subs {
		fn(version)
	}
}
