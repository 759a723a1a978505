// FlixFinder - Movie Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/flixfinder

package recommend

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/tomtom215/flixfinder/internal/cache"
	"github.com/tomtom215/flixfinder/internal/metrics"
)

// Dependencies are the collaborators of an Engine. History and Events are
// optional; everything else is required.
type Dependencies struct {
	Ratings RatingStore
	Catalog CatalogStore
	History HistoryRecorder
	Trainer Trainer
	Ranker  ContentRanker
	Store   ArtifactStore
	Models  *ModelHolder
	Events  EventPublisher
}

func (d *Dependencies) validate() error {
	switch {
	case d.Ratings == nil:
		return errors.New("rating store is required")
	case d.Catalog == nil:
		return errors.New("catalog store is required")
	case d.Trainer == nil:
		return errors.New("trainer is required")
	case d.Ranker == nil:
		return errors.New("content ranker is required")
	case d.Store == nil:
		return errors.New("artifact store is required")
	case d.Models == nil:
		return errors.New("model holder is required")
	}
	return nil
}

// Engine chooses between collaborative and content-based ranking per user
// and runs training on demand. It is safe for concurrent use.
type Engine struct {
	config *Config
	logger zerolog.Logger
	deps   Dependencies

	cache *cache.LRU[*Response]

	trainMu sync.Mutex
	limiter *rate.Limiter

	statusMu sync.RWMutex
	status   TrainingStatus
}

// NewEngine creates a new recommendation engine.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewEngine(deps Dependencies, cfg *Config, logger zerolog.Logger) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := deps.validate(); err != nil {
		return nil, fmt.Errorf("invalid dependencies: %w", err)
	}

	limit := rate.Inf
	if cfg.Training.TriggerInterval > 0 {
		limit = rate.Every(cfg.Training.TriggerInterval)
	}

	e := &Engine{
		config:  cfg.Clone(),
		logger:  logger.With().Str("component", "recommend").Logger(),
		deps:    deps,
		limiter: rate.NewLimiter(limit, cfg.Training.TriggerBurst),
	}
	if cfg.Cache.Enabled {
		e.cache = cache.NewLRU[*Response](cfg.Cache.MaxEntries, cfg.Cache.TTL)
	}

	deps.Models.Subscribe(e.onModelInstalled)
	return e, nil
}

func (e *Engine) onModelInstalled(version int) {
	metrics.SetModelVersion(version)
	if e.cache != nil {
		e.cache.Clear()
		e.logger.Debug().Int("version", version).Msg("recommendation cache cleared")
	}
}

// GetRecommendations returns up to n ranked movies for userID. n == 0 selects
// the configured default.
//
// Users with more than ColdStart.Threshold ratings are served from the
// trained model. Everyone else, and every collaborative request that cannot
// be served by the model, is served by the content ranker. Only an unknown
// user, an invalid n and catalog read errors are returned as errors.
func (e *Engine) GetRecommendations(ctx context.Context, userID, n int) (*Response, error) {
	start := time.Now()

	resp, err := e.recommend(ctx, userID, n, start)
	if err != nil {
		metrics.RecordRecommendationError(IsClientError(err))
		return nil, err
	}

	resp.Metadata.LatencyMS = time.Since(start).Milliseconds()
	metrics.RecordRecommendation(string(resp.Metadata.Strategy), string(resp.Metadata.Fallback),
		resp.Metadata.CacheHit, time.Since(start))
	return resp, nil
}

func (e *Engine) recommend(ctx context.Context, userID, n int, start time.Time) (*Response, error) {
	if n == 0 {
		n = e.config.Limits.DefaultN
	}
	if n < 1 || n > e.config.Limits.MaxN {
		return nil, fmt.Errorf("n=%d outside 1..%d: %w", n, e.config.Limits.MaxN, ErrInvalidN)
	}

	if err := e.requireUser(ctx, userID); err != nil {
		return nil, err
	}

	requestID := uuid.NewString()
	logger := e.logger.With().Str("request_id", requestID).Int("user_id", userID).Logger()

	count, err := e.deps.Ratings.CountRatings(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count ratings for user %d: %w", userID, err)
	}
	collaborative := count > e.config.ColdStart.Threshold

	// The rated set is part of the cache key so a new rating never serves a
	// list that still contains the rated movie.
	var rated []int
	if collaborative {
		rated, err = e.deps.Ratings.RatedItemIDs(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("list rated items for user %d: %w", userID, err)
		}
	}

	key := e.cacheKey(userID, n, count, rated)
	if e.cache != nil {
		if cached, ok := e.cache.Get(key); ok {
			logger.Debug().Msg("cache hit")
			return copyResponse(cached, requestID, true), nil
		}
	}

	meta := ResponseMetadata{
		RequestID:   requestID,
		UserID:      userID,
		N:           n,
		RatingCount: count,
		Timestamp:   start,
	}

	var items []ScoredItem
	if collaborative {
		items, meta.ModelVersion, meta.Candidates, meta.Fallback, err = e.collaborative(ctx, userID, n, rated, &logger)
		if err != nil {
			return nil, err
		}
		meta.Strategy = StrategyCollaborative
	} else {
		meta.Fallback = FallbackColdStart
	}

	if meta.Fallback != FallbackNone {
		items, meta.Candidates, err = e.contentBased(ctx, userID, n)
		if err != nil {
			return nil, err
		}
		meta.Strategy = StrategyContent
	}

	resp := &Response{Items: items, Metadata: meta}
	if e.cache != nil {
		e.cache.Add(key, resp)
	}

	logger.Debug().
		Str("strategy", string(meta.Strategy)).
		Str("fallback", string(meta.Fallback)).
		Int("rating_count", count).
		Int("returned", len(items)).
		Msg("recommendation complete")

	return copyResponse(resp, requestID, false), nil
}

// collaborative ranks unrated catalog items by model prediction. A non-empty
// FallbackReason means the caller must use the content path instead.
func (e *Engine) collaborative(ctx context.Context, userID, n int, rated []int, logger *zerolog.Logger) (
	items []ScoredItem, version, candidates int, fallback FallbackReason, err error,
) {
	model, info, err := e.deps.Models.Current(ctx)
	switch {
	case errors.Is(err, ErrNotFound):
		logger.Info().Msg("no trained model available, using content ranking")
		return nil, 0, 0, FallbackNoModel, nil
	case err != nil:
		logger.Warn().Err(err).Msg("model unavailable, using content ranking")
		return nil, 0, 0, FallbackModelUnhealthy, nil
	}
	if !model.KnowsUser(userID) {
		return nil, info.Version, 0, FallbackUnknownUser, nil
	}

	seen := make(map[int]struct{}, len(rated))
	for _, id := range rated {
		seen[id] = struct{}{}
	}

	catalog, err := e.deps.Catalog.ListItems(ctx)
	if err != nil {
		return nil, 0, 0, FallbackNone, fmt.Errorf("list catalog: %w", err)
	}

	scored := make([]ScoredItem, 0, len(catalog))
	for i := range catalog {
		if _, ok := seen[catalog[i].ID]; ok {
			continue
		}
		candidates++
		score, err := model.Predict(userID, catalog[i].ID)
		if errors.Is(err, ErrUnknownEntity) {
			continue
		}
		if err != nil {
			return nil, 0, 0, FallbackNone, err
		}
		scored = append(scored, ScoredItem{Item: catalog[i], Score: score, Source: StrategyCollaborative})
	}

	return TopN(scored, n), info.Version, candidates, FallbackNone, nil
}

func (e *Engine) contentBased(ctx context.Context, userID, n int) ([]ScoredItem, int, error) {
	genres, err := e.deps.Catalog.GetUserGenrePreferences(ctx, userID)
	if err != nil {
		return nil, 0, fmt.Errorf("get genre preferences for user %d: %w", userID, err)
	}
	catalog, err := e.deps.Catalog.ListItems(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("list catalog: %w", err)
	}
	items := e.deps.Ranker.Rank(genres, catalog, n)
	if items == nil {
		items = []ScoredItem{}
	}
	return items, len(catalog), nil
}

func (e *Engine) requireUser(ctx context.Context, userID int) error {
	ok, err := e.deps.Catalog.UserExists(ctx, userID)
	if err != nil {
		return fmt.Errorf("lookup user %d: %w", userID, err)
	}
	if !ok {
		return fmt.Errorf("user %d: %w", userID, ErrUserNotFound)
	}
	return nil
}

// PredictSingle returns the predicted score of itemID for userID. When the
// model cannot score the pair the item's aggregate rating is returned.
func (e *Engine) PredictSingle(ctx context.Context, userID, itemID int) (*Prediction, error) {
	if err := e.requireUser(ctx, userID); err != nil {
		metrics.RecordRecommendationError(IsClientError(err))
		return nil, err
	}
	item, err := e.deps.Catalog.GetItem(ctx, itemID)
	if err != nil {
		metrics.RecordRecommendationError(IsClientError(err))
		if errors.Is(err, ErrItemNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("lookup item %d: %w", itemID, err)
	}

	pred := &Prediction{
		UserID: userID,
		ItemID: itemID,
		Score:  item.AverageRating,
		Source: PredictionItemAverage,
	}

	model, info, err := e.deps.Models.Current(ctx)
	switch {
	case err == nil:
		score, perr := model.Predict(userID, itemID)
		if perr == nil {
			pred.Score = score
			pred.Source = PredictionModel
			pred.ModelVersion = info.Version
		}
	case !errors.Is(err, ErrNotFound):
		e.logger.Warn().Err(err).Msg("model unavailable for single prediction")
	}

	if e.deps.History != nil {
		if herr := e.deps.History.RecordPrediction(ctx, *pred); herr != nil {
			metrics.HistoryWriteErrors.Inc()
			e.logger.Warn().Err(herr).
				Int("user_id", userID).
				Int("item_id", itemID).
				Msg("failed to record prediction history")
		}
	}

	metrics.RecordPrediction(string(pred.Source))
	return pred, nil
}

// TriggerTraining runs a training cycle: snapshot ratings, fit, save, publish
// and prune. hp overrides the configured hyperparameters when non-nil.
//
// Only one run may be active at a time, and runs are rate limited. A failed
// run leaves the latest artifact untouched.
func (e *Engine) TriggerTraining(ctx context.Context, hp *Hyperparameters) (*TrainingResult, error) {
	if !e.trainMu.TryLock() {
		metrics.RecordTraining("rejected", 0, 0)
		return nil, ErrTrainingInProgress
	}
	defer e.trainMu.Unlock()

	if !e.limiter.Allow() {
		metrics.RecordTraining("rejected", 0, 0)
		return nil, ErrTrainingThrottled
	}

	params := e.config.Model
	if hp != nil {
		params = *hp
	}
	if err := params.Validate(); err != nil {
		metrics.RecordTraining("rejected", 0, 0)
		return nil, err
	}

	start := time.Now()
	e.setInProgress(start)

	result, err := e.train(ctx, params, start)
	e.finishTraining(result, err)

	switch {
	case err == nil:
		metrics.RecordTraining("success", result.Duration, result.Observations)
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		metrics.RecordTraining("cancelled", time.Since(start), 0)
	default:
		metrics.RecordTraining("failed", time.Since(start), 0)
	}
	if err != nil {
		e.logger.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("model training failed")
		return nil, err
	}
	return result, nil
}

//nolint:gocritic // hugeParam: params passed by value for immutability
func (e *Engine) train(ctx context.Context, params Hyperparameters, start time.Time) (*TrainingResult, error) {
	ctx, cancel := context.WithTimeout(ctx, e.config.Training.Timeout)
	defer cancel()

	e.logger.Info().
		Int("factors", params.Factors).
		Int("epochs", params.Epochs).
		Float64("learning_rate", params.LearningRate).
		Float64("regularization", params.Regularization).
		Msg("starting model training")

	ratings, err := e.deps.Ratings.ListRatings(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot ratings: %w", err)
	}

	model, err := e.deps.Trainer.Fit(ctx, SliceSource(ratings), params)
	if err != nil {
		return nil, fmt.Errorf("fit model: %w", err)
	}

	version, err := e.deps.Store.Save(ctx, model)
	if err != nil {
		return nil, fmt.Errorf("save model: %w", err)
	}

	meta := model.Metadata()
	e.deps.Models.Publish(model, NewArtifactInfo(model, version))

	if e.deps.Events != nil {
		evt := ModelPublishedEvent{Version: version, RunID: meta.RunID, PublishedAt: time.Now()}
		if perr := e.deps.Events.PublishModel(ctx, evt); perr != nil {
			e.logger.Warn().Err(perr).Int("version", version).Msg("failed to publish model event")
		}
	}

	pruned := 0
	if keep := e.config.Training.RetainVersions; keep > 0 {
		pruned, err = e.deps.Store.DeleteOlderThan(ctx, keep)
		if err != nil {
			e.logger.Warn().Err(err).Int("retain", keep).Msg("failed to prune old model versions")
		}
	}

	result := &TrainingResult{
		RunID:        meta.RunID,
		Version:      version,
		Observations: meta.Observations,
		Users:        model.NumUsers(),
		Items:        model.NumItems(),
		TrainingRMSE: meta.TrainingRMSE,
		Duration:     time.Since(start),
		Pruned:       pruned,
		FinishedAt:   time.Now(),
	}

	e.logger.Info().
		Str("run_id", result.RunID).
		Int("version", version).
		Int("observations", result.Observations).
		Float64("rmse", result.TrainingRMSE).
		Int("pruned", pruned).
		Dur("duration", result.Duration).
		Msg("model training complete")

	return result, nil
}

func (e *Engine) setInProgress(at time.Time) {
	e.statusMu.Lock()
	defer e.statusMu.Unlock()
	e.status.InProgress = true
	e.status.LastAttemptAt = at
}

func (e *Engine) finishTraining(result *TrainingResult, err error) {
	e.statusMu.Lock()
	defer e.statusMu.Unlock()
	e.status.InProgress = false
	if err != nil {
		e.status.LastError = err.Error()
		return
	}
	e.status.LastError = ""
	e.status.LastResult = result
}

// Status returns the current training status.
func (e *Engine) Status() TrainingStatus {
	e.statusMu.RLock()
	status := e.status
	e.statusMu.RUnlock()

	status.LoadedVersion = e.deps.Models.Version()
	return status
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() *Config {
	return e.config.Clone()
}

// cacheKey identifies a response by everything it depends on: the request,
// the installed model, the user's rating count and the rated item set.
func (e *Engine) cacheKey(userID, n, count int, rated []int) string {
	return fmt.Sprintf("rec:%d:%d:%d:%d:%x", userID, n, e.deps.Models.Version(), count, fingerprint(rated))
}

func fingerprint(ids []int) uint64 {
	h := fnv.New64a()
	buf := make([]byte, 0, 24)
	for _, id := range ids {
		buf = strconv.AppendInt(buf[:0], int64(id), 10)
		buf = append(buf, ',')
		_, _ = h.Write(buf) //nolint:errcheck // hash.Hash.Write never fails
	}
	return h.Sum64()
}

// copyResponse returns a copy of resp tagged for this request, so callers
// never share a cached response.
func copyResponse(resp *Response, requestID string, cacheHit bool) *Response {
	items := make([]ScoredItem, len(resp.Items))
	copy(items, resp.Items)

	out := &Response{Items: items, Metadata: resp.Metadata}
	out.Metadata.RequestID = requestID
	out.Metadata.CacheHit = cacheHit
	return out
}
