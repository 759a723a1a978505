// FlixFinder - Movie Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/flixfinder

package recommend_test

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/flixfinder/internal/recommend"
	"github.com/tomtom215/flixfinder/internal/recommend/algorithms"
	"github.com/tomtom215/flixfinder/internal/recommend/storage"
)

// Fixture users.
const (
	heavyUser  = 1 // 6 ratings, above the default threshold of 5
	thresholdU = 4 // exactly 5 ratings
	newUser    = 7 // no ratings, prefers Drama
	unknownID  = 404
)

func testConfig() *recommend.Config {
	cfg := recommend.DefaultConfig()
	cfg.Model.Factors = 4
	cfg.Model.Epochs = 30
	cfg.Training.TriggerInterval = 0
	cfg.Training.RetainVersions = 0
	return cfg
}

// seedCatalog builds 12 movies and a set of users.
func seedCatalog(t *testing.T) *recommend.MemoryStore {
	t.Helper()

	s := recommend.NewMemoryStore()
	genres := [][]string{{"Drama"}, {"Comedy"}, {"Drama", "Comedy"}, {"Horror"}}
	for id := 1; id <= 12; id++ {
		s.AddItem(recommend.Item{ID: id, Title: fmt.Sprintf("Movie %d", id), Genres: genres[id%len(genres)]})
	}

	s.AddUser(heavyUser, "Drama")
	s.AddUser(2, "Comedy")
	s.AddUser(3, "Drama", "Comedy")
	s.AddUser(thresholdU, "Horror")
	s.AddUser(5)
	s.AddUser(6, "Drama")
	s.AddUser(newUser, "Drama")

	rate := func(user int, items []int, score func(item int) float64) {
		for _, item := range items {
			if err := s.AddRating(recommend.Rating{UserID: user, ItemID: item, Score: score(item)}); err != nil {
				t.Fatalf("AddRating() error = %v", err)
			}
		}
	}
	even := func(item int) float64 {
		if item%2 == 0 {
			return 9
		}
		return 3
	}
	odd := func(item int) float64 { return 12 - even(item) }

	rate(heavyUser, []int{1, 2, 3, 4, 5, 6}, even)
	rate(2, []int{1, 2, 3, 4, 7, 8, 9, 10}, odd)
	rate(3, []int{2, 4, 6, 8, 10, 12, 11}, even)
	rate(thresholdU, []int{1, 3, 5, 7, 9}, odd)
	rate(5, []int{5, 6, 7, 8, 9, 10, 11, 12}, even)
	rate(6, []int{1, 2, 11, 12, 7, 8}, odd)
	return s
}

type fixture struct {
	data   *recommend.MemoryStore
	store  recommend.ArtifactStore
	holder *recommend.ModelHolder
	events *recordingPublisher
	engine *recommend.Engine
}

func newFixture(t *testing.T, cfg *recommend.Config, mutate func(*recommend.Dependencies)) *fixture {
	t.Helper()

	mem, err := storage.OpenMemoryStore(zerolog.Nop())
	if err != nil {
		t.Fatalf("OpenMemoryStore() error = %v", err)
	}
	t.Cleanup(func() { _ = mem.Close() })

	f := &fixture{data: seedCatalog(t), events: &recordingPublisher{}}
	deps := recommend.Dependencies{
		Ratings: f.data,
		Catalog: f.data,
		History: f.data,
		Trainer: algorithms.NewSGDTrainer(zerolog.Nop()),
		Ranker:  algorithms.NewContentBased(cfg.ColdStart.MinGenreOverlap),
		Store:   mem,
		Events:  f.events,
	}
	if mutate != nil {
		mutate(&deps)
	}
	if deps.Models == nil {
		deps.Models = recommend.NewModelHolder(deps.Store, zerolog.Nop())
	}
	f.store = deps.Store
	f.holder = deps.Models

	f.engine, err = recommend.NewEngine(deps, cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	return f
}

func (f *fixture) train(t *testing.T) *recommend.TrainingResult {
	t.Helper()
	res, err := f.engine.TriggerTraining(context.Background(), nil)
	if err != nil {
		t.Fatalf("TriggerTraining() error = %v", err)
	}
	return res
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []recommend.ModelPublishedEvent
}

func (p *recordingPublisher) PublishModel(_ context.Context, evt recommend.ModelPublishedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

func (p *recordingPublisher) published() []recommend.ModelPublishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.events)
}

// failingStore is an ArtifactStore whose every call fails with err.
type failingStore struct{ err error }

func (s failingStore) Save(context.Context, *recommend.FactorModel) (int, error) { return 0, s.err }
func (s failingStore) Load(context.Context, int) (*recommend.FactorModel, recommend.ArtifactInfo, error) {
	return nil, recommend.ArtifactInfo{}, s.err
}
func (s failingStore) LatestVersion(context.Context) (int, error) { return 0, s.err }
func (s failingStore) List(context.Context) ([]recommend.ArtifactInfo, error) { return nil, s.err }
func (s failingStore) DeleteOlderThan(context.Context, int) (int, error) { return 0, s.err }

// blockingTrainer waits for release before delegating.
type blockingTrainer struct {
	next    recommend.Trainer
	started chan struct{}
	release chan struct{}
}

func (b *blockingTrainer) Fit(ctx context.Context, src recommend.ObservationSource, hp recommend.Hyperparameters) (*recommend.FactorModel, error) {
	close(b.started)
	<-b.release
	return b.next.Fit(ctx, src, hp)
}

func itemIDs(items []recommend.ScoredItem) []int {
	out := make([]int, len(items))
	for i := range items {
		out[i] = items[i].Item.ID
	}
	return out
}

func TestNewEngine_Validation(t *testing.T) {
	t.Parallel()

	data := recommend.NewMemoryStore()
	mem, err := storage.OpenMemoryStore(zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = mem.Close() })

	full := recommend.Dependencies{
		Ratings: data,
		Catalog: data,
		Trainer: algorithms.NewSGDTrainer(zerolog.Nop()),
		Ranker:  algorithms.NewContentBased(2),
		Store:   mem,
		Models:  recommend.NewModelHolder(mem, zerolog.Nop()),
	}

	tests := []struct {
		name    string
		mutate  func(*recommend.Dependencies, *recommend.Config)
		wantErr bool
	}{
		{"complete", func(*recommend.Dependencies, *recommend.Config) {}, false},
		{"no rating store", func(d *recommend.Dependencies, _ *recommend.Config) { d.Ratings = nil }, true},
		{"no catalog", func(d *recommend.Dependencies, _ *recommend.Config) { d.Catalog = nil }, true},
		{"no trainer", func(d *recommend.Dependencies, _ *recommend.Config) { d.Trainer = nil }, true},
		{"no ranker", func(d *recommend.Dependencies, _ *recommend.Config) { d.Ranker = nil }, true},
		{"no store", func(d *recommend.Dependencies, _ *recommend.Config) { d.Store = nil }, true},
		{"no holder", func(d *recommend.Dependencies, _ *recommend.Config) { d.Models = nil }, true},
		{"invalid config", func(_ *recommend.Dependencies, c *recommend.Config) { c.Limits.MaxN = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			deps := full
			cfg := recommend.DefaultConfig()
			tt.mutate(&deps, cfg)
			_, err := recommend.NewEngine(deps, cfg, zerolog.Nop())
			if (err != nil) != tt.wantErr {
				t.Errorf("NewEngine() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEngine_GetRecommendations_Errors(t *testing.T) {
	t.Parallel()

	f := newFixture(t, testConfig(), nil)
	ctx := context.Background()

	tests := []struct {
		name    string
		user    int
		n       int
		wantErr error
	}{
		{"negative n", heavyUser, -1, recommend.ErrInvalidN},
		{"n above max", heavyUser, 101, recommend.ErrInvalidN},
		{"unknown user", unknownID, 5, recommend.ErrUserNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			resp, err := f.engine.GetRecommendations(ctx, tt.user, tt.n)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("GetRecommendations() error = %v, want %v", err, tt.wantErr)
			}
			if !recommend.IsClientError(err) {
				t.Errorf("IsClientError(%v) = false", err)
			}
			if resp != nil {
				t.Error("expected nil response on error")
			}
		})
	}
}

func TestEngine_GetRecommendations_DefaultN(t *testing.T) {
	t.Parallel()

	f := newFixture(t, testConfig(), nil)
	resp, err := f.engine.GetRecommendations(context.Background(), 5, 0)
	if err != nil {
		t.Fatalf("GetRecommendations() error = %v", err)
	}
	if resp.Metadata.N != 10 || len(resp.Items) != 10 {
		t.Errorf("n=0 returned N=%d with %d items, want default 10", resp.Metadata.N, len(resp.Items))
	}
}

func TestEngine_ColdStartUsesContentEvenWithModel(t *testing.T) {
	t.Parallel()

	f := newFixture(t, testConfig(), nil)
	f.train(t)

	for _, user := range []int{newUser, thresholdU} {
		resp, err := f.engine.GetRecommendations(context.Background(), user, 5)
		if err != nil {
			t.Fatalf("GetRecommendations(%d) error = %v", user, err)
		}
		if resp.Metadata.Strategy != recommend.StrategyContent {
			t.Errorf("user %d strategy = %q, want content", user, resp.Metadata.Strategy)
		}
		if resp.Metadata.Fallback != recommend.FallbackColdStart {
			t.Errorf("user %d fallback = %q, want cold_start", user, resp.Metadata.Fallback)
		}
		for _, it := range resp.Items {
			if it.Source != recommend.StrategyContent {
				t.Errorf("user %d item %d source = %q, want content", user, it.Item.ID, it.Source)
			}
		}
	}
}

func TestEngine_ContentPathMatchesRanker(t *testing.T) {
	t.Parallel()

	f := newFixture(t, testConfig(), nil)
	ctx := context.Background()

	resp, err := f.engine.GetRecommendations(ctx, newUser, 20)
	if err != nil {
		t.Fatalf("GetRecommendations() error = %v", err)
	}

	catalog, _ := f.data.ListItems(ctx)
	want := algorithms.NewContentBased(2).Rank([]string{"Drama"}, catalog, 20)
	if !slices.Equal(itemIDs(resp.Items), itemIDs(want)) {
		t.Errorf("items = %v, want %v", itemIDs(resp.Items), itemIDs(want))
	}
	for _, it := range resp.Items {
		if !slices.Contains(it.Item.Genres, "Drama") {
			t.Errorf("item %d genres %v lack preferred Drama", it.Item.ID, it.Item.Genres)
		}
	}
	if resp.Metadata.Candidates != 12 || resp.Metadata.RatingCount != 0 {
		t.Errorf("metadata = %+v", resp.Metadata)
	}
}

func TestEngine_Collaborative(t *testing.T) {
	t.Parallel()

	f := newFixture(t, testConfig(), nil)
	res := f.train(t)

	resp, err := f.engine.GetRecommendations(context.Background(), heavyUser, 4)
	if err != nil {
		t.Fatalf("GetRecommendations() error = %v", err)
	}

	meta := resp.Metadata
	if meta.Strategy != recommend.StrategyCollaborative || meta.Fallback != recommend.FallbackNone {
		t.Fatalf("strategy = %q fallback = %q, want collaborative without fallback", meta.Strategy, meta.Fallback)
	}
	if meta.ModelVersion != res.Version {
		t.Errorf("ModelVersion = %d, want %d", meta.ModelVersion, res.Version)
	}
	if meta.RatingCount != 6 || meta.Candidates != 6 {
		t.Errorf("RatingCount = %d Candidates = %d, want 6 and 6", meta.RatingCount, meta.Candidates)
	}
	if meta.RequestID == "" || meta.UserID != heavyUser {
		t.Errorf("metadata = %+v", meta)
	}
	if len(resp.Items) != 4 {
		t.Fatalf("returned %d items, want 4", len(resp.Items))
	}

	rated := map[int]bool{1: true, 2: true, 3: true, 4: true, 5: true, 6: true}
	for i, it := range resp.Items {
		if rated[it.Item.ID] {
			t.Errorf("already rated item %d recommended", it.Item.ID)
		}
		if it.Source != recommend.StrategyCollaborative {
			t.Errorf("item %d source = %q", it.Item.ID, it.Source)
		}
		if i > 0 {
			prev := resp.Items[i-1]
			if prev.Score < it.Score || (prev.Score == it.Score && prev.Item.ID > it.Item.ID) {
				t.Errorf("items out of order at %d: %+v before %+v", i, prev, it)
			}
		}
	}
}

func TestEngine_Fallbacks(t *testing.T) {
	t.Parallel()

	t.Run("no model saved", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, testConfig(), nil)
		resp, err := f.engine.GetRecommendations(context.Background(), heavyUser, 3)
		if err != nil {
			t.Fatalf("GetRecommendations() error = %v", err)
		}
		if resp.Metadata.Strategy != recommend.StrategyContent || resp.Metadata.Fallback != recommend.FallbackNoModel {
			t.Errorf("strategy = %q fallback = %q, want content/no_model", resp.Metadata.Strategy, resp.Metadata.Fallback)
		}
		if len(resp.Items) == 0 {
			t.Error("fallback returned no items")
		}
	})

	t.Run("store unavailable", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, testConfig(), func(d *recommend.Dependencies) {
			d.Store = failingStore{err: recommend.ErrStoreUnavailable}
		})
		resp, err := f.engine.GetRecommendations(context.Background(), heavyUser, 3)
		if err != nil {
			t.Fatalf("GetRecommendations() error = %v", err)
		}
		if resp.Metadata.Fallback != recommend.FallbackModelUnhealthy {
			t.Errorf("fallback = %q, want model_unavailable", resp.Metadata.Fallback)
		}
	})

	t.Run("user rated after training", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, testConfig(), nil)
		res := f.train(t)

		const lateUser = 50
		f.data.AddUser(lateUser, "Comedy")
		for item := 1; item <= 6; item++ {
			if err := f.data.AddRating(recommend.Rating{UserID: lateUser, ItemID: item, Score: 7}); err != nil {
				t.Fatal(err)
			}
		}

		resp, err := f.engine.GetRecommendations(context.Background(), lateUser, 3)
		if err != nil {
			t.Fatalf("GetRecommendations() error = %v", err)
		}
		if resp.Metadata.Strategy != recommend.StrategyContent || resp.Metadata.Fallback != recommend.FallbackUnknownUser {
			t.Errorf("strategy = %q fallback = %q, want content/user_not_in_model", resp.Metadata.Strategy, resp.Metadata.Fallback)
		}
		if resp.Metadata.ModelVersion != res.Version {
			t.Errorf("ModelVersion = %d, want %d", resp.Metadata.ModelVersion, res.Version)
		}
	})
}

func TestEngine_EmptyResultIsValid(t *testing.T) {
	t.Parallel()

	f := newFixture(t, testConfig(), nil)
	f.data.AddUser(60, "Western", "Musical")

	resp, err := f.engine.GetRecommendations(context.Background(), 60, 5)
	if err != nil {
		t.Fatalf("GetRecommendations() error = %v", err)
	}
	if resp.Items == nil || len(resp.Items) != 0 {
		t.Errorf("Items = %v, want empty non-nil slice", resp.Items)
	}
}

func TestEngine_ResponseCache(t *testing.T) {
	t.Parallel()

	f := newFixture(t, testConfig(), nil)
	ctx := context.Background()
	f.train(t)

	first, err := f.engine.GetRecommendations(ctx, heavyUser, 3)
	if err != nil {
		t.Fatalf("GetRecommendations() error = %v", err)
	}
	if first.Metadata.CacheHit {
		t.Error("first request must miss the cache")
	}

	second, err := f.engine.GetRecommendations(ctx, heavyUser, 3)
	if err != nil {
		t.Fatalf("GetRecommendations() error = %v", err)
	}
	if !second.Metadata.CacheHit {
		t.Error("second request must hit the cache")
	}
	if second.Metadata.RequestID == first.Metadata.RequestID {
		t.Error("cached responses must carry a fresh request id")
	}
	if !slices.Equal(itemIDs(first.Items), itemIDs(second.Items)) {
		t.Errorf("cached items = %v, want %v", itemIDs(second.Items), itemIDs(first.Items))
	}

	// Mutating a response must not leak into the cache.
	second.Items[0].Score = -1
	third, _ := f.engine.GetRecommendations(ctx, heavyUser, 3)
	if third.Items[0].Score == -1 {
		t.Error("cached response shared with caller")
	}

	// A new model invalidates cached responses.
	f.train(t)
	after, err := f.engine.GetRecommendations(ctx, heavyUser, 3)
	if err != nil {
		t.Fatalf("GetRecommendations() error = %v", err)
	}
	if after.Metadata.CacheHit {
		t.Error("request after retraining must miss the cache")
	}
	if after.Metadata.ModelVersion != 2 {
		t.Errorf("ModelVersion = %d, want 2", after.Metadata.ModelVersion)
	}
}

func TestEngine_ResponseCacheFollowsRatings(t *testing.T) {
	t.Parallel()

	t.Run("newly rated item is excluded", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, testConfig(), nil)
		ctx := context.Background()
		f.train(t)

		before, err := f.engine.GetRecommendations(ctx, heavyUser, 3)
		if err != nil {
			t.Fatalf("GetRecommendations() error = %v", err)
		}
		if before.Metadata.Strategy != recommend.StrategyCollaborative || len(before.Items) == 0 {
			t.Fatalf("setup: strategy = %s, items = %d", before.Metadata.Strategy, len(before.Items))
		}
		top := before.Items[0].Item.ID

		if err := f.data.AddRating(recommend.Rating{UserID: heavyUser, ItemID: top, Score: 5}); err != nil {
			t.Fatalf("AddRating() error = %v", err)
		}

		after, err := f.engine.GetRecommendations(ctx, heavyUser, 3)
		if err != nil {
			t.Fatalf("GetRecommendations() error = %v", err)
		}
		if after.Metadata.CacheHit {
			t.Error("response after a new rating must not come from the cache")
		}
		if slices.Contains(itemIDs(after.Items), top) {
			t.Errorf("item %d was rated but is still recommended: %v", top, itemIDs(after.Items))
		}
		if after.Metadata.RatingCount != 7 {
			t.Errorf("RatingCount = %d, want 7", after.Metadata.RatingCount)
		}
	})

	t.Run("crossing the threshold switches strategy", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, testConfig(), nil)
		ctx := context.Background()
		f.train(t)

		cold, err := f.engine.GetRecommendations(ctx, thresholdU, 3)
		if err != nil {
			t.Fatalf("GetRecommendations() error = %v", err)
		}
		if cold.Metadata.Strategy != recommend.StrategyContent {
			t.Fatalf("setup: strategy = %s, want content", cold.Metadata.Strategy)
		}
		// Served from the cache while nothing changed.
		again, _ := f.engine.GetRecommendations(ctx, thresholdU, 3)
		if !again.Metadata.CacheHit {
			t.Error("unchanged user must hit the cache")
		}

		if err := f.data.AddRating(recommend.Rating{UserID: thresholdU, ItemID: 2, Score: 8}); err != nil {
			t.Fatalf("AddRating() error = %v", err)
		}

		warm, err := f.engine.GetRecommendations(ctx, thresholdU, 3)
		if err != nil {
			t.Fatalf("GetRecommendations() error = %v", err)
		}
		if warm.Metadata.CacheHit {
			t.Error("response after the sixth rating must not come from the cache")
		}
		if warm.Metadata.RatingCount != 6 {
			t.Errorf("RatingCount = %d, want 6", warm.Metadata.RatingCount)
		}
		if warm.Metadata.Strategy != recommend.StrategyCollaborative {
			t.Errorf("Strategy = %s (fallback %q), want collaborative",
				warm.Metadata.Strategy, warm.Metadata.Fallback)
		}
		for _, id := range []int{1, 2, 3, 5, 7, 9} {
			if slices.Contains(itemIDs(warm.Items), id) {
				t.Errorf("rated item %d recommended", id)
			}
		}
	})
}

func TestEngine_CacheDisabled(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Cache.Enabled = false
	f := newFixture(t, cfg, nil)

	for i := 0; i < 2; i++ {
		resp, err := f.engine.GetRecommendations(context.Background(), newUser, 3)
		if err != nil {
			t.Fatalf("GetRecommendations() error = %v", err)
		}
		if resp.Metadata.CacheHit {
			t.Errorf("request %d hit a disabled cache", i)
		}
	}
}

func TestEngine_ConfigurableThreshold(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.ColdStart.Threshold = 4
	f := newFixture(t, cfg, nil)
	f.train(t)

	resp, err := f.engine.GetRecommendations(context.Background(), thresholdU, 3)
	if err != nil {
		t.Fatalf("GetRecommendations() error = %v", err)
	}
	if resp.Metadata.Strategy != recommend.StrategyCollaborative {
		t.Errorf("user with 5 ratings and threshold 4: strategy = %q, want collaborative", resp.Metadata.Strategy)
	}
}

func TestEngine_PredictSingle(t *testing.T) {
	t.Parallel()

	f := newFixture(t, testConfig(), nil)
	ctx := context.Background()

	// Without a model the item's aggregate rating is served.
	pred, err := f.engine.PredictSingle(ctx, heavyUser, 7)
	if err != nil {
		t.Fatalf("PredictSingle() error = %v", err)
	}
	item, _ := f.data.GetItem(ctx, 7)
	if pred.Source != recommend.PredictionItemAverage || pred.Score != item.AverageRating || pred.ModelVersion != 0 {
		t.Errorf("prediction without model = %+v, want item average %v", pred, item.AverageRating)
	}

	res := f.train(t)
	pred, err = f.engine.PredictSingle(ctx, heavyUser, 7)
	if err != nil {
		t.Fatalf("PredictSingle() error = %v", err)
	}
	if pred.Source != recommend.PredictionModel || pred.ModelVersion != res.Version {
		t.Errorf("prediction with model = %+v", pred)
	}
	if pred.Score < 0 || pred.Score > 10 {
		t.Errorf("Score = %v outside [0, 10]", pred.Score)
	}

	// An item added after training falls back to its aggregate rating.
	f.data.AddItem(recommend.Item{ID: 99, Title: "New", AverageRating: 6.5})
	pred, err = f.engine.PredictSingle(ctx, heavyUser, 99)
	if err != nil {
		t.Fatalf("PredictSingle() error = %v", err)
	}
	if pred.Source != recommend.PredictionItemAverage || pred.Score != 6.5 {
		t.Errorf("prediction for unknown item = %+v, want item average 6.5", pred)
	}

	history := f.data.Predictions()
	if len(history) != 3 {
		t.Fatalf("recorded %d predictions, want 3", len(history))
	}
	if history[1].UserID != heavyUser || history[1].ItemID != 7 || history[1].Source != recommend.PredictionModel {
		t.Errorf("history[1] = %+v", history[1])
	}
}

func TestEngine_PredictSingle_Errors(t *testing.T) {
	t.Parallel()

	f := newFixture(t, testConfig(), nil)
	ctx := context.Background()

	if _, err := f.engine.PredictSingle(ctx, unknownID, 1); !errors.Is(err, recommend.ErrUserNotFound) {
		t.Errorf("PredictSingle(unknown user) error = %v, want ErrUserNotFound", err)
	}
	if _, err := f.engine.PredictSingle(ctx, heavyUser, unknownID); !errors.Is(err, recommend.ErrItemNotFound) {
		t.Errorf("PredictSingle(unknown item) error = %v, want ErrItemNotFound", err)
	}
	if n := len(f.data.Predictions()); n != 0 {
		t.Errorf("failed predictions recorded %d history rows", n)
	}
}

type failingHistory struct{}

func (failingHistory) RecordPrediction(context.Context, recommend.Prediction) error {
	return errors.New("history table locked")
}

func TestEngine_PredictSingle_HistoryFailureNotSurfaced(t *testing.T) {
	t.Parallel()

	f := newFixture(t, testConfig(), func(d *recommend.Dependencies) {
		d.History = failingHistory{}
	})
	if _, err := f.engine.PredictSingle(context.Background(), heavyUser, 7); err != nil {
		t.Errorf("PredictSingle() error = %v, history failures must not be surfaced", err)
	}
}

func TestEngine_TriggerTraining(t *testing.T) {
	t.Parallel()

	f := newFixture(t, testConfig(), nil)
	ctx := context.Background()

	res := f.train(t)
	if res.Version != 1 || res.RunID == "" {
		t.Errorf("result = %+v, want version 1 with run id", res)
	}
	ratings, _ := f.data.ListRatings(ctx)
	if res.Observations != len(ratings) || res.Users != 6 || res.Items != 12 {
		t.Errorf("result covers %d obs, %d users, %d items; want %d, 6, 12",
			res.Observations, res.Users, res.Items, len(ratings))
	}

	if v, err := f.store.LatestVersion(ctx); err != nil || v != 1 {
		t.Errorf("store LatestVersion() = %d, %v, want 1", v, err)
	}
	if f.holder.Version() != 1 {
		t.Errorf("holder Version() = %d, want 1", f.holder.Version())
	}

	events := f.events.published()
	if len(events) != 1 || events[0].Version != 1 || events[0].RunID != res.RunID {
		t.Errorf("published events = %+v", events)
	}

	status := f.engine.Status()
	if status.InProgress || status.LoadedVersion != 1 || status.LastResult == nil || status.LastError != "" {
		t.Errorf("Status() = %+v", status)
	}
	if status.LastResult.RunID != res.RunID {
		t.Errorf("Status().LastResult.RunID = %q, want %q", status.LastResult.RunID, res.RunID)
	}
}

func TestEngine_TriggerTraining_Overrides(t *testing.T) {
	t.Parallel()

	f := newFixture(t, testConfig(), nil)

	hp := recommend.DefaultHyperparameters()
	hp.Factors = 3
	hp.Epochs = 5
	if _, err := f.engine.TriggerTraining(context.Background(), &hp); err != nil {
		t.Fatalf("TriggerTraining() error = %v", err)
	}
	model, _, err := f.holder.Current(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if model.Factors() != 3 || model.Metadata().Hyperparameters.Epochs != 5 {
		t.Errorf("model trained with k=%d epochs=%d, want 3 and 5",
			model.Factors(), model.Metadata().Hyperparameters.Epochs)
	}

	hp.Factors = 0
	if _, err := f.engine.TriggerTraining(context.Background(), &hp); !errors.Is(err, recommend.ErrInvalidHyperparameters) {
		t.Errorf("TriggerTraining() with invalid hyperparameters error = %v, want ErrInvalidHyperparameters", err)
	}
}

func TestEngine_TriggerTraining_EmptyDataset(t *testing.T) {
	t.Parallel()

	data := recommend.NewMemoryStore()
	data.AddUser(1)
	mem, err := storage.OpenMemoryStore(zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = mem.Close() })

	engine, err := recommend.NewEngine(recommend.Dependencies{
		Ratings: data,
		Catalog: data,
		Trainer: algorithms.NewSGDTrainer(zerolog.Nop()),
		Ranker:  algorithms.NewContentBased(2),
		Store:   mem,
		Models:  recommend.NewModelHolder(mem, zerolog.Nop()),
	}, testConfig(), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}

	if _, err := engine.TriggerTraining(context.Background(), nil); !errors.Is(err, recommend.ErrEmptyDataset) {
		t.Fatalf("TriggerTraining() error = %v, want ErrEmptyDataset", err)
	}
	if _, err := mem.LatestVersion(context.Background()); !errors.Is(err, recommend.ErrNotFound) {
		t.Errorf("failed run must not publish: LatestVersion() error = %v", err)
	}
	status := engine.Status()
	if status.LastError == "" || status.LastResult != nil || status.LoadedVersion != 0 {
		t.Errorf("Status() = %+v", status)
	}
}

func TestEngine_TriggerTraining_InvalidScoreKeepsLatest(t *testing.T) {
	t.Parallel()

	f := newFixture(t, testConfig(), nil)
	f.train(t)

	// Ratings bypassing validation reach the trainer through the snapshot.
	if err := f.data.AddRating(recommend.Rating{UserID: 5, ItemID: 1, Score: 11}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.engine.TriggerTraining(context.Background(), nil); !errors.Is(err, recommend.ErrInvalidScore) {
		t.Fatalf("TriggerTraining() error = %v, want ErrInvalidScore", err)
	}
	if v, _ := f.store.LatestVersion(context.Background()); v != 1 {
		t.Errorf("LatestVersion() = %d after failed run, want 1", v)
	}
}

func TestEngine_TriggerTraining_InProgress(t *testing.T) {
	t.Parallel()

	blocker := &blockingTrainer{
		next:    algorithms.NewSGDTrainer(zerolog.Nop()),
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	f := newFixture(t, testConfig(), func(d *recommend.Dependencies) { d.Trainer = blocker })

	done := make(chan error, 1)
	go func() {
		_, err := f.engine.TriggerTraining(context.Background(), nil)
		done <- err
	}()

	<-blocker.started
	if !f.engine.Status().InProgress {
		t.Error("Status().InProgress = false during a run")
	}
	if _, err := f.engine.TriggerTraining(context.Background(), nil); !errors.Is(err, recommend.ErrTrainingInProgress) {
		t.Errorf("concurrent TriggerTraining() error = %v, want ErrTrainingInProgress", err)
	}

	close(blocker.release)
	if err := <-done; err != nil {
		t.Fatalf("first TriggerTraining() error = %v", err)
	}
	if f.engine.Status().InProgress {
		t.Error("Status().InProgress = true after the run")
	}
}

func TestEngine_TriggerTraining_Throttled(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Training.TriggerInterval = time.Hour
	cfg.Training.TriggerBurst = 1
	f := newFixture(t, cfg, nil)

	f.train(t)
	if _, err := f.engine.TriggerTraining(context.Background(), nil); !errors.Is(err, recommend.ErrTrainingThrottled) {
		t.Errorf("second TriggerTraining() error = %v, want ErrTrainingThrottled", err)
	}
}

func TestEngine_TriggerTraining_Cancelled(t *testing.T) {
	t.Parallel()

	f := newFixture(t, testConfig(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := f.engine.TriggerTraining(ctx, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("TriggerTraining() error = %v, want context.Canceled", err)
	}
	if f.holder.Version() != 0 {
		t.Errorf("cancelled run installed version %d", f.holder.Version())
	}
}

func TestEngine_TriggerTraining_Prunes(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Training.RetainVersions = 2
	f := newFixture(t, cfg, nil)

	var last *recommend.TrainingResult
	for i := 0; i < 4; i++ {
		last = f.train(t)
	}
	if last.Version != 4 || last.Pruned != 1 {
		t.Errorf("last run = version %d pruned %d, want 4 and 1", last.Version, last.Pruned)
	}

	infos, err := f.store.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	var versions []int
	for _, info := range infos {
		versions = append(versions, info.Version)
	}
	if !slices.Equal(versions, []int{3, 4}) {
		t.Errorf("stored versions = %v, want [3 4]", versions)
	}
}

func TestEngine_ConcurrentRecommendAndTrain(t *testing.T) {
	t.Parallel()

	f := newFixture(t, testConfig(), nil)
	f.train(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(user int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				if _, err := f.engine.GetRecommendations(ctx, user, 5); err != nil {
					t.Errorf("GetRecommendations(%d) error = %v", user, err)
					return
				}
			}
		}(i%7 + 1)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := f.engine.TriggerTraining(ctx, nil); err != nil && !errors.Is(err, recommend.ErrTrainingInProgress) {
			t.Errorf("TriggerTraining() error = %v", err)
		}
	}()
	wg.Wait()
}
