// FlixFinder - Movie Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/flixfinder

package recommend

import (
	"context"
	"time"
)

// Rating is a single explicit (user, movie, score) observation.
type Rating struct {
	// UserID identifies the rating user.
	UserID int `json:"user_id"`

	// ItemID identifies the rated movie.
	ItemID int `json:"item_id"`

	// Score is the rating value, stored with one decimal place.
	Score float64 `json:"score"`
}

// Item is a catalog movie as seen by the recommender.
type Item struct {
	// ID is the movie identifier.
	ID int `json:"id"`

	// Title is the movie title.
	Title string `json:"title"`

	// Genres is the set of genre names attached to the movie.
	Genres []string `json:"genres"`

	// AverageRating is the aggregate user score.
	AverageRating float64 `json:"average_rating"`

	// RatingCount is the number of ratings behind AverageRating.
	RatingCount int `json:"rating_count"`
}

// Strategy identifies which path produced a recommendation list.
type Strategy string

const (
	// StrategyCollaborative ranks by latent-factor predictions.
	StrategyCollaborative Strategy = "collaborative"

	// StrategyContent ranks by genre overlap and aggregate rating.
	StrategyContent Strategy = "content"
)

// FallbackReason explains why a request was served by the content path.
type FallbackReason string

const (
	FallbackNone           FallbackReason = ""
	FallbackColdStart      FallbackReason = "cold_start"
	FallbackNoModel        FallbackReason = "no_model"
	FallbackUnknownUser    FallbackReason = "user_not_in_model"
	FallbackModelUnhealthy FallbackReason = "model_unavailable"
)

// ScoredItem is one ranked recommendation.
type ScoredItem struct {
	Item Item `json:"item"`

	// Score is the predicted rating (collaborative) or the aggregate
	// rating (content).
	Score float64 `json:"score"`

	// Source names the strategy that produced Score.
	Source Strategy `json:"source"`
}

// Response is the result of GetRecommendations.
type Response struct {
	// Items is ordered by descending Score, ties by ascending item id.
	Items []ScoredItem `json:"items"`

	// Metadata describes how the response was produced.
	Metadata ResponseMetadata `json:"metadata"`
}

// ResponseMetadata contains request tracing information.
type ResponseMetadata struct {
	RequestID    string         `json:"request_id"`
	UserID       int            `json:"user_id"`
	N            int            `json:"n"`
	RatingCount  int            `json:"rating_count"`
	Strategy     Strategy       `json:"strategy"`
	Fallback     FallbackReason `json:"fallback,omitempty"`
	ModelVersion int            `json:"model_version,omitempty"`
	Candidates   int            `json:"candidates"`
	CacheHit     bool           `json:"cache_hit"`
	LatencyMS    int64          `json:"latency_ms"`
	Timestamp    time.Time      `json:"timestamp"`
}

// PredictionSource identifies where a single prediction came from.
type PredictionSource string

const (
	// PredictionModel is a latent-factor prediction.
	PredictionModel PredictionSource = "model"

	// PredictionItemAverage is the item's aggregate rating, used when the
	// model cannot score the pair.
	PredictionItemAverage PredictionSource = "item_average"
)

// Prediction is the result of PredictSingle.
type Prediction struct {
	UserID       int              `json:"user_id"`
	ItemID       int              `json:"item_id"`
	Score        float64          `json:"score"`
	Source       PredictionSource `json:"source"`
	ModelVersion int              `json:"model_version,omitempty"`
}

// TrainingResult describes a completed training run.
type TrainingResult struct {
	RunID        string        `json:"run_id"`
	Version      int           `json:"version"`
	Observations int           `json:"observations"`
	Users        int           `json:"users"`
	Items        int           `json:"items"`
	TrainingRMSE float64       `json:"training_rmse"`
	Duration     time.Duration `json:"duration"`
	Pruned       int           `json:"pruned"`
	FinishedAt   time.Time     `json:"finished_at"`
}

// TrainingStatus reports the engine's training state.
type TrainingStatus struct {
	InProgress    bool            `json:"in_progress"`
	LoadedVersion int             `json:"loaded_version"`
	LastResult    *TrainingResult `json:"last_result,omitempty"`
	LastError     string          `json:"last_error,omitempty"`
	LastAttemptAt time.Time       `json:"last_attempt_at,omitempty"`
}

// ObservationSource streams rating observations to a trainer.
//
// Each may be called several times during one training run (once per epoch)
// and must yield the same observations in the same order every time.
// Returning an error from fn stops the iteration with that error.
type ObservationSource interface {
	Each(ctx context.Context, fn func(Rating) error) error
}

// SliceSource is an in-memory ObservationSource over a fixed snapshot.
type SliceSource []Rating

// Each implements ObservationSource. It does not observe ctx; callers
// cancel between passes.
func (s SliceSource) Each(_ context.Context, fn func(Rating) error) error {
	for i := range s {
		if err := fn(s[i]); err != nil {
			return err
		}
	}
	return nil
}

// RatingStore provides read-only access to user ratings.
type RatingStore interface {
	// ListRatings returns every rating observation.
	ListRatings(ctx context.Context) ([]Rating, error)

	// CountRatings returns the number of ratings made by userID.
	CountRatings(ctx context.Context, userID int) (int, error)

	// RatedItemIDs returns the ids of the movies userID has rated.
	RatedItemIDs(ctx context.Context, userID int) ([]int, error)
}

// CatalogStore provides movie metadata and user genre preferences.
type CatalogStore interface {
	// ListItems returns every catalog movie.
	ListItems(ctx context.Context) ([]Item, error)

	// GetItem returns a single movie or ErrItemNotFound.
	GetItem(ctx context.Context, itemID int) (Item, error)

	// UserExists reports whether userID is a known user.
	UserExists(ctx context.Context, userID int) (bool, error)

	// GetUserGenrePreferences returns the user's preferred genre names.
	GetUserGenrePreferences(ctx context.Context, userID int) ([]string, error)
}

// HistoryRecorder stores served single predictions. Optional.
type HistoryRecorder interface {
	RecordPrediction(ctx context.Context, p Prediction) error
}

// Trainer fits a FactorModel from streamed observations.
type Trainer interface {
	Fit(ctx context.Context, source ObservationSource, hp Hyperparameters) (*FactorModel, error)
}

// ContentRanker ranks catalog items by genre preferences alone.
type ContentRanker interface {
	Rank(preferredGenres []string, catalog []Item, n int) []ScoredItem
}

// ArtifactInfo describes a stored model artifact.
type ArtifactInfo struct {
	Version      int       `json:"version"`
	RunID        string    `json:"run_id"`
	TrainedAt    time.Time `json:"trained_at"`
	SavedAt      time.Time `json:"saved_at"`
	Checksum     string    `json:"checksum"`
	SizeBytes    int64     `json:"size_bytes"`
	Factors      int       `json:"factors"`
	Users        int       `json:"users"`
	Items        int       `json:"items"`
	Observations int       `json:"observations"`
}

// NewArtifactInfo describes model saved as version. Stores fill in the
// checksum, size and save time.
func NewArtifactInfo(model *FactorModel, version int) ArtifactInfo {
	meta := model.Metadata()
	return ArtifactInfo{
		Version:      version,
		RunID:        meta.RunID,
		TrainedAt:    meta.TrainedAt,
		Factors:      model.Factors(),
		Users:        model.NumUsers(),
		Items:        model.NumItems(),
		Observations: meta.Observations,
	}
}

// ArtifactStore persists versioned model artifacts.
//
// Save never overwrites a previous version and returns a monotonically
// increasing version. The latest pointer is only moved once the artifact is
// fully written, so Load never observes a partial artifact.
type ArtifactStore interface {
	// Save stores model as a new version.
	Save(ctx context.Context, model *FactorModel) (int, error)

	// Load returns the given version, or the latest when version is 0.
	// It returns ErrNotFound when nothing matches.
	Load(ctx context.Context, version int) (*FactorModel, ArtifactInfo, error)

	// LatestVersion returns the latest published version or ErrNotFound.
	LatestVersion(ctx context.Context) (int, error)

	// List returns every stored artifact, oldest first.
	List(ctx context.Context) ([]ArtifactInfo, error)

	// DeleteOlderThan keeps the newest retain versions and deletes the rest.
	DeleteOlderThan(ctx context.Context, retain int) (int, error)
}

// ModelPublishedEvent announces a newly saved model version.
type ModelPublishedEvent struct {
	Version     int       `json:"version"`
	RunID       string    `json:"run_id"`
	PublishedAt time.Time `json:"published_at"`
}

// EventPublisher broadcasts model lifecycle events. Optional.
type EventPublisher interface {
	PublishModel(ctx context.Context, event ModelPublishedEvent) error
}
