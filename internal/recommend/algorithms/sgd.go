// FlixFinder - Movie Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/flixfinder

package algorithms

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"

	"github.com/tomtom215/flixfinder/internal/recommend"
)

// EpochObserver is called after every completed epoch with the 1-based
// epoch number and the training RMSE accumulated during that epoch.
type EpochObserver func(epoch int, rmse float64)

// errSourceChanged is returned when an ObservationSource yields different
// observations on a later pass than on the indexing pass.
var errSourceChanged = errors.New("observation source changed during training")

// SGDTrainer fits a biased matrix factorization model with stochastic
// gradient descent.
//
// The model predicts
//
//	r(u,i) = mu + b_u + b_i + p_u . q_i
//
// where mu is the global mean score. For each observation the error
// e = r - r(u,i) drives the regularized updates
//
//	b_u += lr * (e - reg*b_u)
//	b_i += lr * (e - reg*b_i)
//	p_u += lr * (e*q_i - reg*p_u)
//	q_i += lr * (e*p_u - reg*q_i)
//
// where both vector updates read the pre-update values of p_u and q_i.
// Observations are visited sequentially in source order, which is fixed for
// the duration of a run, so a run is reproducible for a given seed.
type SGDTrainer struct {
	logger   zerolog.Logger
	observer EpochObserver
	now      func() time.Time
}

// NewSGDTrainer creates a trainer.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewSGDTrainer(logger zerolog.Logger) *SGDTrainer {
	return &SGDTrainer{
		logger: logger.With().Str("component", "sgd_trainer").Logger(),
		now:    time.Now,
	}
}

// WithEpochObserver sets a per-epoch callback and returns the trainer.
func (t *SGDTrainer) WithEpochObserver(fn EpochObserver) *SGDTrainer {
	t.observer = fn
	return t
}

// sgdState holds the mutable parameters of a run in progress.
type sgdState struct {
	mu          float64
	userIndex   map[int]int
	itemIndex   map[int]int
	userIDs     []int
	itemIDs     []int
	userBias    []float64
	itemBias    []float64
	userFactors [][]float64
	itemFactors [][]float64
	n           int
}

// Fit trains a model from source.
//
// It returns recommend.ErrEmptyDataset when source yields no observations and
// recommend.ErrInvalidScore when any score lies outside
// [hp.MinScore, hp.MaxScore]. Cancellation is checked between epochs; a
// cancelled run returns the context error and no model.
//
//nolint:gocritic // hugeParam: hp passed by value for immutability
func (t *SGDTrainer) Fit(ctx context.Context, source recommend.ObservationSource, hp recommend.Hyperparameters) (*recommend.FactorModel, error) {
	if err := hp.Validate(); err != nil {
		return nil, err
	}
	if ContextCancelled(ctx) {
		return nil, ctx.Err()
	}

	start := t.now()
	runID := uuid.NewString()
	logger := t.logger.With().Str("run_id", runID).Logger()

	st, err := t.index(ctx, source, &hp)
	if err != nil {
		return nil, err
	}

	logger.Info().
		Int("observations", st.n).
		Int("users", len(st.userIDs)).
		Int("items", len(st.itemIDs)).
		Float64("global_mean", st.mu).
		Msg("indexed training observations")

	st.initFactors(&hp)

	var rmse float64
	for epoch := 1; epoch <= hp.Epochs; epoch++ {
		if ContextCancelled(ctx) {
			logger.Warn().Int("epoch", epoch).Msg("training cancelled")
			return nil, ctx.Err()
		}

		rmse, err = st.epoch(ctx, source, &hp)
		if err != nil {
			return nil, fmt.Errorf("epoch %d: %w", epoch, err)
		}

		logger.Debug().Int("epoch", epoch).Float64("rmse", rmse).Msg("epoch complete")
		if t.observer != nil {
			t.observer(epoch, rmse)
		}
	}

	finished := t.now()
	model, err := recommend.NewFactorModel(recommend.FactorState{
		GlobalBias:  st.mu,
		Factors:     hp.Factors,
		MinScore:    hp.MinScore,
		MaxScore:    hp.MaxScore,
		UserIDs:     st.userIDs,
		UserBias:    st.userBias,
		UserFactors: st.userFactors,
		ItemIDs:     st.itemIDs,
		ItemBias:    st.itemBias,
		ItemFactors: st.itemFactors,
		Metadata: recommend.ModelMetadata{
			RunID:           runID,
			TrainedAt:       finished,
			Duration:        finished.Sub(start),
			Hyperparameters: hp,
			Observations:    st.n,
			TrainingRMSE:    rmse,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("build model: %w", err)
	}

	logger.Info().
		Int("epochs", hp.Epochs).
		Float64("rmse", rmse).
		Dur("duration", finished.Sub(start)).
		Msg("training complete")

	return model, nil
}

// index makes the first pass: validates scores, assigns dense indices in
// first-seen order and computes the global mean.
func (t *SGDTrainer) index(ctx context.Context, source recommend.ObservationSource, hp *recommend.Hyperparameters) (*sgdState, error) {
	st := &sgdState{
		userIndex: make(map[int]int),
		itemIndex: make(map[int]int),
	}
	var sum float64

	err := source.Each(ctx, func(r recommend.Rating) error {
		if !hp.InRange(r.Score) || math.IsNaN(r.Score) {
			return fmt.Errorf("user %d item %d score %v outside [%v, %v]: %w",
				r.UserID, r.ItemID, r.Score, hp.MinScore, hp.MaxScore, recommend.ErrInvalidScore)
		}
		if _, ok := st.userIndex[r.UserID]; !ok {
			st.userIndex[r.UserID] = len(st.userIDs)
			st.userIDs = append(st.userIDs, r.UserID)
		}
		if _, ok := st.itemIndex[r.ItemID]; !ok {
			st.itemIndex[r.ItemID] = len(st.itemIDs)
			st.itemIDs = append(st.itemIDs, r.ItemID)
		}
		sum += r.Score
		st.n++
		return nil
	})
	if err != nil {
		return nil, err
	}
	if st.n == 0 {
		return nil, recommend.ErrEmptyDataset
	}

	st.mu = sum / float64(st.n)
	return st, nil
}

// initFactors draws every latent factor from N(InitMean, InitStdDev^2) and
// zeroes the biases. Users are drawn before items, each in index order.
func (st *sgdState) initFactors(hp *recommend.Hyperparameters) {
	rng := rand.New(rand.NewSource(hp.Seed)) //nolint:gosec // math/rand is fine for factor initialization

	draw := func(rows int) [][]float64 {
		m := make([][]float64, rows)
		for r := range m {
			m[r] = make([]float64, hp.Factors)
			for f := range m[r] {
				m[r][f] = hp.InitMean + rng.NormFloat64()*hp.InitStdDev
			}
		}
		return m
	}

	st.userFactors = draw(len(st.userIDs))
	st.itemFactors = draw(len(st.itemIDs))
	st.userBias = make([]float64, len(st.userIDs))
	st.itemBias = make([]float64, len(st.itemIDs))
}

// epoch runs one SGD pass and returns the RMSE of the pre-update errors.
func (st *sgdState) epoch(ctx context.Context, source recommend.ObservationSource, hp *recommend.Hyperparameters) (float64, error) {
	lr, reg := hp.LearningRate, hp.Regularization
	var sse float64
	seen := 0

	err := source.Each(ctx, func(r recommend.Rating) error {
		u, ok := st.userIndex[r.UserID]
		if !ok {
			return fmt.Errorf("unexpected user %d: %w", r.UserID, errSourceChanged)
		}
		i, ok := st.itemIndex[r.ItemID]
		if !ok {
			return fmt.Errorf("unexpected item %d: %w", r.ItemID, errSourceChanged)
		}

		pu, qi := st.userFactors[u], st.itemFactors[i]
		e := r.Score - (st.mu + st.userBias[u] + st.itemBias[i] + floats.Dot(pu, qi))
		sse += e * e

		st.userBias[u] += lr * (e - reg*st.userBias[u])
		st.itemBias[i] += lr * (e - reg*st.itemBias[i])
		for f := range pu {
			puf, qif := pu[f], qi[f]
			pu[f] += lr * (e*qif - reg*puf)
			qi[f] += lr * (e*puf - reg*qif)
		}

		seen++
		return nil
	})
	if err != nil {
		return 0, err
	}
	if seen != st.n {
		return 0, fmt.Errorf("pass yielded %d observations, indexed %d: %w", seen, st.n, errSourceChanged)
	}

	return math.Sqrt(sse / float64(st.n)), nil
}

var _ recommend.Trainer = (*SGDTrainer)(nil)
