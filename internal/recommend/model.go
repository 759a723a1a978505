// FlixFinder - Movie Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/flixfinder

package recommend

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
)

// ModelMetadata describes how a FactorModel was produced.
type ModelMetadata struct {
	RunID           string          `json:"run_id"`
	TrainedAt       time.Time       `json:"trained_at"`
	Duration        time.Duration   `json:"duration"`
	Hyperparameters Hyperparameters `json:"hyperparameters"`
	Observations    int             `json:"observations"`
	TrainingRMSE    float64         `json:"training_rmse"`
}

// FactorState is the complete learned state of a FactorModel.
//
// Row i of UserFactors and UserBias belongs to UserIDs[i]; items likewise.
// It is the gob payload of a persisted model.
type FactorState struct {
	GlobalBias  float64
	Factors     int
	MinScore    float64
	MaxScore    float64
	UserIDs     []int
	UserBias    []float64
	UserFactors [][]float64
	ItemIDs     []int
	ItemBias    []float64
	ItemFactors [][]float64
	Metadata    ModelMetadata
}

// FactorModel is a trained biased matrix factorization model.
//
// A FactorModel is immutable once constructed and safe for concurrent use
// without locking.
type FactorModel struct {
	state     FactorState
	userIndex map[int]int
	itemIndex map[int]int
}

// NewFactorModel builds a model from learned state. The model takes
// ownership of the slices in state.
func NewFactorModel(state FactorState) (*FactorModel, error) {
	if err := checkState(&state); err != nil {
		return nil, err
	}

	m := &FactorModel{
		state:     state,
		userIndex: make(map[int]int, len(state.UserIDs)),
		itemIndex: make(map[int]int, len(state.ItemIDs)),
	}
	for i, id := range state.UserIDs {
		if _, dup := m.userIndex[id]; dup {
			return nil, fmt.Errorf("duplicate user id %d in model state", id)
		}
		m.userIndex[id] = i
	}
	for i, id := range state.ItemIDs {
		if _, dup := m.itemIndex[id]; dup {
			return nil, fmt.Errorf("duplicate item id %d in model state", id)
		}
		m.itemIndex[id] = i
	}
	return m, nil
}

func checkState(s *FactorState) error {
	if s.Factors < 1 {
		return fmt.Errorf("factor dimensionality must be positive, got %d", s.Factors)
	}
	if s.MaxScore <= s.MinScore {
		return fmt.Errorf("score interval [%v, %v] is empty", s.MinScore, s.MaxScore)
	}
	if len(s.UserBias) != len(s.UserIDs) || len(s.UserFactors) != len(s.UserIDs) {
		return fmt.Errorf("user state has %d ids, %d biases, %d vectors",
			len(s.UserIDs), len(s.UserBias), len(s.UserFactors))
	}
	if len(s.ItemBias) != len(s.ItemIDs) || len(s.ItemFactors) != len(s.ItemIDs) {
		return fmt.Errorf("item state has %d ids, %d biases, %d vectors",
			len(s.ItemIDs), len(s.ItemBias), len(s.ItemFactors))
	}
	for i, v := range s.UserFactors {
		if len(v) != s.Factors {
			return fmt.Errorf("user vector %d has length %d, want %d", i, len(v), s.Factors)
		}
	}
	for i, v := range s.ItemFactors {
		if len(v) != s.Factors {
			return fmt.Errorf("item vector %d has length %d, want %d", i, len(v), s.Factors)
		}
	}
	return nil
}

// Predict returns the predicted score for (userID, itemID), clamped to the
// model's score interval. It returns ErrUnknownEntity when either id has no
// learned vector.
func (m *FactorModel) Predict(userID, itemID int) (float64, error) {
	u, ok := m.userIndex[userID]
	if !ok {
		return 0, fmt.Errorf("user %d: %w", userID, ErrUnknownEntity)
	}
	i, ok := m.itemIndex[itemID]
	if !ok {
		return 0, fmt.Errorf("item %d: %w", itemID, ErrUnknownEntity)
	}

	s := &m.state
	raw := s.GlobalBias + s.UserBias[u] + s.ItemBias[i] + floats.Dot(s.UserFactors[u], s.ItemFactors[i])
	return clamp(raw, s.MinScore, s.MaxScore), nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// KnowsUser reports whether userID has a learned vector.
func (m *FactorModel) KnowsUser(userID int) bool {
	_, ok := m.userIndex[userID]
	return ok
}

// KnowsItem reports whether itemID has a learned vector.
func (m *FactorModel) KnowsItem(itemID int) bool {
	_, ok := m.itemIndex[itemID]
	return ok
}

// Factors returns the latent dimensionality.
func (m *FactorModel) Factors() int { return m.state.Factors }

// GlobalBias returns the mean training score.
func (m *FactorModel) GlobalBias() float64 { return m.state.GlobalBias }

// NumUsers returns the number of users with learned vectors.
func (m *FactorModel) NumUsers() int { return len(m.state.UserIDs) }

// NumItems returns the number of items with learned vectors.
func (m *FactorModel) NumItems() int { return len(m.state.ItemIDs) }

// Metadata returns the training metadata.
func (m *FactorModel) Metadata() ModelMetadata { return m.state.Metadata }

// MarshalBinary implements encoding.BinaryMarshaler.
func (m *FactorModel) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&m.state); err != nil {
		return nil, fmt.Errorf("encode model: %w", err)
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler. The decoded state
// is validated before the receiver is replaced.
func (m *FactorModel) UnmarshalBinary(data []byte) error {
	var state FactorState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&state); err != nil {
		return fmt.Errorf("decode model: %w", err)
	}
	decoded, err := NewFactorModel(state)
	if err != nil {
		return fmt.Errorf("decode model: %w", err)
	}
	*m = *decoded
	return nil
}

// RoundScore rounds a score to the one decimal place ratings are stored with.
func RoundScore(v float64) float64 {
	return math.Round(v*10) / 10
}
