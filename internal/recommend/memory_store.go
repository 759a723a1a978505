// FlixFinder - Movie Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/flixfinder

package recommend

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// MemoryStore is an in-memory RatingStore, CatalogStore and HistoryRecorder.
// It backs tests and development runs without a database.
type MemoryStore struct {
	mu          sync.RWMutex
	users       map[int][]string
	items       map[int]Item
	ratings     map[int]map[int]float64
	predictions []Prediction
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:   make(map[int][]string),
		items:   make(map[int]Item),
		ratings: make(map[int]map[int]float64),
	}
}

// AddUser registers a user with optional preferred genres.
func (s *MemoryStore) AddUser(userID int, genres ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[userID] = slices.Clone(genres)
}

// AddItem adds or replaces a catalog item. AverageRating and RatingCount are
// taken as given until the item receives a rating through AddRating.
func (s *MemoryStore) AddItem(item Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item.Genres = slices.Clone(item.Genres)
	s.items[item.ID] = item
}

// AddRating records a rating, registering the user if needed, and refreshes
// the item's aggregate rating.
func (s *MemoryStore) AddRating(r Rating) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[r.ItemID]; !ok {
		return fmt.Errorf("add rating for item %d: %w", r.ItemID, ErrItemNotFound)
	}
	if _, ok := s.users[r.UserID]; !ok {
		s.users[r.UserID] = nil
	}
	if s.ratings[r.UserID] == nil {
		s.ratings[r.UserID] = make(map[int]float64)
	}
	s.ratings[r.UserID][r.ItemID] = r.Score
	s.refreshAverage(r.ItemID)
	return nil
}

// refreshAverage must be called with the write lock held.
func (s *MemoryStore) refreshAverage(itemID int) {
	var sum float64
	var count int
	for _, byItem := range s.ratings {
		if score, ok := byItem[itemID]; ok {
			sum += score
			count++
		}
	}
	item := s.items[itemID]
	item.RatingCount = count
	if count > 0 {
		item.AverageRating = RoundScore(sum / float64(count))
	}
	s.items[itemID] = item
}

// ListRatings implements RatingStore. Ratings are ordered by user then item.
func (s *MemoryStore) ListRatings(ctx context.Context) ([]Rating, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]int, 0, len(s.ratings))
	for u := range s.ratings {
		users = append(users, u)
	}
	slices.Sort(users)

	var out []Rating
	for _, u := range users {
		items := make([]int, 0, len(s.ratings[u]))
		for i := range s.ratings[u] {
			items = append(items, i)
		}
		slices.Sort(items)
		for _, i := range items {
			out = append(out, Rating{UserID: u, ItemID: i, Score: s.ratings[u][i]})
		}
	}
	return out, nil
}

// CountRatings implements RatingStore.
func (s *MemoryStore) CountRatings(_ context.Context, userID int) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ratings[userID]), nil
}

// RatedItemIDs implements RatingStore.
func (s *MemoryStore) RatedItemIDs(_ context.Context, userID int) ([]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]int, 0, len(s.ratings[userID]))
	for id := range s.ratings[userID] {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

// ListItems implements CatalogStore. Items are ordered by id.
func (s *MemoryStore) ListItems(ctx context.Context) ([]Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Item, 0, len(s.items))
	for _, item := range s.items {
		item.Genres = slices.Clone(item.Genres)
		out = append(out, item)
	}
	slices.SortFunc(out, func(a, b Item) int { return a.ID - b.ID })
	return out, nil
}

// GetItem implements CatalogStore.
func (s *MemoryStore) GetItem(_ context.Context, itemID int) (Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[itemID]
	if !ok {
		return Item{}, fmt.Errorf("item %d: %w", itemID, ErrItemNotFound)
	}
	item.Genres = slices.Clone(item.Genres)
	return item, nil
}

// UserExists implements CatalogStore.
func (s *MemoryStore) UserExists(_ context.Context, userID int) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.users[userID]
	return ok, nil
}

// GetUserGenrePreferences implements CatalogStore.
func (s *MemoryStore) GetUserGenrePreferences(_ context.Context, userID int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	genres, ok := s.users[userID]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", userID, ErrUserNotFound)
	}
	return slices.Clone(genres), nil
}

// RecordPrediction implements HistoryRecorder.
func (s *MemoryStore) RecordPrediction(_ context.Context, p Prediction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.predictions = append(s.predictions, p)
	return nil
}

// Predictions returns the recorded prediction history.
func (s *MemoryStore) Predictions() []Prediction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.predictions)
}
