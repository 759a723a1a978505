// FlixFinder - Movie Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/flixfinder

package database

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/samber/lo"

	"github.com/tomtom215/flixfinder/internal/recommend"
)

// SeedOptions controls SeedMockData.
type SeedOptions struct {
	// Users is the number of users that receive random ratings.
	// Default: 100.
	Users int

	// MaxRatingsPerUser bounds how many movies each user rates.
	// Default: 10.
	MaxRatingsPerUser int

	// Seed makes the generated data reproducible. Zero uses the clock.
	Seed int64
}

// SeedResult reports what SeedMockData created.
type SeedResult struct {
	Movies  int
	Users   int
	Ratings int
}

// mockMovies is the catalog used when the database has no movies.
var mockMovies = []recommend.Item{
	{ID: 1, Title: "The Matrix", Genres: []string{"Action", "Sci-Fi"}},
	{ID: 2, Title: "Inception", Genres: []string{"Action", "Sci-Fi", "Thriller"}},
	{ID: 3, Title: "Interstellar", Genres: []string{"Drama", "Sci-Fi"}},
	{ID: 4, Title: "The Dark Knight", Genres: []string{"Action", "Crime", "Drama"}},
	{ID: 5, Title: "Pulp Fiction", Genres: []string{"Crime", "Thriller"}},
	{ID: 6, Title: "Fight Club", Genres: []string{"Drama", "Thriller"}},
	{ID: 7, Title: "Forrest Gump", Genres: []string{"Comedy", "Drama", "Romance"}},
	{ID: 8, Title: "The Shawshank Redemption", Genres: []string{"Crime", "Drama"}},
	{ID: 9, Title: "Toy Story", Genres: []string{"Animation", "Comedy", "Family"}},
	{ID: 10, Title: "Spirited Away", Genres: []string{"Animation", "Family", "Fantasy"}},
	{ID: 11, Title: "Titanic", Genres: []string{"Drama", "Romance"}},
	{ID: 12, Title: "The Avengers", Genres: []string{"Action", "Adventure", "Sci-Fi"}},
	{ID: 13, Title: "Star Wars", Genres: []string{"Adventure", "Fantasy", "Sci-Fi"}},
	{ID: 14, Title: "Blade Runner 2049", Genres: []string{"Drama", "Sci-Fi", "Thriller"}},
	{ID: 15, Title: "Mad Max: Fury Road", Genres: []string{"Action", "Adventure"}},
	{ID: 16, Title: "Dunkirk", Genres: []string{"Drama", "War"}},
	{ID: 17, Title: "1917", Genres: []string{"Drama", "War"}},
	{ID: 18, Title: "Groundhog Day", Genres: []string{"Comedy", "Fantasy", "Romance"}},
	{ID: 19, Title: "The Shining", Genres: []string{"Horror", "Thriller"}},
	{ID: 20, Title: "Get Out", Genres: []string{"Horror", "Thriller"}},
	{ID: 21, Title: "Superbad", Genres: []string{"Comedy"}},
	{ID: 22, Title: "Amelie", Genres: []string{"Comedy", "Romance"}},
	{ID: 23, Title: "Alien", Genres: []string{"Horror", "Sci-Fi"}},
	{ID: 24, Title: "Up", Genres: []string{"Adventure", "Animation", "Family"}},
}

// SeedMockData fills the database with random ratings for development runs.
// A sample catalog is created when no movies exist. Each user gets one to
// two preferred genres and rates between 1 and MaxRatingsPerUser random
// movies with scores from 1.0 to 10.0.
func (db *DB) SeedMockData(ctx context.Context, opts SeedOptions) (*SeedResult, error) {
	if opts.Users <= 0 {
		opts.Users = 100
	}
	if opts.MaxRatingsPerUser <= 0 {
		opts.MaxRatingsPerUser = 10
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // math/rand is fine for mock data

	db.logger.Info().Int("users", opts.Users).Msg("seeding database with mock data")
	result := &SeedResult{}

	items, err := db.ListItems(ctx)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		for _, item := range mockMovies {
			if err := db.AddMovie(ctx, item); err != nil {
				return nil, fmt.Errorf("seed movie %d: %w", item.ID, err)
			}
		}
		result.Movies = len(mockMovies)
		items = mockMovies
	}

	genres := lo.Uniq(lo.FlatMap(items, func(item recommend.Item, _ int) []string { return item.Genres }))

	for userID := 1; userID <= opts.Users; userID++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		exists, err := db.UserExists(ctx, userID)
		if err != nil {
			return nil, err
		}
		if !exists {
			var prefs []string
			for _, i := range rng.Perm(len(genres))[:min(1+rng.Intn(2), len(genres))] {
				prefs = append(prefs, genres[i])
			}
			if err := db.AddUser(ctx, userID, prefs...); err != nil {
				return nil, err
			}
			result.Users++
		}

		k := 1 + rng.Intn(min(opts.MaxRatingsPerUser, len(items)))
		for _, idx := range rng.Perm(len(items))[:k] {
			score := recommend.RoundScore(1 + rng.Float64()*9)
			if err := db.UpsertRating(ctx, recommend.Rating{UserID: userID, ItemID: items[idx].ID, Score: score}); err != nil {
				return nil, fmt.Errorf("seed rating: %w", err)
			}
			result.Ratings++
		}
	}

	db.logger.Info().
		Int("movies", result.Movies).
		Int("users", result.Users).
		Int("ratings", result.Ratings).
		Msg("mock data seeded")
	return result, nil
}
