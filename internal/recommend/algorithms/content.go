// FlixFinder - Movie Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/flixfinder

package algorithms

import (
	"github.com/samber/lo"

	"github.com/tomtom215/flixfinder/internal/recommend"
)

// DefaultMinGenreOverlap is the overlap an item needs when a user prefers
// several genres.
const DefaultMinGenreOverlap = 2

// ContentBased ranks catalog items by genre preference and aggregate rating.
// It never consults the trained model, which makes it the ranking used for
// cold-start users and whenever the model cannot serve a request.
//
// Preferred genres are treated as a set:
//   - no preference: every item qualifies
//   - one genre: items tagged with that genre qualify
//   - several genres: items sharing at least minOverlap of them qualify
//
// Qualifying items are ordered by descending aggregate rating, ties by
// ascending item id.
type ContentBased struct {
	minOverlap int
}

// NewContentBased creates a content ranker. minOverlap < 1 selects
// DefaultMinGenreOverlap.
func NewContentBased(minOverlap int) *ContentBased {
	if minOverlap < 1 {
		minOverlap = DefaultMinGenreOverlap
	}
	return &ContentBased{minOverlap: minOverlap}
}

// MinOverlap returns the multi-genre overlap threshold.
func (c *ContentBased) MinOverlap() int {
	return c.minOverlap
}

// Rank returns at most n qualifying items. The score of each item is its
// aggregate rating.
func (c *ContentBased) Rank(preferredGenres []string, catalog []recommend.Item, n int) []recommend.ScoredItem {
	if n <= 0 {
		return []recommend.ScoredItem{}
	}

	prefs := lo.Uniq(lo.Compact(preferredGenres))
	qualifies := c.filter(prefs)

	out := make([]recommend.ScoredItem, 0, min(n, len(catalog)))
	for i := range catalog {
		if !qualifies(catalog[i].Genres) {
			continue
		}
		out = append(out, recommend.ScoredItem{
			Item:   catalog[i],
			Score:  catalog[i].AverageRating,
			Source: recommend.StrategyContent,
		})
	}

	return recommend.TopN(out, n)
}

func (c *ContentBased) filter(prefs []string) func(genres []string) bool {
	switch len(prefs) {
	case 0:
		return func([]string) bool { return true }
	case 1:
		want := prefs[0]
		return func(genres []string) bool { return lo.Contains(genres, want) }
	default:
		return func(genres []string) bool {
			return len(lo.Intersect(prefs, lo.Uniq(genres))) >= c.minOverlap
		}
	}
}

var _ recommend.ContentRanker = (*ContentBased)(nil)
