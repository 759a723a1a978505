// FlixFinder - Movie Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/flixfinder

package recommend

import (
	"cmp"
	"slices"
)

// SortScored orders items by descending Score, ties by ascending item id.
func SortScored(items []ScoredItem) {
	slices.SortFunc(items, func(a, b ScoredItem) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.Item.ID, b.Item.ID)
	})
}

// TopN sorts items and truncates them to at most n entries.
func TopN(items []ScoredItem, n int) []ScoredItem {
	SortScored(items)
	if n >= 0 && len(items) > n {
		items = items[:n]
	}
	return items
}
