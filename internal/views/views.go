// Package views derives read models from a confession snapshot. Every
// function is pure: inputs are never modified and results are fresh slices.
package views

import (
	"slices"
	"strings"

	"github.com/sujalbistaa/whispr/internal/models"
)

// SortMode selects the ordering of a feed query.
type SortMode string

const (
	SortNone    SortMode = "none"
	SortPopular SortMode = "popular"
	SortRecent  SortMode = "recent"
)

// DefaultTopSources is how many entries the "Most Used" panel shows.
const DefaultTopSources = 3

// activeEchoesBaseline is added to the live confession count shown as
// "Active Echoes".
const activeEchoesBaseline = 124

// ParseSortMode maps a query parameter to a SortMode. "all" and the empty
// string mean SortNone; unknown values report false.
func ParseSortMode(s string) (SortMode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all", "none":
		return SortNone, true
	case "popular", "top", "trending":
		return SortPopular, true
	case "recent", "latest":
		return SortRecent, true
	}
	return SortNone, false
}

// Search keeps confessions whose recipient contains q, ignoring case. A
// blank query keeps everything. Otherwise q is matched as typed, surrounding
// spaces included.
func Search(snapshot []models.Confession, q string) []models.Confession {
	blank := strings.TrimSpace(q) == ""
	q = strings.ToLower(q)
	out := make([]models.Confession, 0, len(snapshot))
	for _, c := range snapshot {
		if blank || strings.Contains(strings.ToLower(c.To), q) {
			out = append(out, c)
		}
	}
	return out
}

// Sort orders confessions by mode. Equal keys keep their input order and
// SortNone returns the input order unchanged.
func Sort(snapshot []models.Confession, mode SortMode) []models.Confession {
	out := slices.Clone(snapshot)
	if out == nil {
		out = []models.Confession{}
	}
	switch mode {
	case SortPopular:
		slices.SortStableFunc(out, func(a, b models.Confession) int {
			return b.Likes - a.Likes
		})
	case SortRecent:
		slices.SortStableFunc(out, func(a, b models.Confession) int {
			switch {
			case a.Timestamp > b.Timestamp:
				return -1
			case a.Timestamp < b.Timestamp:
				return 1
			}
			return 0
		})
	}
	return out
}

// Query filters by recipient and then sorts.
func Query(snapshot []models.Confession, q string, mode SortMode) []models.Confession {
	return Sort(Search(snapshot, q), mode)
}

// FindByID returns the confession with the given id.
func FindByID(snapshot []models.Confession, id string) (models.Confession, bool) {
	if id == "" {
		return models.Confession{}, false
	}
	for _, c := range snapshot {
		if c.ID == id {
			return c, true
		}
	}
	return models.Confession{}, false
}

// SourceKey identifies a referenced song or book. A music item and a book
// item with the same title are different sources.
type SourceKey struct {
	Type  models.Kind
	Title string
}

// SourceRank is one row of the "Most Used" panel.
type SourceRank struct {
	Title string      `json:"title"`
	Sub   string      `json:"sub"`
	Type  models.Kind `json:"type"`
	Count int         `json:"count"`
}

// MostReferencedSources counts confessions per source and returns the topN
// most referenced. Sub is the attribution of the first confession seen for
// that source; ties keep first-seen order. topN <= 0 uses DefaultTopSources.
func MostReferencedSources(snapshot []models.Confession, topN int) []SourceRank {
	if topN <= 0 {
		topN = DefaultTopSources
	}

	index := make(map[SourceKey]int)
	ranks := make([]SourceRank, 0)
	for _, c := range snapshot {
		key := SourceKey{Type: c.Type, Title: c.SourceTitle}
		if i, ok := index[key]; ok {
			ranks[i].Count++
			continue
		}
		index[key] = len(ranks)
		ranks = append(ranks, SourceRank{Title: c.SourceTitle, Sub: c.SourceSub, Type: c.Type, Count: 1})
	}

	slices.SortStableFunc(ranks, func(a, b SourceRank) int {
		return b.Count - a.Count
	})
	if len(ranks) > topN {
		ranks = ranks[:topN]
	}
	return ranks
}

// ActiveEchoes is the headline activity number for the sidebar.
func ActiveEchoes(snapshot []models.Confession) int {
	return len(snapshot) + activeEchoesBaseline
}
