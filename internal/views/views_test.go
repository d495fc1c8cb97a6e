package views

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sujalbistaa/whispr/internal/models"
)

func fixture() []models.Confession {
	return []models.Confession{
		{ID: "a", To: "Sarah", Likes: 5, Timestamp: 300},
		{ID: "b", To: "sarahlynn", Likes: 9, Timestamp: 100},
		{ID: "c", To: "Elias", Likes: 5, Timestamp: 300},
		{ID: "d", To: "Alex", Likes: 9, Timestamp: 200},
		{ID: "e", To: "SARA", Likes: 1, Timestamp: 300},
	}
}

func idsOf(cs []models.Confession) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.ID
	}
	return out
}

func TestSearch(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"empty query keeps all", "", []string{"a", "b", "c", "d", "e"}},
		{"whitespace query keeps all", "   \t", []string{"a", "b", "c", "d", "e"}},
		{"case insensitive", "SARAH", []string{"a", "b"}},
		{"substring", "ar", []string{"a", "b", "e"}},
		{"padded query matched as typed", "sar ", []string{}},
		{"leading space matched as typed", " elias", []string{}},
		{"no match", "zed", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Search(fixture(), tt.query)
			assert.Equal(t, tt.want, idsOf(got))
			for _, c := range got {
				if strings.TrimSpace(tt.query) != "" {
					assert.Contains(t, strings.ToLower(c.To), strings.ToLower(tt.query))
				}
			}
		})
	}
}

func TestSort_NonePreservesOrder(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, idsOf(Sort(fixture(), SortNone)))
}

func TestSort_PopularIsStable(t *testing.T) {
	got := Sort(fixture(), SortPopular)

	assert.Equal(t, []string{"b", "d", "a", "c", "e"}, idsOf(got))
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].Likes, got[i].Likes)
	}
}

func TestSort_RecentIsStable(t *testing.T) {
	got := Sort(fixture(), SortRecent)

	assert.Equal(t, []string{"a", "c", "e", "d", "b"}, idsOf(got))
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].Timestamp, got[i].Timestamp)
	}
}

func TestSort_DoesNotMutateInput(t *testing.T) {
	in := fixture()
	_ = Sort(in, SortPopular)
	assert.Equal(t, fixture(), in)
}

func TestQuery_FiltersBeforeSorting(t *testing.T) {
	got := Query(fixture(), "sar", SortPopular)
	assert.Equal(t, []string{"b", "a", "e"}, idsOf(got))
}

func TestQuery_Idempotent(t *testing.T) {
	snap := fixture()
	for _, mode := range []SortMode{SortNone, SortPopular, SortRecent} {
		assert.Equal(t, Query(snap, "a", mode), Query(snap, "a", mode))
	}
}

func TestParseSortMode(t *testing.T) {
	for in, want := range map[string]SortMode{
		"":        SortNone,
		"all":     SortNone,
		"Popular": SortPopular,
		"top":     SortPopular,
		"recent":  SortRecent,
		"latest":  SortRecent,
	} {
		got, ok := ParseSortMode(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := ParseSortMode("random")
	assert.False(t, ok)
}

func TestMostReferencedSources_TypeAndTitleKey(t *testing.T) {
	snap := []models.Confession{
		{Type: models.KindMusic, SourceTitle: "A", SourceSub: "Band"},
		{Type: models.KindMusic, SourceTitle: "A", SourceSub: "Other Band"},
		{Type: models.KindBook, SourceTitle: "A", SourceSub: "Author"},
	}

	got := MostReferencedSources(snap, 3)

	assert.Equal(t, []SourceRank{
		{Title: "A", Sub: "Band", Type: models.KindMusic, Count: 2},
		{Title: "A", Sub: "Author", Type: models.KindBook, Count: 1},
	}, got)
}

func TestMostReferencedSources_TitleWithDelimiter(t *testing.T) {
	snap := []models.Confession{
		{Type: models.KindBook, SourceTitle: "Love: A History", SourceSub: "Simon May"},
		{Type: models.KindBook, SourceTitle: "Love: A History", SourceSub: "Simon May"},
		{Type: models.KindMusic, SourceTitle: "book:Love"},
	}

	got := MostReferencedSources(snap, 0)

	require.Len(t, got, 2)
	assert.Equal(t, "Love: A History", got[0].Title)
	assert.Equal(t, 2, got[0].Count)
	assert.Equal(t, "book:Love", got[1].Title)
}

func TestMostReferencedSources_TruncatesWithStableTies(t *testing.T) {
	snap := []models.Confession{
		{Type: models.KindMusic, SourceTitle: "one"},
		{Type: models.KindMusic, SourceTitle: "two"},
		{Type: models.KindMusic, SourceTitle: "three"},
		{Type: models.KindMusic, SourceTitle: "four"},
		{Type: models.KindMusic, SourceTitle: "four"},
	}

	got := MostReferencedSources(snap, 3)

	titles := make([]string, len(got))
	for i, r := range got {
		titles[i] = r.Title
	}
	assert.Equal(t, []string{"four", "one", "two"}, titles)
}

func TestMostReferencedSources_Empty(t *testing.T) {
	assert.Empty(t, MostReferencedSources(nil, 3))
}

func TestFindByID(t *testing.T) {
	c, ok := FindByID(fixture(), "c")
	assert.True(t, ok)
	assert.Equal(t, "Elias", c.To)

	_, ok = FindByID(fixture(), "zz")
	assert.False(t, ok)
	_, ok = FindByID(fixture(), "")
	assert.False(t, ok)
}

func TestActiveEchoes(t *testing.T) {
	assert.Equal(t, 124+3, ActiveEchoes(models.SeedConfessions(time.Now())))
}
