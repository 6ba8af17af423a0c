package docmodel

import (
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewer_OrdersReverseChronologicallyWithSlugTies(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC) }
	docs := []*Document{
		{Slug: "b", Date: day(1)},
		{Slug: "undated"},
		{Slug: "c", Date: day(3)},
		{Slug: "a", Date: day(1)},
	}
	slices.SortFunc(docs, Newer)

	var got []string
	for _, d := range docs {
		got = append(got, d.Slug)
	}
	assert.Equal(t, []string{"c", "a", "b", "undated"}, got)
}

func TestSeriesOrder(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC) }
	docs := []*Document{
		{Slug: "p2", SeriesPart: 2, Date: day(1)},
		{Slug: "p1-late", SeriesPart: 1, Date: day(5)},
		{Slug: "p1-early", SeriesPart: 1, Date: day(2)},
	}
	slices.SortFunc(docs, SeriesOrder)
	assert.Equal(t, "p1-early", docs[0].Slug)
	assert.Equal(t, "p1-late", docs[1].Slug)
	assert.Equal(t, "p2", docs[2].Slug)
}

func TestHasTagAndParseOptions(t *testing.T) {
	d := &Document{Keywords: []string{"go", "sql"}, BodyLine: 6}
	assert.True(t, d.HasTag("sql"))
	assert.False(t, d.HasTag("rust"))
	assert.Equal(t, 5, d.ParseOptions().LineOffset)
	assert.False(t, d.HasDate())
}

func TestIsSource(t *testing.T) {
	assert.True(t, IsSource("a.md"))
	assert.True(t, IsSource("dir/B.MARKDOWN"))
	assert.False(t, IsSource("notes.txt"))
	assert.False(t, IsSource("md"))
}
