package index

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/corpora/internal/docmodel"
)

func day(d int) time.Time { return time.Date(2024, 2, d, 0, 0, 0, 0, time.UTC) }

func corpus() []*docmodel.Document {
	return []*docmodel.Document{
		{Slug: "intro", SourcePath: "intro.md", Title: "Intro", Date: day(1), Keywords: []string{"go"}},
		{Slug: "pools", SourcePath: "pools.md", Title: "Pools", Date: day(3), Keywords: []string{"go", "sql"}, Series: "db", SeriesPart: 2},
		{Slug: "alpha", SourcePath: "alpha.md", Title: "Alpha", Date: day(3), Keywords: []string{"sql"}, Series: "db", SeriesPart: 1},
		{Slug: "loose", SourcePath: "notes/loose.md", Title: "Loose"},
	}
}

func TestRebuild_Ordering(t *testing.T) {
	s := Rebuild(corpus())

	assert.Equal(t, []string{"alpha", "pools", "intro", "loose"}, s.Listing())
	assert.Equal(t, []string{"go", "sql"}, s.Tags())
	assert.Equal(t, []string{"pools", "intro"}, s.Tagged("go"))
	assert.Equal(t, []string{"alpha", "pools"}, s.Tagged("sql"))
	assert.Equal(t, []string{"alpha", "pools"}, s.Series("db"))

	prev, next := s.Neighbours("pools")
	assert.Equal(t, "alpha", prev)
	assert.Empty(t, next)

	got, ok := s.SlugForPath("notes/loose.md")
	require.True(t, ok)
	assert.Equal(t, "loose", got)
}

func TestRebuild_EmptyCorpus(t *testing.T) {
	s := Rebuild(nil)
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, []PageKey{PageHome, PageTags}, s.Pages())
	data, err := s.Encode()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"documents": []`)
}

func TestRebuild_IdempotentEncoding(t *testing.T) {
	docs := corpus()
	a, err := Rebuild(docs).Encode()
	require.NoError(t, err)

	reversed := []*docmodel.Document{docs[3], docs[2], docs[1], docs[0]}
	b, err := Rebuild(reversed).Encode()
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))

	c, err := Rebuild(docs).Encode()
	require.NoError(t, err)
	assert.Equal(t, a, c)
}

func TestPages(t *testing.T) {
	s := Rebuild(corpus())
	assert.Equal(t, []PageKey{PageHome, PageTags, TagPage("go"), TagPage("sql"), SeriesPage("db")}, s.Pages())
	assert.Equal(t, []PageKey{PageHome, PageTags, TagPage("go"), TagPage("sql"), SeriesPage("db")}, s.PagesFor("pools"))
	assert.Equal(t, []PageKey{PageHome}, s.PagesFor("loose"))
	assert.Nil(t, s.PagesFor("missing"))

	assert.Equal(t, "index.html", s.PagePath(PageHome))
	assert.Equal(t, "tags/sql/index.html", s.PagePath(TagPage("sql")))
	assert.Equal(t, "series/db/index.html", s.PagePath(SeriesPage("db")))
	assert.Empty(t, s.PagePath(TagPage("unknown")))
}

func TestTagSegmentsAreUnique(t *testing.T) {
	docs := []*docmodel.Document{
		{Slug: "a", Keywords: []string{"c++"}},
		{Slug: "b", Keywords: []string{"c#"}},
		{Slug: "c", Keywords: []string{"c"}},
	}
	s := Rebuild(docs)
	segs := map[string]bool{}
	for _, tag := range s.Tags() {
		seg := s.TagSegment(tag)
		assert.False(t, segs[seg], "segment %q reused", seg)
		segs[seg] = true
	}
	assert.Equal(t, "c", s.TagSegment("c"))
}

func TestTagSegmentIgnoresOtherTags(t *testing.T) {
	alone := Rebuild([]*docmodel.Document{{Slug: "a", Keywords: []string{"c++"}}})
	together := Rebuild([]*docmodel.Document{
		{Slug: "a", Keywords: []string{"c++"}},
		{Slug: "b", Keywords: []string{"c"}},
		{Slug: "d", Keywords: []string{"c-plus"}},
	})
	require.NotEmpty(t, alone.TagSegment("c++"))
	assert.Equal(t, alone.TagSegment("c++"), together.TagSegment("c++"))
	assert.Equal(t, "c", together.TagSegment("c"))
	assert.Equal(t, "c-plus", together.TagSegment("c-plus"))
	assert.Regexp(t, `^c-[0-9a-f]{8}$`, together.TagSegment("c++"))
	assert.Regexp(t, `^tag-[0-9a-f]{8}$`, Rebuild([]*docmodel.Document{{Slug: "x", Keywords: []string{"++"}}}).TagSegment("++"))
}

func TestAccessorsReturnCopies(t *testing.T) {
	s := Rebuild(corpus())
	listing := s.Listing()
	listing[0] = "mutated"
	assert.Equal(t, "alpha", s.Listing()[0])

	e, ok := s.Entry("pools")
	require.True(t, ok)
	e.Tags[0] = "mutated"
	assert.Equal(t, []string{"go", "sql"}, s.TagsOf("pools"))
}
