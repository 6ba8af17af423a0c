// Package index builds the immutable cross-document index of a corpus.
package index

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"path"
	"slices"
	"time"

	"git.home.luguber.info/inful/corpora/internal/docmodel"
	"git.home.luguber.info/inful/corpora/internal/slug"
)

// Entry is the listing summary of one document.
type Entry struct {
	Slug        string
	Title       string
	SourcePath  string
	Date        time.Time
	Description string
	Tags        []string
	Series      string
	SeriesPart  int
}

// Snapshot is the corpus index for one build pass. It is never mutated after
// Rebuild returns, and every accessor returns a copy.
type Snapshot struct {
	entries    map[string]Entry
	listing    []string
	byTag      map[string][]string
	tags       []string
	series     map[string][]string
	seriesKeys []string
	byPath     map[string]string
	tagSegment map[string]string
}

// Rebuild derives a Snapshot from docs. It is total: an empty corpus yields an
// empty index, and the input order does not matter.
func Rebuild(docs []*docmodel.Document) *Snapshot {
	s := &Snapshot{
		entries:    make(map[string]Entry, len(docs)),
		byTag:      make(map[string][]string),
		series:     make(map[string][]string),
		byPath:     make(map[string]string, len(docs)),
		tagSegment: make(map[string]string),
	}

	sorted := slices.Clone(docs)
	slices.SortFunc(sorted, docmodel.Newer)

	taggedDocs := make(map[string][]*docmodel.Document)
	seriesDocs := make(map[string][]*docmodel.Document)
	for _, d := range sorted {
		s.entries[d.Slug] = Entry{
			Slug:        d.Slug,
			Title:       d.Title,
			SourcePath:  d.SourcePath,
			Date:        d.Date,
			Description: d.Description,
			Tags:        slices.Clone(d.Keywords),
			Series:      d.Series,
			SeriesPart:  d.SeriesPart,
		}
		s.listing = append(s.listing, d.Slug)
		s.byPath[d.SourcePath] = d.Slug
		for _, t := range d.Keywords {
			taggedDocs[t] = append(taggedDocs[t], d)
		}
		if d.Series != "" {
			seriesDocs[d.Series] = append(seriesDocs[d.Series], d)
		}
	}

	for t, list := range taggedDocs {
		s.tags = append(s.tags, t)
		for _, d := range list {
			s.byTag[t] = append(s.byTag[t], d.Slug)
		}
	}
	slices.Sort(s.tags)

	for _, t := range s.tags {
		s.tagSegment[t] = tagSegment(t)
	}

	for name, list := range seriesDocs {
		slices.SortFunc(list, docmodel.SeriesOrder)
		s.seriesKeys = append(s.seriesKeys, name)
		for _, d := range list {
			s.series[name] = append(s.series[name], d.Slug)
		}
	}
	slices.Sort(s.seriesKeys)
	return s
}

// tagSegment maps a tag to its URL segment. The result depends on the tag
// alone, so adding or removing other tags never moves an existing tag page.
// Tags that do not survive slugging unchanged get a short digest suffix.
func tagSegment(tag string) string {
	base := slug.Make(tag)
	if base == tag {
		return base
	}
	sum := sha256.Sum256([]byte(tag))
	digest := hex.EncodeToString(sum[:4])
	if base == "" {
		return "tag-" + digest
	}
	return base + "-" + digest
}

// Len returns the number of indexed documents.
func (s *Snapshot) Len() int { return len(s.entries) }

// Has reports whether slug is indexed.
func (s *Snapshot) Has(slug string) bool {
	_, ok := s.entries[slug]
	return ok
}

// Entry returns the listing summary of slug.
func (s *Snapshot) Entry(slug string) (Entry, bool) {
	e, ok := s.entries[slug]
	e.Tags = slices.Clone(e.Tags)
	return e, ok
}

// Listing returns every slug, newest first.
func (s *Snapshot) Listing() []string { return slices.Clone(s.listing) }

// Tags returns every tag in ascending order.
func (s *Snapshot) Tags() []string { return slices.Clone(s.tags) }

// Tagged returns the slugs carrying tag, newest first.
func (s *Snapshot) Tagged(tag string) []string { return slices.Clone(s.byTag[tag]) }

// TagsOf returns the tags of slug.
func (s *Snapshot) TagsOf(slug string) []string { return slices.Clone(s.entries[slug].Tags) }

// SeriesNames returns every series in ascending order.
func (s *Snapshot) SeriesNames() []string { return slices.Clone(s.seriesKeys) }

// Series returns the members of a series in reading order.
func (s *Snapshot) Series(name string) []string { return slices.Clone(s.series[name]) }

// Neighbours returns the previous and next members of slug's series.
func (s *Snapshot) Neighbours(slug string) (prev, next string) {
	e, ok := s.entries[slug]
	if !ok || e.Series == "" {
		return "", ""
	}
	members := s.series[e.Series]
	i := slices.Index(members, slug)
	if i > 0 {
		prev = members[i-1]
	}
	if i >= 0 && i < len(members)-1 {
		next = members[i+1]
	}
	return prev, next
}

// SlugForPath maps a source path (relative, slash separated) to its slug.
func (s *Snapshot) SlugForPath(rel string) (string, bool) {
	v, ok := s.byPath[path.Clean(rel)]
	return v, ok
}

// TagSegment returns the URL path segment assigned to tag.
func (s *Snapshot) TagSegment(tag string) string { return s.tagSegment[tag] }

// Pages lists every derived index page: home, tags overview, then per-tag and
// per-series pages in ascending order.
func (s *Snapshot) Pages() []PageKey {
	out := make([]PageKey, 0, 2+len(s.tags)+len(s.seriesKeys))
	out = append(out, PageHome, PageTags)
	for _, t := range s.tags {
		out = append(out, TagPage(t))
	}
	for _, n := range s.seriesKeys {
		out = append(out, SeriesPage(n))
	}
	return out
}

// PagesFor lists the index pages whose content references slug.
func (s *Snapshot) PagesFor(slug string) []PageKey {
	e, ok := s.entries[slug]
	if !ok {
		return nil
	}
	out := []PageKey{PageHome}
	if len(e.Tags) > 0 {
		out = append(out, PageTags)
	}
	for _, t := range e.Tags {
		out = append(out, TagPage(t))
	}
	if e.Series != "" {
		out = append(out, SeriesPage(e.Series))
	}
	return out
}

// PagePath returns the output path of an index page, relative to the output root.
// Tags and series unknown to the snapshot yield "".
func (s *Snapshot) PagePath(key PageKey) string {
	switch key {
	case PageHome:
		return "index.html"
	case PageTags:
		return "tags/index.html"
	}
	if t, ok := key.Tag(); ok {
		if seg, known := s.tagSegment[t]; known {
			return path.Join("tags", seg, "index.html")
		}
		return ""
	}
	if n, ok := key.Series(); ok {
		if _, known := s.series[n]; known {
			return path.Join("series", n, "index.html")
		}
	}
	return ""
}

type encodedEntry struct {
	Slug        string   `json:"slug"`
	Title       string   `json:"title"`
	Path        string   `json:"path"`
	Source      string   `json:"source"`
	Date        string   `json:"date,omitempty"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags"`
	Series      string   `json:"series,omitempty"`
	SeriesPart  int      `json:"series_part,omitempty"`
}

type encodedTag struct {
	Path      string   `json:"path"`
	Documents []string `json:"documents"`
}

type encodedIndex struct {
	Documents []encodedEntry        `json:"documents"`
	Tags      map[string]encodedTag `json:"tags"`
	Series    map[string][]string   `json:"series"`
}

// Encode returns the canonical JSON form of the snapshot. Identical inputs
// produce byte-identical output.
func (s *Snapshot) Encode() ([]byte, error) {
	out := encodedIndex{
		Documents: make([]encodedEntry, 0, len(s.listing)),
		Tags:      make(map[string]encodedTag, len(s.tags)),
		Series:    make(map[string][]string, len(s.seriesKeys)),
	}
	for _, sl := range s.listing {
		e := s.entries[sl]
		date := ""
		if !e.Date.IsZero() {
			date = e.Date.UTC().Format(time.RFC3339)
		}
		tags := e.Tags
		if tags == nil {
			tags = []string{}
		}
		out.Documents = append(out.Documents, encodedEntry{
			Slug:        e.Slug,
			Title:       e.Title,
			Path:        DocumentPath(e.Slug),
			Source:      e.SourcePath,
			Date:        date,
			Description: e.Description,
			Tags:        tags,
			Series:      e.Series,
			SeriesPart:  e.SeriesPart,
		})
	}
	for _, t := range s.tags {
		out.Tags[t] = encodedTag{Path: s.PagePath(TagPage(t)), Documents: s.byTag[t]}
	}
	for _, n := range s.seriesKeys {
		out.Series[n] = s.series[n]
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
