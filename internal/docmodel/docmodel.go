// Package docmodel defines the document record shared by the loader, index,
// scheduler and renderer.
package docmodel

import (
	"path"
	"slices"
	"strings"
	"time"

	"git.home.luguber.info/inful/corpora/internal/markup"
)

// Document is one corpus entry. It is not mutated after the parse stage.
type Document struct {
	Slug        string
	SourcePath  string // relative to the corpus root, slash separated
	Title       string
	Authors     []string
	Date        time.Time // zero when unknown
	Keywords    []string  // normalized tags, sorted
	Description string
	Series      string
	SeriesPart  int

	Raw         []byte
	Body        []byte
	BodyLine    int // 1-based line of the first body line in Raw
	ContentHash string

	Tree *markup.Tree
}

// HasDate reports whether the document carries a revision date.
func (d *Document) HasDate() bool { return !d.Date.IsZero() }

// HasTag reports whether tag is among the document keywords.
func (d *Document) HasTag(tag string) bool {
	_, found := slices.BinarySearch(d.Keywords, tag)
	return found
}

// ParseOptions returns the markup options matching this document's layout.
func (d *Document) ParseOptions() markup.Options {
	offset := d.BodyLine - 1
	if offset < 0 {
		offset = 0
	}
	return markup.Options{LineOffset: offset}
}

// Newer orders documents reverse-chronologically, undated last, ties by slug.
func Newer(a, b *Document) int {
	switch {
	case a.Date.After(b.Date):
		return -1
	case b.Date.After(a.Date):
		return 1
	}
	switch {
	case a.Slug < b.Slug:
		return -1
	case a.Slug > b.Slug:
		return 1
	}
	return 0
}

// SeriesOrder orders documents within a series: part, then date, then slug.
func SeriesOrder(a, b *Document) int {
	if a.SeriesPart != b.SeriesPart {
		if a.SeriesPart < b.SeriesPart {
			return -1
		}
		return 1
	}
	if !a.Date.Equal(b.Date) {
		if a.Date.Before(b.Date) {
			return -1
		}
		return 1
	}
	switch {
	case a.Slug < b.Slug:
		return -1
	case a.Slug > b.Slug:
		return 1
	}
	return 0
}

// SourceExtensions lists the recognized document file extensions.
var SourceExtensions = []string{".md", ".markdown", ".mdown", ".mkd"}

// IsSource reports whether name has a document extension (case-insensitive).
func IsSource(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	return slices.Contains(SourceExtensions, ext)
}
