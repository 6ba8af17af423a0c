package index

import (
	"path"
	"strings"
)

// PageKey identifies a derived index page.
type PageKey string

const (
	PageHome PageKey = "home"
	PageTags PageKey = "tags"

	tagPrefix    = "tag:"
	seriesPrefix = "series:"
)

// TagPage returns the key of a per-tag listing.
func TagPage(tag string) PageKey { return PageKey(tagPrefix + tag) }

// SeriesPage returns the key of a per-series listing.
func SeriesPage(series string) PageKey { return PageKey(seriesPrefix + series) }

// Tag returns the tag of a per-tag page key.
func (k PageKey) Tag() (string, bool) { return strings.CutPrefix(string(k), tagPrefix) }

// Series returns the series of a per-series page key.
func (k PageKey) Series() (string, bool) { return strings.CutPrefix(string(k), seriesPrefix) }

// DocumentPath is the output path of a document page, relative to the output root.
func DocumentPath(slug string) string { return path.Join(slug, "index.html") }
