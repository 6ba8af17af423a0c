// Package slug turns titles, paths and tags into URL path segments.
package slug

import (
	"path"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var lower = cases.Lower(language.Und)

// Make folds s into a lowercase ASCII-ish segment: diacritics are stripped,
// runs of anything other than letters and digits collapse to a single '-'.
func Make(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = lower.String(folded)

	var b strings.Builder
	pendingDash := false
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
			continue
		}
		pendingDash = true
	}
	return b.String()
}

// FromPath derives a slug from a slash separated relative source path:
// the extension is dropped and each directory segment is slugified.
func FromPath(rel string) string {
	rel = strings.TrimSuffix(rel, path.Ext(rel))
	parts := strings.Split(rel, "/")
	out := parts[:0]
	for _, p := range parts {
		if s := Make(p); s != "" {
			out = append(out, s)
		}
	}
	return strings.Join(out, "/")
}

// Clean normalizes an explicit slug field: every segment is slugified and
// empty segments are dropped.
func Clean(s string) string {
	return FromPath(strings.Trim(s, "/") + ".x")
}

// Title renders a tag or series key for display.
func Title(s string) string {
	return cases.Title(language.Und).String(strings.ReplaceAll(s, "-", " "))
}

// Deduper hands out unique segments, suffixing -2, -3, ... on collision.
type Deduper struct {
	seen map[string]int
}

// NewDeduper returns an empty Deduper.
func NewDeduper() *Deduper { return &Deduper{seen: make(map[string]int)} }

// Unique returns base, or base with the next free numeric suffix.
func (d *Deduper) Unique(base string) string {
	if base == "" {
		base = "section"
	}
	n, ok := d.seen[base]
	if !ok {
		d.seen[base] = 1
		return base
	}
	for {
		n++
		candidate := base + "-" + strconv.Itoa(n)
		if _, taken := d.seen[candidate]; !taken {
			d.seen[base] = n
			d.seen[candidate] = 1
			return candidate
		}
	}
}
