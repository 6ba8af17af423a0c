package render

import (
	"net/url"
	"path"
	"strings"

	"git.home.luguber.info/inful/corpora/internal/docmodel"
	"git.home.luguber.info/inful/corpora/internal/index"
)

const xrefScheme = "xref:"

// resolution is the outcome of resolving one link target.
type resolution struct {
	internal bool   // target names a corpus document
	slug     string // resolved slug, empty when unresolved
	fragment string
}

// resolve classifies target. Internal targets are xref:slug[#frag] and
// relative links to markdown sources; everything else passes through.
func resolve(doc *docmodel.Document, snap *index.Snapshot, target string) resolution {
	if rest, ok := strings.CutPrefix(target, xrefScheme); ok {
		s, frag, _ := strings.Cut(rest, "#")
		s = strings.Trim(s, "/")
		if snap.Has(s) {
			return resolution{internal: true, slug: s, fragment: frag}
		}
		return resolution{internal: true}
	}
	if !isRelativeSource(target) {
		return resolution{}
	}
	p, frag, _ := strings.Cut(target, "#")
	if unescaped, err := url.PathUnescape(p); err == nil {
		p = unescaped
	}
	rel := path.Join(path.Dir(doc.SourcePath), p)
	if s, ok := snap.SlugForPath(rel); ok {
		return resolution{internal: true, slug: s, fragment: frag}
	}
	return resolution{internal: true}
}

func isRelativeSource(target string) bool {
	if target == "" || strings.HasPrefix(target, "/") || strings.HasPrefix(target, "#") {
		return false
	}
	u, err := url.Parse(target)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return false
	}
	return docmodel.IsSource(u.Path)
}

var safeSchemes = map[string]bool{"": true, "http": true, "https": true, "mailto": true}

// safeURL drops targets with schemes that could execute script.
func safeURL(target string) string {
	u, err := url.Parse(strings.TrimSpace(target))
	if err != nil || !safeSchemes[strings.ToLower(u.Scheme)] {
		return "#"
	}
	return target
}
