package incremental

import (
	"maps"
	"slices"

	"git.home.luguber.info/inful/corpora/internal/docmodel"
	"git.home.luguber.info/inful/corpora/internal/index"
)

// Outputs are the results of the render stage of a pass.
type Outputs struct {
	// Documents maps slugs rendered this pass to the hash of their page.
	Documents map[string]string
	// Pages maps index pages rendered this pass to their hash.
	Pages map[index.PageKey]string
}

// Next derives the BuildState to persist after a pass. Documents that failed
// to render keep their prior entry, so the next pass retries them; held
// documents are carried over unchanged.
func Next(plan *Plan, sig Signature, v Versioning, current []*docmodel.Document, snap *index.Snapshot, out Outputs) *State {
	next := NewState(sig, v)
	prior := plan.Prior

	for _, d := range current {
		prev, known := DocState{}, false
		if prior != nil {
			prev, known = prior.Documents[d.Slug]
		}
		renderHash, rendered := out.Documents[d.Slug]
		switch {
		case rendered:
			next.Documents[d.Slug] = DocState{
				SourcePath:  d.SourcePath,
				ContentHash: d.ContentHash,
				ContextHash: plan.ContextKeys[d.Slug],
				RenderHash:  renderHash,
				Tags:        slices.Clone(d.Keywords),
				Series:      d.Series,
			}
		case known:
			// Index-only, or a failed render whose stale record keeps it dirty.
			next.Documents[d.Slug] = prev
		}
	}
	for _, s := range plan.Held {
		next.Documents[s] = plan.heldStates[s]
	}

	for _, key := range snap.Pages() {
		if h, ok := out.Pages[key]; ok {
			next.Pages[string(key)] = PageState{Path: snap.PagePath(key), Hash: h}
			continue
		}
		if ps, ok := priorPage(prior, key); ok && !slices.Contains(plan.Pages, key) {
			next.Pages[string(key)] = ps
		}
	}

	for s, ds := range next.Documents {
		ds.OutputHash = ds.RenderHash
		if v == VersioningCoupled {
			parts := []string{ds.RenderHash}
			for _, key := range snap.PagesFor(s) {
				parts = append(parts, string(key), next.Pages[string(key)].Hash)
			}
			ds.OutputHash = HashParts(parts...)
		}
		next.Documents[s] = ds
	}
	return next
}

// Clone returns a deep copy of s.
func (s *State) Clone() *State {
	c := *s
	c.Documents = maps.Clone(s.Documents)
	c.Pages = maps.Clone(s.Pages)
	return &c
}
