package incremental

import (
	"errors"
	"fmt"
	"slices"

	"git.home.luguber.info/inful/corpora/internal/docmodel"
	ferrors "git.home.luguber.info/inful/corpora/internal/foundation/errors"
	"git.home.luguber.info/inful/corpora/internal/index"
	"git.home.luguber.info/inful/corpora/internal/slug"
	"git.home.luguber.info/inful/corpora/internal/util/sets"
)

// Transition classifies a document against the prior state.
type Transition string

const (
	Unchanged Transition = "unchanged"
	Added     Transition = "added"
	Modified  Transition = "modified"
	Removed   Transition = "removed"
)

// MismatchPolicy selects the reaction to prior state with a foreign schema.
type MismatchPolicy string

const (
	MismatchRebuild MismatchPolicy = "rebuild"
	MismatchFail    MismatchPolicy = "fail"
)

// Versioning selects how index page hashes relate to document hashes.
type Versioning string

const (
	// VersioningIndependent records index page hashes separately; a document's
	// output hash covers only its own page.
	VersioningIndependent Versioning = "independent"
	// VersioningCoupled folds the hashes of every index page listing a document
	// into that document's output hash.
	VersioningCoupled Versioning = "coupled"
)

// ErrSchemaMismatch is the cause of a SchedulerStateMismatch error.
var ErrSchemaMismatch = errors.New("build state schema mismatch")

// Options parameterize Plan.
type Options struct {
	Signature Signature
	Full      bool
	Mismatch  MismatchPolicy
	// Versioning is the index versioning mode of this pass; a prior state
	// recorded under another mode is not reused.
	Versioning Versioning
	// PriorCorrupt marks a state file that existed but could not be decoded.
	PriorCorrupt bool
	// HeldPaths are source paths of documents that failed to load or parse in
	// this pass. Their prior entries and output are retained.
	HeldPaths []string
	// ContextKey digests the snapshot-derived inputs of a document render.
	ContextKey func(*docmodel.Document, *index.Snapshot) string
}

// Plan is the render schedule of one build pass.
type Plan struct {
	Transitions map[string]Transition
	ToRender    []string // slugs, ascending
	ToIndexOnly []string
	Pages       []index.PageKey // index pages to render, in snapshot order
	StalePages  []PageState     // prior pages that no longer exist
	Removed     []string
	Held        []string
	FullRebuild bool
	Reason      string

	// Prior is the state the plan was computed against; nil when discarded.
	Prior       *State
	ContextKeys map[string]string

	// heldStates are the records carried over for Held slugs. They survive a
	// discarded Prior.
	heldStates map[string]DocState
}

// Count returns how many documents are in transition t.
func (p *Plan) Count(t Transition) int {
	n := 0
	for _, v := range p.Transitions {
		if v == t {
			n++
		}
	}
	return n
}

// ComputePlan diffs current against prior. A nil prior means no previous build.
func ComputePlan(current []*docmodel.Document, snap *index.Snapshot, prior *State, opts Options) (*Plan, error) {
	if opts.Mismatch == "" {
		opts.Mismatch = MismatchRebuild
	}
	p := &Plan{
		Transitions: make(map[string]Transition, len(current)),
		ContextKeys: make(map[string]string, len(current)),
		Prior:       prior,
		heldStates:  make(map[string]DocState),
	}

	schemaMismatch := opts.PriorCorrupt || (prior != nil && prior.SchemaVersion != opts.Signature.SchemaVersion)
	if schemaMismatch {
		if opts.Mismatch == MismatchFail {
			found := "unreadable"
			if prior != nil {
				found = fmt.Sprintf("%d", prior.SchemaVersion)
			}
			return nil, ferrors.SchedulerStateMismatch("prior build state does not match this build's schema").
				WithCause(ErrSchemaMismatch).
				WithContext("expected_schema", opts.Signature.SchemaVersion).
				WithContext("found_schema", found).
				Build()
		}
		p.Prior = nil
		p.FullRebuild = true
		p.Reason = "state schema mismatch"
	}

	switch {
	case p.FullRebuild:
	case prior == nil:
		p.FullRebuild = true
		p.Reason = "no prior build state"
	case opts.Full:
		p.FullRebuild = true
		p.Reason = "full rebuild requested"
	case prior.RendererVersion != opts.Signature.RendererVersion:
		p.FullRebuild = true
		p.Reason = "renderer version changed"
	case prior.TemplateHash != opts.Signature.TemplateHash:
		p.FullRebuild = true
		p.Reason = "template set changed"
	case opts.Versioning != "" && prior.IndexVersioning != opts.Versioning:
		p.FullRebuild = true
		p.Reason = "index versioning changed"
	}

	priorDocs := map[string]DocState{}
	if p.Prior != nil {
		priorDocs = p.Prior.Documents
	}

	sorted := slices.Clone(current)
	slices.SortFunc(sorted, func(a, b *docmodel.Document) int {
		switch {
		case a.Slug < b.Slug:
			return -1
		case a.Slug > b.Slug:
			return 1
		}
		return 0
	})

	affected := sets.New[index.PageKey]()
	currentSlugs := sets.New[string]()
	for _, d := range sorted {
		currentSlugs.Add(d.Slug)
		if opts.ContextKey != nil {
			p.ContextKeys[d.Slug] = opts.ContextKey(d, snap)
		}

		prev, known := priorDocs[d.Slug]
		var tr Transition
		switch {
		case schemaMismatch:
			tr = Modified
		case !known:
			tr = Added
		case prev.ContentHash != d.ContentHash || prev.SourcePath != d.SourcePath:
			tr = Modified
		default:
			tr = Unchanged
		}
		p.Transitions[d.Slug] = tr

		render := p.FullRebuild || tr != Unchanged || prev.ContextHash != p.ContextKeys[d.Slug]
		if render {
			p.ToRender = append(p.ToRender, d.Slug)
		} else {
			p.ToIndexOnly = append(p.ToIndexOnly, d.Slug)
		}
		if tr != Unchanged {
			affected.AddAll(snap.PagesFor(d.Slug)...)
			if known {
				affected.AddAll(pagesOf(prev)...)
			}
		}
	}

	held := sets.New(opts.HeldPaths...)
	for _, s := range sortedKeys(priorDocs) {
		if currentSlugs.Has(s) {
			continue
		}
		prev := priorDocs[s]
		affected.AddAll(pagesOf(prev)...)
		if held.Has(prev.SourcePath) {
			p.Held = append(p.Held, s)
			p.heldStates[s] = prev
			continue
		}
		p.Transitions[s] = Removed
		p.Removed = append(p.Removed, s)
	}
	if schemaMismatch {
		p.holdDiscarded(prior, held, currentSlugs)
	}

	live := sets.New[string]()
	for _, key := range snap.Pages() {
		live.Add(string(key))
		ps, rendered := priorPage(p.Prior, key)
		moved := rendered && ps.Path != snap.PagePath(key)
		if p.FullRebuild || affected.Has(key) || !rendered || moved {
			p.Pages = append(p.Pages, key)
		}
		if moved {
			p.StalePages = append(p.StalePages, ps)
		}
	}
	if p.Prior != nil {
		for _, key := range sortedKeys(p.Prior.Pages) {
			if !live.Has(key) {
				p.StalePages = append(p.StalePages, p.Prior.Pages[key])
			}
		}
	}
	return p, nil
}

// holdDiscarded keeps held documents whose prior record was thrown away with
// an incompatible or unreadable state. A readable state still names their
// slugs; otherwise the slug is derived from the source path.
func (p *Plan) holdDiscarded(prior *State, held, current sets.Set[string]) {
	if prior != nil {
		for _, s := range sortedKeys(prior.Documents) {
			prev := prior.Documents[s]
			if current.Has(s) || !held.Has(prev.SourcePath) {
				continue
			}
			p.Held = append(p.Held, s)
			p.heldStates[s] = DocState{SourcePath: prev.SourcePath}
		}
		return
	}
	for _, src := range sets.Sorted(held) {
		s := slug.FromPath(src)
		if s == "" || current.Has(s) {
			continue
		}
		if _, dup := p.heldStates[s]; dup {
			continue
		}
		p.Held = append(p.Held, s)
		p.heldStates[s] = DocState{SourcePath: src}
	}
}

func priorPage(prior *State, key index.PageKey) (PageState, bool) {
	if prior == nil {
		return PageState{}, false
	}
	ps, ok := prior.Pages[string(key)]
	return ps, ok
}

// pagesOf lists the index pages a prior entry was listed on.
func pagesOf(d DocState) []index.PageKey {
	out := []index.PageKey{index.PageHome}
	if len(d.Tags) > 0 {
		out = append(out, index.PageTags)
	}
	for _, t := range d.Tags {
		out = append(out, index.TagPage(t))
	}
	if d.Series != "" {
		out = append(out, index.SeriesPage(d.Series))
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
