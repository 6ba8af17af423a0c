package build

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/corpora/internal/docmodel"
	ferrors "git.home.luguber.info/inful/corpora/internal/foundation/errors"
	"git.home.luguber.info/inful/corpora/internal/incremental"
	"git.home.luguber.info/inful/corpora/internal/index"
	"git.home.luguber.info/inful/corpora/internal/logfields"
	"git.home.luguber.info/inful/corpora/internal/markup"
	"git.home.luguber.info/inful/corpora/internal/render"
)

// IndexFile is the canonical corpus index artifact at the output root.
const IndexFile = "index.json"

func (rs *runState) issue(stage StageName, slug, path string, err error) {
	is := rs.report.addIssue(stage, slug, path, err)
	rs.logger.Warn("Document failed", logfields.Stage(string(stage)), logfields.Kind(is.Kind),
		logfields.Path(is.Path), logfields.Slug(is.Slug), logfields.Error(err))
}

func writeFailure(msg, path string, err error) error {
	return ferrors.IOFailure(msg).Fatal().WithRetry(ferrors.RetryNever).WithCause(err).
		WithContext("path", path).Build()
}

func stageLock(_ context.Context, rs *runState) error {
	if err := os.MkdirAll(filepath.Dir(rs.out), 0o750); err != nil {
		return newFatalStageError(StageLock, writeFailure("cannot create output parent", rs.out, err))
	}
	fl, err := acquireLock(rs.out)
	if err != nil {
		return newFatalStageError(StageLock, err)
	}
	rs.lock = fl
	return nil
}

func stageLoadState(_ context.Context, rs *runState) error {
	path := incremental.StatePath(rs.out)
	st, err := incremental.LoadState(path)
	switch {
	case errors.Is(err, incremental.ErrCorruptState):
		rs.priorCorrupt = true
		rs.logger.Warn("Prior build state is corrupt", logfields.Path(path), logfields.Error(err))
	case err != nil:
		return newFatalStageError(StageLoadState, ferrors.IOFailure("cannot read build state").Fatal().
			WithCause(err).WithContext("path", path).Build())
	default:
		rs.prior = st
	}
	return nil
}

func stageLoad(ctx context.Context, rs *runState) error {
	res, err := rs.b.newLoader(rs.req.Root).Load(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return newCanceledStageError(StageLoad, ctx.Err())
		}
		return newFatalStageError(StageLoad, err)
	}
	rs.loaded = res.Documents
	rs.report.Sources = len(res.Documents) + len(res.Failures)
	for _, f := range res.Failures {
		rs.held = append(rs.held, f.Path)
		rs.issue(StageLoad, "", f.Path, f.Err)
	}
	if n := len(res.Failures); n > 0 {
		return newWarnStageError(StageLoad, fmt.Errorf("%d of %d documents failed to load", n, rs.report.Sources))
	}
	return nil
}

func stageParse(ctx context.Context, rs *runState) error {
	errs := make([]error, len(rs.loaded))
	err := forEach(ctx, rs.b.opts.Workers, len(rs.loaded), func(ctx context.Context, i int) error {
		d := rs.loaded[i]
		tree, err := budgeted(ctx, rs.b.opts.DocumentTimeout, func() (*markup.Tree, error) {
			return markup.Parse(d.Body, d.ParseOptions())
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			errs[i] = parseFailure(d, err)
			return nil
		}
		d.Tree = tree
		return nil
	})
	if err != nil {
		return newCanceledStageError(StageParse, err)
	}

	failed := 0
	for i, d := range rs.loaded {
		if errs[i] != nil {
			failed++
			rs.held = append(rs.held, d.SourcePath)
			rs.issue(StageParse, d.Slug, d.SourcePath, errs[i])
			continue
		}
		rs.docs = append(rs.docs, d)
	}
	if failed > 0 {
		return newWarnStageError(StageParse, fmt.Errorf("%d of %d documents failed to parse", failed, len(rs.loaded)))
	}
	return nil
}

func parseFailure(d *docmodel.Document, err error) error {
	var pe *markup.ParseError
	if errors.As(err, &pe) {
		return ferrors.ParseFailure(pe.Message).WithCause(err).
			WithContext("slug", d.Slug).WithContext("path", d.SourcePath).
			WithContext("line", pe.Line).WithContext("column", pe.Column).Build()
	}
	return ferrors.ParseFailure("parse did not complete").WithCause(err).
		WithContext("slug", d.Slug).WithContext("path", d.SourcePath).Build()
}

func stageIndex(_ context.Context, rs *runState) error {
	rs.snap = index.Rebuild(rs.docs)
	rs.bySlug = make(map[string]*docmodel.Document, len(rs.docs))
	for _, d := range rs.docs {
		rs.bySlug[d.Slug] = d
	}
	rs.report.Documents = rs.snap.Len()
	return nil
}

func stagePlan(_ context.Context, rs *runState) error {
	plan, err := incremental.ComputePlan(rs.docs, rs.snap, rs.prior, incremental.Options{
		Signature:    rs.b.sig,
		Full:         rs.req.Full,
		Mismatch:     rs.b.opts.Mismatch,
		Versioning:   rs.b.opts.Versioning,
		PriorCorrupt: rs.priorCorrupt,
		HeldPaths:    rs.held,
		ContextKey:   render.ContextKey,
	})
	if err != nil {
		return newFatalStageError(StagePlan, err)
	}
	rs.plan = plan
	for _, tr := range []incremental.Transition{incremental.Unchanged, incremental.Added, incremental.Modified, incremental.Removed} {
		if n := plan.Count(tr); n > 0 {
			rs.report.Transitions[tr] = n
		}
	}
	rs.report.IndexOnly = len(plan.ToIndexOnly)
	rs.report.Held = len(plan.Held)
	rs.report.FullRebuild = plan.FullRebuild
	rs.report.Reason = plan.Reason
	rs.logger.Info("Plan computed",
		logfields.Count(len(plan.ToRender)),
		slog.Int("pages", len(plan.Pages)),
		slog.Int("removed", len(plan.Removed)),
		slog.String("reason", plan.Reason))
	return nil
}

func stagePrepare(_ context.Context, rs *runState) error {
	st, err := beginStaging(rs.out, rs.plan.FullRebuild, rs.logger)
	if err != nil {
		return newFatalStageError(StagePrepare, writeFailure("cannot prepare staging directory", stageDirFor(rs.out), err))
	}
	rs.stage = st
	if rs.plan.FullRebuild {
		for _, s := range rs.plan.Held {
			if err := st.mirror(index.DocumentPath(s)); err != nil {
				return newFatalStageError(StagePrepare, writeFailure("cannot keep held document", s, err))
			}
		}
	}
	return nil
}

func stageRender(ctx context.Context, rs *runState) error {
	plan := rs.plan
	rs.docPages = make([]renderedPage, len(plan.ToRender))
	rs.indexPage = make([]renderedPage, len(plan.Pages))
	nDocs := len(plan.ToRender)

	err := forEach(ctx, rs.b.opts.Workers, nDocs+len(plan.Pages), func(ctx context.Context, i int) error {
		var p renderedPage
		if i < nDocs {
			p.slug = plan.ToRender[i]
			doc := rs.bySlug[p.slug]
			p.data, p.err = budgeted(ctx, rs.b.opts.DocumentTimeout, func() ([]byte, error) {
				return rs.b.renderer.Render(doc, rs.snap)
			})
		} else {
			p.key = plan.Pages[i-nDocs]
			p.data, p.err = budgeted(ctx, rs.b.opts.DocumentTimeout, func() ([]byte, error) {
				return rs.b.renderer.RenderPage(p.key, rs.snap)
			})
		}
		if p.err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
		if i < nDocs {
			rs.docPages[i] = p
		} else {
			rs.indexPage[i-nDocs] = p
		}
		return nil
	})
	if err != nil {
		return newCanceledStageError(StageRender, err)
	}

	for _, p := range rs.docPages {
		if p.err != nil {
			doc := rs.bySlug[p.slug]
			rs.failed = append(rs.failed, p.slug)
			rs.issue(StageRender, doc.Slug, doc.SourcePath, renderFailure(doc, p.err))
			continue
		}
		rs.report.Rendered++
	}
	for _, p := range rs.indexPage {
		if p.err != nil {
			rs.issue(StageRender, "", "", ferrors.RenderFailure("index page failed to render").
				WithCause(p.err).WithContext("target", string(p.key)).Build())
			continue
		}
		rs.report.Pages++
	}

	if rs.req.Strict && len(rs.report.Issues) > 0 {
		return newFatalStageError(StageRender, ferrors.BuildError(
			fmt.Sprintf("strict mode: %d document failures", len(rs.report.Issues))).Build())
	}
	if n := rs.issuesIn(StageRender); n > 0 {
		return newWarnStageError(StageRender, fmt.Errorf("%d pages failed to render", n))
	}
	return nil
}

func (rs *runState) issuesIn(stage StageName) int {
	n := 0
	for _, is := range rs.report.Issues {
		if is.Stage == stage {
			n++
		}
	}
	return n
}

func renderFailure(doc *docmodel.Document, err error) error {
	var re *render.RenderError
	if errors.As(err, &re) {
		return ferrors.RenderFailure(re.Message).
			WithContext("slug", doc.Slug).WithContext("path", doc.SourcePath).
			WithContext("target", re.Target).Build()
	}
	return ferrors.RenderFailure("render did not complete").WithCause(err).
		WithContext("slug", doc.Slug).WithContext("path", doc.SourcePath).Build()
}

func stageWrite(_ context.Context, rs *runState) error {
	st, plan, snap := rs.stage, rs.plan, rs.snap

	// Removals first: a stale page path may be reused by a live page.
	for _, s := range plan.Removed {
		if err := st.remove(index.DocumentPath(s)); err != nil {
			return newFatalStageError(StageWrite, writeFailure("cannot remove output", index.DocumentPath(s), err))
		}
	}
	for _, ps := range plan.StalePages {
		if err := st.remove(ps.Path); err != nil {
			return newFatalStageError(StageWrite, writeFailure("cannot remove output", ps.Path, err))
		}
	}

	out := incremental.Outputs{
		Documents: make(map[string]string, len(rs.docPages)),
		Pages:     make(map[index.PageKey]string, len(rs.indexPage)),
	}
	for _, p := range rs.docPages {
		if p.err != nil {
			continue
		}
		rel := index.DocumentPath(p.slug)
		if err := st.write(rel, p.data); err != nil {
			return newFatalStageError(StageWrite, writeFailure("cannot write page", rel, err))
		}
		out.Documents[p.slug] = incremental.HashBytes(p.data)
	}
	for _, p := range rs.indexPage {
		if p.err != nil {
			continue
		}
		rel := snap.PagePath(p.key)
		if err := st.write(rel, p.data); err != nil {
			return newFatalStageError(StageWrite, writeFailure("cannot write page", rel, err))
		}
		out.Pages[p.key] = incremental.HashBytes(p.data)
	}
	if plan.FullRebuild {
		for _, s := range rs.failed {
			if err := st.mirror(index.DocumentPath(s)); err != nil {
				return newFatalStageError(StageWrite, writeFailure("cannot keep previous page", s, err))
			}
		}
	}

	encoded, err := snap.Encode()
	if err != nil {
		return newFatalStageError(StageWrite, ferrors.InternalError("cannot encode corpus index").WithCause(err).Build())
	}
	if err := st.write(IndexFile, encoded); err != nil {
		return newFatalStageError(StageWrite, writeFailure("cannot write corpus index", IndexFile, err))
	}

	next := incremental.Next(plan, rs.b.sig, rs.b.opts.Versioning, rs.docs, snap, out)
	statePath := incremental.StatePath(st.dir)
	if err := incremental.SaveState(statePath, next); err != nil {
		return newFatalStageError(StageWrite, writeFailure("cannot write build state", statePath, err))
	}
	return nil
}

func stagePromote(_ context.Context, rs *runState) error {
	if err := rs.stage.promote(); err != nil {
		return newFatalStageError(StagePromote, writeFailure("cannot promote output", rs.out, err))
	}
	rs.report.Promoted = true
	return nil
}
