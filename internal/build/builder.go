package build

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"git.home.luguber.info/inful/corpora/internal/docmodel"
	ferrors "git.home.luguber.info/inful/corpora/internal/foundation/errors"
	"git.home.luguber.info/inful/corpora/internal/incremental"
	"git.home.luguber.info/inful/corpora/internal/index"
	"git.home.luguber.info/inful/corpora/internal/loader"
	"git.home.luguber.info/inful/corpora/internal/logfields"
	"git.home.luguber.info/inful/corpora/internal/metrics"
	"git.home.luguber.info/inful/corpora/internal/render"
	"git.home.luguber.info/inful/corpora/internal/retry"
)

// DefaultDocumentTimeout bounds the parse and render of a single document.
const DefaultDocumentTimeout = 10 * time.Second

// Sink receives the report of every finished run, promoted or not.
type Sink interface {
	Record(ctx context.Context, r *Report) error
}

// Options configure a Builder. Zero values select defaults.
type Options struct {
	Site            render.Site
	Workers         int
	DocumentTimeout time.Duration
	Versioning      incremental.Versioning
	Mismatch        incremental.MismatchPolicy
	GitDates        bool
	ReadPolicy      retry.Policy
	Logger          *slog.Logger
	Recorder        metrics.Recorder
	Sinks           []Sink
}

// Request names the corpus and output of one run.
type Request struct {
	Root      string
	OutputDir string
	// Full discards the prior state and re-renders everything.
	Full bool
	// Strict turns any per-document failure into a fatal run failure.
	Strict bool
}

// Builder executes build runs. It is safe to reuse across runs; concurrent
// runs against the same output are excluded by a file lock.
type Builder struct {
	opts     Options
	renderer *render.Renderer
	sig      incremental.Signature
	logger   *slog.Logger
	recorder metrics.Recorder
}

// New validates opts and prepares the renderer.
func New(opts Options) (*Builder, error) {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.DocumentTimeout == 0 {
		opts.DocumentTimeout = DefaultDocumentTimeout
	}
	if opts.Versioning == "" {
		opts.Versioning = incremental.VersioningIndependent
	}
	if opts.Mismatch == "" {
		opts.Mismatch = incremental.MismatchRebuild
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Recorder == nil {
		opts.Recorder = metrics.NoopRecorder{}
	}
	r, err := render.New(opts.Site)
	if err != nil {
		return nil, ferrors.InternalError("cannot load templates").WithCause(err).Build()
	}
	return &Builder{
		opts:     opts,
		renderer: r,
		sig: incremental.Signature{
			SchemaVersion:   incremental.SchemaVersion,
			RendererVersion: render.Version,
			TemplateHash:    r.TemplateHash(),
		},
		logger:   opts.Logger,
		recorder: opts.Recorder,
	}, nil
}

// Signature is the renderer identity stamped on states this Builder writes.
func (b *Builder) Signature() incremental.Signature { return b.sig }

// runState carries the data flowing between the stages of one run.
type runState struct {
	b      *Builder
	req    Request
	out    string
	report *Report
	logger *slog.Logger

	lock         *flock.Flock
	prior        *incremental.State
	priorCorrupt bool

	loaded []*docmodel.Document
	held   []string // source paths that failed to load or parse
	docs   []*docmodel.Document
	bySlug map[string]*docmodel.Document
	snap   *index.Snapshot
	plan   *incremental.Plan
	stage  *staging

	docPages  []renderedPage
	indexPage []renderedPage
	failed    []string // slugs whose render failed
}

type renderedPage struct {
	slug string
	key  index.PageKey
	data []byte
	err  error
}

// Run executes one build pass. The returned report is never nil; err is the
// fatal condition that aborted the run, if any.
func (b *Builder) Run(ctx context.Context, req Request) (*Report, error) {
	runID := uuid.NewString()
	out := filepath.Clean(req.OutputDir)
	rs := &runState{
		b:      b,
		req:    req,
		out:    out,
		report: newReport(runID, req.Root, out),
		logger: b.logger.With(logfields.RunID(runID)),
	}
	rs.logger.Info("Build started", logfields.Path(req.Root), slog.String("output", out),
		logfields.Workers(b.opts.Workers), slog.Bool("full", req.Full))

	defer rs.release()

	err := runStages(ctx, rs, []stageDef{
		{StageLock, stageLock},
		{StageLoadState, stageLoadState},
		{StageLoad, stageLoad},
		{StageParse, stageParse},
		{StageIndex, stageIndex},
		{StagePlan, stagePlan},
		{StagePrepare, stagePrepare},
		{StageRender, stageRender},
		{StageWrite, stageWrite},
		{StagePromote, stagePromote},
	})
	if err != nil {
		rs.stage.abort()
	}
	rs.report.finish()
	if err == nil {
		if perr := rs.report.Persist(out); perr != nil {
			rs.logger.Warn("Failed to persist build report", logfields.Error(perr))
		}
	}
	b.record(ctx, rs.report)

	rs.logger.Info("Build finished", logfields.Outcome(string(rs.report.Outcome)),
		slog.String("summary", rs.report.Summary()))
	if err != nil {
		var se *StageError
		if errors.As(err, &se) {
			return rs.report, se.Err
		}
		return rs.report, err
	}
	return rs.report, nil
}

func (rs *runState) release() {
	if rs.lock == nil {
		return
	}
	if err := rs.lock.Unlock(); err != nil {
		rs.logger.Warn("Failed to release output lock", logfields.Error(err))
	}
}

// record forwards the finished report to metrics and sinks. Failures here
// never change the run outcome.
func (b *Builder) record(ctx context.Context, r *Report) {
	b.recorder.ObserveBuildDuration(r.Duration())
	b.recorder.IncBuildOutcome(string(r.Outcome))
	for tr, n := range r.Transitions {
		b.recorder.AddDocumentTransitions(string(tr), n)
	}
	for _, is := range r.Issues {
		b.recorder.IncDocumentFailure(is.Kind)
	}
	b.recorder.AddPagesRendered(r.Rendered + r.Pages)
	if r.Outcome != OutcomeFailed && r.Outcome != OutcomeCanceled {
		b.recorder.SetCorpusSize(r.Documents)
	}

	// Sinks still get the report when the run was canceled.
	sinkCtx := context.WithoutCancel(ctx)
	for _, s := range b.opts.Sinks {
		if err := s.Record(sinkCtx, r); err != nil {
			b.logger.Warn("Run sink failed", logfields.RunID(r.RunID), slog.String("sink", fmt.Sprintf("%T", s)), logfields.Error(err))
		}
	}
}

func (b *Builder) newLoader(root string) *loader.Loader {
	return loader.New(loader.Options{
		Root:       root,
		GitDates:   b.opts.GitDates,
		ReadPolicy: b.opts.ReadPolicy,
		Logger:     b.logger,
	})
}
