package build

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	ferrors "git.home.luguber.info/inful/corpora/internal/foundation/errors"
	"git.home.luguber.info/inful/corpora/internal/incremental"
)

// ReportSchemaVersion versions the report.json layout.
const ReportSchemaVersion = 1

// Outcome is the typed enumeration of final run states.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeWarning  Outcome = "warning"
	OutcomeFailed   Outcome = "failed"
	OutcomeCanceled Outcome = "canceled"
)

// Issue is one per-document failure. Kind is the error category
// (metadata, parse, render, io).
type Issue struct {
	Stage   StageName `json:"stage"`
	Kind    string    `json:"kind"`
	Slug    string    `json:"slug,omitempty"`
	Path    string    `json:"path,omitempty"`
	Target  string    `json:"target,omitempty"`
	Line    int       `json:"line,omitempty"`
	Column  int       `json:"column,omitempty"`
	Message string    `json:"message"`
}

// StageCount aggregates outcomes for a stage.
type StageCount struct {
	Success  int `json:"success,omitempty"`
	Warning  int `json:"warning,omitempty"`
	Fatal    int `json:"fatal,omitempty"`
	Canceled int `json:"canceled,omitempty"`
}

// Report captures the metrics and diagnostics of one run.
type Report struct {
	SchemaVersion int       `json:"schema_version"`
	RunID         string    `json:"run_id"`
	Root          string    `json:"root"`
	OutputDir     string    `json:"output_dir"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	Outcome       Outcome   `json:"outcome"`

	Sources     int                            `json:"sources"`
	Documents   int                            `json:"documents"`
	Transitions map[incremental.Transition]int `json:"transitions"`
	Rendered    int                            `json:"rendered"`
	IndexOnly   int                            `json:"index_only"`
	Pages       int                            `json:"pages"`
	Held        int                            `json:"held"`
	FullRebuild bool                           `json:"full_rebuild"`
	Reason      string                         `json:"reason,omitempty"`
	Promoted    bool                           `json:"promoted"`

	Issues          []Issue                      `json:"issues"`
	StageDurations  map[StageName]time.Duration  `json:"-"`
	StageCounts     map[StageName]StageCount     `json:"stage_counts"`
	StageErrorKinds map[StageName]StageErrorKind `json:"stage_error_kinds,omitempty"`

	// Errors are fatal or canceled stage errors (at most one); Warnings are
	// non-fatal stage errors.
	Errors   []error `json:"-"`
	Warnings []error `json:"-"`
}

func newReport(runID, root, out string) *Report {
	return &Report{
		SchemaVersion:   ReportSchemaVersion,
		RunID:           runID,
		Root:            root,
		OutputDir:       out,
		Start:           time.Now(),
		Transitions:     make(map[incremental.Transition]int),
		Issues:          []Issue{},
		StageDurations:  make(map[StageName]time.Duration),
		StageCounts:     make(map[StageName]StageCount),
		StageErrorKinds: make(map[StageName]StageErrorKind),
	}
}

func (r *Report) recordStage(name StageName, se *StageError) {
	sc := r.StageCounts[name]
	if se == nil {
		sc.Success++
		r.StageCounts[name] = sc
		return
	}
	r.StageErrorKinds[name] = se.Kind
	switch se.Kind {
	case StageErrorWarning:
		sc.Warning++
		r.Warnings = append(r.Warnings, se)
	case StageErrorCanceled:
		sc.Canceled++
		r.Errors = append(r.Errors, se)
	default:
		sc.Fatal++
		r.Errors = append(r.Errors, se)
	}
	r.StageCounts[name] = sc
}

// addIssue records a per-document failure. Context carried by a classified
// error fills the locator fields; slug and path are fallbacks.
func (r *Report) addIssue(stage StageName, slug, path string, err error) Issue {
	is := Issue{Stage: stage, Kind: string(ferrors.CategoryInternal), Slug: slug, Path: path, Message: err.Error()}
	if ce, ok := ferrors.AsClassified(err); ok {
		is.Kind = string(ce.Category())
		is.Message = ce.Message()
		if ce.Cause() != nil {
			is.Message += ": " + ce.Cause().Error()
		}
		ctx := ce.Context()
		if v, ok := ctx.GetString("slug"); ok {
			is.Slug = v
		}
		if v, ok := ctx.GetString("path"); ok {
			is.Path = v
		}
		if v, ok := ctx.GetString("target"); ok {
			is.Target = v
		}
		if v, ok := ctx.GetInt("line"); ok {
			is.Line = v
		}
		if v, ok := ctx.GetInt("column"); ok {
			is.Column = v
		}
	}
	r.Issues = append(r.Issues, is)
	return is
}

// IssuesOf returns the issues of one kind.
func (r *Report) IssuesOf(kind ferrors.ErrorCategory) []Issue {
	var out []Issue
	for _, is := range r.Issues {
		if is.Kind == string(kind) {
			out = append(out, is)
		}
	}
	return out
}

func (r *Report) finish() {
	r.End = time.Now()
	r.deriveOutcome()
}

func (r *Report) deriveOutcome() {
	if len(r.Errors) > 0 {
		for _, e := range r.Errors {
			var se *StageError
			if errors.As(e, &se) && se.Kind == StageErrorCanceled {
				r.Outcome = OutcomeCanceled
				return
			}
		}
		r.Outcome = OutcomeFailed
		return
	}
	if len(r.Warnings) > 0 || len(r.Issues) > 0 {
		r.Outcome = OutcomeWarning
		return
	}
	r.Outcome = OutcomeSuccess
}

// Duration is the wall time of the run.
func (r *Report) Duration() time.Duration { return r.End.Sub(r.Start) }

// Summary returns a human-readable single-line summary.
func (r *Report) Summary() string {
	return fmt.Sprintf("documents=%d rendered=%d index_only=%d pages=%d removed=%d held=%d issues=%d duration=%s outcome=%s",
		r.Documents, r.Rendered, r.IndexOnly, r.Pages, r.Transitions[incremental.Removed], r.Held,
		len(r.Issues), r.Duration().Truncate(time.Millisecond), r.Outcome)
}

type reportFile struct {
	*Report
	DurationMS     int64            `json:"duration_ms"`
	StageDurations map[string]int64 `json:"stage_durations_ms"`
	Errors         []string         `json:"errors,omitempty"`
	Warnings       []string         `json:"warnings,omitempty"`
}

// ReportPath returns the report location inside an output tree.
func ReportPath(outDir string) string {
	return filepath.Join(outDir, incremental.StateDir, "report.json")
}

// Persist writes the report atomically into dir's bookkeeping directory.
func (r *Report) Persist(dir string) error {
	if r.End.IsZero() {
		r.finish()
	}
	f := reportFile{
		Report:         r,
		DurationMS:     r.Duration().Milliseconds(),
		StageDurations: make(map[string]int64, len(r.StageDurations)),
	}
	for k, v := range r.StageDurations {
		f.StageDurations[string(k)] = v.Milliseconds()
	}
	for _, e := range r.Errors {
		f.Errors = append(f.Errors, e.Error())
	}
	for _, w := range r.Warnings {
		f.Warnings = append(f.Warnings, w.Error())
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report json: %w", err)
	}
	path := ReportPath(dir)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("ensure report dir: %w", err)
	}
	return writeFileAtomic(path, append(data, '\n'))
}
