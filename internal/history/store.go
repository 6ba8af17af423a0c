package history

import (
	"context"
	"time"

	"git.home.luguber.info/inful/corpora/internal/build"
)

// Run is one recorded build run.
type Run struct {
	ID          int64
	RunID       string
	Root        string
	OutputDir   string
	Start       time.Time
	Duration    time.Duration
	Outcome     build.Outcome
	Documents   int
	Rendered    int
	Pages       int
	Removed     int
	IssueCount  int
	FullRebuild bool
	Reason      string
}

// Store persists run reports. It satisfies build.Sink.
type Store interface {
	// Record appends the run and its issues.
	Record(ctx context.Context, r *build.Report) error

	// Recent lists the newest runs first.
	Recent(ctx context.Context, limit int) ([]Run, error)

	// Issues lists the per-document failures of one run.
	Issues(ctx context.Context, runID string) ([]build.Issue, error)

	// Close closes the store and releases resources.
	Close() error
}

var _ build.Sink = (Store)(nil)
