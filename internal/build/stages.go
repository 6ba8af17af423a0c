package build

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/corpora/internal/logfields"
	"git.home.luguber.info/inful/corpora/internal/metrics"
)

// StageName is a strongly-typed identifier for a build stage.
type StageName string

// Canonical stage names, in execution order.
const (
	StageLock      StageName = "lock"
	StageLoadState StageName = "load_state"
	StageLoad      StageName = "load"
	StageParse     StageName = "parse"
	StageIndex     StageName = "index"
	StagePlan      StageName = "plan"
	StagePrepare   StageName = "prepare_output"
	StageRender    StageName = "render"
	StageWrite     StageName = "write"
	StagePromote   StageName = "promote"
)

// Stage is a discrete unit of work in a run.
type Stage func(ctx context.Context, rs *runState) error

type stageDef struct {
	name StageName
	fn   Stage
}

// StageErrorKind enumerates structured stage error categories.
type StageErrorKind string

const (
	StageErrorFatal    StageErrorKind = "fatal"    // Run must abort.
	StageErrorWarning  StageErrorKind = "warning"  // Non-fatal; record and continue.
	StageErrorCanceled StageErrorKind = "canceled" // Context cancellation.
)

// StageError is a structured error carrying kind, stage and cause.
type StageError struct {
	Kind  StageErrorKind
	Stage StageName
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s stage %s: %v", e.Kind, e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

func newFatalStageError(stage StageName, err error) *StageError {
	return &StageError{Kind: StageErrorFatal, Stage: stage, Err: err}
}
func newWarnStageError(stage StageName, err error) *StageError {
	return &StageError{Kind: StageErrorWarning, Stage: stage, Err: err}
}
func newCanceledStageError(stage StageName, err error) *StageError {
	return &StageError{Kind: StageErrorCanceled, Stage: stage, Err: err}
}

// runStages executes stages in order, recording timings and stopping on the
// first fatal or canceled stage.
func runStages(ctx context.Context, rs *runState, stages []stageDef) error {
	rec := rs.b.recorder
	for _, st := range stages {
		if err := ctx.Err(); err != nil {
			se := newCanceledStageError(st.name, err)
			rs.report.recordStage(st.name, se)
			rec.IncStageResult(string(st.name), metrics.ResultCanceled)
			return se
		}

		t0 := time.Now()
		err := st.fn(ctx, rs)
		dur := time.Since(t0)
		rs.report.StageDurations[st.name] = dur
		rec.ObserveStageDuration(string(st.name), dur)

		if err == nil {
			rs.report.recordStage(st.name, nil)
			rec.IncStageResult(string(st.name), metrics.ResultSuccess)
			rs.logger.Debug("Stage finished", logfields.Stage(string(st.name)), logfields.Duration(dur))
			continue
		}

		var se *StageError
		if !errors.As(err, &se) {
			// Wrap unknown errors as fatal by default.
			se = newFatalStageError(st.name, err)
		}
		rs.report.recordStage(st.name, se)
		switch se.Kind {
		case StageErrorWarning:
			rec.IncStageResult(string(st.name), metrics.ResultWarning)
			rs.logger.Warn("Stage finished with warnings", logfields.Stage(string(st.name)), logfields.Error(se.Err))
			continue
		case StageErrorCanceled:
			rec.IncStageResult(string(st.name), metrics.ResultCanceled)
		default:
			rec.IncStageResult(string(st.name), metrics.ResultFatal)
		}
		rs.logger.Log(ctx, levelFor(se.Kind), "Stage failed", logfields.Stage(string(st.name)), logfields.Error(se.Err))
		return se
	}
	return nil
}

func levelFor(k StageErrorKind) slog.Level {
	if k == StageErrorCanceled {
		return slog.LevelWarn
	}
	return slog.LevelError
}
