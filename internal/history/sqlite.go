package history

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"git.home.luguber.info/inful/corpora/internal/build"
	"git.home.luguber.info/inful/corpora/internal/incremental"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore opens (creating if needed) a run history database.
// Use ":memory:" for an in-memory database, or a file path for persistent storage.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpen, err)
	}
	// One connection: an in-memory database is private to its connection.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close() // Best effort cleanup on initialization error
		return nil, fmt.Errorf("%w: %w", ErrSchema, err)
	}
	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL UNIQUE,
		root TEXT NOT NULL,
		output_dir TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		outcome TEXT NOT NULL,
		documents INTEGER NOT NULL,
		rendered INTEGER NOT NULL,
		pages INTEGER NOT NULL,
		removed INTEGER NOT NULL,
		issues INTEGER NOT NULL,
		full_rebuild INTEGER NOT NULL,
		reason TEXT
	);
	CREATE TABLE IF NOT EXISTS issues (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(run_id),
		stage TEXT NOT NULL,
		kind TEXT NOT NULL,
		slug TEXT,
		path TEXT,
		target TEXT,
		line INTEGER,
		col INTEGER,
		message TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_issues_run ON issues(run_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record appends r and its issues in one transaction.
func (s *SQLiteStore) Record(ctx context.Context, r *build.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAppend, err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (run_id, root, output_dir, started_at, duration_ms, outcome, documents,
			rendered, pages, removed, issues, full_rebuild, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Root, r.OutputDir, r.Start.UnixMilli(), r.Duration().Milliseconds(), string(r.Outcome),
		r.Documents, r.Rendered, r.Pages, r.Transitions[incremental.Removed], len(r.Issues), r.FullRebuild, r.Reason,
	)
	if err != nil {
		return fmt.Errorf("%w: insert run: %w", ErrAppend, err)
	}
	for _, is := range r.Issues {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO issues (run_id, stage, kind, slug, path, target, line, col, message) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
			r.RunID, string(is.Stage), is.Kind, is.Slug, is.Path, is.Target, is.Line, is.Column, is.Message,
		)
		if err != nil {
			return fmt.Errorf("%w: insert issue: %w", ErrAppend, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %w", ErrAppend, err)
	}
	return nil
}

// Recent lists up to limit runs, newest first. A non-positive limit lists all.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, root, output_dir, started_at, duration_ms, outcome, documents, rendered,
			pages, removed, issues, full_rebuild, reason
		FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQuery, err)
	}
	defer func() { _ = rows.Close() }()

	var runs []Run
	for rows.Next() {
		var (
			r        Run
			started  int64
			duration int64
			outcome  string
			reason   sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.RunID, &r.Root, &r.OutputDir, &started, &duration, &outcome,
			&r.Documents, &r.Rendered, &r.Pages, &r.Removed, &r.IssueCount, &r.FullRebuild, &reason); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrScan, err)
		}
		r.Start = time.UnixMilli(started)
		r.Duration = time.Duration(duration) * time.Millisecond
		r.Outcome = build.Outcome(outcome)
		r.Reason = reason.String
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate rows: %w", ErrScan, err)
	}
	return runs, nil
}

// Issues lists the issues recorded for runID in report order.
func (s *SQLiteStore) Issues(ctx context.Context, runID string) ([]build.Issue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT stage, kind, slug, path, target, line, col, message FROM issues WHERE run_id = ? ORDER BY id",
		runID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQuery, err)
	}
	defer func() { _ = rows.Close() }()

	var out []build.Issue
	for rows.Next() {
		var (
			is                 build.Issue
			stage              string
			slug, path, target sql.NullString
			line, col          sql.NullInt64
		)
		if err := rows.Scan(&stage, &is.Kind, &slug, &path, &target, &line, &col, &is.Message); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrScan, err)
		}
		is.Stage = build.StageName(stage)
		is.Slug, is.Path, is.Target = slug.String, path.String, target.String
		is.Line, is.Column = int(line.Int64), int(col.Int64)
		out = append(out, is)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate rows: %w", ErrScan, err)
	}
	return out, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

var _ Store = (*SQLiteStore)(nil)
