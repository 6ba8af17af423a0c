package history

import "errors"

// Sentinel errors for run history operations.
var (
	// ErrOpen indicates the SQLite database could not be opened.
	ErrOpen = errors.New("could not open run history database")

	// ErrSchema indicates the database schema could not be initialized.
	ErrSchema = errors.New("failed to initialize run history schema")

	// ErrAppend indicates recording a run failed.
	ErrAppend = errors.New("failed to record run")

	// ErrQuery indicates querying runs failed.
	ErrQuery = errors.New("failed to query run history")

	// ErrScan indicates scanning result rows failed.
	ErrScan = errors.New("failed to scan run history rows")
)
