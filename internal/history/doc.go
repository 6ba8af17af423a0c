// Package history keeps a log of build runs in SQLite so operators can see
// how a corpus evolved across runs (outcomes, transitions, failures).
package history
