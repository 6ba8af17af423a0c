// Package build runs one pass of the corpus pipeline: load, parse, index,
// plan, render and promote. All execution paths (CLI build, watch mode,
// tests) go through Builder.Run.
//
// A run writes into a staging directory next to the output and only swaps it
// into place once every fatal check has passed, so an aborted run leaves the
// previous output and its build state untouched. Per-document failures never
// abort a run; they are collected as report issues.
package build
