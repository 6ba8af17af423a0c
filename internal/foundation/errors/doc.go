// Package errors provides the classified error primitives used across corpora.
//
// Every failure a build run can report is a ClassifiedError: a category naming the
// error kind (metadata, parse, render, scheduler, io, ...), a severity deciding
// whether the run continues, and a retry strategy. Per-document failures are
// recorded with SeverityError and collected into the run report; only
// SeverityFatal errors abort a run.
//
// Example usage:
//
//	err := errors.ParseFailure("unclosed container").
//		WithContext("slug", slug).
//		WithContext("line", 12).
//		Build()
package errors
