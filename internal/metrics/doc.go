// Package metrics provides the observability hooks of a build run.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so no call site needs a nil check:
//
//	b := build.New(build.Options{Recorder: metrics.NoopRecorder{}})
//
// PrometheusRecorder backs the interface with client_golang collectors. A
// one-shot CLI run has no scrape endpoint, so the values are exported with
// WriteTextfile for the node exporter's textfile collector.
package metrics
