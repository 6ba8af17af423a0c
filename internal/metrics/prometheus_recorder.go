package metrics

import (
	"fmt"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	reg              *prom.Registry
	stageDuration    *prom.HistogramVec
	buildDuration    prom.Histogram
	stageResults     *prom.CounterVec
	buildOutcome     *prom.CounterVec
	transitions      *prom.CounterVec
	documentFailures *prom.CounterVec
	pagesRendered    prom.Counter
	corpusSize       prom.Gauge
}

// NewPrometheusRecorder constructs the collectors and registers them with reg.
// A nil reg gets a private registry.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		reg: reg,
		stageDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "corpora",
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual build stages",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"}),
		buildDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: "corpora",
			Name:      "build_duration_seconds",
			Help:      "Total build duration",
			Buckets:   prom.DefBuckets,
		}),
		stageResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "corpora",
			Name:      "stage_results_total",
			Help:      "Stage result counts by outcome",
		}, []string{"stage", "result"}),
		buildOutcome: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "corpora",
			Name:      "build_outcomes_total",
			Help:      "Build outcomes by final status",
		}, []string{"outcome"}),
		transitions: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "corpora",
			Name:      "document_transitions_total",
			Help:      "Documents by scheduler transition",
		}, []string{"transition"}),
		documentFailures: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "corpora",
			Name:      "document_failures_total",
			Help:      "Per-document failures by error kind",
		}, []string{"kind"}),
		pagesRendered: prom.NewCounter(prom.CounterOpts{
			Namespace: "corpora",
			Name:      "pages_rendered_total",
			Help:      "Document and index pages written",
		}),
		corpusSize: prom.NewGauge(prom.GaugeOpts{
			Namespace: "corpora",
			Name:      "corpus_documents",
			Help:      "Documents in the corpus index after the last build",
		}),
	}
	reg.MustRegister(pr.stageDuration, pr.buildDuration, pr.stageResults, pr.buildOutcome,
		pr.transitions, pr.documentFailures, pr.pagesRendered, pr.corpusSize)
	return pr
}

// Registry returns the registry the collectors live in.
func (p *PrometheusRecorder) Registry() *prom.Registry { return p.reg }

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	if p == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveBuildDuration(d time.Duration) {
	if p == nil {
		return
	}
	p.buildDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStageResult(stage string, result ResultLabel) {
	if p == nil {
		return
	}
	p.stageResults.WithLabelValues(stage, string(result)).Inc()
}

func (p *PrometheusRecorder) IncBuildOutcome(outcome string) {
	if p == nil {
		return
	}
	p.buildOutcome.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) AddDocumentTransitions(transition string, n int) {
	if p == nil || n <= 0 {
		return
	}
	p.transitions.WithLabelValues(transition).Add(float64(n))
}

func (p *PrometheusRecorder) IncDocumentFailure(kind string) {
	if p == nil {
		return
	}
	p.documentFailures.WithLabelValues(kind).Inc()
}

func (p *PrometheusRecorder) AddPagesRendered(n int) {
	if p == nil || n <= 0 {
		return
	}
	p.pagesRendered.Add(float64(n))
}

func (p *PrometheusRecorder) SetCorpusSize(n int) {
	if p == nil {
		return
	}
	p.corpusSize.Set(float64(n))
}

// WriteTextfile writes the current metric values in the text exposition
// format for the node exporter's textfile collector. The file is replaced
// atomically.
func (p *PrometheusRecorder) WriteTextfile(path string) error {
	if err := prom.WriteToTextfile(path, p.reg); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
