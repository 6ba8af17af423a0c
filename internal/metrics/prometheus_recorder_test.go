package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.ObserveStageDuration("render", 150*time.Millisecond)
	pr.ObserveBuildDuration(500 * time.Millisecond)
	pr.IncStageResult("render", ResultSuccess)
	pr.IncBuildOutcome("success")
	pr.AddDocumentTransitions("added", 3)
	pr.IncDocumentFailure("metadata")
	pr.AddPagesRendered(7)
	pr.SetCorpusSize(3)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	for _, want := range []string{
		"corpora_stage_duration_seconds",
		"corpora_build_outcomes_total",
		"corpora_document_transitions_total",
		"corpora_document_failures_total",
		"corpora_pages_rendered_total",
		"corpora_corpus_documents",
	} {
		assert.True(t, names[want], want)
	}
}

func TestPrometheusRecorder_WriteTextfile(t *testing.T) {
	pr := NewPrometheusRecorder(nil)
	pr.SetCorpusSize(42)

	path := filepath.Join(t.TempDir(), "corpora.prom")
	require.NoError(t, pr.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "corpora_corpus_documents 42")
}

func TestRecorders_SatisfyInterface(t *testing.T) {
	var _ Recorder = NoopRecorder{}
	var _ Recorder = (*PrometheusRecorder)(nil)

	var nilRec *PrometheusRecorder
	assert.NotPanics(t, func() {
		nilRec.IncBuildOutcome("failed")
		nilRec.SetCorpusSize(1)
	})
}
