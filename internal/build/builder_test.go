package build

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"testing"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/corpora/internal/foundation/errors"
	"git.home.luguber.info/inful/corpora/internal/incremental"
	"git.home.luguber.info/inful/corpora/internal/render"
)

func writeDoc(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
}

func post(title, date, tags, body string) string {
	return "---\ntitle: " + title + "\ndate: " + date + "\ntags: [" + tags + "]\n---\n" + body
}

func seedCorpus(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeDoc(t, root, "alpha.md", post("Alpha", "2024-01-01", "go", "# Intro\n\nSee [beta](xref:beta).\n"))
	writeDoc(t, root, "beta.md", post("Beta", "2024-02-01", "go, web", "Body of beta.\n"))
	writeDoc(t, root, "gamma.md", post("Gamma", "2024-03-01", "web", "Body of gamma.\n"))
	return root
}

func newBuilder(t *testing.T, mutate ...func(*Options)) *Builder {
	t.Helper()
	opts := Options{Site: render.Site{Title: "Notes"}, Workers: 2}
	for _, m := range mutate {
		m(&opts)
	}
	b, err := New(opts)
	require.NoError(t, err)
	return b
}

func readFile(t *testing.T, p string) string {
	t.Helper()
	data, err := os.ReadFile(p)
	require.NoError(t, err)
	return string(data)
}

func TestRun_FirstBuildWritesSite(t *testing.T) {
	root := seedCorpus(t)
	out := filepath.Join(t.TempDir(), "site")

	rep, err := newBuilder(t).Run(context.Background(), Request{Root: root, OutputDir: out})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, rep.Outcome)
	assert.True(t, rep.Promoted)
	assert.True(t, rep.FullRebuild)
	assert.Equal(t, 3, rep.Rendered)
	assert.Equal(t, 3, rep.Transitions[incremental.Added])

	for _, rel := range []string{
		"alpha/index.html", "beta/index.html", "gamma/index.html",
		"index.html", "tags/index.html", "tags/go/index.html", "tags/web/index.html",
		IndexFile, ".corpora/state.json", ".corpora/report.json",
	} {
		assert.FileExists(t, filepath.Join(out, rel))
	}
	assert.Contains(t, readFile(t, filepath.Join(out, "tags/web/index.html")), "Gamma")
	assert.NoDirExists(t, stageDirFor(out))
	assert.NoDirExists(t, out+".prev")

	var persisted map[string]any
	require.NoError(t, json.Unmarshal([]byte(readFile(t, ReportPath(out))), &persisted))
	assert.Equal(t, "success", persisted["outcome"])
	assert.Equal(t, rep.RunID, persisted["run_id"])
}

func TestRun_PartialFailureIsolation(t *testing.T) {
	root := seedCorpus(t)
	writeDoc(t, root, "untitled.md", "---\ndate: 2024-04-01\n---\nNo title.\n")
	out := filepath.Join(t.TempDir(), "site")

	rep, err := newBuilder(t).Run(context.Background(), Request{Root: root, OutputDir: out})
	require.NoError(t, err)
	assert.Equal(t, OutcomeWarning, rep.Outcome)
	assert.Equal(t, 3, rep.Rendered)
	assert.Equal(t, 4, rep.Sources)

	issues := rep.IssuesOf(ferrors.CategoryMetadata)
	require.Len(t, issues, 1)
	assert.Len(t, rep.Issues, 1)
	assert.Equal(t, "untitled.md", issues[0].Path)
	assert.Equal(t, StageLoad, issues[0].Stage)
	assert.NoFileExists(t, filepath.Join(out, "untitled/index.html"))
}

func TestRun_SecondRunIsIncremental(t *testing.T) {
	root := seedCorpus(t)
	out := filepath.Join(t.TempDir(), "site")
	b := newBuilder(t)

	_, err := b.Run(context.Background(), Request{Root: root, OutputDir: out})
	require.NoError(t, err)
	firstIndex := readFile(t, filepath.Join(out, IndexFile))
	firstState := readFile(t, incremental.StatePath(out))

	rep, err := b.Run(context.Background(), Request{Root: root, OutputDir: out})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, rep.Outcome)
	assert.False(t, rep.FullRebuild)
	assert.Zero(t, rep.Rendered)
	assert.Zero(t, rep.Pages)
	assert.Equal(t, 3, rep.Transitions[incremental.Unchanged])
	assert.Equal(t, 3, rep.IndexOnly)

	assert.Equal(t, firstIndex, readFile(t, filepath.Join(out, IndexFile)))
	assert.Equal(t, firstState, readFile(t, incremental.StatePath(out)))
	assert.FileExists(t, filepath.Join(out, "alpha/index.html"))
	assert.FileExists(t, filepath.Join(out, "tags/go/index.html"))
}

func TestRun_NewTaggedDocumentRerendersTagPage(t *testing.T) {
	root := seedCorpus(t)
	out := filepath.Join(t.TempDir(), "site")
	b := newBuilder(t)
	_, err := b.Run(context.Background(), Request{Root: root, OutputDir: out})
	require.NoError(t, err)

	writeDoc(t, root, "delta.md", post("Delta", "2024-05-01", "go", "New.\n"))
	rep, err := b.Run(context.Background(), Request{Root: root, OutputDir: out})
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Transitions[incremental.Added])
	assert.Contains(t, readFile(t, filepath.Join(out, "tags/go/index.html")), "Delta")
	assert.Contains(t, readFile(t, filepath.Join(out, "index.html")), "Delta")
	assert.NotContains(t, readFile(t, filepath.Join(out, "tags/web/index.html")), "Delta")
}

func TestRun_RemovedDocumentAndTagArePruned(t *testing.T) {
	root := seedCorpus(t)
	out := filepath.Join(t.TempDir(), "site")
	b := newBuilder(t)
	_, err := b.Run(context.Background(), Request{Root: root, OutputDir: out})
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(root, "gamma.md")))
	writeDoc(t, root, "beta.md", post("Beta", "2024-02-01", "go", "Body of beta.\n"))
	rep, err := b.Run(context.Background(), Request{Root: root, OutputDir: out})
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Transitions[incremental.Removed])
	assert.NoFileExists(t, filepath.Join(out, "gamma/index.html"))
	assert.NoDirExists(t, filepath.Join(out, "gamma"))
	assert.NoFileExists(t, filepath.Join(out, "tags/web/index.html"))
	assert.NotContains(t, readFile(t, filepath.Join(out, "index.html")), "Gamma")
}

func TestRun_HeldDocumentKeepsPreviousOutput(t *testing.T) {
	root := seedCorpus(t)
	out := filepath.Join(t.TempDir(), "site")
	b := newBuilder(t)
	_, err := b.Run(context.Background(), Request{Root: root, OutputDir: out})
	require.NoError(t, err)

	writeDoc(t, root, "gamma.md", post("Gamma", "2024-03-01", "web", ":::note\nnever closed\n"))
	rep, err := b.Run(context.Background(), Request{Root: root, OutputDir: out})
	require.NoError(t, err)
	assert.Equal(t, OutcomeWarning, rep.Outcome)
	assert.Equal(t, 1, rep.Held)

	issues := rep.IssuesOf(ferrors.CategoryParse)
	require.Len(t, issues, 1)
	assert.Equal(t, "gamma.md", issues[0].Path)
	assert.Positive(t, issues[0].Line)

	assert.FileExists(t, filepath.Join(out, "gamma/index.html"))
	st, err := incremental.LoadState(incremental.StatePath(out))
	require.NoError(t, err)
	assert.Contains(t, st.Documents, "gamma")
}

func TestRun_RenderFailureIsReported(t *testing.T) {
	root := seedCorpus(t)
	writeDoc(t, root, "broken.md", post("Broken", "2024-06-01", "go", "See [nothing](xref:nowhere).\n"))
	out := filepath.Join(t.TempDir(), "site")

	rep, err := newBuilder(t).Run(context.Background(), Request{Root: root, OutputDir: out})
	require.NoError(t, err)
	issues := rep.IssuesOf(ferrors.CategoryRender)
	require.Len(t, issues, 1)
	assert.Equal(t, "broken", issues[0].Slug)
	assert.Equal(t, "xref:nowhere", issues[0].Target)
	assert.Equal(t, 3, rep.Rendered)
	assert.NoFileExists(t, filepath.Join(out, "broken/index.html"))

	st, err := incremental.LoadState(incremental.StatePath(out))
	require.NoError(t, err)
	assert.NotContains(t, st.Documents, "broken")
}

func TestRun_StrictAbortLeavesOutputUntouched(t *testing.T) {
	root := seedCorpus(t)
	out := filepath.Join(t.TempDir(), "site")
	b := newBuilder(t)
	_, err := b.Run(context.Background(), Request{Root: root, OutputDir: out})
	require.NoError(t, err)
	before := readFile(t, incremental.StatePath(out))
	home := readFile(t, filepath.Join(out, "index.html"))

	writeDoc(t, root, "untitled.md", "---\ndate: 2024-04-01\n---\n")
	writeDoc(t, root, "delta.md", post("Delta", "2024-05-01", "go", "New.\n"))
	rep, err := b.Run(context.Background(), Request{Root: root, OutputDir: out, Strict: true})
	require.Error(t, err)
	assert.Equal(t, OutcomeFailed, rep.Outcome)
	assert.False(t, rep.Promoted)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryBuild))

	assert.Equal(t, before, readFile(t, incremental.StatePath(out)))
	assert.Equal(t, home, readFile(t, filepath.Join(out, "index.html")))
	assert.NoFileExists(t, filepath.Join(out, "delta/index.html"))
	assert.NoDirExists(t, stageDirFor(out))
}

func TestRun_CanceledBeforeStart(t *testing.T) {
	root := seedCorpus(t)
	out := filepath.Join(t.TempDir(), "site")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rep, err := newBuilder(t).Run(ctx, Request{Root: root, OutputDir: out})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, OutcomeCanceled, rep.Outcome)
	assert.NoDirExists(t, out)
	assert.NoDirExists(t, stageDirFor(out))
}

func TestRun_LockHeldIsFatal(t *testing.T) {
	root := seedCorpus(t)
	out := filepath.Join(t.TempDir(), "site")
	fl := flock.New(lockPathFor(out))
	ok, err := fl.TryLock()
	require.NoError(t, err)
	require.True(t, ok)
	t.Cleanup(func() { _ = fl.Unlock() })

	rep, err := newBuilder(t).Run(context.Background(), Request{Root: root, OutputDir: out})
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryLock))
	assert.Equal(t, OutcomeFailed, rep.Outcome)
	assert.NoDirExists(t, out)
}

func TestRun_SchemaMismatch(t *testing.T) {
	root := seedCorpus(t)
	out := filepath.Join(t.TempDir(), "site")
	b := newBuilder(t)
	_, err := b.Run(context.Background(), Request{Root: root, OutputDir: out})
	require.NoError(t, err)

	st, err := incremental.LoadState(incremental.StatePath(out))
	require.NoError(t, err)
	st.SchemaVersion = 99
	require.NoError(t, incremental.SaveState(incremental.StatePath(out), st))

	t.Run("fail policy aborts", func(t *testing.T) {
		strictB := newBuilder(t, func(o *Options) { o.Mismatch = incremental.MismatchFail })
		_, err := strictB.Run(context.Background(), Request{Root: root, OutputDir: out})
		require.Error(t, err)
		assert.True(t, ferrors.HasCategory(err, ferrors.CategoryScheduler))
		after, lerr := incremental.LoadState(incremental.StatePath(out))
		require.NoError(t, lerr)
		assert.Equal(t, 99, after.SchemaVersion)
	})

	t.Run("default policy rebuilds", func(t *testing.T) {
		rep, err := b.Run(context.Background(), Request{Root: root, OutputDir: out})
		require.NoError(t, err)
		assert.True(t, rep.FullRebuild)
		assert.Equal(t, 3, rep.Transitions[incremental.Modified])
		assert.Equal(t, 3, rep.Rendered)
		after, lerr := incremental.LoadState(incremental.StatePath(out))
		require.NoError(t, lerr)
		assert.Equal(t, incremental.SchemaVersion, after.SchemaVersion)
	})
}

func TestRun_HeldDocumentSurvivesDiscardedState(t *testing.T) {
	cases := map[string]string{
		"schema mismatch": `{"schema_version": 0}`,
		"corrupt":         `{"schema_version":`,
	}
	for name, state := range cases {
		t.Run(name, func(t *testing.T) {
			root := seedCorpus(t)
			out := filepath.Join(t.TempDir(), "site")
			b := newBuilder(t)
			_, err := b.Run(context.Background(), Request{Root: root, OutputDir: out})
			require.NoError(t, err)
			before := readFile(t, filepath.Join(out, "gamma/index.html"))

			require.NoError(t, os.WriteFile(incremental.StatePath(out), []byte(state), 0o600))
			writeDoc(t, root, "gamma.md", post("Gamma", "2024-03-01", "web", ":::note\nnever closed\n"))
			rep, err := b.Run(context.Background(), Request{Root: root, OutputDir: out})
			require.NoError(t, err)
			assert.True(t, rep.FullRebuild)
			assert.Equal(t, 1, rep.Held)
			assert.Equal(t, before, readFile(t, filepath.Join(out, "gamma/index.html")))

			st, err := incremental.LoadState(incremental.StatePath(out))
			require.NoError(t, err)
			require.Contains(t, st.Documents, "gamma")
			assert.Equal(t, "gamma.md", st.Documents["gamma"].SourcePath)
		})
	}
}

var tagHref = regexp.MustCompile(`href="/?(tags/[^"/]+)/"`)

func TestRun_TagPagesStayReachableWhenTagsCollide(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "cpp.md", post("Templates", "2024-01-01", "c++", "Body.\n"))
	out := filepath.Join(t.TempDir(), "site")
	b := newBuilder(t)
	_, err := b.Run(context.Background(), Request{Root: root, OutputDir: out})
	require.NoError(t, err)
	cppPage := tagHref.FindStringSubmatch(readFile(t, filepath.Join(out, "tags/index.html")))
	require.Len(t, cppPage, 2)

	writeDoc(t, root, "pointers.md", post("Pointers", "2024-02-01", "c", "Body.\n"))
	rep, err := b.Run(context.Background(), Request{Root: root, OutputDir: out})
	require.NoError(t, err)
	assert.False(t, rep.FullRebuild)

	overview := readFile(t, filepath.Join(out, "tags/index.html"))
	links := tagHref.FindAllStringSubmatch(overview, -1)
	require.Len(t, links, 2)
	for _, m := range links {
		assert.FileExists(t, filepath.Join(out, filepath.FromSlash(m[1]), "index.html"))
	}
	assert.Contains(t, overview, `/`+cppPage[1]+`/"`, "existing tag page keeps its URL")
	assert.Contains(t, readFile(t, filepath.Join(out, "tags/c/index.html")), "Pointers")
	assert.Contains(t, readFile(t, filepath.Join(out, cppPage[1], "index.html")), "Templates")
}

type captureSink struct {
	mu      sync.Mutex
	reports []*Report
}

func (c *captureSink) Record(_ context.Context, r *Report) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reports = append(c.reports, r)
	return nil
}

func TestRun_SinksSeeEveryRun(t *testing.T) {
	root := seedCorpus(t)
	out := filepath.Join(t.TempDir(), "site")
	sink := &captureSink{}
	b := newBuilder(t, func(o *Options) { o.Sinks = []Sink{sink} })

	_, err := b.Run(context.Background(), Request{Root: root, OutputDir: out})
	require.NoError(t, err)
	_, err = b.Run(context.Background(), Request{Root: filepath.Join(root, "missing"), OutputDir: out})
	require.Error(t, err)

	require.Len(t, sink.reports, 2)
	assert.Equal(t, OutcomeSuccess, sink.reports[0].Outcome)
	assert.Equal(t, OutcomeFailed, sink.reports[1].Outcome)
	assert.NotEqual(t, sink.reports[0].RunID, sink.reports[1].RunID)
}
