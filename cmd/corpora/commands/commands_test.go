package commands

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/corpora/internal/foundation/errors"
)

func runCLI(t *testing.T, args ...string) error {
	t.Helper()
	cli := CLI{stderr: &bytes.Buffer{}}
	parser, err := kong.New(&cli, kong.Vars{"version": "test"}, kong.Exit(func(int) { t.Fatal("unexpected exit") }))
	require.NoError(t, err)
	kctx, err := parser.Parse(args)
	require.NoError(t, err)
	kctx.BindTo(context.Background(), (*context.Context)(nil))
	return kctx.Run(&Global{Logger: slog.Default()}, &cli)
}

func TestInitBuildVerifyHistory(t *testing.T) {
	t.Chdir(t.TempDir())

	require.NoError(t, runCLI(t, "init"))
	require.FileExists(t, "corpora.yaml")
	require.FileExists(t, filepath.Join("content", "hello.md"))

	err := runCLI(t, "init")
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))

	require.NoError(t, runCLI(t, "build", "content", "site"))
	assert.FileExists(t, filepath.Join("site", "hello", "index.html"))
	assert.FileExists(t, filepath.Join("site", "tags", "welcome", "index.html"))
	assert.FileExists(t, filepath.Join("site", "index.json"))

	// A second run is incremental and still succeeds.
	require.NoError(t, runCLI(t, "build", "content", "site"))

	require.NoError(t, runCLI(t, "verify", "site"))
	require.NoError(t, runCLI(t, "history", "--limit", "5"))
	assert.FileExists(t, ".corpora-history.db")
}

func TestBuild_MissingConfigIsUsageError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "content"), 0o750))

	err := runCLI(t, "--config", filepath.Join(dir, "missing.yaml"), "build", filepath.Join(dir, "content"), filepath.Join(dir, "site"))
	require.Error(t, err)
	assert.Equal(t, 2, ferrors.NewCLIErrorAdapter(false, nil).ExitCodeFor(err))
}

func TestBuild_StrictFailsOnBadDocument(t *testing.T) {
	t.Chdir(t.TempDir())
	require.NoError(t, os.MkdirAll("content", 0o750))
	require.NoError(t, os.WriteFile(filepath.Join("content", "ok.md"), []byte("---\ntitle: Ok\n---\nfine\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join("content", "bad.md"), []byte("---\ndate: 2024-01-01\n---\nno title\n"), 0o600))

	require.NoError(t, runCLI(t, "build", "content", "site"))
	assert.FileExists(t, filepath.Join("site", "ok", "index.html"))

	err := runCLI(t, "build", "--strict", "--full", "content", "site2")
	require.Error(t, err)
	assert.Equal(t, 1, ferrors.NewCLIErrorAdapter(false, nil).ExitCodeFor(err))
	assert.NoDirExists(t, "site2")
}

func TestHistory_RequiresDatabase(t *testing.T) {
	t.Chdir(t.TempDir())
	err := runCLI(t, "history")
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
}

func TestLogLevelPrecedence(t *testing.T) {
	c := &CLI{}
	t.Setenv(LogLevelEnv, "error")
	assert.Equal(t, slog.LevelError, c.logLevel("debug"))

	c.Verbose = true
	assert.Equal(t, slog.LevelDebug, c.logLevel("error"))

	t.Setenv(LogLevelEnv, "")
	c.Verbose = false
	assert.Equal(t, slog.LevelWarn, c.logLevel("warn"))
}
