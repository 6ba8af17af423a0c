package build

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaging_MirrorAndReplaceDoNotTouchOutput(t *testing.T) {
	out := filepath.Join(t.TempDir(), "site")
	require.NoError(t, os.MkdirAll(filepath.Join(out, "a"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(out, "a", "index.html"), []byte("old"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(out, "keep.html"), []byte("keep"), 0o600))

	st, err := beginStaging(out, false, slog.Default())
	require.NoError(t, err)
	require.NoError(t, st.write("a/index.html", []byte("new")))

	got, err := os.ReadFile(filepath.Join(out, "a", "index.html"))
	require.NoError(t, err)
	assert.Equal(t, "old", string(got), "hard-linked original must survive a staged write")

	staged, err := os.ReadFile(filepath.Join(st.dir, "keep.html"))
	require.NoError(t, err)
	assert.Equal(t, "keep", string(staged))

	require.NoError(t, st.promote())
	got, err = os.ReadFile(filepath.Join(out, "a", "index.html"))
	require.NoError(t, err)
	assert.Equal(t, "new", string(got))
	assert.NoDirExists(t, out+".prev")
	assert.NoDirExists(t, stageDirFor(out))
}

func TestStaging_FreshStartsEmpty(t *testing.T) {
	out := filepath.Join(t.TempDir(), "site")
	require.NoError(t, os.MkdirAll(filepath.Join(out, "held"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(out, "held", "index.html"), []byte("h"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(out, "other.html"), []byte("o"), 0o600))

	st, err := beginStaging(out, true, slog.Default())
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(st.dir, "other.html"))

	require.NoError(t, st.mirror("held/index.html"))
	require.NoError(t, st.mirror("absent/index.html"))
	assert.FileExists(t, filepath.Join(st.dir, "held", "index.html"))
}

func TestStaging_RemovePrunesEmptyDirs(t *testing.T) {
	out := filepath.Join(t.TempDir(), "site")
	st, err := beginStaging(out, true, slog.Default())
	require.NoError(t, err)
	require.NoError(t, st.write("tags/go/index.html", []byte("x")))
	require.NoError(t, st.write("tags/index.html", []byte("y")))

	require.NoError(t, st.remove("tags/go/index.html"))
	assert.NoDirExists(t, filepath.Join(st.dir, "tags", "go"))
	assert.FileExists(t, filepath.Join(st.dir, "tags", "index.html"))
}

func TestStaging_AbortRemovesStage(t *testing.T) {
	out := filepath.Join(t.TempDir(), "site")
	st, err := beginStaging(out, true, slog.Default())
	require.NoError(t, err)
	require.NoError(t, st.write("x.html", []byte("x")))

	st.abort()
	st.abort()
	assert.NoDirExists(t, stageDirFor(out))
	assert.NoDirExists(t, out)
}
