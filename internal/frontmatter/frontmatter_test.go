package frontmatter

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplit_NoFrontmatter_ReturnsBodyOnly(t *testing.T) {
	input := []byte("# Title\n\nHello\n")

	b, err := Split(input)
	require.NoError(t, err)
	require.False(t, b.Had)
	require.Empty(t, b.Header)
	require.Equal(t, input, b.Body)
	require.Equal(t, 1, b.BodyLine)
}

func TestSplit_YAMLFrontmatter_SplitsHeaderAndBody(t *testing.T) {
	input := []byte("---\ntitle: A\ntags: [x]\n---\n# Title\n")

	b, err := Split(input)
	require.NoError(t, err)
	require.True(t, b.Had)
	require.Equal(t, []byte("title: A\ntags: [x]\n"), b.Header)
	require.Equal(t, []byte("# Title\n"), b.Body)
	require.Equal(t, 5, b.BodyLine)
}

func TestSplit_MissingClosingDelimiter_ReturnsError(t *testing.T) {
	b, err := Split([]byte("---\nkey: value\n# Title\n"))
	require.Error(t, err)
	require.False(t, b.Had)
	require.True(t, errors.Is(err, ErrMissingClosingDelimiter))
}

func TestSplit_CRLF(t *testing.T) {
	b, err := Split([]byte("---\r\nkey: value\r\n---\r\n# Title\r\n"))
	require.NoError(t, err)
	require.True(t, b.Had)
	require.Equal(t, "\r\n", b.Style.Newline)
	require.Equal(t, []byte("key: value\r\n"), b.Header)
	require.Equal(t, []byte("# Title\r\n"), b.Body)
}

func TestSplit_EmptyHeader(t *testing.T) {
	b, err := Split([]byte("---\n---\n# Title\n"))
	require.NoError(t, err)
	require.True(t, b.Had)
	require.Empty(t, b.Header)
	require.Equal(t, 3, b.BodyLine)
}

func TestSplit_ClosingDelimiterAtEOF(t *testing.T) {
	b, err := Split([]byte("---\ntitle: Only\n---"))
	require.NoError(t, err)
	require.True(t, b.Had)
	require.Equal(t, []byte("title: Only\n"), b.Header)
	require.Empty(t, b.Body)
}

func TestParseYAML(t *testing.T) {
	fields, err := ParseYAML([]byte("title: Hello\nkeywords: a, b\n"))
	require.NoError(t, err)
	require.Equal(t, "Hello", fields["title"])

	empty, err := ParseYAML(nil)
	require.NoError(t, err)
	require.Empty(t, empty)

	_, err = ParseYAML([]byte("title: [unclosed\n"))
	require.Error(t, err)
}
