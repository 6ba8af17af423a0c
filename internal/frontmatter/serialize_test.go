package frontmatter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSerializeYAML_SortsKeys(t *testing.T) {
	out, err := SerializeYAML(map[string]any{"title": "Hi", "date": "2024-01-02", "keywords": []string{"a", "b"}}, Style{})
	require.NoError(t, err)
	text := string(out)
	require.Less(t, strings.Index(text, "date:"), strings.Index(text, "keywords:"))
	require.Less(t, strings.Index(text, "keywords:"), strings.Index(text, "title:"))

	back, err := ParseYAML(out)
	require.NoError(t, err)
	require.Equal(t, "2024-01-02", back["date"])
}

func TestJoin_RoundTripsThroughSplit(t *testing.T) {
	header, err := SerializeYAML(map[string]any{"title": "Welcome"}, Style{})
	require.NoError(t, err)
	doc := Join(header, []byte("# Welcome\n"), Style{})

	b, err := Split(doc)
	require.NoError(t, err)
	require.True(t, b.Had)
	fields, err := ParseYAML(b.Header)
	require.NoError(t, err)
	require.Equal(t, "Welcome", fields["title"])
	require.Equal(t, []byte("# Welcome\n"), b.Body)
}
