package markup

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_SectionsNestByLevel(t *testing.T) {
	body := "Intro text.\n\n# One\n\nfirst\n\n## One A\n\nnested\n\n# Two\n\nsecond\n"

	tree, err := Parse([]byte(body), Options{})
	require.NoError(t, err)
	require.Len(t, tree.Blocks, 3)

	_, isPara := tree.Blocks[0].(*Paragraph)
	require.True(t, isPara)

	one, ok := tree.Blocks[1].(*Section)
	require.True(t, ok)
	assert.Equal(t, "one", one.Heading.Anchor)
	require.Len(t, one.Children, 2)
	oneA, ok := one.Children[1].(*Section)
	require.True(t, ok)
	assert.Equal(t, 2, oneA.Heading.Level)
	require.Len(t, oneA.Children, 1)

	two, ok := tree.Blocks[2].(*Section)
	require.True(t, ok)
	assert.Equal(t, "two", two.Heading.Anchor)
}

func TestParse_DuplicateHeadingAnchorsAreSuffixed(t *testing.T) {
	tree, err := Parse([]byte("# Setup\n\n## Setup\n\n# Setup\n"), Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"setup", "setup-2", "setup-3"}, tree.Anchors())
}

func TestParse_CodeBlockKeepsLanguageAndText(t *testing.T) {
	body := "```go\nfunc main() {}\n:::\n```\n"
	tree, err := Parse([]byte(body), Options{})
	require.NoError(t, err)
	require.Len(t, tree.Blocks, 1)
	code, ok := tree.Blocks[0].(*CodeBlock)
	require.True(t, ok)
	assert.Equal(t, "go", code.Language)
	assert.Equal(t, "func main() {}\n:::\n", code.Text)
}

func TestParse_Containers(t *testing.T) {
	body := "before\n\n:::warning Mind the gap\nOuter\n\n:::tip\ninner\n:::\n:::\n\nafter\n"
	tree, err := Parse([]byte(body), Options{})
	require.NoError(t, err)
	require.Len(t, tree.Blocks, 3)

	outer, ok := tree.Blocks[1].(*Callout)
	require.True(t, ok)
	assert.Equal(t, CalloutWarning, outer.Kind)
	assert.Equal(t, "Mind the gap", outer.Title)
	require.Len(t, outer.Children, 2)
	inner, ok := outer.Children[1].(*Callout)
	require.True(t, ok)
	assert.Equal(t, CalloutTip, inner.Kind)
}

func TestParse_ParagraphCallout(t *testing.T) {
	tree, err := Parse([]byte("NOTE: remember the **flag**.\n"), Options{})
	require.NoError(t, err)
	require.Len(t, tree.Blocks, 1)
	c, ok := tree.Blocks[0].(*Callout)
	require.True(t, ok)
	assert.Equal(t, CalloutNote, c.Kind)
	p := c.Children[0].(*Paragraph)
	assert.Equal(t, "remember the flag.", PlainText(p.Content))
}

func TestParse_LoneImageAndLinkArePromoted(t *testing.T) {
	body := "![A cat](cat.png \"Our cat\")\n\n[Next post](xref:next)\n\nText with [inline](a.md) link.\n"
	tree, err := Parse([]byte(body), Options{})
	require.NoError(t, err)
	require.Len(t, tree.Blocks, 3)

	img, ok := tree.Blocks[0].(*Image)
	require.True(t, ok)
	assert.Equal(t, "cat.png", img.Ref)
	assert.Equal(t, "A cat", img.Alt)
	assert.Equal(t, "Our cat", img.Caption)

	link, ok := tree.Blocks[1].(*Link)
	require.True(t, ok)
	assert.Equal(t, "xref:next", link.Target)

	_, ok = tree.Blocks[2].(*Paragraph)
	require.True(t, ok)
	assert.Equal(t, []string{"cat.png", "xref:next", "a.md"}, tree.Targets())
}

func TestParse_ReferenceDefinitionAcrossContainer(t *testing.T) {
	body := ":::note\nSee [the guide][g] for details.\n:::\n\n[g]: xref:guide\n"
	tree, err := Parse([]byte(body), Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"xref:guide"}, tree.Targets())
}

func TestParse_Table(t *testing.T) {
	body := "| a | b |\n|:--|--:|\n| 1 | `2` |\n"
	tree, err := Parse([]byte(body), Options{})
	require.NoError(t, err)
	require.Len(t, tree.Blocks, 1)
	tbl, ok := tree.Blocks[0].(*Table)
	require.True(t, ok)
	assert.Equal(t, []Align{AlignLeft, AlignRight}, tbl.Align)
	require.Len(t, tbl.Header, 2)
	require.Len(t, tbl.Rows, 1)
	assert.Equal(t, "2", PlainText(tbl.Rows[0][1]))
}

func TestParse_ListsQuotesRulesHTML(t *testing.T) {
	body := "1. one\n2. two\n\n> quoted\n\n---\n\n<div>raw</div>\n"
	tree, err := Parse([]byte(body), Options{})
	require.NoError(t, err)
	require.Len(t, tree.Blocks, 4)
	list := tree.Blocks[0].(*List)
	assert.True(t, list.Ordered)
	assert.Len(t, list.Items, 2)
	_, ok := tree.Blocks[1].(*Quote)
	assert.True(t, ok)
	_, ok = tree.Blocks[2].(*Rule)
	assert.True(t, ok)
	raw := tree.Blocks[3].(*RawHTML)
	assert.Contains(t, raw.HTML, "<div>raw</div>")
}

func TestParse_MalformedNesting(t *testing.T) {
	cases := []struct {
		name    string
		body    string
		line    int
		message string
	}{
		{"unmatched close", "text\n:::\n", 12, "closing ::: without an open container"},
		{"unclosed container", "a\n\n:::note\nbody\n", 13, "container :::note is never closed"},
		{"unknown kind", ":::danger\nx\n:::\n", 11, "unknown container kind \"danger\""},
		{"unterminated fence", "ok\n\n```js\nlet x\n", 13, "unterminated code fence"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.body), Options{LineOffset: 10})
			require.Error(t, err)
			var pe *ParseError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tc.line, pe.Line)
			assert.Equal(t, tc.message, pe.Message)
			assert.GreaterOrEqual(t, pe.Column, 1)
		})
	}
}

func TestParse_IsDeterministic(t *testing.T) {
	body := []byte("# T\n\n:::note\nA [x](y)\n:::\n")
	a, err := Parse(body, Options{})
	require.NoError(t, err)
	b, err := Parse(body, Options{})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
