package linkverify

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractPage(t *testing.T) {
	p, err := ExtractPage(strings.NewReader(`<html><head><link rel="stylesheet" href="/s.css"></head>
<body><h2 id="intro">Intro</h2>
<a href="/blog/a/">Post <em>A</em></a>
<img src="pic.png" alt="A picture">
<a name="no-href">x</a>
<script src="https://cdn.example/x.js"></script></body></html>`))
	require.NoError(t, err)

	require.Len(t, p.Links, 4)
	assert.Equal(t, Link{URL: "/s.css", Tag: "link", Attribute: "href"}, p.Links[0])
	assert.Equal(t, "PostA", p.Links[1].Text)
	assert.Equal(t, "A picture", p.Links[2].Text)
	assert.Equal(t, "script", p.Links[3].Tag)
	assert.True(t, p.IDs["intro"])
}

func TestShouldVerifyLink(t *testing.T) {
	for url, want := range map[string]bool{
		"":                         false,
		"#":                        false,
		"mailto:a@b.c":             false,
		"javascript:void(0)":       false,
		"data:image/png;base64,xx": false,
		"#section":                 true,
		"/tags/":                   true,
		"https://x.example":        true,
	} {
		assert.Equal(t, want, ShouldVerifyLink(Link{URL: url}), url)
	}
}
