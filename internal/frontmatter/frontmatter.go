// Package frontmatter splits a `---` delimited YAML header from a markdown body.
package frontmatter

import (
	"bytes"
	"errors"

	"gopkg.in/yaml.v3"
)

// ErrMissingClosingDelimiter indicates the document started with a YAML
// front matter delimiter but did not contain a closing delimiter.
var ErrMissingClosingDelimiter = errors.New("front matter opening delimiter found but closing delimiter is missing")

// Style captures the newline shape of a source file.
type Style struct {
	Newline            string
	HasTrailingNewline bool
}

// Block is the result of Split.
type Block struct {
	Header []byte // raw YAML without delimiters; nil when absent
	Body   []byte
	Had    bool
	// BodyLine is the 1-based line number in the source file where Body starts.
	BodyLine int
	Style    Style
}

// Split separates YAML front matter from the markdown body.
//
// If the document does not start with a delimiter line, Had is false and Body
// is the full input.
func Split(content []byte) (Block, error) {
	style := detectStyle(content)
	nl := style.Newline
	open := []byte("---" + nl)
	if !bytes.HasPrefix(content, open) {
		return Block{Body: content, BodyLine: 1, Style: style}, nil
	}

	start := len(open)
	if bytes.HasPrefix(content[start:], open) {
		return Block{Header: []byte{}, Body: content[start+len(open):], Had: true, BodyLine: 3, Style: style}, nil
	}

	closeSeq := []byte(nl + "---" + nl)
	idx := bytes.Index(content[start:], closeSeq)
	if idx < 0 {
		// A closing delimiter on the very last line has no trailing newline.
		if bytes.HasSuffix(content, []byte(nl+"---")) {
			idx = len(content) - start - len(nl) - 3
			header := content[start : start+idx+len(nl)]
			return Block{Header: header, Body: []byte{}, Had: true, BodyLine: lineCount(content) + 1, Style: style}, nil
		}
		return Block{Style: style}, ErrMissingClosingDelimiter
	}

	headerEnd := start + idx + len(nl)
	bodyStart := start + idx + len(closeSeq)
	return Block{
		Header:   content[start:headerEnd],
		Body:     content[bodyStart:],
		Had:      true,
		BodyLine: bytes.Count(content[:bodyStart], []byte("\n")) + 1,
		Style:    style,
	}, nil
}

// Join reassembles a document from raw front matter and body.
func Join(header []byte, body []byte, style Style) []byte {
	nl := style.Newline
	if nl == "" {
		nl = "\n"
	}
	delim := []byte("---" + nl)
	out := make([]byte, 0, 2*len(delim)+len(header)+len(body))
	out = append(out, delim...)
	out = append(out, header...)
	out = append(out, delim...)
	out = append(out, body...)
	return out
}

// ParseYAML parses raw YAML front matter into a map.
func ParseYAML(header []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(header)) == 0 {
		return map[string]any{}, nil
	}
	var fields map[string]any
	if err := yaml.Unmarshal(header, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		fields = map[string]any{}
	}
	return fields, nil
}

func lineCount(b []byte) int {
	return bytes.Count(b, []byte("\n")) + 1
}

func detectStyle(content []byte) Style {
	newline := "\n"
	if i := bytes.IndexByte(content, '\n'); i > 0 && content[i-1] == '\r' {
		newline = "\r\n"
	}
	return Style{
		Newline:            newline,
		HasTrailingNewline: len(content) > 0 && content[len(content)-1] == '\n',
	}
}
