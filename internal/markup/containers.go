package markup

import (
	"bytes"
	"strings"
)

// chunk is one piece of the body after splitting on ::: containers: either a
// run of plain markdown lines or a nested container.
type chunk struct {
	text      []byte
	container *container
}

type container struct {
	kind  CalloutKind
	title string
	line  int // absolute line of the opening marker
	items []chunk
}

type fence struct {
	char   byte
	length int
	line   int
	col    int
}

// splitContainers scans body line by line, tracking code fences so that :::
// markers inside code are left alone. lineOffset is added to every reported line.
func splitContainers(body []byte, lineOffset int) ([]chunk, error) {
	lines := bytes.Split(body, []byte("\n"))
	root := &container{}
	stack := []*container{root}
	var pending [][]byte
	var open *fence

	flush := func() {
		if len(pending) == 0 {
			return
		}
		top := stack[len(stack)-1]
		top.items = append(top.items, chunk{text: bytes.Join(pending, []byte("\n"))})
		pending = nil
	}

	for i, raw := range lines {
		lineNo := lineOffset + i + 1
		indent, rest := leadingSpaces(raw)

		if open != nil {
			pending = append(pending, raw)
			if indent <= 3 && closesFence(rest, open) {
				open = nil
			}
			continue
		}

		if indent <= 3 {
			if f, ok := opensFence(rest); ok {
				f.line, f.col = lineNo, indent+1
				open = &f
				pending = append(pending, raw)
				continue
			}
			if bytes.HasPrefix(rest, []byte(":::")) {
				marker := strings.TrimSpace(string(rest[3:]))
				if marker == "" {
					if len(stack) == 1 {
						return nil, &ParseError{Line: lineNo, Column: indent + 1, Message: "closing ::: without an open container"}
					}
					flush()
					stack = stack[:len(stack)-1]
					continue
				}
				name, title, _ := strings.Cut(marker, " ")
				kind, known := calloutKinds[strings.ToLower(name)]
				if !known {
					return nil, &ParseError{Line: lineNo, Column: indent + 4, Message: "unknown container kind \"" + name + "\""}
				}
				flush()
				c := &container{kind: kind, title: strings.TrimSpace(title), line: lineNo}
				top := stack[len(stack)-1]
				top.items = append(top.items, chunk{container: c})
				stack = append(stack, c)
				continue
			}
		}
		pending = append(pending, raw)
	}

	if open != nil {
		return nil, &ParseError{Line: open.line, Column: open.col, Message: "unterminated code fence"}
	}
	if len(stack) > 1 {
		c := stack[len(stack)-1]
		return nil, &ParseError{Line: c.line, Column: 1, Message: "container :::" + string(c.kind) + " is never closed"}
	}
	flush()
	return root.items, nil
}

func leadingSpaces(line []byte) (int, []byte) {
	line = bytes.TrimSuffix(line, []byte("\r"))
	n := 0
	for n < len(line) && line[n] == ' ' {
		n++
	}
	return n, line[n:]
}

func opensFence(rest []byte) (fence, bool) {
	if len(rest) < 3 || (rest[0] != '`' && rest[0] != '~') {
		return fence{}, false
	}
	c := rest[0]
	n := 0
	for n < len(rest) && rest[n] == c {
		n++
	}
	if n < 3 {
		return fence{}, false
	}
	// A backtick fence info string may not contain backticks.
	if c == '`' && bytes.IndexByte(rest[n:], '`') >= 0 {
		return fence{}, false
	}
	return fence{char: c, length: n}, true
}

func closesFence(rest []byte, f *fence) bool {
	n := 0
	for n < len(rest) && rest[n] == f.char {
		n++
	}
	return n >= f.length && len(bytes.TrimSpace(rest[n:])) == 0
}
