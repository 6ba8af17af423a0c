// Package markup parses a markdown document body into a closed block tree.
//
// Bodies are CommonMark with GFM tables, plus fenced admonition containers:
//
//	:::warning Optional title
//	body
//	:::
package markup

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"

	"git.home.luguber.info/inful/corpora/internal/slug"
)

// Options controls parsing.
type Options struct {
	// LineOffset is the number of source lines preceding the body (the front
	// matter block), so that errors carry absolute line numbers.
	LineOffset int
}

// Parse converts body into a Tree. It is a pure function of its inputs.
func Parse(body []byte, opts Options) (*Tree, error) {
	body = bytes.ReplaceAll(body, []byte("\r\n"), []byte("\n"))
	chunks, err := splitContainers(body, opts.LineOffset)
	if err != nil {
		return nil, err
	}

	md := goldmark.New(goldmark.WithExtensions(extension.Table))

	// Reference definitions may live in a different chunk than their uses.
	refCtx := parser.NewContext()
	md.Parser().Parse(text.NewReader(body), parser.WithContext(refCtx))

	c := &converter{md: md, refs: refCtx.References(), anchors: slug.NewDeduper()}
	return &Tree{Blocks: nest(c.chunks(chunks))}, nil
}

type converter struct {
	md      goldmark.Markdown
	refs    []parser.Reference
	anchors *slug.Deduper
	src     []byte
}

func (c *converter) chunks(items []chunk) []Block {
	var out []Block
	for _, it := range items {
		if it.container != nil {
			out = append(out, &Callout{
				Kind:     it.container.kind,
				Title:    it.container.title,
				Children: nest(c.chunks(it.container.items)),
			})
			continue
		}
		out = append(out, c.markdown(it.text)...)
	}
	return out
}

func (c *converter) markdown(src []byte) []Block {
	ctx := parser.NewContext()
	for _, r := range c.refs {
		ctx.AddReference(r)
	}
	doc := c.md.Parser().Parse(text.NewReader(src), parser.WithContext(ctx))
	prev := c.src
	c.src = src
	defer func() { c.src = prev }()
	return c.blocks(doc)
}

func (c *converter) blocks(parent gmast.Node) []Block {
	var out []Block
	for n := parent.FirstChild(); n != nil; n = n.NextSibling() {
		if b := c.block(n); b != nil {
			out = append(out, b)
		}
	}
	return out
}

func (c *converter) block(n gmast.Node) Block {
	switch node := n.(type) {
	case *gmast.Heading:
		content := c.inlines(node)
		return &Heading{Level: node.Level, Anchor: c.anchors.Unique(slug.Make(PlainText(content))), Content: content}
	case *gmast.Paragraph:
		return promote(c.inlines(node))
	case *gmast.TextBlock:
		return promote(c.inlines(node))
	case *gmast.FencedCodeBlock:
		lang := ""
		if node.Info != nil {
			lang = string(node.Language(c.src))
		}
		return &CodeBlock{Language: lang, Text: c.lines(node.Lines())}
	case *gmast.CodeBlock:
		return &CodeBlock{Text: c.lines(node.Lines())}
	case *gmast.List:
		l := &List{Ordered: node.IsOrdered(), Start: node.Start}
		for item := node.FirstChild(); item != nil; item = item.NextSibling() {
			l.Items = append(l.Items, c.blocks(item))
		}
		return l
	case *gmast.Blockquote:
		return &Quote{Children: c.blocks(node)}
	case *gmast.ThematicBreak:
		return &Rule{}
	case *gmast.HTMLBlock:
		html := c.lines(node.Lines())
		if node.HasClosure() {
			html += string(node.ClosureLine.Value(c.src))
		}
		return &RawHTML{HTML: html}
	case *extast.Table:
		return c.table(node)
	default:
		return nil
	}
}

func (c *converter) table(node *extast.Table) *Table {
	t := &Table{}
	for _, a := range node.Alignments {
		switch a {
		case extast.AlignLeft:
			t.Align = append(t.Align, AlignLeft)
		case extast.AlignCenter:
			t.Align = append(t.Align, AlignCenter)
		case extast.AlignRight:
			t.Align = append(t.Align, AlignRight)
		default:
			t.Align = append(t.Align, AlignNone)
		}
	}
	for row := node.FirstChild(); row != nil; row = row.NextSibling() {
		var cells [][]Inline
		for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
			cells = append(cells, c.inlines(cell))
		}
		if _, ok := row.(*extast.TableHeader); ok {
			t.Header = cells
			continue
		}
		t.Rows = append(t.Rows, cells)
	}
	return t
}

func (c *converter) lines(segs *text.Segments) string {
	var b strings.Builder
	for i := 0; i < segs.Len(); i++ {
		seg := segs.At(i)
		b.Write(seg.Value(c.src))
	}
	return b.String()
}

func (c *converter) inlines(parent gmast.Node) []Inline {
	var out []Inline
	for n := parent.FirstChild(); n != nil; n = n.NextSibling() {
		out = append(out, c.inline(n)...)
	}
	return mergeText(out)
}

func (c *converter) inline(n gmast.Node) []Inline {
	switch node := n.(type) {
	case *gmast.Text:
		out := []Inline{&Text{Value: string(node.Segment.Value(c.src))}}
		switch {
		case node.HardLineBreak():
			out = append(out, &LineBreak{Hard: true})
		case node.SoftLineBreak():
			out = append(out, &LineBreak{})
		}
		return out
	case *gmast.String:
		return []Inline{&Text{Value: string(node.Value)}}
	case *gmast.CodeSpan:
		var b strings.Builder
		for t := node.FirstChild(); t != nil; t = t.NextSibling() {
			if seg, ok := t.(*gmast.Text); ok {
				b.Write(seg.Segment.Value(c.src))
			}
		}
		return []Inline{&Code{Value: b.String()}}
	case *gmast.Emphasis:
		if node.Level >= 2 {
			return []Inline{&Strong{Children: c.inlines(node)}}
		}
		return []Inline{&Emphasis{Children: c.inlines(node)}}
	case *gmast.Link:
		return []Inline{&Link{Target: string(node.Destination), Title: string(node.Title), Label: c.inlines(node)}}
	case *gmast.AutoLink:
		url := string(node.URL(c.src))
		return []Inline{&Link{Target: url, Label: []Inline{&Text{Value: string(node.Label(c.src))}}}}
	case *gmast.Image:
		return []Inline{&Image{Ref: string(node.Destination), Alt: PlainText(c.inlines(node)), Caption: string(node.Title)}}
	case *gmast.RawHTML:
		var b strings.Builder
		for i := 0; i < node.Segments.Len(); i++ {
			seg := node.Segments.At(i)
			b.Write(seg.Value(c.src))
		}
		return []Inline{&RawInline{HTML: b.String()}}
	default:
		return c.inlines(n)
	}
}

// mergeText joins adjacent Text nodes produced by goldmark's segment splitting.
func mergeText(in []Inline) []Inline {
	out := in[:0]
	for _, n := range in {
		if t, ok := n.(*Text); ok && len(out) > 0 {
			if prev, ok := out[len(out)-1].(*Text); ok {
				prev.Value += t.Value
				continue
			}
		}
		out = append(out, n)
	}
	return out
}

var calloutPrefixes = []struct {
	prefix string
	kind   CalloutKind
}{
	{"NOTE:", CalloutNote},
	{"TIP:", CalloutTip},
	{"IMPORTANT:", CalloutImportant},
	{"WARNING:", CalloutWarning},
	{"CAUTION:", CalloutCaution},
}

// promote turns a paragraph's inline content into the most specific block:
// a lone image or link becomes the block form, a NOTE: style prefix becomes a Callout.
func promote(content []Inline) Block {
	if only := significant(content); len(only) == 1 {
		switch n := only[0].(type) {
		case *Image:
			return n
		case *Link:
			return n
		}
	}
	if len(content) > 0 {
		if t, ok := content[0].(*Text); ok {
			for _, p := range calloutPrefixes {
				if rest, found := strings.CutPrefix(t.Value, p.prefix); found {
					body := append([]Inline{}, content...)
					rest = strings.TrimLeft(rest, " \t")
					if rest == "" {
						body = body[1:]
					} else {
						body[0] = &Text{Value: rest}
					}
					return &Callout{Kind: p.kind, Children: []Block{&Paragraph{Content: body}}}
				}
			}
		}
	}
	return &Paragraph{Content: content}
}

func significant(content []Inline) []Inline {
	var out []Inline
	for _, n := range content {
		if t, ok := n.(*Text); ok && strings.TrimSpace(t.Value) == "" {
			continue
		}
		if _, ok := n.(*LineBreak); ok {
			continue
		}
		out = append(out, n)
	}
	return out
}

// nest groups a flat block list into sections: a heading of level n owns the
// following blocks until the next heading of level <= n.
func nest(blocks []Block) []Block {
	var out []Block
	var stack []*Section
	for _, b := range blocks {
		h, isHeading := b.(*Heading)
		if isHeading {
			for len(stack) > 0 && stack[len(stack)-1].Heading.Level >= h.Level {
				stack = stack[:len(stack)-1]
			}
			s := &Section{Heading: h}
			if len(stack) == 0 {
				out = append(out, s)
			} else {
				top := stack[len(stack)-1]
				top.Children = append(top.Children, s)
			}
			stack = append(stack, s)
			continue
		}
		if len(stack) == 0 {
			out = append(out, b)
			continue
		}
		top := stack[len(stack)-1]
		top.Children = append(top.Children, b)
	}
	return out
}
