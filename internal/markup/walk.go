package markup

import "strings"

// PlainText flattens inline content to its visible text.
func PlainText(content []Inline) string {
	var b strings.Builder
	writePlain(&b, content)
	return b.String()
}

func writePlain(b *strings.Builder, content []Inline) {
	for _, n := range content {
		switch v := n.(type) {
		case *Text:
			b.WriteString(v.Value)
		case *Code:
			b.WriteString(v.Value)
		case *Emphasis:
			writePlain(b, v.Children)
		case *Strong:
			writePlain(b, v.Children)
		case *Link:
			writePlain(b, v.Label)
		case *Image:
			b.WriteString(v.Alt)
		case *LineBreak:
			b.WriteByte(' ')
		case *RawInline:
		}
	}
}

// Walk visits every block depth first in document order. Returning false from
// fn skips the block's children.
func Walk(blocks []Block, fn func(Block) bool) {
	for _, b := range blocks {
		if !fn(b) {
			continue
		}
		switch v := b.(type) {
		case *Section:
			Walk([]Block{v.Heading}, fn)
			Walk(v.Children, fn)
		case *List:
			for _, item := range v.Items {
				Walk(item, fn)
			}
		case *Callout:
			Walk(v.Children, fn)
		case *Quote:
			Walk(v.Children, fn)
		}
	}
}

// Targets returns every link and image reference in document order.
func (t *Tree) Targets() []string {
	var out []string
	var inlines func([]Inline)
	inlines = func(content []Inline) {
		for _, n := range content {
			switch v := n.(type) {
			case *Link:
				out = append(out, v.Target)
				inlines(v.Label)
			case *Image:
				out = append(out, v.Ref)
			case *Emphasis:
				inlines(v.Children)
			case *Strong:
				inlines(v.Children)
			}
		}
	}
	Walk(t.Blocks, func(b Block) bool {
		switch v := b.(type) {
		case *Heading:
			inlines(v.Content)
		case *Paragraph:
			inlines(v.Content)
		case *Link:
			out = append(out, v.Target)
			inlines(v.Label)
		case *Image:
			out = append(out, v.Ref)
		case *Table:
			for _, cell := range v.Header {
				inlines(cell)
			}
			for _, row := range v.Rows {
				for _, cell := range row {
					inlines(cell)
				}
			}
		}
		return true
	})
	return out
}

// Anchors lists heading anchors in document order.
func (t *Tree) Anchors() []string {
	var out []string
	Walk(t.Blocks, func(b Block) bool {
		if h, ok := b.(*Heading); ok {
			out = append(out, h.Anchor)
		}
		return true
	})
	return out
}
