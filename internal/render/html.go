package render

import (
	"fmt"
	"html"
	"strings"

	"git.home.luguber.info/inful/corpora/internal/docmodel"
	"git.home.luguber.info/inful/corpora/internal/index"
	"git.home.luguber.info/inful/corpora/internal/markup"
	"git.home.luguber.info/inful/corpora/internal/slug"
)

// writer emits the body HTML of one document.
type writer struct {
	r    *Renderer
	doc  *docmodel.Document
	snap *index.Snapshot
	b    strings.Builder
	err  error
}

func (w *writer) fail(target, message string) {
	if w.err == nil {
		w.err = &RenderError{Slug: w.doc.Slug, Target: target, Message: message}
	}
}

func (w *writer) blocks(blocks []markup.Block) {
	for _, b := range blocks {
		w.block(b)
	}
}

func (w *writer) block(b markup.Block) {
	switch v := b.(type) {
	case *markup.Section:
		w.b.WriteString("<section>\n")
		w.block(v.Heading)
		w.blocks(v.Children)
		w.b.WriteString("</section>\n")
	case *markup.Heading:
		level := min(max(v.Level+1, 2), 6) // h1 is the document title
		fmt.Fprintf(&w.b, "<h%d id=\"%s\">", level, html.EscapeString(v.Anchor))
		w.inlines(v.Content)
		fmt.Fprintf(&w.b, "</h%d>\n", level)
	case *markup.Paragraph:
		w.b.WriteString("<p>")
		w.inlines(v.Content)
		w.b.WriteString("</p>\n")
	case *markup.CodeBlock:
		if v.Language != "" {
			fmt.Fprintf(&w.b, "<pre><code class=\"language-%s\">", html.EscapeString(v.Language))
		} else {
			w.b.WriteString("<pre><code>")
		}
		w.b.WriteString(html.EscapeString(v.Text))
		w.b.WriteString("</code></pre>\n")
	case *markup.Image:
		w.b.WriteString("<figure>")
		w.image(v)
		if v.Caption != "" {
			fmt.Fprintf(&w.b, "<figcaption>%s</figcaption>", html.EscapeString(v.Caption))
		}
		w.b.WriteString("</figure>\n")
	case *markup.Link:
		w.b.WriteString("<p class=\"link\">")
		w.link(v)
		w.b.WriteString("</p>\n")
	case *markup.List:
		tag := "ul"
		if v.Ordered {
			tag = "ol"
		}
		if v.Ordered && v.Start > 1 {
			fmt.Fprintf(&w.b, "<ol start=\"%d\">\n", v.Start)
		} else {
			fmt.Fprintf(&w.b, "<%s>\n", tag)
		}
		for _, item := range v.Items {
			w.b.WriteString("<li>")
			w.listItem(item)
			w.b.WriteString("</li>\n")
		}
		fmt.Fprintf(&w.b, "</%s>\n", tag)
	case *markup.Table:
		w.table(v)
	case *markup.Callout:
		fmt.Fprintf(&w.b, "<aside class=\"callout callout-%s\">\n", v.Kind)
		title := v.Title
		if title == "" {
			title = slug.Title(string(v.Kind))
		}
		fmt.Fprintf(&w.b, "<p class=\"callout-title\">%s</p>\n", html.EscapeString(title))
		w.blocks(v.Children)
		w.b.WriteString("</aside>\n")
	case *markup.Quote:
		w.b.WriteString("<blockquote>\n")
		w.blocks(v.Children)
		w.b.WriteString("</blockquote>\n")
	case *markup.Rule:
		w.b.WriteString("<hr>\n")
	case *markup.RawHTML:
		w.b.WriteString(w.r.policy.Sanitize(v.HTML))
		w.b.WriteString("\n")
	default:
		panic(fmt.Sprintf("render: unhandled block %T", b))
	}
}

// listItem renders a single-paragraph item without the <p> wrapper.
func (w *writer) listItem(item []markup.Block) {
	if len(item) == 1 {
		if p, ok := item[0].(*markup.Paragraph); ok {
			w.inlines(p.Content)
			return
		}
	}
	w.b.WriteString("\n")
	w.blocks(item)
}

func (w *writer) table(t *markup.Table) {
	align := func(i int) string {
		if i < len(t.Align) && t.Align[i] != markup.AlignNone {
			return fmt.Sprintf(" style=\"text-align:%s\"", t.Align[i])
		}
		return ""
	}
	w.b.WriteString("<table>\n<thead>\n<tr>")
	for i, cell := range t.Header {
		fmt.Fprintf(&w.b, "<th%s>", align(i))
		w.inlines(cell)
		w.b.WriteString("</th>")
	}
	w.b.WriteString("</tr>\n</thead>\n<tbody>\n")
	for _, row := range t.Rows {
		w.b.WriteString("<tr>")
		for i, cell := range row {
			fmt.Fprintf(&w.b, "<td%s>", align(i))
			w.inlines(cell)
			w.b.WriteString("</td>")
		}
		w.b.WriteString("</tr>\n")
	}
	w.b.WriteString("</tbody>\n</table>\n")
}

func (w *writer) inlines(content []markup.Inline) {
	for _, n := range content {
		switch v := n.(type) {
		case *markup.Text:
			w.b.WriteString(html.EscapeString(v.Value))
		case *markup.Code:
			fmt.Fprintf(&w.b, "<code>%s</code>", html.EscapeString(v.Value))
		case *markup.Emphasis:
			w.b.WriteString("<em>")
			w.inlines(v.Children)
			w.b.WriteString("</em>")
		case *markup.Strong:
			w.b.WriteString("<strong>")
			w.inlines(v.Children)
			w.b.WriteString("</strong>")
		case *markup.Link:
			w.link(v)
		case *markup.Image:
			w.image(v)
		case *markup.LineBreak:
			if v.Hard {
				w.b.WriteString("<br>\n")
			} else {
				w.b.WriteString("\n")
			}
		case *markup.RawInline:
			w.b.WriteString(w.r.policy.Sanitize(v.HTML))
		default:
			panic(fmt.Sprintf("render: unhandled inline %T", n))
		}
	}
}

func (w *writer) link(l *markup.Link) {
	href := l.Target
	label := l.Label
	res := resolve(w.doc, w.snap, l.Target)
	if res.internal {
		if res.slug == "" {
			w.fail(l.Target, "unresolved link")
			return
		}
		href = w.r.docURL(res.slug)
		if res.fragment != "" {
			href += "#" + res.fragment
		}
		if len(label) == 0 {
			e, _ := w.snap.Entry(res.slug)
			label = []markup.Inline{&markup.Text{Value: e.Title}}
		}
	}
	w.b.WriteString("<a href=\"")
	w.b.WriteString(html.EscapeString(safeURL(href)))
	w.b.WriteString("\"")
	if l.Title != "" {
		fmt.Fprintf(&w.b, " title=\"%s\"", html.EscapeString(l.Title))
	}
	w.b.WriteString(">")
	w.inlines(label)
	w.b.WriteString("</a>")
}

func (w *writer) image(img *markup.Image) {
	fmt.Fprintf(&w.b, "<img src=\"%s\" alt=\"%s\">", html.EscapeString(safeURL(img.Ref)), html.EscapeString(img.Alt))
}
