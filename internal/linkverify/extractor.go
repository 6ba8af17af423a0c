package linkverify

import (
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	ferrors "git.home.luguber.info/inful/corpora/internal/foundation/errors"
)

// Link is a reference extracted from an HTML page.
type Link struct {
	URL       string // as written in the attribute
	Text      string // link text or alt text
	Tag       string // a, img, script, link, ...
	Attribute string // href or src
}

// Page is the parsed link surface of one HTML file.
type Page struct {
	Links []Link
	// IDs holds every element id, the targets of fragment links.
	IDs map[string]bool
}

// linkAttrs maps elements to the attribute carrying their reference.
var linkAttrs = map[string]string{
	"a":      "href",
	"img":    "src",
	"script": "src",
	"link":   "href",
	"video":  "src",
	"audio":  "src",
	"source": "src",
}

// ExtractPage parses HTML and collects its links and element ids.
func ExtractPage(r io.Reader) (*Page, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryValidation, "failed to parse HTML").Build()
	}
	p := &Page{IDs: make(map[string]bool)}
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if id := getAttr(n, "id"); id != "" {
				p.IDs[id] = true
			}
			if attr, ok := linkAttrs[n.Data]; ok {
				if v := getAttr(n, attr); v != "" {
					text := extractText(n)
					if n.Data == "img" {
						text = getAttr(n, "alt")
					}
					p.Links = append(p.Links, Link{URL: v, Text: text, Tag: n.Data, Attribute: attr})
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return p, nil
}

func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func extractText(n *html.Node) string {
	if n.Type == html.TextNode {
		return strings.TrimSpace(n.Data)
	}
	var text strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		text.WriteString(extractText(c))
	}
	return strings.TrimSpace(text.String())
}

// ShouldVerifyLink reports whether a link is checkable at all.
func ShouldVerifyLink(link Link) bool {
	if link.URL == "" || link.URL == "#" {
		return false
	}
	for _, p := range []string{"mailto:", "tel:", "javascript:", "data:"} {
		if strings.HasPrefix(link.URL, p) {
			return false
		}
	}
	return true
}

// isInternal reports whether ref points into the site rooted at base.
func isInternal(ref *url.URL, base *url.URL) bool {
	if ref.Scheme == "" && ref.Host == "" {
		return true
	}
	return base != nil && base.Host != "" && strings.EqualFold(ref.Host, base.Host)
}
