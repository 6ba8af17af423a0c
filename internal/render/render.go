// Package render turns parsed documents and index pages into HTML.
package render

import (
	"bytes"
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"fmt"
	"html/template"
	"io/fs"
	"net/url"
	"path"
	"slices"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"git.home.luguber.info/inful/corpora/internal/docmodel"
	"git.home.luguber.info/inful/corpora/internal/index"
	"git.home.luguber.info/inful/corpora/internal/slug"
)

// Version identifies the HTML generation logic. Bump it whenever output for
// unchanged input would differ.
const Version = "corpora-html/2"

//go:embed templates/*.html.tmpl
var templateFS embed.FS

// Site carries site-wide settings exposed to every page.
type Site struct {
	Title       string
	BaseURL     string
	Description string
	Language    string
}

// siteView is what templates see as .Site.
type siteView struct {
	Title    string
	Language string
	Home     string
	TagsURL  string
}

// Renderer renders documents and index pages. It holds no per-build state and
// is safe for concurrent use.
type Renderer struct {
	site     Site
	basePath string
	pages    map[string]*template.Template
	policy   *bluemonday.Policy
	hash     string
}

// New parses the embedded templates.
func New(site Site) (*Renderer, error) {
	if site.Language == "" {
		site.Language = "en"
	}
	basePath := "/"
	if site.BaseURL != "" {
		u, err := url.Parse(site.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid base URL %q: %w", site.BaseURL, err)
		}
		basePath = path.Join("/", u.Path)
	}

	funcs := template.FuncMap{"join": strings.Join}
	base, err := template.New("base").Funcs(funcs).ParseFS(templateFS, "templates/base.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse base template: %w", err)
	}
	r := &Renderer{
		site:     site,
		basePath: basePath,
		pages:    make(map[string]*template.Template),
		policy:   bluemonday.UGCPolicy(),
	}
	for _, name := range []string{"document", "listing", "tags"} {
		t, cerr := base.Clone()
		if cerr != nil {
			return nil, cerr
		}
		if _, err := t.ParseFS(templateFS, "templates/"+name+".html.tmpl"); err != nil {
			return nil, fmt.Errorf("parse %s template: %w", name, err)
		}
		r.pages[name] = t
	}
	if r.hash, err = templateSetHash(site); err != nil {
		return nil, err
	}
	return r, nil
}

// TemplateHash digests the template set and site settings.
func (r *Renderer) TemplateHash() string { return r.hash }

func templateSetHash(site Site) (string, error) {
	h := sha256.New()
	names, err := fs.Glob(templateFS, "templates/*.html.tmpl")
	if err != nil {
		return "", err
	}
	slices.Sort(names)
	for _, n := range names {
		data, rerr := templateFS.ReadFile(n)
		if rerr != nil {
			return "", rerr
		}
		fmt.Fprintf(h, "%s:%d\n", n, len(data))
		h.Write(data)
	}
	fmt.Fprintf(h, "site:%q|%q|%q|%q\n", site.Title, site.BaseURL, site.Description, site.Language)
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (r *Renderer) siteView() siteView {
	return siteView{
		Title:    r.site.Title,
		Language: r.site.Language,
		Home:     r.url(""),
		TagsURL:  r.url("tags"),
	}
}

// url returns the root-relative URL of an output directory.
func (r *Renderer) url(dir string) string {
	p := path.Join(r.basePath, dir)
	if !strings.HasSuffix(p, "/") {
		p += "/"
	}
	return p
}

func (r *Renderer) docURL(s string) string { return r.url(s) }

func (r *Renderer) pageURL(snap *index.Snapshot, key index.PageKey) string {
	return r.url(path.Dir(snap.PagePath(key)))
}

type link struct {
	Title string
	URL   string
}

type tagLink struct {
	Name  string
	URL   string
	Count int
}

type seriesNav struct {
	Name string
	URL  string
	Part int
	Prev *link
	Next *link
}

type documentView struct {
	Site        siteView
	Title       string
	Description string
	Date        string
	DateISO     string
	Authors     []string
	Tags        []tagLink
	Series      *seriesNav
	Content     template.HTML
}

// Render produces the HTML page of doc. It is a pure function of doc, snap
// and the renderer's template set.
func (r *Renderer) Render(doc *docmodel.Document, snap *index.Snapshot) ([]byte, error) {
	if doc.Tree == nil {
		return nil, fmt.Errorf("render %s: document has not been parsed", doc.Slug)
	}
	w := &writer{r: r, doc: doc, snap: snap}
	w.blocks(doc.Tree.Blocks)
	if w.err != nil {
		return nil, w.err
	}

	view := documentView{
		Site:        r.siteView(),
		Title:       doc.Title,
		Description: doc.Description,
		Authors:     doc.Authors,
		Content:     template.HTML(w.b.String()), // #nosec G203 -- escaped by writer, raw HTML sanitized
	}
	if doc.HasDate() {
		view.Date = doc.Date.Format("2006-01-02")
		view.DateISO = doc.Date.Format("2006-01-02T15:04:05Z07:00")
	}
	for _, t := range doc.Keywords {
		view.Tags = append(view.Tags, tagLink{Name: t, URL: r.pageURL(snap, index.TagPage(t))})
	}
	if doc.Series != "" {
		nav := &seriesNav{Name: slug.Title(doc.Series), URL: r.pageURL(snap, index.SeriesPage(doc.Series)), Part: doc.SeriesPart}
		prev, next := snap.Neighbours(doc.Slug)
		if prev != "" {
			e, _ := snap.Entry(prev)
			nav.Prev = &link{Title: e.Title, URL: r.docURL(prev)}
		}
		if next != "" {
			e, _ := snap.Entry(next)
			nav.Next = &link{Title: e.Title, URL: r.docURL(next)}
		}
		view.Series = nav
	}
	return r.execute("document", view)
}

func (r *Renderer) execute(name string, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.pages[name].ExecuteTemplate(&buf, "base", data); err != nil {
		return nil, fmt.Errorf("execute %s template: %w", name, err)
	}
	return buf.Bytes(), nil
}

// ContextKey digests every snapshot-derived input Render reads for doc:
// series neighbours, tag page locations and the resolution of each link
// target. A change means the document must be re-rendered even if its own
// content did not change.
func ContextKey(doc *docmodel.Document, snap *index.Snapshot) string {
	h := sha256.New()
	write := func(parts ...string) {
		for _, p := range parts {
			fmt.Fprintf(h, "%d:%s|", len(p), p)
		}
		h.Write([]byte{'\n'})
	}

	prev, next := snap.Neighbours(doc.Slug)
	for _, s := range []string{prev, next} {
		e, _ := snap.Entry(s)
		write("nbr", s, e.Title)
	}
	for _, t := range doc.Keywords {
		write("tag", t, snap.PagePath(index.TagPage(t)))
	}
	if doc.Series != "" {
		write("series", doc.Series, snap.PagePath(index.SeriesPage(doc.Series)))
	}
	if doc.Tree != nil {
		for _, target := range doc.Tree.Targets() {
			res := resolve(doc, snap, target)
			if !res.internal {
				continue
			}
			e, _ := snap.Entry(res.slug)
			write("link", target, res.slug, e.Title)
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}
