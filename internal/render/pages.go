package render

import (
	"fmt"

	"git.home.luguber.info/inful/corpora/internal/index"
	"git.home.luguber.info/inful/corpora/internal/slug"
)

type listItem struct {
	Title       string
	URL         string
	Date        string
	Description string
}

type listingView struct {
	Site        siteView
	Title       string
	Description string
	Heading     string
	Items       []listItem
}

type tagsView struct {
	Site        siteView
	Title       string
	Description string
	Tags        []tagLink
}

// RenderPage produces the HTML of a derived index page.
func (r *Renderer) RenderPage(key index.PageKey, snap *index.Snapshot) ([]byte, error) {
	switch key {
	case index.PageHome:
		return r.execute("listing", listingView{
			Site:        r.siteView(),
			Description: r.site.Description,
			Heading:     r.site.Title,
			Items:       r.items(snap, snap.Listing()),
		})
	case index.PageTags:
		view := tagsView{Site: r.siteView(), Title: "Tags"}
		for _, t := range snap.Tags() {
			view.Tags = append(view.Tags, tagLink{Name: t, URL: r.pageURL(snap, index.TagPage(t)), Count: len(snap.Tagged(t))})
		}
		return r.execute("tags", view)
	}
	if t, ok := key.Tag(); ok && snap.PagePath(key) != "" {
		return r.execute("listing", listingView{
			Site:    r.siteView(),
			Title:   "Tagged " + t,
			Heading: "Tagged “" + t + "”",
			Items:   r.items(snap, snap.Tagged(t)),
		})
	}
	if s, ok := key.Series(); ok && snap.PagePath(key) != "" {
		name := slug.Title(s)
		return r.execute("listing", listingView{
			Site:    r.siteView(),
			Title:   name,
			Heading: "Series: " + name,
			Items:   r.items(snap, snap.Series(s)),
		})
	}
	return nil, fmt.Errorf("unknown index page %q", key)
}

func (r *Renderer) items(snap *index.Snapshot, slugs []string) []listItem {
	out := make([]listItem, 0, len(slugs))
	for _, s := range slugs {
		e, _ := snap.Entry(s)
		item := listItem{Title: e.Title, URL: r.docURL(s), Description: e.Description}
		if !e.Date.IsZero() {
			item.Date = e.Date.Format("2006-01-02")
		}
		out = append(out, item)
	}
	return out
}
