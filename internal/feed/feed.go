// Package feed emits the machine-readable outputs of a built site: an Atom
// feed of recent updates and a sitemap over every rendered page. Both are
// deterministic for a fixed clock.
package feed

import (
	"encoding/xml"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ddingpy/shelfbuilder/internal/listing"
	"github.com/ddingpy/shelfbuilder/internal/page"
)

// EntryLimit caps the number of Atom entries.
const EntryLimit = 20

// Builder renders feed.xml and sitemap.xml for one site.
type Builder struct {
	title   string
	baseURL string
	author  string
	filter  listing.Filter
}

func NewBuilder(title, baseURL, author string) *Builder {
	return &Builder{
		title:   title,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		author:  author,
		filter:  listing.NewFilter(),
	}
}

type atomFeed struct {
	XMLName  xml.Name    `xml:"feed"`
	Xmlns    string      `xml:"xmlns,attr"`
	Title    string      `xml:"title"`
	ID       string      `xml:"id"`
	Updated  string      `xml:"updated"`
	Links    []atomLink  `xml:"link"`
	Author   *atomAuthor `xml:"author,omitempty"`
	Entries  []atomEntry `xml:"entry"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr,omitempty"`
	Type string `xml:"type,attr,omitempty"`
}

type atomAuthor struct {
	Name string `xml:"name"`
}

type atomEntry struct {
	Title   string   `xml:"title"`
	ID      string   `xml:"id"`
	Updated string   `xml:"updated"`
	Link    atomLink `xml:"link"`
	Summary string   `xml:"summary,omitempty"`
}

// Atom renders the feed: the newest dated, listable pages, capped at
// EntryLimit. Undated pages carry no real update signal and stay out of the
// feed; the feed-level timestamp falls back to the clock when no entry
// exists.
func (b *Builder) Atom(pages page.Collection, now time.Time) ([]byte, error) {
	dated := make(page.Collection, 0, len(pages))
	for _, p := range b.filter.Exclude(pages) {
		if p.Date != nil {
			dated = append(dated, p)
		}
	}
	dated = listing.ByDateDesc(dated, now)
	if len(dated) > EntryLimit {
		dated = dated[:EntryLimit]
	}

	feed := atomFeed{
		Xmlns:   "http://www.w3.org/2005/Atom",
		Title:   b.title,
		ID:      b.baseURL + "/",
		Updated: now.UTC().Format(time.RFC3339),
		Links: []atomLink{
			{Href: b.baseURL + "/feed.xml", Rel: "self", Type: "application/atom+xml"},
			{Href: b.baseURL + "/", Rel: "alternate", Type: "text/html"},
		},
	}
	if b.author != "" {
		feed.Author = &atomAuthor{Name: b.author}
	}
	if len(dated) > 0 {
		feed.Updated = dated[0].Date.UTC().Format(time.RFC3339)
	}

	for _, p := range dated {
		feed.Entries = append(feed.Entries, atomEntry{
			Title:   p.Title,
			ID:      b.baseURL + p.URL,
			Updated: p.Date.UTC().Format(time.RFC3339),
			Link:    atomLink{Href: b.baseURL + p.URL, Rel: "alternate"},
			Summary: p.Description,
		})
	}

	return marshalXML(feed)
}

type urlSet struct {
	XMLName xml.Name     `xml:"urlset"`
	Xmlns   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

// Sitemap renders sitemap.xml over the home page plus every rendered page,
// ordered by URL so output is stable across builds.
func (b *Builder) Sitemap(pages page.Collection, now time.Time) ([]byte, error) {
	set := urlSet{
		Xmlns: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs: []sitemapURL{
			{Loc: b.baseURL + "/", LastMod: now.UTC().Format("2006-01-02")},
		},
	}

	ordered := make(page.Collection, 0, len(pages))
	for _, p := range pages {
		if b.filter.Excluded(p.URL) {
			continue
		}
		ordered = append(ordered, p)
	}
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].URL < ordered[j].URL })

	for _, p := range ordered {
		u := sitemapURL{Loc: b.baseURL + p.URL}
		if p.Date != nil {
			u.LastMod = p.Date.UTC().Format("2006-01-02")
		}
		set.URLs = append(set.URLs, u)
	}

	return marshalXML(set)
}

func marshalXML(v any) ([]byte, error) {
	body, err := xml.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal xml: %w", err)
	}
	return append([]byte(xml.Header), append(body, '\n')...), nil
}
