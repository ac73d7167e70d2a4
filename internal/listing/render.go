package listing

import (
	"fmt"
	"html"
	"strings"

	"github.com/ddingpy/shelfbuilder/internal/page"
)

// Renderer emits listing fragments as HTML. Rendering is deterministic:
// identical inputs produce byte-identical output.
type Renderer struct {
	basePath  string
	descLimit int
}

// NewRenderer builds a renderer. basePath is prefixed to every href (for
// sites served under a sub-path); a non-positive descLimit selects the
// default description budget.
func NewRenderer(basePath string, descLimit int) *Renderer {
	if descLimit <= 0 {
		descLimit = DefaultDescriptionLimit
	}
	return &Renderer{
		basePath:  strings.TrimSuffix(basePath, "/"),
		descLimit: descLimit,
	}
}

// List renders pages as an unordered list of links. An empty collection
// renders an empty <ul>.
func (r *Renderer) List(pages page.Collection) string {
	var b strings.Builder
	b.WriteString("<ul class=\"page-list\">\n")
	for _, p := range pages {
		r.item(&b, p)
	}
	b.WriteString("</ul>\n")
	return b.String()
}

// Grouped renders month groups as heading + list pairs, concatenated in
// group order. No groups renders a single empty <ul>.
func (r *Renderer) Grouped(groups []Group) string {
	if len(groups) == 0 {
		return r.List(nil)
	}
	var b strings.Builder
	for _, g := range groups {
		fmt.Fprintf(&b, "<h2 class=\"group-heading\">%s</h2>\n", html.EscapeString(g.Key.Label()))
		b.WriteString(r.List(g.Pages))
	}
	return b.String()
}

func (r *Renderer) item(b *strings.Builder, p *page.Page) {
	fmt.Fprintf(b, "<li><a href=\"%s\">%s</a>", html.EscapeString(r.basePath+p.URL), html.EscapeString(p.Title))
	if p.Description != "" {
		fmt.Fprintf(b, " - %s", html.EscapeString(Truncate(p.Description, r.descLimit)))
	}
	b.WriteString("</li>\n")
}
