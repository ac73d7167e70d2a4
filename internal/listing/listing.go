// Package listing implements the page-listing views of a shelf site: a pure,
// deterministic transformation from (page collection, clock) to HTML
// fragments. The pipeline is Filter -> sort -> optional month grouping ->
// Renderer; nothing here touches the filesystem.
package listing

import (
	"time"

	"github.com/ddingpy/shelfbuilder/internal/page"
)

const (
	// DefaultGroupLimit caps the number of month groups in the recent-updates
	// view.
	DefaultGroupLimit = 6

	// DefaultDescriptionLimit is the rendered-description budget in runes,
	// including the truncation suffix.
	DefaultDescriptionLimit = 80
)

// DefaultExcludedURLs are the generator-owned URLs that never appear inside a
// listing: the home page and the two machine-readable outputs.
func DefaultExcludedURLs() []string {
	return []string{"/", "/feed.xml", "/sitemap.xml"}
}

// Options configures an Engine. Zero values select the documented defaults;
// non-positive limits are clamped back to them.
type Options struct {
	BasePath         string   // URL path prefix for rendered hrefs
	GroupLimit       int      // month groups in the recent-updates view
	DescriptionLimit int      // rendered-description rune budget incl. suffix
	ExcludedURLs     []string // overrides DefaultExcludedURLs when non-empty
}

// Engine composes the filter, sorters, grouper and renderer into the site's
// listing views.
type Engine struct {
	filter     Filter
	renderer   *Renderer
	groupLimit int
}

func NewEngine(opts Options) *Engine {
	groupLimit := opts.GroupLimit
	if groupLimit <= 0 {
		groupLimit = DefaultGroupLimit
	}
	excluded := opts.ExcludedURLs
	if len(excluded) == 0 {
		excluded = DefaultExcludedURLs()
	}
	return &Engine{
		filter:     NewFilter(excluded...),
		renderer:   NewRenderer(opts.BasePath, opts.DescriptionLimit),
		groupLimit: groupLimit,
	}
}

// Filter exposes the engine's configured filter.
func (e *Engine) Filter() Filter { return e.filter }

// Renderer exposes the engine's configured renderer.
func (e *Engine) Renderer() *Renderer { return e.renderer }

// BooksAZ renders the books index: book pages ordered by title ascending.
func (e *Engine) BooksAZ(pages page.Collection) string {
	return e.renderer.List(ByTitle(e.filter.Books(pages)))
}

// RecentUpdates renders the recent-updates view: book pages ordered by date
// descending, bucketed into at most the configured number of month groups.
// Pages without a date count as updated at the given clock instant.
func (e *Engine) RecentUpdates(pages page.Collection, now time.Time) string {
	sorted := ByDateDesc(e.filter.Books(pages), now)
	return e.renderer.Grouped(GroupByMonth(sorted, now, e.groupLimit))
}

// AllPages renders the full listable collection ordered by title, without the
// book predicate. Used by the home page and the list command.
func (e *Engine) AllPages(pages page.Collection) string {
	return e.renderer.List(ByTitle(e.filter.Exclude(pages)))
}
