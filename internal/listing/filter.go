package listing

import "github.com/ddingpy/shelfbuilder/internal/page"

// Filter drops pages that must never appear in a listing.
type Filter struct {
	excluded map[string]struct{}
}

// NewFilter builds a filter over the given excluded URLs. With no arguments
// the default exclusion set applies.
func NewFilter(excludedURLs ...string) Filter {
	if len(excludedURLs) == 0 {
		excludedURLs = DefaultExcludedURLs()
	}
	set := make(map[string]struct{}, len(excludedURLs))
	for _, u := range excludedURLs {
		set[u] = struct{}{}
	}
	return Filter{excluded: set}
}

// Excluded reports whether a URL belongs to the exclusion set.
func (f Filter) Excluded(url string) bool {
	_, ok := f.excluded[url]
	return ok
}

// Exclude returns the pages eligible for any listing: URL outside the
// exclusion set and a non-empty title. Input order is preserved.
func (f Filter) Exclude(pages page.Collection) page.Collection {
	out := make(page.Collection, 0, len(pages))
	for _, p := range pages {
		if f.Excluded(p.URL) || p.Title == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Books narrows Exclude to top-level book entries, the population of the
// books index and recent-updates views.
func (f Filter) Books(pages page.Collection) page.Collection {
	out := make(page.Collection, 0, len(pages))
	for _, p := range f.Exclude(pages) {
		if !p.IsIndex {
			continue
		}
		out = append(out, p)
	}
	return out
}
