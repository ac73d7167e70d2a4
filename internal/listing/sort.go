package listing

import (
	"slices"
	"sort"
	"time"

	"github.com/ddingpy/shelfbuilder/internal/page"
)

// ByTitle returns a copy of pages ordered by title ascending. The comparison
// is byte-lexical and case-sensitive; equal titles keep their input order.
func ByTitle(pages page.Collection) page.Collection {
	out := slices.Clone(pages)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Title < out[j].Title
	})
	return out
}

// ByDateDesc returns a copy of pages ordered by date descending. Pages
// without a date count as dated "now", so they sort to the front alongside
// the freshest content. Equal dates keep their input order.
func ByDateDesc(pages page.Collection, now time.Time) page.Collection {
	out := slices.Clone(pages)
	sort.SliceStable(out, func(i, j int) bool {
		return EffectiveDate(out[i], now).After(EffectiveDate(out[j], now))
	})
	return out
}

// EffectiveDate is the instant listing logic attributes to a page: its date
// when present, otherwise the supplied clock.
func EffectiveDate(p *page.Page, now time.Time) time.Time {
	if p.Date != nil {
		return *p.Date
	}
	return now
}
