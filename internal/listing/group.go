package listing

import (
	"sort"
	"time"

	"github.com/ddingpy/shelfbuilder/internal/page"
)

// MonthKey identifies a month bucket. Ordering is defined on the numeric
// (year, month) pair, never on the formatted label, so chronology survives
// year boundaries and locale-length month names.
type MonthKey struct {
	Year  int
	Month time.Month
}

// Label formats the key for display, e.g. "February 2025".
func (k MonthKey) Label() string {
	return time.Date(k.Year, k.Month, 1, 0, 0, 0, 0, time.UTC).Format("January 2006")
}

// After reports whether k is a later month than other.
func (k MonthKey) After(other MonthKey) bool {
	if k.Year != other.Year {
		return k.Year > other.Year
	}
	return k.Month > other.Month
}

// Group is one month bucket of the recent-updates view.
type Group struct {
	Key   MonthKey
	Pages page.Collection
}

// MonthKeyFor derives the bucket for a page, substituting the clock for a
// missing date.
func MonthKeyFor(p *page.Page, now time.Time) MonthKey {
	d := EffectiveDate(p, now)
	return MonthKey{Year: d.Year(), Month: d.Month()}
}

// GroupByMonth buckets pages into month groups ordered newest first and caps
// the result at limit groups. Within a group, pages keep their relative input
// order, so callers pass the date-sorted collection.
func GroupByMonth(pages page.Collection, now time.Time, limit int) []Group {
	if limit <= 0 {
		limit = DefaultGroupLimit
	}

	byKey := map[MonthKey]page.Collection{}
	keys := make([]MonthKey, 0)
	for _, p := range pages {
		key := MonthKeyFor(p, now)
		if _, seen := byKey[key]; !seen {
			keys = append(keys, key)
		}
		byKey[key] = append(byKey[key], p)
	}

	sort.SliceStable(keys, func(i, j int) bool {
		return keys[i].After(keys[j])
	})
	if len(keys) > limit {
		keys = keys[:limit]
	}

	groups := make([]Group, 0, len(keys))
	for _, key := range keys {
		groups = append(groups, Group{Key: key, Pages: byKey[key]})
	}
	return groups
}
