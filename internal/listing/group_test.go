package listing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ddingpy/shelfbuilder/internal/page"
)

func TestGroupByMonth_CapsAtLimit(t *testing.T) {
	now := time.Date(2025, time.December, 1, 0, 0, 0, 0, time.UTC)
	var pages page.Collection
	for m := time.January; m <= time.August; m++ {
		pages = append(pages, book(m.String(), "/m/", datePtr(2025, m, 1)))
	}

	groups := GroupByMonth(ByDateDesc(pages, now), now, 6)
	require.Len(t, groups, 6)
	require.Equal(t, time.August, groups[0].Key.Month)
	require.Equal(t, time.March, groups[5].Key.Month)
}

func TestGroupByMonth_FewerGroupsThanLimit_AllRendered(t *testing.T) {
	now := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	pages := page.Collection{
		book("A", "/a/", datePtr(2025, time.May, 1)),
		book("B", "/b/", datePtr(2025, time.April, 1)),
	}

	groups := GroupByMonth(ByDateDesc(pages, now), now, 6)
	require.Len(t, groups, 2)
}

func TestGroupByMonth_ChronologyBeatsLabelOrder(t *testing.T) {
	// A label sort would put "January 2025" ahead of "February 2025";
	// the numeric key keeps February (the later month) first.
	now := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	pages := page.Collection{
		book("Jan", "/jan/", datePtr(2025, time.January, 10)),
		book("Feb", "/feb/", datePtr(2025, time.February, 10)),
	}

	groups := GroupByMonth(ByDateDesc(pages, now), now, 6)
	require.Len(t, groups, 2)
	require.Equal(t, "February 2025", groups[0].Key.Label())
	require.Equal(t, "January 2025", groups[1].Key.Label())
}

func TestGroupByMonth_YearBoundary_NewestYearFirst(t *testing.T) {
	now := time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC)
	pages := page.Collection{
		book("Dec", "/dec/", datePtr(2024, time.December, 30)),
		book("Jan", "/jan/", datePtr(2025, time.January, 2)),
	}

	groups := GroupByMonth(ByDateDesc(pages, now), now, 6)
	require.Equal(t, MonthKey{Year: 2025, Month: time.January}, groups[0].Key)
	require.Equal(t, MonthKey{Year: 2024, Month: time.December}, groups[1].Key)
}

func TestGroupByMonth_UndatedPageBucketsWithClock(t *testing.T) {
	now := time.Date(2025, time.June, 20, 0, 0, 0, 0, time.UTC)
	pages := page.Collection{
		book("Undated", "/undated/", nil),
	}

	groups := GroupByMonth(pages, now, 6)
	require.Len(t, groups, 1)
	require.Equal(t, MonthKey{Year: 2025, Month: time.June}, groups[0].Key)
}

func TestGroupByMonth_WithinGroupOrderPreserved(t *testing.T) {
	now := time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC)
	pages := page.Collection{
		book("Late", "/late/", datePtr(2025, time.June, 25)),
		book("Early", "/early/", datePtr(2025, time.June, 5)),
	}

	groups := GroupByMonth(ByDateDesc(pages, now), now, 6)
	require.Len(t, groups, 1)
	require.Equal(t, []string{"/late/", "/early/"}, urls(groups[0].Pages))
}

func TestGroupByMonth_NonPositiveLimit_UsesDefault(t *testing.T) {
	now := time.Date(2025, time.December, 1, 0, 0, 0, 0, time.UTC)
	var pages page.Collection
	for m := time.January; m <= time.December; m++ {
		pages = append(pages, book(m.String(), "/m/", datePtr(2025, m, 1)))
	}

	groups := GroupByMonth(ByDateDesc(pages, now), now, 0)
	require.Len(t, groups, DefaultGroupLimit)
}

func TestMonthKey_Label(t *testing.T) {
	require.Equal(t, "February 2025", MonthKey{Year: 2025, Month: time.February}.Label())
	require.Equal(t, "December 2024", MonthKey{Year: 2024, Month: time.December}.Label())
}

func TestMonthKey_After(t *testing.T) {
	jan25 := MonthKey{Year: 2025, Month: time.January}
	dec24 := MonthKey{Year: 2024, Month: time.December}
	feb25 := MonthKey{Year: 2025, Month: time.February}

	require.True(t, jan25.After(dec24))
	require.True(t, feb25.After(jan25))
	require.False(t, dec24.After(jan25))
	require.False(t, jan25.After(jan25))
}
