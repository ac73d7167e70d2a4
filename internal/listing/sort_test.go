package listing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ddingpy/shelfbuilder/internal/page"
)

func TestByTitle_ByteLexicalAscending(t *testing.T) {
	pages := page.Collection{
		titled("beta", "/1/"),
		titled("Alpha", "/2/"),
		titled("Zoo", "/3/"),
	}

	out := ByTitle(pages)
	require.Equal(t, []string{"Alpha", "Zoo", "beta"}, titles(out))
}

func TestByTitle_EqualTitlesKeepInputOrder(t *testing.T) {
	pages := page.Collection{
		titled("Same", "/first/"),
		titled("Same", "/second/"),
		titled("Same", "/third/"),
	}

	out := ByTitle(pages)
	require.Equal(t, []string{"/first/", "/second/", "/third/"}, urls(out))
}

func TestByTitle_DoesNotMutateInput(t *testing.T) {
	pages := page.Collection{
		titled("B", "/b/"),
		titled("A", "/a/"),
	}

	_ = ByTitle(pages)
	require.Equal(t, []string{"/b/", "/a/"}, urls(pages))
}

func TestByDateDesc_NewestFirst(t *testing.T) {
	pages := page.Collection{
		{Title: "Old", URL: "/old/", Date: datePtr(2024, time.March, 1)},
		{Title: "New", URL: "/new/", Date: datePtr(2025, time.March, 1)},
		{Title: "Mid", URL: "/mid/", Date: datePtr(2024, time.December, 1)},
	}

	out := ByDateDesc(pages, time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC))
	require.Equal(t, []string{"/new/", "/mid/", "/old/"}, urls(out))
}

func TestByDateDesc_NilDateSortsAsNow(t *testing.T) {
	now := time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC)
	pages := page.Collection{
		{Title: "Dated", URL: "/dated/", Date: datePtr(2025, time.May, 1)},
		{Title: "Undated", URL: "/undated/"},
	}

	out := ByDateDesc(pages, now)
	require.Equal(t, []string{"/undated/", "/dated/"}, urls(out))
}

func TestByDateDesc_EqualDatesKeepInputOrder(t *testing.T) {
	d := datePtr(2025, time.May, 1)
	pages := page.Collection{
		{Title: "First", URL: "/first/", Date: d},
		{Title: "Second", URL: "/second/", Date: d},
	}

	out := ByDateDesc(pages, time.Now())
	require.Equal(t, []string{"/first/", "/second/"}, urls(out))
}

func TestEffectiveDate_SubstitutesClock(t *testing.T) {
	now := time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC)
	require.Equal(t, now, EffectiveDate(&page.Page{}, now))

	d := datePtr(2024, time.April, 2)
	require.Equal(t, *d, EffectiveDate(&page.Page{Date: d}, now))
}

func titles(pages page.Collection) []string {
	out := make([]string, 0, len(pages))
	for _, p := range pages {
		out = append(out, p.Title)
	}
	return out
}
