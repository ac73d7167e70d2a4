package listing

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ddingpy/shelfbuilder/internal/page"
)

func TestRendererList_Empty_RendersEmptyUL(t *testing.T) {
	out := NewRenderer("", 0).List(nil)
	require.Equal(t, "<ul class=\"page-list\">\n</ul>\n", out)
}

func TestRendererList_NoDescription_LinkOnly(t *testing.T) {
	out := NewRenderer("", 0).List(page.Collection{titled("A", "/a/")})
	require.Equal(t, "<ul class=\"page-list\">\n<li><a href=\"/a/\">A</a></li>\n</ul>\n", out)
}

func TestRendererList_Description_AppendedTruncated(t *testing.T) {
	p := &page.Page{Title: "A", URL: "/a/", Description: strings.Repeat("d", 100)}

	out := NewRenderer("", 0).List(page.Collection{p})
	require.Contains(t, out, "</a> - ")
	require.Contains(t, out, strings.Repeat("d", 77)+"...")
	require.NotContains(t, out, strings.Repeat("d", 78))
}

func TestRendererList_EscapesTitleDescriptionAndHref(t *testing.T) {
	p := &page.Page{
		Title:       "Q&A <guide>",
		URL:         "/q&a/",
		Description: `say "hi"`,
	}

	out := NewRenderer("", 0).List(page.Collection{p})
	require.Contains(t, out, "Q&amp;A &lt;guide&gt;")
	require.Contains(t, out, "/q&amp;a/")
	require.NotContains(t, out, "<guide>")
}

func TestRendererList_BasePathPrefixed(t *testing.T) {
	out := NewRenderer("/docs/", 0).List(page.Collection{titled("A", "/a/")})
	require.Contains(t, out, "href=\"/docs/a/\"")
}

func TestRendererGrouped_HeadingsInGroupOrder(t *testing.T) {
	groups := []Group{
		{Key: MonthKey{Year: 2025, Month: time.June}, Pages: page.Collection{titled("New", "/new/")}},
		{Key: MonthKey{Year: 2025, Month: time.May}, Pages: page.Collection{titled("Older", "/older/")}},
	}

	out := NewRenderer("", 0).Grouped(groups)
	june := strings.Index(out, "June 2025")
	may := strings.Index(out, "May 2025")
	require.True(t, june >= 0 && may >= 0)
	require.Less(t, june, may)
	require.Less(t, strings.Index(out, "/new/"), strings.Index(out, "/older/"))
}

func TestRendererGrouped_NoGroups_RendersEmptyUL(t *testing.T) {
	out := NewRenderer("", 0).Grouped(nil)
	require.Equal(t, "<ul class=\"page-list\">\n</ul>\n", out)
}
