package build

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"

	"github.com/ddingpy/shelfbuilder/internal/logfields"
	"github.com/ddingpy/shelfbuilder/internal/page"
	"github.com/ddingpy/shelfbuilder/internal/render"
	"github.com/ddingpy/shelfbuilder/internal/verify"
)

// stageRenderPages converts every scanned page to HTML inside the page
// layout. The root index page is not written here; the listings stage
// folds its body into the home page.
func stageRenderPages(ctx context.Context, bs *BuildState) error {
	for _, p := range bs.Scan.Pages {
		select {
		case <-ctx.Done():
			return newCanceledStageError(StageRenderPages, ctx.Err())
		default:
		}
		if p.URL == "/" {
			continue
		}

		body, err := bs.Markdown.ToHTML(p.RelPath, p.Body)
		if err != nil {
			return newFatalStageError(StageRenderPages, fmt.Errorf("render %s: %w", p.RelPath, err))
		}

		data := render.PageData{
			Site:        bs.Site,
			Title:       p.DisplayTitle(),
			Description: p.Description,
			DateLabel:   dateLabel(p),
			URL:         p.URL,
			Content:     template.HTML(body),
		}
		out, err := bs.Layouts.Render(render.LayoutPage, data)
		if err != nil {
			return newFatalStageError(StageRenderPages, err)
		}
		if err := writeStageFile(bs.StageDir, page.OutputPath(p.URL), out); err != nil {
			return newFatalStageError(StageRenderPages, err)
		}

		bs.Report.Rendered++
		bs.Recorder.IncPagesRendered(1)
	}

	slog.Info("Rendered pages", logfields.Count(bs.Report.Rendered))
	return nil
}

func dateLabel(p *page.Page) string {
	if p.Date == nil {
		return ""
	}
	return p.Date.Format("January 2, 2006")
}

// listingDoc pairs a listing view with where it lands in the output.
type listingDoc struct {
	kind  string
	rel   string
	label string
	data  render.ListingData
}

// stageListings writes the three listing documents: the books index, the
// recent-updates view and the home page.
func stageListings(_ context.Context, bs *BuildState) error {
	booksFragment := template.HTML(bs.Engine.BooksAZ(bs.Scan.Pages))

	intro, err := homeIntro(bs)
	if err != nil {
		return newFatalStageError(StageListings, err)
	}

	docs := []listingDoc{
		{
			kind:  render.LayoutListing,
			rel:   "books/index.html",
			label: "books",
			data: render.ListingData{
				Site:     bs.Site,
				Title:    "Books",
				URL:      "/books/",
				Fragment: booksFragment,
			},
		},
		{
			kind:  render.LayoutListing,
			rel:   "updates/index.html",
			label: "updates",
			data: render.ListingData{
				Site:     bs.Site,
				Title:    "Recent Updates",
				URL:      "/updates/",
				Fragment: template.HTML(bs.Engine.RecentUpdates(bs.Scan.Pages, bs.Now)),
			},
		},
		{
			kind:  render.LayoutHome,
			rel:   "index.html",
			label: "home",
			data: render.ListingData{
				Site:     bs.Site,
				Title:    "Books",
				URL:      "/",
				Intro:    intro,
				Fragment: booksFragment,
			},
		},
	}

	for _, doc := range docs {
		out, err := bs.Layouts.Render(doc.kind, doc.data)
		if err != nil {
			return newFatalStageError(StageListings, err)
		}
		if err := writeStageFile(bs.StageDir, doc.rel, out); err != nil {
			return newFatalStageError(StageListings, err)
		}
		bs.Report.Rendered++
		bs.Recorder.IncPagesRendered(1)
		slog.Debug("Rendered listing", logfields.View(doc.label))
	}
	return nil
}

// homeIntro renders the root index page's body, when one exists, for
// embedding into the home layout.
func homeIntro(bs *BuildState) (template.HTML, error) {
	for _, p := range bs.Scan.Pages {
		if p.URL != "/" {
			continue
		}
		body, err := bs.Markdown.ToHTML(p.RelPath, p.Body)
		if err != nil {
			return "", fmt.Errorf("render %s: %w", p.RelPath, err)
		}
		return template.HTML(body), nil
	}
	return "", nil
}

// stageFeeds writes the Atom feed and the sitemap.
func stageFeeds(_ context.Context, bs *BuildState) error {
	atom, err := bs.Feeds.Atom(bs.Scan.Pages, bs.Now)
	if err != nil {
		return newFatalStageError(StageFeeds, err)
	}
	if err := writeStageFile(bs.StageDir, "feed.xml", atom); err != nil {
		return newFatalStageError(StageFeeds, err)
	}

	sitemap, err := bs.Feeds.Sitemap(bs.Scan.Pages, bs.Now)
	if err != nil {
		return newFatalStageError(StageFeeds, err)
	}
	if err := writeStageFile(bs.StageDir, "sitemap.xml", sitemap); err != nil {
		return newFatalStageError(StageFeeds, err)
	}
	return nil
}

// stageVerifyOutput link-checks the staged site before promotion. A
// listing linking a generator-owned URL is a bug in this program and
// fails the build; broken content links demote to a warning.
func stageVerifyOutput(ctx context.Context, bs *BuildState) error {
	checker := verify.NewChecker(bs.Engine.Filter(), bs.Site.BasePath)
	res, err := checker.CheckDir(ctx, bs.StageDir)
	if err != nil {
		return newFatalStageError(StageVerifyOutput, err)
	}

	if len(res.Violations) > 0 {
		return newFatalStageError(StageVerifyOutput,
			fmt.Errorf("%d listing links point at generator-owned urls", len(res.Violations)))
	}
	if len(res.Broken) > 0 {
		bs.Report.BrokenLinks = res.Broken
		return newWarnStageError(StageVerifyOutput,
			fmt.Errorf("%d broken internal links", len(res.Broken)))
	}
	return nil
}
