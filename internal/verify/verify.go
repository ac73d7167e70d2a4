// Package verify link-checks a rendered site. It reports two classes of
// problems: listing fragments that link to generator-owned URLs (always
// a generator bug), and internal hrefs that resolve to no rendered file
// (broken content links).
package verify

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ddingpy/shelfbuilder/internal/listing"
	"github.com/ddingpy/shelfbuilder/internal/page"
)

// Violation is an excluded URL linked from inside a listing fragment.
type Violation struct {
	File string `json:"file"`
	Href string `json:"href"`
}

// BrokenLink is an internal href that resolves to no rendered file.
type BrokenLink struct {
	File string `json:"file"`
	Href string `json:"href"`
}

// Result is the outcome of checking one site directory.
type Result struct {
	FilesChecked int          `json:"files_checked"`
	Violations   []Violation  `json:"violations,omitempty"`
	Broken       []BrokenLink `json:"broken_links,omitempty"`
}

// Clean reports whether the site passed without findings.
func (r *Result) Clean() bool {
	return len(r.Violations) == 0 && len(r.Broken) == 0
}

// Checker inspects rendered HTML files.
type Checker struct {
	filter   listing.Filter
	basePath string
}

// NewChecker builds a Checker. The filter decides which URLs count as
// generator-owned; basePath is the site's URL prefix, stripped from
// hrefs before resolution.
func NewChecker(filter listing.Filter, basePath string) *Checker {
	return &Checker{filter: filter, basePath: strings.TrimSuffix(basePath, "/")}
}

// CheckDir walks every .html file under root and checks its anchors
// against the set of files the site actually contains.
func (c *Checker) CheckDir(ctx context.Context, root string) (*Result, error) {
	known, err := collectFiles(root)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".html") {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if err := c.checkFile(path, filepath.ToSlash(rel), known, res); err != nil {
			return err
		}
		res.FilesChecked++
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk site dir: %w", err)
	}
	return res, nil
}

func (c *Checker) checkFile(path, rel string, known map[string]bool, res *Result) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return fmt.Errorf("parse %s: %w", rel, err)
	}

	doc.Find("ul.page-list a").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		if url, ok := c.siteURL(href); ok && c.filter.Excluded(url) {
			res.Violations = append(res.Violations, Violation{File: rel, Href: href})
		}
	})

	doc.Find("a").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		url, ok := c.siteURL(href)
		if !ok {
			return
		}
		if !known[page.OutputPath(url)] {
			res.Broken = append(res.Broken, BrokenLink{File: rel, Href: href})
		}
	})
	return nil
}

// siteURL maps an href to a site-relative URL. External, fragment-only
// and mailto hrefs report ok=false; so do absolute hrefs outside the
// configured base path.
func (c *Checker) siteURL(href string) (string, bool) {
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "mailto:") {
		return "", false
	}
	if strings.Contains(href, "://") || strings.HasPrefix(href, "//") {
		return "", false
	}
	if !strings.HasPrefix(href, "/") {
		return "", false
	}

	url := href
	if i := strings.IndexAny(url, "#?"); i >= 0 {
		url = url[:i]
	}
	if c.basePath != "" {
		if url != c.basePath && !strings.HasPrefix(url, c.basePath+"/") {
			return "", false
		}
		url = strings.TrimPrefix(url, c.basePath)
	}
	if url == "" {
		url = "/"
	}
	return url, true
}

// collectFiles gathers the relative path of every file under root.
func collectFiles(root string) (map[string]bool, error) {
	known := make(map[string]bool)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		known[filepath.ToSlash(rel)] = true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("index site dir: %w", err)
	}
	return known, nil
}
