package render

import (
	"path"
	"strings"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"

	"github.com/ddingpy/shelfbuilder/internal/page"
)

var linkBaseKey = parser.NewContextKey()

func setLinkBase(pc parser.Context, relPath string) {
	pc.Set(linkBaseKey, path.Dir(strings.ReplaceAll(relPath, "\\", "/")))
}

// relLinkTransformer rewrites links that target Markdown source files into
// the URLs those files render to, so authors can cross-link content the way
// their editor previews it.
type relLinkTransformer struct{}

func (relLinkTransformer) Transform(doc *ast.Document, _ text.Reader, pc parser.Context) {
	dir, _ := pc.Get(linkBaseKey).(string)

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		link, ok := n.(*ast.Link)
		if !ok {
			return ast.WalkContinue, nil
		}
		link.Destination = rewriteMarkdownLink(link.Destination, dir)
		return ast.WalkContinue, nil
	})
}

// rewriteMarkdownLink maps "sibling.md" and "../other/page.md" style targets
// onto their page URLs, keeping any fragment or query suffix. External,
// anchor-only and non-Markdown destinations pass through untouched.
func rewriteMarkdownLink(dest []byte, dir string) []byte {
	s := string(dest)
	if s == "" ||
		strings.HasPrefix(s, "#") ||
		strings.HasPrefix(s, "//") ||
		strings.Contains(s, "://") ||
		strings.HasPrefix(s, "mailto:") {
		return dest
	}

	target, suffix := s, ""
	if i := strings.IndexAny(s, "#?"); i >= 0 {
		target, suffix = s[:i], s[i:]
	}
	if !strings.HasSuffix(strings.ToLower(target), ".md") {
		return dest
	}

	rel := target
	if strings.HasPrefix(rel, "/") {
		rel = strings.TrimPrefix(rel, "/")
	} else if dir != "" && dir != "." {
		rel = path.Join(dir, rel)
	}
	return []byte(page.URLFor(rel) + suffix)
}
