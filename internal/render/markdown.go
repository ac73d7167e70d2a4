package render

import (
	"bytes"
	"fmt"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/util"
)

// Markdown converts page bodies to HTML.
//
// Raw HTML in the source is passed through goldmark and then sanitized with
// the UGC policy; setting unsafe keeps the raw output. Relative links to
// other Markdown files are rewritten to their page URLs during parsing.
type Markdown struct {
	md       goldmark.Markdown
	policy   *bluemonday.Policy
	sanitize bool
}

func NewMarkdown(unsafe bool) *Markdown {
	return &Markdown{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM, extension.Footnote),
			goldmark.WithParserOptions(
				parser.WithAutoHeadingID(),
				parser.WithASTTransformers(
					util.Prioritized(relLinkTransformer{}, 100),
				),
			),
			goldmark.WithRendererOptions(
				html.WithUnsafe(),
			),
		),
		policy:   bluemonday.UGCPolicy(),
		sanitize: !unsafe,
	}
}

// ToHTML renders the Markdown body of the page at relPath. relPath anchors
// relative links: a reference to sibling.md inside guide/intro.md resolves
// against guide/.
func (m *Markdown) ToHTML(relPath string, src []byte) ([]byte, error) {
	pctx := parser.NewContext()
	setLinkBase(pctx, relPath)

	var buf bytes.Buffer
	if err := m.md.Convert(src, &buf, parser.WithContext(pctx)); err != nil {
		return nil, fmt.Errorf("render markdown for %s: %w", relPath, err)
	}

	if m.sanitize {
		return m.policy.SanitizeBytes(buf.Bytes()), nil
	}
	return buf.Bytes(), nil
}
