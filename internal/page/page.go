package page

import (
	"log/slog"
	"path"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/ddingpy/shelfbuilder/internal/logfields"
)

// Page is the unit of content produced by scanning the content tree.
//
// Title, URL, Date, Description and IsIndex drive the listing views; the
// remaining fields carry source material through the build and never affect
// listing semantics.
type Page struct {
	Title       string
	URL         string
	Date        *time.Time
	Description string
	IsIndex     bool

	SourcePath string         // absolute path of the source file
	RelPath    string         // path relative to the content root
	Body       []byte         // markdown body without front matter
	Meta       map[string]any // full decoded front matter
	Weight     int            // ordering hint inside a book
}

// Collection is an ordered set of pages. Order is the content-scan order,
// which downstream sorting treats as the tie-break baseline.
type Collection []*Page

// dateLayouts are tried in order when front matter carries the date as a
// string. Jekyll sites mix bare dates, RFC3339 and the zoned long form.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// FromSource builds a Page from a content-relative path, its decoded front
// matter and the Markdown body.
//
// Front-matter fields of the wrong type are ignored with a debug log and the
// documented defaults apply: Title stays empty when front matter declares
// none (such pages never enter listings; standalone rendering uses
// DisplayTitle instead), missing dates stay nil.
func FromSource(relPath string, meta map[string]any, body []byte) *Page {
	p := &Page{
		URL:     URLFor(relPath),
		RelPath: relPath,
		Body:    body,
		Meta:    meta,
	}

	if title, ok := stringField(meta, "title", relPath); ok {
		p.Title = title
	}
	if desc, ok := stringField(meta, "description", relPath); ok {
		p.Description = desc
	}
	if idx, ok := boolField(meta, "is_index", relPath); ok {
		p.IsIndex = idx
	}
	if w, ok := intField(meta, "weight", relPath); ok {
		p.Weight = w
	}
	if d, ok := dateField(meta, "date", relPath); ok {
		p.Date = &d
	}

	return p
}

// DisplayTitle returns the front-matter title, or a slug-derived fallback
// for standalone rendering of untitled pages. Listings must use Title
// directly so untitled pages stay excluded.
func (p *Page) DisplayTitle() string {
	if p.Title != "" {
		return p.Title
	}
	return FallbackTitle(p.RelPath)
}

// URLFor derives the site-relative URL for a content path.
//
//	guide/intro.md  -> /guide/intro/
//	guide/index.md  -> /guide/
//	index.md        -> /
func URLFor(relPath string) string {
	clean := path.Clean(strings.TrimPrefix(path.Join("/", toSlash(relPath)), "/"))
	clean = strings.TrimSuffix(clean, path.Ext(clean))

	if base := path.Base(clean); base == "index" || base == "_index" {
		clean = path.Dir(clean)
	}
	if clean == "." || clean == "" {
		return "/"
	}
	return "/" + clean + "/"
}

// OutputPath maps a site-relative URL to the file path it is written to
// under the output root.
//
//	/            -> index.html
//	/guide/      -> guide/index.html
//	/a           -> a/index.html
//	/feed.xml    -> feed.xml
func OutputPath(url string) string {
	trimmed := strings.Trim(url, "/")
	if trimmed == "" {
		return "index.html"
	}
	if path.Ext(trimmed) != "" {
		return trimmed
	}
	return trimmed + "/index.html"
}

// FallbackTitle derives a display title from the file slug when front matter
// does not declare one: dashes and underscores become spaces, then English
// title casing applies.
func FallbackTitle(relPath string) string {
	slug := strings.TrimSuffix(path.Base(toSlash(relPath)), path.Ext(relPath))
	if slug == "index" || slug == "_index" {
		slug = path.Base(path.Dir(toSlash(relPath)))
		if slug == "." || slug == "/" || slug == "" {
			return "Home"
		}
	}
	slug = strings.NewReplacer("-", " ", "_", " ").Replace(slug)
	return cases.Title(language.English).String(slug)
}

func toSlash(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}

func stringField(meta map[string]any, key, relPath string) (string, bool) {
	v, ok := meta[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok {
		slog.Debug("Ignoring front matter field with unexpected type",
			logfields.File(relPath),
			slog.String("field", key),
			slog.Any("value", v))
		return "", false
	}
	return s, true
}

func boolField(meta map[string]any, key, relPath string) (bool, bool) {
	v, ok := meta[key]
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	if !ok {
		slog.Debug("Ignoring front matter field with unexpected type",
			logfields.File(relPath),
			slog.String("field", key),
			slog.Any("value", v))
		return false, false
	}
	return b, true
}

func intField(meta map[string]any, key, relPath string) (int, bool) {
	v, ok := meta[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		slog.Debug("Ignoring front matter field with unexpected type",
			logfields.File(relPath),
			slog.String("field", key),
			slog.Any("value", v))
		return 0, false
	}
}

// dateField accepts both time.Time (the YAML decoder resolves ISO timestamps
// natively) and the string layouts Jekyll content uses in the wild.
func dateField(meta map[string]any, key, relPath string) (time.Time, bool) {
	v, ok := meta[key]
	if !ok {
		return time.Time{}, false
	}
	switch d := v.(type) {
	case time.Time:
		return d, true
	case string:
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, d); err == nil {
				return t, true
			}
		}
		slog.Debug("Ignoring unparseable front matter date",
			logfields.File(relPath),
			slog.String("value", d))
		return time.Time{}, false
	default:
		slog.Debug("Ignoring front matter field with unexpected type",
			logfields.File(relPath),
			slog.String("field", key),
			slog.Any("value", v))
		return time.Time{}, false
	}
}
