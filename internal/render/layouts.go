package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/ddingpy/shelfbuilder/internal/logfields"
)

// Layout kinds. Each kind maps to one template file.
const (
	LayoutPage    = "page"
	LayoutListing = "listing"
	LayoutHome    = "home"
)

//go:embed layouts_default/*.tmpl
var embeddedLayouts embed.FS

// SiteContext carries site-wide fields into every layout.
type SiteContext struct {
	Title       string
	Description string
	Author      string
	BaseURL     string
	BasePath    string
}

// PageData is the template context for a standalone content page.
type PageData struct {
	Site        SiteContext
	Title       string
	Description string
	DateLabel   string
	URL         string
	Content     template.HTML
}

// ListingData is the template context for the home, books and updates pages.
// Intro is only set on the home page, from the root index.md body.
type ListingData struct {
	Site     SiteContext
	Title    string
	URL      string
	Intro    template.HTML
	Fragment template.HTML
}

// LayoutInfo records where a layout came from, surfaced in the build report.
type LayoutInfo struct {
	Source string `json:"source"` // "file" or "embedded"
	Path   string `json:"path,omitempty"`
}

// Layouts resolves and caches the site's HTML layouts. A file under
// <root>/layouts/<kind>.html.tmpl overrides the embedded default.
type Layouts struct {
	root  string
	cache map[string]*template.Template
	usage map[string]LayoutInfo
}

func NewLayouts(root string) *Layouts {
	return &Layouts{
		root:  root,
		cache: make(map[string]*template.Template),
		usage: make(map[string]LayoutInfo),
	}
}

// Render executes the layout of the given kind with data.
func (l *Layouts) Render(kind string, data any) ([]byte, error) {
	tmpl, err := l.lookup(kind)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("execute layout %s: %w", kind, err)
	}
	return buf.Bytes(), nil
}

// Usage reports the resolved source of every layout rendered so far.
func (l *Layouts) Usage() map[string]LayoutInfo {
	out := make(map[string]LayoutInfo, len(l.usage))
	for k, v := range l.usage {
		out[k] = v
	}
	return out
}

func (l *Layouts) lookup(kind string) (*template.Template, error) {
	if tmpl, ok := l.cache[kind]; ok {
		return tmpl, nil
	}

	body, info, err := l.load(kind)
	if err != nil {
		return nil, err
	}

	tmpl, err := template.New(kind).Funcs(layoutFuncs).Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parse layout %s (%s): %w", kind, info.Source, err)
	}

	l.cache[kind] = tmpl
	l.usage[kind] = info
	return tmpl, nil
}

// load returns the override file when present, the embedded default
// otherwise. A missing embedded default is a programmer error.
func (l *Layouts) load(kind string) (string, LayoutInfo, error) {
	if l.root != "" {
		override := filepath.Join(l.root, "layouts", kind+".html.tmpl")
		if b, err := os.ReadFile(override); err == nil {
			slog.Debug("Loaded layout override", logfields.Name(kind), logfields.Path(override))
			return string(b), LayoutInfo{Source: "file", Path: override}, nil
		}
	}

	b, err := embeddedLayouts.ReadFile("layouts_default/" + kind + ".html.tmpl")
	if err != nil {
		return "", LayoutInfo{}, fmt.Errorf("unknown layout kind %s: %w", kind, err)
	}
	return string(b), LayoutInfo{Source: "embedded"}, nil
}

var layoutFuncs = template.FuncMap{
	"titleCase":  titleCase,
	"lower":      strings.ToLower,
	"replaceAll": strings.ReplaceAll,
}

var titleCaser = cases.Title(language.English)

func titleCase(s string) string { return titleCaser.String(s) }
