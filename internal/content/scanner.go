package content

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ddingpy/shelfbuilder/internal/frontmatter"
	"github.com/ddingpy/shelfbuilder/internal/logfields"
	"github.com/ddingpy/shelfbuilder/internal/page"
)

// Asset is a non-Markdown file copied verbatim into the output.
type Asset struct {
	SourcePath string // absolute path of the source file
	RelPath    string // path relative to the content root
}

// Result holds everything a content scan produced.
//
// Pages appear in walk order (lexical by path), which later stages rely on as
// the stable tie-break baseline. Warnings are page-level problems the scan
// recovered from; they surface in the build report.
type Result struct {
	Pages    page.Collection
	Assets   []Asset
	Warnings []string
}

// Scanner walks a content directory and turns it into pages and assets.
type Scanner struct {
	root string
}

func NewScanner(root string) *Scanner {
	return &Scanner{root: root}
}

// Scan walks the content root.
//
// Hidden files, hidden directories and underscore-prefixed directories are
// skipped. Markdown files become pages; everything else becomes an asset.
// A page whose front matter opens but never closes is kept with the whole
// file as body and recorded as a warning. Duplicate URLs keep the first
// occurrence and record a warning for the rest.
func (s *Scanner) Scan() (*Result, error) {
	res := &Result{}

	err := filepath.WalkDir(s.root, func(fsPath string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		name := d.Name()
		if d.IsDir() {
			if fsPath != s.root && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")) {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") {
			return nil
		}

		relPath, err := filepath.Rel(s.root, fsPath)
		if err != nil {
			return fmt.Errorf("relative path for %s: %w", fsPath, err)
		}
		relPath = filepath.ToSlash(relPath)

		if !isMarkdown(name) {
			res.Assets = append(res.Assets, Asset{SourcePath: fsPath, RelPath: relPath})
			return nil
		}

		p, warn, err := s.loadPage(fsPath, relPath)
		if err != nil {
			return err
		}
		if warn != "" {
			res.Warnings = append(res.Warnings, warn)
		}
		res.Pages = append(res.Pages, p)

		slog.Debug("Scanned page", logfields.File(relPath), logfields.Page(p.URL))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan content dir %s: %w", s.root, err)
	}

	res.Pages, res.Warnings = dedupeByURL(res.Pages, res.Warnings)

	slog.Info("Content scanned",
		logfields.Path(s.root),
		slog.Int("pages", len(res.Pages)),
		slog.Int("assets", len(res.Assets)),
		slog.Int("warnings", len(res.Warnings)))
	return res, nil
}

func (s *Scanner) loadPage(fsPath, relPath string) (*page.Page, string, error) {
	raw, err := os.ReadFile(fsPath)
	if err != nil {
		return nil, "", fmt.Errorf("read page %s: %w", relPath, err)
	}

	warn := ""
	meta, body, had, _, err := frontmatter.Split(raw)
	if err != nil {
		// Unterminated front matter: treat the whole file as body and move on.
		warn = fmt.Sprintf("%s: %v", relPath, err)
		slog.Warn("Malformed front matter, treating file as plain markdown",
			logfields.File(relPath), logfields.Error(err))
		body, had = raw, false
	}

	fields := map[string]any{}
	if had {
		fields, err = frontmatter.ParseYAML(meta)
		if err != nil {
			warn = fmt.Sprintf("%s: %v", relPath, err)
			slog.Warn("Unparseable front matter, using defaults",
				logfields.File(relPath), logfields.Error(err))
			fields = map[string]any{}
		}
	}

	p := page.FromSource(relPath, fields, body)
	p.SourcePath = fsPath
	return p, warn, nil
}

func dedupeByURL(pages page.Collection, warnings []string) (page.Collection, []string) {
	seen := make(map[string]string, len(pages))
	out := pages[:0]
	for _, p := range pages {
		if first, dup := seen[p.URL]; dup {
			warnings = append(warnings, fmt.Sprintf("%s: duplicate url %s (first defined by %s)", p.RelPath, p.URL, first))
			slog.Warn("Duplicate page URL, keeping first occurrence",
				logfields.URL(p.URL),
				logfields.File(p.RelPath),
				slog.String("first", first))
			continue
		}
		seen[p.URL] = p.RelPath
		out = append(out, p)
	}
	return out, warnings
}

func isMarkdown(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".md", ".markdown", ".mdown", ".mkd":
		return true
	}
	return false
}
