package content

import (
	"fmt"
	"os"
	"path/filepath"
)

const starterIndex = `---
title: Home
description: What lives on this shelf
---

# Home

Welcome to your shelf. The books index is generated at /books/ and
recent updates at /updates/.
`

const starterBook = `---
title: Getting Started
description: How to add books and notes to this site
is_index: true
---

# Getting Started

Each top-level Markdown file with is_index set becomes a book on the
shelf. Drop chapters next to it in the same directory.
`

// Scaffold writes a minimal starter content tree. An existing directory
// is left untouched; the return value reports whether anything was
// written.
func Scaffold(dir string) (bool, error) {
	if _, err := os.Stat(dir); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("stat content dir %s: %w", dir, err)
	}

	starter := []struct{ rel, body string }{
		{"index.md", starterIndex},
		{filepath.Join("books", "getting-started.md"), starterBook},
	}
	for _, f := range starter {
		path := filepath.Join(dir, f.rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return false, fmt.Errorf("create content dir %s: %w", filepath.Dir(path), err)
		}
		if err := os.WriteFile(path, []byte(f.body), 0o644); err != nil {
			return false, fmt.Errorf("write %s: %w", path, err)
		}
	}
	return true, nil
}
