package serve

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIgnorePath_FiltersEditorNoise(t *testing.T) {
	cases := map[string]bool{
		"content/page.md":      false,
		"content/books/new.md": false,
		"content/.hidden.md":   true,
		"content/page.md~":     true,
		"content/.page.md.swp": true,
		"content/page.swx":     true,
		"content/#page.md#":    true,
		"content/.#page.md":    true,
		"content/Thumbs.db":    true,
	}
	for path, want := range cases {
		require.Equal(t, want, ignorePath(path), path)
	}
}

func TestNewWatcher_WatchesNestedDirs(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "books", "drafts")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	w, err := newWatcher(root)
	require.NoError(t, err)
	defer w.Close()

	watched := w.WatchList()
	require.Contains(t, watched, root)
	require.Contains(t, watched, filepath.Join(root, "books"))
	require.Contains(t, watched, nested)
}

func TestDebouncer_CoalescesBursts(t *testing.T) {
	deb := newDebouncer(30 * time.Millisecond)
	defer deb.stop()

	for range 5 {
		deb.trigger()
	}

	select {
	case <-deb.req:
	case <-time.After(2 * time.Second):
		t.Fatal("debouncer never fired")
	}

	// A burst yields exactly one request.
	select {
	case <-deb.req:
		t.Fatal("burst produced a second request")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestDebouncer_FiresAgainAfterQuietPeriod(t *testing.T) {
	deb := newDebouncer(10 * time.Millisecond)
	defer deb.stop()

	deb.trigger()
	select {
	case <-deb.req:
	case <-time.After(2 * time.Second):
		t.Fatal("first trigger never fired")
	}

	deb.trigger()
	select {
	case <-deb.req:
	case <-time.After(2 * time.Second):
		t.Fatal("second trigger never fired")
	}
}
