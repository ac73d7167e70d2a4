package incremental

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func TestCompute_SameInputs_SameHash(t *testing.T) {
	files := map[string]string{
		"index.md":       "# Home",
		"guide/intro.md": "# Intro",
	}
	a := writeTree(t, files)
	b := writeTree(t, files)

	sigA, err := Compute("cfg", a)
	require.NoError(t, err)
	sigB, err := Compute("cfg", b)
	require.NoError(t, err)

	require.True(t, sigA.Equals(sigB))
	require.Equal(t, sigA.Hash, sigB.Hash)
	require.Len(t, sigA.Files, 2)
}

func TestCompute_ContentEdit_ChangesHash(t *testing.T) {
	root := writeTree(t, map[string]string{"index.md": "# Home"})

	before, err := Signature("cfg", root)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(root, "index.md"), []byte("# Edited"), 0o644))

	after, err := Signature("cfg", root)
	require.NoError(t, err)
	require.NotEqual(t, before, after)
}

func TestCompute_ConfigHashChange_ChangesHash(t *testing.T) {
	root := writeTree(t, map[string]string{"index.md": "# Home"})

	a, err := Signature("cfg-one", root)
	require.NoError(t, err)
	b, err := Signature("cfg-two", root)
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestCompute_NewFile_ChangesHash(t *testing.T) {
	root := writeTree(t, map[string]string{"index.md": "# Home"})

	before, err := Signature("cfg", root)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(root, "extra.md"), []byte("# Extra"), 0o644))

	after, err := Signature("cfg", root)
	require.NoError(t, err)
	require.NotEqual(t, before, after)
}

func TestCompute_HiddenAndUnderscoreEntries_Ignored(t *testing.T) {
	root := writeTree(t, map[string]string{
		"index.md":       "# Home",
		".DS_Store":      "junk",
		"_drafts/wip.md": "draft",
		".git/HEAD":      "ref",
		"guide/.hidden":  "junk",
		"guide/intro.md": "# Intro",
	})

	sig, err := Compute("cfg", root)
	require.NoError(t, err)

	require.Len(t, sig.Files, 2)
	for _, f := range sig.Files {
		require.NotContains(t, f.Path, ".git")
		require.NotContains(t, f.Path, "_drafts")
	}
}

func TestCompute_MissingRoot_Errors(t *testing.T) {
	_, err := Compute("cfg", filepath.Join(t.TempDir(), "absent"))
	require.Error(t, err)
}
