package build

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeMarker(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestFinalizeStaging_PromotesAndDropsBackup(t *testing.T) {
	base := t.TempDir()
	stage := filepath.Join(base, "public_stage")
	output := filepath.Join(base, "public")
	writeMarker(t, stage, "index.html", "new")
	writeMarker(t, output, "index.html", "old")

	require.NoError(t, finalizeStaging(stage, output, false))

	data, err := os.ReadFile(filepath.Join(output, "index.html"))
	require.NoError(t, err)
	require.Equal(t, "new", string(data))
	require.NoDirExists(t, stage)
	require.NoDirExists(t, output+".prev")
}

func TestFinalizeStaging_KeepPrevious_RetainsBackup(t *testing.T) {
	base := t.TempDir()
	stage := filepath.Join(base, "public_stage")
	output := filepath.Join(base, "public")
	writeMarker(t, stage, "index.html", "new")
	writeMarker(t, output, "index.html", "old")

	require.NoError(t, finalizeStaging(stage, output, true))

	data, err := os.ReadFile(filepath.Join(output+".prev", "index.html"))
	require.NoError(t, err)
	require.Equal(t, "old", string(data))
}

func TestFinalizeStaging_NoPreviousOutput_Promotes(t *testing.T) {
	base := t.TempDir()
	stage := filepath.Join(base, "public_stage")
	output := filepath.Join(base, "public")
	writeMarker(t, stage, "index.html", "new")

	require.NoError(t, finalizeStaging(stage, output, false))
	require.FileExists(t, filepath.Join(output, "index.html"))
}

func TestFinalizeStaging_MissingStageDir_RestoresOutput(t *testing.T) {
	base := t.TempDir()
	stage := filepath.Join(base, "public_stage") // never created
	output := filepath.Join(base, "public")
	writeMarker(t, output, "index.html", "old")

	err := finalizeStaging(stage, output, false)
	require.Error(t, err)

	// The rollback put the previous output back in place.
	data, readErr := os.ReadFile(filepath.Join(output, "index.html"))
	require.NoError(t, readErr)
	require.Equal(t, "old", string(data))
}

func TestBeginStaging_ClearsLeftovers(t *testing.T) {
	stage := filepath.Join(t.TempDir(), "public_stage")
	writeMarker(t, stage, "stale.html", "stale")

	require.NoError(t, beginStaging(stage))

	require.NoFileExists(t, filepath.Join(stage, "stale.html"))
	require.DirExists(t, stage)
}

func TestAbortStaging_RemovesStageDirOnly(t *testing.T) {
	base := t.TempDir()
	stage := filepath.Join(base, "public_stage")
	output := filepath.Join(base, "public")
	writeMarker(t, stage, "index.html", "partial")
	writeMarker(t, output, "index.html", "live")

	abortStaging(stage)

	require.NoDirExists(t, stage)
	require.FileExists(t, filepath.Join(output, "index.html"))
}
