package build

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ddingpy/shelfbuilder/internal/content"
	"github.com/ddingpy/shelfbuilder/internal/logfields"
)

// stagePrepareOutput validates the content root and creates a fresh
// staging directory next to the output. Every later stage writes into
// the staging dir; only a fully successful build promotes it.
func stagePrepareOutput(_ context.Context, bs *BuildState) error {
	if bs.Config.Content.Source == nil {
		if _, err := os.Stat(bs.ContentDir); err != nil {
			return newFatalStageError(StagePrepareOutput, fmt.Errorf("content dir: %w", err))
		}
	}
	if err := beginStaging(bs.StageDir); err != nil {
		return newFatalStageError(StagePrepareOutput, err)
	}
	return nil
}

// stageCopyAssets copies non-Markdown files into the staging dir,
// preserving their content-relative paths. A single unreadable asset
// degrades to a warning so the rest of the site still ships.
func stageCopyAssets(ctx context.Context, bs *BuildState) error {
	var copied, failed int
	for _, a := range bs.Scan.Assets {
		select {
		case <-ctx.Done():
			return newCanceledStageError(StageCopyAssets, ctx.Err())
		default:
		}
		if err := copyAsset(a, bs.StageDir); err != nil {
			slog.Warn("Could not copy asset", logfields.File(a.RelPath), logfields.Error(err))
			failed++
			continue
		}
		copied++
	}
	slog.Debug("Copied assets", logfields.Count(copied))
	if failed > 0 {
		return newWarnStageError(StageCopyAssets, fmt.Errorf("%d assets could not be copied", failed))
	}
	return nil
}

func copyAsset(a content.Asset, stageDir string) error {
	src, err := os.Open(a.SourcePath)
	if err != nil {
		return err
	}
	defer src.Close()

	dst := filepath.Join(stageDir, filepath.FromSlash(a.RelPath))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// stagePostProcess finishes the staged site: the .nojekyll marker keeps
// GitHub Pages from re-processing the output, and the layout provenance
// lands in the report.
func stagePostProcess(_ context.Context, bs *BuildState) error {
	if err := writeStageFile(bs.StageDir, ".nojekyll", nil); err != nil {
		return newWarnStageError(StagePostProcess, err)
	}
	bs.Report.Layouts = bs.Layouts.Usage()
	return nil
}

// writeStageFile writes data under the staging dir, creating parents.
func writeStageFile(stageDir, rel string, data []byte) error {
	dst := filepath.Join(stageDir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", rel, err)
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", rel, err)
	}
	return nil
}

// beginStaging clears and recreates the staging directory.
func beginStaging(stageDir string) error {
	if err := os.RemoveAll(stageDir); err != nil {
		return fmt.Errorf("clear staging dir: %w", err)
	}
	if err := os.MkdirAll(stageDir, 0o755); err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}
	return nil
}

// finalizeStaging promotes the staging directory: the previous output
// moves aside to <output>.prev, the staging dir renames into place, and
// the backup is removed unless keepPrevious is set.
func finalizeStaging(stageDir, outputDir string, keepPrevious bool) error {
	prev := outputDir + ".prev"
	if err := os.RemoveAll(prev); err != nil {
		return fmt.Errorf("remove stale backup: %w", err)
	}
	if _, err := os.Stat(outputDir); err == nil {
		if err := os.Rename(outputDir, prev); err != nil {
			return fmt.Errorf("back up previous output: %w", err)
		}
	}
	if err := os.Rename(stageDir, outputDir); err != nil {
		// Put the old output back so the site keeps serving.
		_ = os.Rename(prev, outputDir)
		return fmt.Errorf("promote staging dir: %w", err)
	}
	if keepPrevious {
		return nil
	}
	if err := os.RemoveAll(prev); err != nil {
		slog.Warn("Could not remove previous output backup", logfields.Path(prev), logfields.Error(err))
	}
	return nil
}

// abortStaging discards the staging directory, leaving the previous
// output untouched.
func abortStaging(stageDir string) {
	if stageDir == "" {
		return
	}
	if err := os.RemoveAll(stageDir); err != nil {
		slog.Warn("Could not remove staging dir", logfields.Path(stageDir), logfields.Error(err))
	}
}
