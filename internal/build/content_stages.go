package build

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ddingpy/shelfbuilder/internal/content"
	"github.com/ddingpy/shelfbuilder/internal/gitsource"
	"github.com/ddingpy/shelfbuilder/internal/incremental"
	"github.com/ddingpy/shelfbuilder/internal/logfields"
)

// stageSyncSource clones or updates the configured git content source
// into the content directory. A pull failure over a usable checkout
// demotes to a warning so the site still builds from what is on disk.
func stageSyncSource(ctx context.Context, bs *BuildState) error {
	client := gitsource.NewClient(bs.Config.Content.Source)

	start := time.Now()
	res, err := client.Sync(ctx, bs.ContentDir)
	bs.Recorder.ObserveSyncDuration(time.Since(start), err == nil)

	if err != nil {
		if res != nil && res.Stale {
			bs.Report.SourceCommit = res.Commit
			return newWarnStageError(StageSyncSource, fmt.Errorf("using stale checkout: %w", err))
		}
		return newFatalStageError(StageSyncSource, err)
	}

	bs.Report.SourceCommit = res.Commit
	return nil
}

// stageScanContent walks the content tree, records what the build is
// about to process and computes the input signature. When the signature
// matches the previous successful build and the output still looks
// intact, the remaining stages are skipped.
func stageScanContent(_ context.Context, bs *BuildState) error {
	scanner := content.NewScanner(bs.ContentDir)
	res, err := scanner.Scan()
	if err != nil {
		return newFatalStageError(StageScanContent, err)
	}

	bs.Scan = res
	bs.Report.Pages = len(res.Pages)
	bs.Report.Assets = len(res.Assets)
	bs.Report.ContentWarnings = append(bs.Report.ContentWarnings, res.Warnings...)
	bs.Recorder.SetPagesTotal(len(res.Pages))

	sig, err := incremental.Signature(bs.Config.Hash(), bs.ContentDir)
	if err != nil {
		// Signature trouble only disables the skip, never the build.
		slog.Warn("Could not compute build signature", logfields.Error(err))
	} else {
		bs.Report.Signature = sig
		if !bs.Force && bs.LastSignature != "" && bs.LastSignature == sig && outputIntact(bs.OutputDir) {
			bs.Report.SkipReason = SkipNoChanges
			bs.SkipRemaining()
			slog.Info("Inputs unchanged since last build, skipping",
				logfields.BuildID(bs.BuildID))
			return nil
		}
	}

	if len(res.Pages) == 0 {
		return newWarnStageError(StageScanContent, fmt.Errorf("no pages under %s", bs.ContentDir))
	}
	if len(res.Warnings) > 0 {
		return newWarnStageError(StageScanContent,
			fmt.Errorf("scan finished with %d warnings", len(res.Warnings)))
	}
	return nil
}

// outputIntact reports whether a previous build output is still present
// and carries its entry page; anything less forces a rebuild.
func outputIntact(outputDir string) bool {
	_, err := os.Stat(filepath.Join(outputDir, "index.html"))
	return err == nil
}
