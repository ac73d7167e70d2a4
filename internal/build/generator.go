package build

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ddingpy/shelfbuilder/internal/config"
	"github.com/ddingpy/shelfbuilder/internal/events"
	"github.com/ddingpy/shelfbuilder/internal/feed"
	"github.com/ddingpy/shelfbuilder/internal/listing"
	"github.com/ddingpy/shelfbuilder/internal/logfields"
	"github.com/ddingpy/shelfbuilder/internal/metrics"
	"github.com/ddingpy/shelfbuilder/internal/render"
)

// Generator orchestrates one build: staging, the stage pipeline,
// promotion of the staged site and report persistence.
type Generator struct {
	cfg      *config.Config
	recorder metrics.Recorder
	events   events.Publisher
	now      func() time.Time

	lastSignature func(ctx context.Context) (string, error)
	force         bool
}

// Option customizes a Generator.
type Option func(*Generator)

// WithRecorder sets the metrics recorder. Defaults to NoopRecorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(g *Generator) {
		if r != nil {
			g.recorder = r
		}
	}
}

// WithEvents sets the lifecycle event publisher. Defaults to the no-op
// publisher.
func WithEvents(p events.Publisher) Option {
	return func(g *Generator) {
		if p != nil {
			g.events = p
		}
	}
}

// WithClock overrides the build clock. Tests pin it so listing output
// and feed timestamps are reproducible.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		if now != nil {
			g.now = now
		}
	}
}

// WithForce disables the incremental skip for this generator.
func WithForce(force bool) Option {
	return func(g *Generator) { g.force = force }
}

// WithLastSignature supplies the input signature of the most recent
// successful build, enabling the incremental skip.
func WithLastSignature(fn func(ctx context.Context) (string, error)) Option {
	return func(g *Generator) { g.lastSignature = fn }
}

func NewGenerator(cfg *config.Config, opts ...Option) *Generator {
	g := &Generator{
		cfg:      cfg,
		recorder: metrics.NoopRecorder{},
		events:   events.NoopPublisher{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Build runs the full pipeline. The returned report is non-nil even when
// the build fails.
func (g *Generator) Build(ctx context.Context) (*BuildReport, error) {
	start := g.now()
	buildID := uuid.NewString()
	report := newBuildReport(buildID, start)
	stageDir := g.cfg.Output.Dir + "_stage"

	slog.Info("Build starting",
		logfields.BuildID(buildID),
		logfields.Path(g.cfg.Output.Dir))
	g.publish(ctx, events.BuildStarted(buildID, start))

	bs := &BuildState{
		Config:     g.cfg,
		BuildID:    buildID,
		Now:        start,
		ContentDir: g.cfg.Content.Dir,
		StageDir:   stageDir,
		OutputDir:  g.cfg.Output.Dir,
		Force:      g.force,
		Site: render.SiteContext{
			Title:       g.cfg.Site.Title,
			Description: g.cfg.Site.Description,
			Author:      g.cfg.Site.Author,
			BaseURL:     g.cfg.Site.BaseURL,
			BasePath:    g.cfg.Site.BasePath(),
		},
		Layouts:  render.NewLayouts(g.cfg.Content.LayoutsDir),
		Markdown: render.NewMarkdown(g.cfg.Site.UnsafeHTML),
		Engine: listing.NewEngine(listing.Options{
			BasePath:         g.cfg.Site.BasePath(),
			GroupLimit:       g.cfg.Listing.GroupLimit,
			DescriptionLimit: g.cfg.Listing.DescriptionLimit,
			ExcludedURLs:     g.cfg.Listing.ExcludedURLs,
		}),
		Feeds:    feed.NewBuilder(g.cfg.Site.Title, g.cfg.Site.BaseURL, g.cfg.Site.Author),
		Report:   report,
		Recorder: g.recorder,
	}

	if g.lastSignature != nil {
		if sig, err := g.lastSignature(ctx); err == nil {
			bs.LastSignature = sig
		} else {
			slog.Debug("No previous build signature", logfields.Error(err))
		}
	}

	err := runStages(ctx, bs, g.stages())
	report.finish(g.now())

	if err != nil {
		abortStaging(stageDir)
		g.recorder.ObserveBuildDuration(report.Duration())
		g.recorder.IncBuildOutcome(string(report.Outcome))
		g.publish(ctx, events.BuildFailed(buildID, report.End, err))
		slog.Error("Build failed",
			logfields.BuildID(buildID),
			slog.String("outcome", string(report.Outcome)),
			logfields.Error(err))
		return report, err
	}

	if report.SkipReason != "" {
		abortStaging(stageDir)
		g.recorder.IncBuildOutcome("skipped")
		if perr := report.Persist(g.cfg.Output.Dir); perr != nil {
			slog.Warn("Could not persist build report", logfields.Error(perr))
		}
		slog.Info("Build skipped",
			logfields.BuildID(buildID),
			slog.String("reason", report.SkipReason))
		return report, nil
	}

	if err := finalizeStaging(stageDir, g.cfg.Output.Dir, !g.cfg.Output.Clean); err != nil {
		abortStaging(stageDir)
		report.Errors = append(report.Errors, err)
		report.finish(g.now())
		g.recorder.ObserveBuildDuration(report.Duration())
		g.recorder.IncBuildOutcome(string(report.Outcome))
		g.publish(ctx, events.BuildFailed(buildID, report.End, err))
		slog.Error("Build failed during promotion", logfields.BuildID(buildID), logfields.Error(err))
		return report, err
	}

	if perr := report.Persist(g.cfg.Output.Dir); perr != nil {
		slog.Warn("Could not persist build report", logfields.Error(perr))
	}

	g.recorder.ObserveBuildDuration(report.Duration())
	g.recorder.IncBuildOutcome(string(report.Outcome))
	g.publish(ctx, events.BuildCompleted(buildID, report.End, string(report.Outcome), report.Rendered, report.Duration()))
	slog.Info("Build finished",
		logfields.BuildID(buildID),
		slog.String("outcome", string(report.Outcome)),
		logfields.Count(report.Rendered),
		logfields.DurationMS(float64(report.Duration().Milliseconds())))
	return report, nil
}

// stages assembles the pipeline for the current configuration.
func (g *Generator) stages() []StageDef {
	defs := []StageDef{{StagePrepareOutput, stagePrepareOutput}}
	if g.cfg.Content.Source != nil {
		defs = append(defs, StageDef{StageSyncSource, stageSyncSource})
	}
	defs = append(defs,
		StageDef{StageScanContent, stageScanContent},
		StageDef{StageRenderPages, stageRenderPages},
		StageDef{StageListings, stageListings},
		StageDef{StageFeeds, stageFeeds},
		StageDef{StageCopyAssets, stageCopyAssets},
	)
	if g.cfg.Output.Verify {
		defs = append(defs, StageDef{StageVerifyOutput, stageVerifyOutput})
	}
	defs = append(defs, StageDef{StagePostProcess, stagePostProcess})
	return defs
}

// publish delivers a lifecycle event; delivery failure never fails a
// build.
func (g *Generator) publish(ctx context.Context, ev events.Event) {
	if err := g.events.Publish(ctx, ev); err != nil {
		slog.Warn("Could not publish build event",
			slog.String("type", string(ev.Type)),
			logfields.Error(err))
	}
}
