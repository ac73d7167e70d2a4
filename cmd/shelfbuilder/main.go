package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ddingpy/shelfbuilder/internal/build"
	"github.com/ddingpy/shelfbuilder/internal/config"
	"github.com/ddingpy/shelfbuilder/internal/content"
	"github.com/ddingpy/shelfbuilder/internal/daemon"
	"github.com/ddingpy/shelfbuilder/internal/events"
	"github.com/ddingpy/shelfbuilder/internal/listing"
	"github.com/ddingpy/shelfbuilder/internal/logfields"
	"github.com/ddingpy/shelfbuilder/internal/metrics"
	"github.com/ddingpy/shelfbuilder/internal/serve"
	"github.com/ddingpy/shelfbuilder/internal/state"
	"github.com/ddingpy/shelfbuilder/internal/verify"
	"github.com/ddingpy/shelfbuilder/internal/version"
)

var CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"shelf.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `help:"Print version and exit"`

	Build struct {
		Output string `short:"o" help:"Output directory for the generated site (overrides config)"`
		Force  bool   `help:"Rebuild even when no inputs changed"`
	} `cmd:"" help:"Build the site once and exit"`

	Init struct {
		Force bool `help:"Overwrite an existing configuration file"`
	} `cmd:"" help:"Write a starter configuration file"`

	List struct {
		View string `default:"books" enum:"books,updates,all" help:"Listing view to print (books|updates|all)"`
	} `cmd:"" help:"Print a listing view without building the site"`

	Serve struct {
		Port int `short:"p" help:"Preview server port (overrides config)"`
	} `cmd:"" help:"Build the site and serve it with live reload"`

	Daemon struct {
		DataDir string `short:"d" help:"Data directory for daemon state (overrides state.path)"`
	} `cmd:"" help:"Run continuous builds with a scheduler and admin API"`

	Verify struct {
		Site string `help:"Site directory to check (defaults to the configured output dir)"`
	} `cmd:"" help:"Link-check an already generated site"`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("shelfbuilder"),
		kong.Description("Static site builder for reading shelves: books A-Z, recent updates, Atom feed."),
		kong.Vars{"version": version.String()},
	)

	level := slog.LevelInfo
	if CLI.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if err := run(ctx.Command()); err != nil {
		slog.Error("Command failed", logfields.Error(err))
		os.Exit(1)
	}
}

func run(command string) error {
	if command == "init" {
		return runInit(CLI.Config, CLI.Init.Force)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	switch command {
	case "build":
		if CLI.Build.Output != "" {
			cfg.Output.Dir = CLI.Build.Output
		}
		return runBuild(cfg, CLI.Build.Force)
	case "list":
		return runList(cfg, CLI.List.View)
	case "serve":
		if CLI.Serve.Port != 0 {
			cfg.Serve.Port = CLI.Serve.Port
		}
		return runServe(cfg)
	case "daemon":
		if CLI.Daemon.DataDir != "" {
			cfg.State.Path = filepath.Join(CLI.Daemon.DataDir, "shelfbuilder.db")
		}
		return runDaemon(cfg)
	case "verify":
		return runVerify(cfg, CLI.Verify.Site)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

// loadConfig reads the configured file, falling back to built-in
// defaults when it does not exist.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.Debug("No config file, using defaults", logfields.Path(CLI.Config))
			return config.Default(), nil
		}
		return nil, err
	}
	return cfg, nil
}

func runInit(configPath string, force bool) error {
	if err := config.Init(configPath, force); err != nil {
		return err
	}
	slog.Info("Configuration written", logfields.Path(configPath))

	contentDir := config.Default().Content.Dir
	created, err := content.Scaffold(contentDir)
	if err != nil {
		return err
	}
	if created {
		slog.Info("Starter content written", logfields.Path(contentDir))
	}
	return nil
}

func runBuild(cfg *config.Config, force bool) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := state.NewStore(cfg.State.Path)
	if err != nil {
		return fmt.Errorf("open state db: %w", err)
	}
	defer func() { _ = store.Close() }()

	pub, err := openPublisher(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = pub.Close() }()

	gen := build.NewGenerator(cfg,
		build.WithForce(force),
		build.WithLastSignature(store.LastSuccessfulSignature),
		build.WithEvents(pub),
	)
	report, buildErr := gen.Build(ctx)

	if report != nil {
		if rerr := store.RecordBuild(ctx, state.NewRecord(report)); rerr != nil {
			slog.Warn("Failed to record build", logfields.Error(rerr))
		} else if perr := store.Prune(ctx, cfg.Daemon.History); perr != nil {
			slog.Warn("Failed to prune build history", logfields.Error(perr))
		}
		fmt.Println(report.Summary())
	}
	return buildErr
}

func runList(cfg *config.Config, view string) error {
	result, err := content.NewScanner(cfg.Content.Dir).Scan()
	if err != nil {
		return err
	}
	for _, warning := range result.Warnings {
		slog.Warn("Content warning", slog.String("detail", warning))
	}

	engine := listing.NewEngine(listing.Options{
		BasePath:         cfg.Site.BasePath(),
		GroupLimit:       cfg.Listing.GroupLimit,
		DescriptionLimit: cfg.Listing.DescriptionLimit,
		ExcludedURLs:     cfg.Listing.ExcludedURLs,
	})

	var out string
	switch view {
	case "books":
		out = engine.BooksAZ(result.Pages)
	case "updates":
		out = engine.RecentUpdates(result.Pages, time.Now())
	case "all":
		out = engine.AllPages(result.Pages)
	default:
		return fmt.Errorf("unknown view %q", view)
	}
	fmt.Println(out)
	return nil
}

func runServe(cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := state.NewStore(cfg.State.Path)
	if err != nil {
		return fmt.Errorf("open state db: %w", err)
	}
	defer func() { _ = store.Close() }()

	buildOpts := []build.Option{build.WithLastSignature(store.LastSuccessfulSignature)}
	var serveOpts []serve.Option
	if cfg.Serve.Metrics {
		reg := prometheus.NewRegistry()
		buildOpts = append(buildOpts, build.WithRecorder(metrics.NewPrometheusRecorder(reg)))
		serveOpts = append(serveOpts, serve.WithMetricsHandler(metrics.HTTPHandler(reg)))
	}

	builder := func(ctx context.Context) (*build.BuildReport, error) {
		return build.NewGenerator(cfg, buildOpts...).Build(ctx)
	}
	return serve.New(cfg, builder, serveOpts...).Run(ctx)
}

func runDaemon(cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := state.NewStore(cfg.State.Path)
	if err != nil {
		return fmt.Errorf("open state db: %w", err)
	}
	defer func() { _ = store.Close() }()

	pub, err := openPublisher(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = pub.Close() }()

	reg := prometheus.NewRegistry()
	recorder := metrics.NewPrometheusRecorder(reg)

	builder := func(ctx context.Context) (*build.BuildReport, error) {
		gen := build.NewGenerator(cfg,
			build.WithRecorder(recorder),
			build.WithLastSignature(store.LastSuccessfulSignature),
			build.WithEvents(pub),
		)
		return gen.Build(ctx)
	}

	d := daemon.New(cfg, builder, store,
		daemon.WithRecorder(recorder),
		daemon.WithMetricsHandler(metrics.HTTPHandler(reg)))
	return d.Run(ctx)
}

func runVerify(cfg *config.Config, siteDir string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if siteDir == "" {
		siteDir = cfg.Output.Dir
	}

	engine := listing.NewEngine(listing.Options{
		BasePath:     cfg.Site.BasePath(),
		ExcludedURLs: cfg.Listing.ExcludedURLs,
	})
	checker := verify.NewChecker(engine.Filter(), cfg.Site.BasePath())
	result, err := checker.CheckDir(ctx, siteDir)
	if err != nil {
		return err
	}

	for _, v := range result.Violations {
		slog.Error("Excluded URL linked from listing",
			logfields.File(v.File), logfields.URL(v.Href))
	}
	for _, b := range result.Broken {
		slog.Error("Broken internal link",
			logfields.File(b.File), logfields.URL(b.Href))
	}
	if !result.Clean() {
		return fmt.Errorf("verification found %d problems in %d files",
			len(result.Violations)+len(result.Broken), result.FilesChecked)
	}
	slog.Info("Site verified", slog.Int("files", result.FilesChecked))
	return nil
}

// openPublisher connects to NATS when configured, otherwise returns the
// no-op publisher.
func openPublisher(cfg *config.Config) (events.Publisher, error) {
	if cfg.Events.NATSURL == "" {
		return events.NoopPublisher{}, nil
	}
	pub, err := events.NewNATSPublisher(cfg.Events.NATSURL, cfg.Events.Subject)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return pub, nil
}
