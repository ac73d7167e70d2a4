// Package daemon runs shelfbuilder as a long-lived service: a worker
// pool drains a build queue, a scheduler enqueues periodic rebuilds,
// and an admin HTTP server exposes status, history, and a manual
// trigger. Finished builds are persisted to the state store so history
// survives restarts.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/ddingpy/shelfbuilder/internal/build"
	"github.com/ddingpy/shelfbuilder/internal/config"
	"github.com/ddingpy/shelfbuilder/internal/logfields"
	"github.com/ddingpy/shelfbuilder/internal/metrics"
	"github.com/ddingpy/shelfbuilder/internal/state"
)

const (
	defaultInterval = 15 * time.Minute
	shutdownTimeout = 5 * time.Second
)

// Daemon ties the queue, scheduler, state store, and admin server
// together.
type Daemon struct {
	cfg       *config.Config
	store     *state.Store
	queue     *Queue
	scheduler *Scheduler
	recorder  metrics.Recorder
	metrics   http.Handler
	startTime time.Time
}

// Option adjusts optional daemon wiring.
type Option func(*Daemon)

// WithRecorder sets the metrics recorder shared with the build
// pipeline.
func WithRecorder(rec metrics.Recorder) Option {
	return func(d *Daemon) { d.recorder = rec }
}

// WithMetricsHandler exposes the handler on the admin server under
// /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(d *Daemon) { d.metrics = h }
}

// New creates a daemon around the given build function. Every finished
// build is recorded in the store before the job completes.
func New(cfg *config.Config, builder BuildFunc, store *state.Store, opts ...Option) *Daemon {
	d := &Daemon{cfg: cfg, store: store}
	for _, opt := range opts {
		opt(d)
	}
	if d.recorder == nil {
		d.recorder = metrics.NoopRecorder{}
	}
	d.queue = NewQueue(cfg.Daemon.QueueSize, cfg.Daemon.Workers, cfg.Daemon.History,
		d.recordingBuilder(builder), d.recorder)
	return d
}

// recordingBuilder wraps the build function so every report lands in
// the state store and old rows are pruned.
func (d *Daemon) recordingBuilder(builder BuildFunc) BuildFunc {
	return func(ctx context.Context) (*build.BuildReport, error) {
		report, err := builder(ctx)
		if report != nil && d.store != nil {
			if rerr := d.store.RecordBuild(ctx, state.NewRecord(report)); rerr != nil {
				slog.Warn("Failed to record build", logfields.BuildID(report.BuildID), logfields.Error(rerr))
			} else if perr := d.store.Prune(ctx, d.cfg.Daemon.History); perr != nil {
				slog.Warn("Failed to prune build history", logfields.Error(perr))
			}
		}
		return report, err
	}
}

// Run starts the worker pool, the periodic schedule, and the admin
// server, then blocks until ctx is canceled.
func (d *Daemon) Run(ctx context.Context) error {
	d.startTime = time.Now()

	interval, err := time.ParseDuration(d.cfg.Daemon.Interval)
	if err != nil || interval <= 0 {
		slog.Warn("Invalid daemon interval, using default",
			slog.String("interval", d.cfg.Daemon.Interval),
			slog.String("default", defaultInterval.String()))
		interval = defaultInterval
	}

	d.queue.Start(ctx)

	scheduler, err := NewScheduler(d.queue)
	if err != nil {
		d.queue.Stop()
		return err
	}
	d.scheduler = scheduler
	if _, err := scheduler.SchedulePeriodicBuild(interval); err != nil {
		d.queue.Stop()
		return err
	}
	scheduler.Start()

	// Build once at startup so the site is fresh before the first tick.
	startup := &Job{
		ID:        fmt.Sprintf("startup-%d", time.Now().Unix()),
		Type:      JobTypeScheduled,
		CreatedAt: time.Now(),
	}
	if err := d.queue.Enqueue(startup); err != nil {
		slog.Warn("Startup build not enqueued", logfields.Error(err))
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", d.cfg.Daemon.AdminPort))
	if err != nil {
		d.stopWorkers()
		return fmt.Errorf("failed to listen on admin port %d: %w", d.cfg.Daemon.AdminPort, err)
	}
	slog.Info("Daemon started",
		slog.String("interval", interval.String()),
		slog.String("admin_addr", ln.Addr().String()))

	return d.run(ctx, ln)
}

// run serves the admin API on ln until ctx is canceled or the server
// fails.
func (d *Daemon) run(ctx context.Context, ln net.Listener) error {
	server := &http.Server{
		Handler:      d.handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		d.stopWorkers()
		return fmt.Errorf("admin server failed: %w", err)
	case <-ctx.Done():
		return d.shutdown(server)
	}
}

// stopWorkers tears down the scheduler and queue.
func (d *Daemon) stopWorkers() {
	if d.scheduler != nil {
		if err := d.scheduler.Stop(); err != nil {
			slog.Warn("Scheduler shutdown failed", logfields.Error(err))
		}
	}
	d.queue.Stop()
}

func (d *Daemon) shutdown(server *http.Server) error {
	slog.Info("Shutting down daemon")
	d.stopWorkers()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("admin server shutdown failed: %w", err)
	}
	slog.Info("Daemon stopped")
	return nil
}
