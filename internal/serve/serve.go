// Package serve runs the preview mode: one build up front, a static
// file server over the output directory, a content watcher that
// rebuilds on change and SSE-driven browser reloads.
package serve

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ddingpy/shelfbuilder/internal/build"
	"github.com/ddingpy/shelfbuilder/internal/config"
	"github.com/ddingpy/shelfbuilder/internal/logfields"
)

const shutdownTimeout = 5 * time.Second

// BuildFunc runs one site build.
type BuildFunc func(ctx context.Context) (*build.BuildReport, error)

// Server is the preview server.
type Server struct {
	cfg     *config.Config
	build   BuildFunc
	hub     *Hub
	status  buildStatus
	metrics http.Handler
}

// Option customizes a Server.
type Option func(*Server)

// WithMetricsHandler exposes h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

func New(cfg *config.Config, buildFn BuildFunc, opts ...Option) *Server {
	s := &Server{
		cfg:   cfg,
		build: buildFn,
		hub:   NewHub(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// buildStatus tracks the most recent build result for the status page.
type buildStatus struct {
	mu           sync.RWMutex
	lastError    error
	hasGoodBuild bool
}

func (b *buildStatus) setError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastError = err
}

func (b *buildStatus) setSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastError = nil
	b.hasGoodBuild = true
}

func (b *buildStatus) snapshot() (err error, hasGoodBuild bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastError, b.hasGoodBuild
}

// Run builds once, then serves and watches until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	s.rebuild(ctx)

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Serve.Port))
	if err != nil {
		return fmt.Errorf("listen on port %d: %w", s.cfg.Serve.Port, err)
	}
	slog.Info("Preview server listening",
		slog.Int("port", s.cfg.Serve.Port),
		logfields.Path(s.cfg.Output.Dir))

	return s.run(ctx, ln)
}

func (s *Server) run(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:     s.handler(),
		ReadTimeout: 30 * time.Second,
		// SSE connections stay open; no write timeout.
		IdleTimeout: 300 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	deb := newDebouncer(debounceDelay)
	defer deb.stop()
	go s.rebuildWorker(ctx, deb.req)

	watcher, err := newWatcher(s.cfg.Content.Dir)
	if err != nil {
		slog.Warn("Content watch disabled", logfields.Path(s.cfg.Content.Dir), logfields.Error(err))
	} else {
		defer watcher.Close()
	}

	for {
		if watcher == nil {
			select {
			case <-ctx.Done():
				return s.shutdown(httpServer)
			case err := <-serveErr:
				return err
			}
		}
		select {
		case <-ctx.Done():
			return s.shutdown(httpServer)
		case err := <-serveErr:
			return err
		case ev, ok := <-watcher.Events:
			if !ok {
				watcher = nil
				continue
			}
			handleEvent(watcher, ev, deb.trigger)
		case err, ok := <-watcher.Errors:
			if !ok {
				watcher = nil
				continue
			}
			slog.Warn("Watcher error", logfields.Error(err))
		}
	}
}

func (s *Server) shutdown(httpServer *http.Server) error {
	slog.Info("Shutting down preview server")
	s.hub.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}

// rebuildWorker serializes rebuild requests: one build at a time, with
// at most one queued behind it.
func (s *Server) rebuildWorker(ctx context.Context, req <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-req:
			s.rebuild(ctx)
		}
	}
}

func (s *Server) rebuild(ctx context.Context) {
	report, err := s.build(ctx)
	if err != nil {
		slog.Warn("Rebuild failed", logfields.Error(err))
		s.status.setError(err)
		return
	}
	s.status.setSuccess()
	if report.SkipReason == "" {
		s.hub.Broadcast(report.BuildID)
	}
}

// handler assembles the HTTP surface: the static site with the reload
// script injected, the SSE endpoint, health and optional metrics.
func (s *Server) handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/livereload", s.hub)
	mux.HandleFunc("/livereload.js", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
		_, _ = w.Write([]byte(clientScript))
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}` + "\n"))
	})
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics)
	}

	site := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.outputReady() {
			s.statusPage(w, r)
			return
		}
		http.FileServer(http.Dir(s.cfg.Output.Dir)).ServeHTTP(w, r)
	})
	mux.Handle("/", injectReloadScript(site))

	return mux
}

func (s *Server) outputReady() bool {
	_, err := os.Stat(filepath.Join(s.cfg.Output.Dir, "index.html"))
	return err == nil
}

// statusPage covers the window before the first good build: a pending
// page, or the build error when the site has never built. The reload
// script arrives via the injection middleware, so either page refreshes
// itself once a build lands.
func (s *Server) statusPage(w http.ResponseWriter, r *http.Request) {
	lastErr, hasGoodBuild := s.status.snapshot()

	if lastErr != nil && !hasGoodBuild {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = fmt.Fprintf(w, `<!doctype html><html><head><meta charset="utf-8"><title>Build failed</title></head><body><h1>Build failed</h1><p>Fix the error below and save; the site rebuilds automatically.</p><pre>%s</pre></body></html>`,
			html.EscapeString(lastErr.Error()))
		return
	}
	if r.URL.Path == "/" || r.URL.Path == "" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = fmt.Fprint(w, `<!doctype html><html><head><meta charset="utf-8"><title>Building</title></head><body><h1>Site is building</h1><p>This page reloads when the first build finishes.</p></body></html>`)
		return
	}
	http.NotFound(w, r)
}
