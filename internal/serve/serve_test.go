package serve

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ddingpy/shelfbuilder/internal/build"
	"github.com/ddingpy/shelfbuilder/internal/config"
)

func serveConfig(t *testing.T) *config.Config {
	t.Helper()
	base := t.TempDir()
	cfg := config.Default()
	cfg.Content.Dir = filepath.Join(base, "content")
	cfg.Output.Dir = filepath.Join(base, "public")
	require.NoError(t, os.MkdirAll(cfg.Content.Dir, 0o755))
	return cfg
}

func writeOutput(t *testing.T, cfg *config.Config) {
	t.Helper()
	require.NoError(t, os.MkdirAll(cfg.Output.Dir, 0o755))
	page := "<html><body><h1>Shelf</h1></body></html>"
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Output.Dir, "index.html"), []byte(page), 0o644))
}

func okBuild(id string) BuildFunc {
	return func(context.Context) (*build.BuildReport, error) {
		return &build.BuildReport{BuildID: id}, nil
	}
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestHandler_ServesSiteWithInjectedScript(t *testing.T) {
	cfg := serveConfig(t)
	writeOutput(t, cfg)
	srv := New(cfg, okBuild("b-1"))

	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	status, body := get(t, ts.URL+"/")
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, body, "<h1>Shelf</h1>")
	require.Contains(t, body, scriptTag)
}

func TestHandler_Healthz(t *testing.T) {
	srv := New(serveConfig(t), okBuild("b-1"))

	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	status, body := get(t, ts.URL+"/healthz")
	require.Equal(t, http.StatusOK, status)
	require.JSONEq(t, `{"status":"ok"}`, body)
}

func TestHandler_LiveReloadScriptServed(t *testing.T) {
	srv := New(serveConfig(t), okBuild("b-1"))

	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	status, body := get(t, ts.URL+"/livereload.js")
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, body, "EventSource('/livereload')")
}

func TestHandler_MetricsOnlyWhenConfigured(t *testing.T) {
	cfg := serveConfig(t)

	bare := New(cfg, okBuild("b-1"))
	ts := httptest.NewServer(bare.handler())
	status, _ := get(t, ts.URL+"/metrics")
	ts.Close()
	require.Equal(t, http.StatusNotFound, status)

	stub := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("metrics here"))
	})
	wired := New(cfg, okBuild("b-1"), WithMetricsHandler(stub))
	ts = httptest.NewServer(wired.handler())
	defer ts.Close()
	status, body := get(t, ts.URL+"/metrics")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "metrics here", body)
}

func TestHandler_PendingPage_BeforeFirstBuild(t *testing.T) {
	srv := New(serveConfig(t), okBuild("b-1"))

	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	status, body := get(t, ts.URL+"/")
	require.Equal(t, http.StatusServiceUnavailable, status)
	require.Contains(t, body, "Site is building")
	require.Contains(t, body, scriptTag)
}

func TestHandler_ErrorPage_WhenNeverBuilt(t *testing.T) {
	srv := New(serveConfig(t), okBuild("b-1"))
	srv.status.setError(errors.New("layout <broken>"))

	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	status, body := get(t, ts.URL+"/")
	require.Equal(t, http.StatusServiceUnavailable, status)
	require.Contains(t, body, "Build failed")
	require.Contains(t, body, "layout &lt;broken&gt;")
}

func TestRebuild_BroadcastsOnlyPromotedBuilds(t *testing.T) {
	cfg := serveConfig(t)
	srv := New(cfg, okBuild("unused"))
	ctx := context.Background()

	srv.build = func(context.Context) (*build.BuildReport, error) {
		return nil, errors.New("boom")
	}
	srv.rebuild(ctx)
	require.Empty(t, srv.hub.lastToken)
	err, good := srv.status.snapshot()
	require.Error(t, err)
	require.False(t, good)

	srv.build = okBuild("b-7")
	srv.rebuild(ctx)
	require.Equal(t, "b-7", srv.hub.lastToken)

	srv.build = func(context.Context) (*build.BuildReport, error) {
		return &build.BuildReport{BuildID: "b-8", SkipReason: build.SkipNoChanges}, nil
	}
	srv.rebuild(ctx)
	// Skipped builds change nothing on disk; no reload.
	require.Equal(t, "b-7", srv.hub.lastToken)
}

func TestRun_ShutsDownOnContextCancel(t *testing.T) {
	cfg := serveConfig(t)
	writeOutput(t, cfg)

	var builds int
	srv := New(cfg, func(context.Context) (*build.BuildReport, error) {
		builds++
		return &build.BuildReport{BuildID: fmt.Sprintf("b-%d", builds)}, nil
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.run(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
