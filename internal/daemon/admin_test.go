package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ddingpy/shelfbuilder/internal/build"
	"github.com/ddingpy/shelfbuilder/internal/config"
	"github.com/ddingpy/shelfbuilder/internal/state"
)

func testDaemon(t *testing.T, builder BuildFunc) (*Daemon, *state.Store) {
	t.Helper()
	store, err := state.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	d := New(config.Default(), builder, store)
	d.startTime = time.Now()
	return d, store
}

func adminGet(t *testing.T, d *Daemon, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	d.handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func TestAdmin_Healthz(t *testing.T) {
	d, _ := testDaemon(t, reportBuilder(build.OutcomeSuccess))

	rr := adminGet(t, d, "/healthz")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestAdmin_Status_IncludesLastBuild(t *testing.T) {
	d, store := testDaemon(t, reportBuilder(build.OutcomeSuccess))

	rec := state.BuildRecord{
		ID:       "b-1",
		Started:  time.Now().Add(-time.Minute),
		Finished: time.Now(),
		Outcome:  "success",
		Pages:    4,
		Rendered: 6,
	}
	require.NoError(t, store.RecordBuild(context.Background(), rec))

	rr := adminGet(t, d, "/status")
	require.Equal(t, http.StatusOK, rr.Code)

	var got statusResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, "running", got.Status)
	assert.Equal(t, 2, got.Workers)
	assert.Equal(t, 0, got.QueueDepth)
	require.NotNil(t, got.LastBuild)
	assert.Equal(t, "b-1", got.LastBuild.ID)
	assert.Equal(t, "success", got.LastBuild.Outcome)
}

func TestAdmin_Trigger_EnqueuesManualJob(t *testing.T) {
	// Workers never started, so the job stays visible in the queue.
	d, _ := testDaemon(t, reportBuilder(build.OutcomeSuccess))

	rr := httptest.NewRecorder()
	d.handler().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/trigger", nil))
	require.Equal(t, http.StatusAccepted, rr.Code)

	var resp triggerResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "queued", resp.Status)
	assert.NotEmpty(t, resp.JobID)
	assert.Equal(t, 1, d.queue.Depth())

	rr = adminGet(t, d, "/trigger")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestAdmin_Trigger_FullQueueRejected(t *testing.T) {
	cfg := config.Default()
	cfg.Daemon.QueueSize = 1
	d := New(cfg, reportBuilder(build.OutcomeSuccess), nil)

	rr := httptest.NewRecorder()
	d.handler().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/trigger", nil))
	require.Equal(t, http.StatusAccepted, rr.Code)

	rr = httptest.NewRecorder()
	d.handler().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/trigger", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestAdmin_Builds_NewestFirstAndLimited(t *testing.T) {
	d, store := testDaemon(t, reportBuilder(build.OutcomeSuccess))

	base := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		rec := state.BuildRecord{
			ID:       fmt.Sprintf("build-%03d", i),
			Started:  base.Add(time.Duration(i) * time.Minute),
			Finished: base.Add(time.Duration(i)*time.Minute + 30*time.Second),
			Outcome:  "success",
		}
		require.NoError(t, store.RecordBuild(context.Background(), rec))
	}

	rr := adminGet(t, d, "/builds?limit=2")
	require.Equal(t, http.StatusOK, rr.Code)

	var records []state.BuildRecord
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &records))
	require.Len(t, records, 2)
	assert.Equal(t, "build-002", records[0].ID)
	assert.Equal(t, "build-001", records[1].ID)
}

func TestAdmin_MetricsOnlyWhenConfigured(t *testing.T) {
	d, _ := testDaemon(t, reportBuilder(build.OutcomeSuccess))
	rr := adminGet(t, d, "/metrics")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	stub := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("shelfbuilder_builds_total 1"))
	})
	wired := New(config.Default(), reportBuilder(build.OutcomeSuccess), nil, WithMetricsHandler(stub))
	rr = adminGet(t, wired, "/metrics")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "shelfbuilder_builds_total")
}
