package daemon

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ddingpy/shelfbuilder/internal/logfields"
	"github.com/ddingpy/shelfbuilder/internal/state"
)

// statusResponse is the /status payload.
type statusResponse struct {
	Status     string             `json:"status"`
	Uptime     string             `json:"uptime"`
	QueueDepth int                `json:"queue_depth"`
	Workers    int                `json:"workers"`
	Active     []*Job             `json:"active"`
	RecentJobs []*Job             `json:"recent_jobs"`
	LastBuild  *state.BuildRecord `json:"last_build,omitempty"`
}

// triggerResponse is the /trigger payload.
type triggerResponse struct {
	Status string `json:"status"`
	JobID  string `json:"job_id"`
}

// handler builds the admin mux.
func (d *Daemon) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", d.handleHealthz)
	mux.HandleFunc("/status", d.handleStatus)
	mux.HandleFunc("/builds", d.handleBuilds)
	mux.HandleFunc("/trigger", d.handleTrigger)
	if d.metrics != nil {
		mux.Handle("/metrics", d.metrics)
	}
	return mux
}

func (d *Daemon) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (d *Daemon) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := statusResponse{
		Status:     "running",
		Uptime:     time.Since(d.startTime).Round(time.Second).String(),
		QueueDepth: d.queue.Depth(),
		Workers:    d.queue.Workers(),
		Active:     d.queue.Active(),
		RecentJobs: d.queue.History(),
	}
	if d.store != nil {
		records, err := d.store.RecentBuilds(r.Context(), 1)
		if err != nil {
			slog.Warn("Failed to load last build for status", logfields.Error(err))
		} else if len(records) > 0 {
			resp.LastBuild = &records[0]
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (d *Daemon) handleBuilds(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if d.store == nil {
		http.Error(w, "Build history not available", http.StatusServiceUnavailable)
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	records, err := d.store.RecentBuilds(r.Context(), limit)
	if err != nil {
		slog.Error("Failed to load build history", logfields.Error(err))
		http.Error(w, "Failed to load build history", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (d *Daemon) handleTrigger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	job := &Job{
		ID:        fmt.Sprintf("manual-%d", time.Now().UnixNano()),
		Type:      JobTypeManual,
		CreatedAt: time.Now(),
	}
	if err := d.queue.Enqueue(job); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusAccepted, triggerResponse{Status: "queued", JobID: job.ID})
}

// writeJSON encodes into a buffer first so a marshal failure never
// sends a partial body.
func writeJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		slog.Error("Failed to encode response", logfields.Error(err))
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Debug("Failed writing response body", logfields.Error(err))
	}
}
