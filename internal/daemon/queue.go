package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ddingpy/shelfbuilder/internal/build"
	"github.com/ddingpy/shelfbuilder/internal/logfields"
	"github.com/ddingpy/shelfbuilder/internal/metrics"
)

// JobType says what put a job on the queue.
type JobType string

const (
	JobTypeManual    JobType = "manual"
	JobTypeScheduled JobType = "scheduled"
)

// JobStatus is the lifecycle state of a queued build.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Job is one queued build request.
type Job struct {
	ID          string     `json:"id"`
	Type        JobType    `json:"type"`
	Status      JobStatus  `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Duration    string     `json:"duration,omitempty"`
	Outcome     string     `json:"outcome,omitempty"`
	Error       string     `json:"error,omitempty"`

	cancel context.CancelFunc
}

// BuildFunc runs one site build.
type BuildFunc func(ctx context.Context) (*build.BuildReport, error)

// Queue serializes build requests over a fixed worker pool and keeps a
// bounded history of finished jobs.
type Queue struct {
	jobs        chan *Job
	workers     int
	historySize int
	builder     BuildFunc
	recorder    metrics.Recorder

	mu      sync.RWMutex
	active  map[string]*Job
	history []*Job

	stopOnce sync.Once
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewQueue builds a queue. Non-positive sizes fall back to small
// defaults.
func NewQueue(size, workers, historySize int, builder BuildFunc, recorder metrics.Recorder) *Queue {
	if size <= 0 {
		size = 16
	}
	if workers <= 0 {
		workers = 2
	}
	if historySize <= 0 {
		historySize = 50
	}
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &Queue{
		jobs:        make(chan *Job, size),
		workers:     workers,
		historySize: historySize,
		builder:     builder,
		recorder:    recorder,
		active:      make(map[string]*Job),
		stopChan:    make(chan struct{}),
	}
}

// Start launches the worker pool.
func (q *Queue) Start(ctx context.Context) {
	slog.Info("Starting build queue",
		slog.Int("workers", q.workers),
		slog.Int("queue_size", cap(q.jobs)))
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i)
	}
}

// Stop cancels active jobs and waits for the workers to drain.
func (q *Queue) Stop() {
	q.stopOnce.Do(func() { close(q.stopChan) })

	q.mu.Lock()
	for _, job := range q.active {
		if job.cancel != nil {
			job.cancel()
		}
	}
	q.mu.Unlock()

	q.wg.Wait()
	slog.Info("Build queue stopped")
}

// Enqueue adds a job. A full queue rejects the job rather than block
// the caller.
func (q *Queue) Enqueue(job *Job) error {
	if job == nil || job.ID == "" {
		return fmt.Errorf("job needs an id")
	}
	job.Status = JobStatusQueued

	select {
	case q.jobs <- job:
		q.recorder.SetQueueDepth(len(q.jobs))
		slog.Info("Build job enqueued", logfields.JobID(job.ID), logfields.JobType(string(job.Type)))
		return nil
	default:
		return fmt.Errorf("build queue is full")
	}
}

// Depth reports how many jobs wait in the queue.
func (q *Queue) Depth() int {
	return len(q.jobs)
}

// Workers reports the size of the worker pool.
func (q *Queue) Workers() int {
	return q.workers
}

// Active returns a snapshot of jobs currently building.
func (q *Queue) Active() []*Job {
	q.mu.RLock()
	defer q.mu.RUnlock()
	active := make([]*Job, 0, len(q.active))
	for _, job := range q.active {
		active = append(active, job)
	}
	return active
}

// History returns finished jobs, newest first.
func (q *Queue) History() []*Job {
	q.mu.RLock()
	defer q.mu.RUnlock()
	history := make([]*Job, len(q.history))
	copy(history, q.history)
	return history
}

func (q *Queue) worker(ctx context.Context, workerID int) {
	defer q.wg.Done()
	slog.Debug("Build worker started", logfields.Worker(workerID))

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.stopChan:
			return
		case job := <-q.jobs:
			if job != nil {
				q.recorder.SetQueueDepth(len(q.jobs))
				q.processJob(ctx, job, workerID)
			}
		}
	}
}

func (q *Queue) processJob(ctx context.Context, job *Job, workerID int) {
	jobCtx, cancel := context.WithCancel(ctx)
	job.cancel = cancel
	defer cancel()

	started := time.Now()
	job.StartedAt = &started
	job.Status = JobStatusRunning

	q.mu.Lock()
	q.active[job.ID] = job
	q.mu.Unlock()

	slog.Info("Build job started",
		logfields.JobID(job.ID),
		logfields.JobType(string(job.Type)),
		logfields.Worker(workerID))

	report, err := q.builder(jobCtx)

	completed := time.Now()
	job.CompletedAt = &completed
	job.Duration = completed.Sub(started).Round(time.Millisecond).String()
	if report != nil {
		job.Outcome = string(report.Outcome)
	}
	if err != nil {
		job.Status = JobStatusFailed
		job.Error = err.Error()
	} else {
		job.Status = JobStatusCompleted
	}

	q.mu.Lock()
	delete(q.active, job.ID)
	q.addToHistory(job)
	q.mu.Unlock()

	if err != nil {
		slog.Error("Build job failed",
			logfields.JobID(job.ID),
			slog.String("duration", job.Duration),
			logfields.Error(err))
		return
	}
	slog.Info("Build job completed",
		logfields.JobID(job.ID),
		slog.String("outcome", job.Outcome),
		slog.String("duration", job.Duration))
}

// addToHistory prepends the job and trims to historySize. Callers hold
// q.mu.
func (q *Queue) addToHistory(job *Job) {
	q.history = append([]*Job{job}, q.history...)
	if len(q.history) > q.historySize {
		q.history = q.history[:q.historySize]
	}
}
