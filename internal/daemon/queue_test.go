package daemon

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ddingpy/shelfbuilder/internal/build"
	"github.com/ddingpy/shelfbuilder/internal/metrics"
)

// depthRecorder captures queue depth gauge updates.
type depthRecorder struct {
	metrics.NoopRecorder

	mu     sync.Mutex
	depths []int
}

func (r *depthRecorder) SetQueueDepth(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.depths = append(r.depths, n)
}

func reportBuilder(outcome build.BuildOutcome) BuildFunc {
	return func(ctx context.Context) (*build.BuildReport, error) {
		return &build.BuildReport{BuildID: "b-1", Outcome: outcome}, nil
	}
}

func manualJob(id string) *Job {
	return &Job{ID: id, Type: JobTypeManual, CreatedAt: time.Now()}
}

// testContext mirrors testing.T.Context from newer Go releases: a context
// canceled when the test ends.
func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}

func waitForHistory(t *testing.T, q *Queue, n int) []*Job {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(q.History()) >= n
	}, 2*time.Second, 10*time.Millisecond)
	return q.History()
}

func TestNewQueue_AppliesDefaults(t *testing.T) {
	q := NewQueue(0, 0, 0, reportBuilder(build.OutcomeSuccess), nil)
	assert.Equal(t, 16, cap(q.jobs))
	assert.Equal(t, 2, q.Workers())
	assert.Equal(t, 50, q.historySize)
}

func TestEnqueue_RequiresID(t *testing.T) {
	q := NewQueue(4, 1, 10, reportBuilder(build.OutcomeSuccess), nil)
	require.Error(t, q.Enqueue(nil))
	require.Error(t, q.Enqueue(&Job{Type: JobTypeManual}))
}

func TestEnqueue_FullQueueRejected(t *testing.T) {
	// Workers never started, so the first job stays queued.
	q := NewQueue(1, 1, 10, reportBuilder(build.OutcomeSuccess), nil)
	require.NoError(t, q.Enqueue(manualJob("job-1")))

	err := q.Enqueue(manualJob("job-2"))
	require.ErrorContains(t, err, "queue is full")
	assert.Equal(t, 1, q.Depth())
}

func TestQueue_ProcessesJobToCompletion(t *testing.T) {
	q := NewQueue(4, 1, 10, reportBuilder(build.OutcomeSuccess), nil)
	q.Start(t.Context())
	defer q.Stop()

	require.NoError(t, q.Enqueue(manualJob("job-1")))

	job := waitForHistory(t, q, 1)[0]
	assert.Equal(t, "job-1", job.ID)
	assert.Equal(t, JobStatusCompleted, job.Status)
	assert.Equal(t, string(build.OutcomeSuccess), job.Outcome)
	require.NotNil(t, job.StartedAt)
	require.NotNil(t, job.CompletedAt)
	assert.NotEmpty(t, job.Duration)
	assert.Empty(t, q.Active())
}

func TestQueue_BuilderErrorMarksJobFailed(t *testing.T) {
	builder := func(ctx context.Context) (*build.BuildReport, error) {
		return &build.BuildReport{BuildID: "b-err", Outcome: build.OutcomeFailed},
			errors.New("content dir missing")
	}
	q := NewQueue(4, 1, 10, builder, nil)
	q.Start(t.Context())
	defer q.Stop()

	require.NoError(t, q.Enqueue(manualJob("job-1")))

	job := waitForHistory(t, q, 1)[0]
	assert.Equal(t, JobStatusFailed, job.Status)
	assert.Equal(t, "content dir missing", job.Error)
	assert.Equal(t, string(build.OutcomeFailed), job.Outcome)
}

func TestQueue_HistoryBoundedNewestFirst(t *testing.T) {
	q := NewQueue(8, 1, 2, reportBuilder(build.OutcomeSuccess), nil)
	q.Start(t.Context())
	defer q.Stop()

	for i := 1; i <= 3; i++ {
		id := fmt.Sprintf("job-%d", i)
		require.NoError(t, q.Enqueue(manualJob(id)))
		require.Eventually(t, func() bool {
			h := q.History()
			return len(h) > 0 && h[0].ID == id
		}, 2*time.Second, 10*time.Millisecond)
	}

	history := q.History()
	require.Len(t, history, 2)
	assert.Equal(t, "job-3", history[0].ID)
	assert.Equal(t, "job-2", history[1].ID)
}

func TestStop_CancelsActiveJob(t *testing.T) {
	started := make(chan struct{})
	builder := func(ctx context.Context) (*build.BuildReport, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}
	q := NewQueue(1, 1, 10, builder, nil)
	q.Start(context.Background())

	require.NoError(t, q.Enqueue(manualJob("job-slow")))
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("builder never started")
	}

	done := make(chan struct{})
	go func() {
		q.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Stop did not return after canceling the active job")
	}

	history := q.History()
	require.Len(t, history, 1)
	assert.Equal(t, JobStatusFailed, history[0].Status)
	assert.Equal(t, context.Canceled.Error(), history[0].Error)
}

func TestQueue_ReportsQueueDepthGauge(t *testing.T) {
	rec := &depthRecorder{}
	q := NewQueue(4, 1, 10, reportBuilder(build.OutcomeSuccess), rec)
	q.Start(t.Context())
	defer q.Stop()

	require.NoError(t, q.Enqueue(manualJob("job-1")))
	waitForHistory(t, q, 1)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.NotEmpty(t, rec.depths)
	assert.Contains(t, rec.depths, 0)
}
