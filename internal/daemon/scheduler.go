package daemon

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/ddingpy/shelfbuilder/internal/logfields"
)

// Scheduler wraps gocron for the periodic rebuild job.
type Scheduler struct {
	scheduler gocron.Scheduler
	queue     *Queue
}

// NewScheduler creates a scheduler that feeds the build queue.
func NewScheduler(queue *Queue) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	return &Scheduler{scheduler: s, queue: queue}, nil
}

// Start begins firing scheduled jobs.
func (s *Scheduler) Start() {
	slog.Info("Starting scheduler")
	s.scheduler.Start()
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() error {
	slog.Info("Stopping scheduler")
	return s.scheduler.Shutdown()
}

// SchedulePeriodicBuild schedules a rebuild every interval and returns
// the gocron job ID.
func (s *Scheduler) SchedulePeriodicBuild(interval time.Duration) (string, error) {
	job, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(s.enqueueScheduledBuild),
		gocron.WithName("periodic-build"),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create periodic build job: %w", err)
	}
	return job.ID().String(), nil
}

// enqueueScheduledBuild is called by gocron on every tick.
func (s *Scheduler) enqueueScheduledBuild() {
	jobID := fmt.Sprintf("scheduled-%d", time.Now().Unix())
	slog.Info("Enqueuing scheduled build", logfields.JobID(jobID))

	job := &Job{
		ID:        jobID,
		Type:      JobTypeScheduled,
		CreatedAt: time.Now(),
	}
	if err := s.queue.Enqueue(job); err != nil {
		slog.Error("Failed to enqueue scheduled build",
			logfields.JobID(jobID),
			logfields.Error(err))
	}
}
