// Package events publishes build lifecycle events so external systems
// (deploy hooks, dashboards) can react without polling the daemon API.
package events

import (
	"context"
	"time"
)

// Type names a build lifecycle event.
type Type string

const (
	TypeBuildStarted   Type = "build.started"
	TypeBuildCompleted Type = "build.completed"
	TypeBuildFailed    Type = "build.failed"
)

// Event is the JSON payload published on the configured subject.
type Event struct {
	Type       Type      `json:"type"`
	BuildID    string    `json:"build_id"`
	Timestamp  time.Time `json:"timestamp"`
	Outcome    string    `json:"outcome,omitempty"`
	Pages      int       `json:"pages,omitempty"`
	DurationMS int64     `json:"duration_ms,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// BuildStarted marks the beginning of a build.
func BuildStarted(buildID string, at time.Time) Event {
	return Event{Type: TypeBuildStarted, BuildID: buildID, Timestamp: at}
}

// BuildCompleted marks a finished build, successful or with warnings.
func BuildCompleted(buildID string, at time.Time, outcome string, pages int, d time.Duration) Event {
	return Event{
		Type:       TypeBuildCompleted,
		BuildID:    buildID,
		Timestamp:  at,
		Outcome:    outcome,
		Pages:      pages,
		DurationMS: d.Milliseconds(),
	}
}

// BuildFailed marks an aborted build.
func BuildFailed(buildID string, at time.Time, err error) Event {
	ev := Event{Type: TypeBuildFailed, BuildID: buildID, Timestamp: at, Outcome: "failed"}
	if err != nil {
		ev.Error = err.Error()
	}
	return ev
}

// Publisher delivers build events. Publishing is best-effort from the
// builder's point of view; a failed publish never fails a build.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// NoopPublisher is the Publisher used when events are not configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) error { return nil }
func (NoopPublisher) Close() error                         { return nil }
