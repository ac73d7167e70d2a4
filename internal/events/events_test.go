package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBuildStarted_ShapesEvent(t *testing.T) {
	at := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	ev := BuildStarted("b-1", at)

	require.Equal(t, TypeBuildStarted, ev.Type)
	require.Equal(t, "b-1", ev.BuildID)
	require.Equal(t, at, ev.Timestamp)
	require.Empty(t, ev.Outcome)
}

func TestBuildCompleted_CarriesOutcomeAndDuration(t *testing.T) {
	at := time.Date(2025, 6, 15, 12, 0, 3, 0, time.UTC)
	ev := BuildCompleted("b-2", at, "success", 12, 3*time.Second)

	require.Equal(t, TypeBuildCompleted, ev.Type)
	require.Equal(t, "success", ev.Outcome)
	require.Equal(t, 12, ev.Pages)
	require.Equal(t, int64(3000), ev.DurationMS)
}

func TestBuildFailed_CapturesError(t *testing.T) {
	ev := BuildFailed("b-3", time.Now(), errors.New("stage render_pages exploded"))

	require.Equal(t, TypeBuildFailed, ev.Type)
	require.Equal(t, "failed", ev.Outcome)
	require.Contains(t, ev.Error, "render_pages")
}

func TestEvent_JSONOmitsEmptyFields(t *testing.T) {
	data, err := json.Marshal(BuildStarted("b-4", time.Unix(0, 0).UTC()))
	require.NoError(t, err)

	require.Contains(t, string(data), `"type":"build.started"`)
	require.NotContains(t, string(data), "outcome")
	require.NotContains(t, string(data), "error")
}

func TestNoopPublisher_AlwaysSucceeds(t *testing.T) {
	var p Publisher = NoopPublisher{}
	require.NoError(t, p.Publish(context.Background(), BuildStarted("b-5", time.Now())))
	require.NoError(t, p.Close())
}
