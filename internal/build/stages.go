package build

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ddingpy/shelfbuilder/internal/config"
	"github.com/ddingpy/shelfbuilder/internal/content"
	"github.com/ddingpy/shelfbuilder/internal/feed"
	"github.com/ddingpy/shelfbuilder/internal/listing"
	"github.com/ddingpy/shelfbuilder/internal/logfields"
	"github.com/ddingpy/shelfbuilder/internal/metrics"
	"github.com/ddingpy/shelfbuilder/internal/render"
)

// Stage is a single step of the build pipeline.
type Stage func(ctx context.Context, bs *BuildState) error

// StageErrorKind classifies a stage failure.
type StageErrorKind string

const (
	StageErrorFatal    StageErrorKind = "fatal"
	StageErrorWarning  StageErrorKind = "warning"
	StageErrorCanceled StageErrorKind = "canceled"
)

// StageError wraps an error produced by a stage with its classification.
// Warnings are recorded and the next stage runs; fatal and canceled
// abort the build.
type StageError struct {
	Kind  StageErrorKind
	Stage StageName
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage %s: %v", e.Kind, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func newFatalStageError(stage StageName, err error) *StageError {
	return &StageError{Kind: StageErrorFatal, Stage: stage, Err: err}
}

func newWarnStageError(stage StageName, err error) *StageError {
	return &StageError{Kind: StageErrorWarning, Stage: stage, Err: err}
}

func newCanceledStageError(stage StageName, err error) *StageError {
	return &StageError{Kind: StageErrorCanceled, Stage: stage, Err: err}
}

// BuildState carries everything the stages share. Now is fixed when the
// build starts so every listing view and feed timestamp in one build
// agrees; tests pin it for byte-identical output.
type BuildState struct {
	Config  *config.Config
	BuildID string
	Now     time.Time

	ContentDir string
	StageDir   string
	OutputDir  string
	Force      bool

	Scan     *content.Result
	Site     render.SiteContext
	Layouts  *render.Layouts
	Markdown *render.Markdown
	Engine   *listing.Engine
	Feeds    *feed.Builder

	Report   *BuildReport
	Recorder metrics.Recorder

	// LastSignature is the input signature of the previous successful
	// build, empty when unknown. Enables the incremental skip.
	LastSignature string

	skipRemaining bool
}

// SkipRemaining stops the pipeline after the current stage without
// error. The change check uses it when nothing needs rebuilding.
func (bs *BuildState) SkipRemaining() { bs.skipRemaining = true }

// runStages executes the pipeline in order, timing each stage and
// classifying failures into the report.
func runStages(ctx context.Context, bs *BuildState, stages []StageDef) error {
	for _, def := range stages {
		if bs.skipRemaining {
			return nil
		}

		select {
		case <-ctx.Done():
			stageErr := newCanceledStageError(def.Name, ctx.Err())
			bs.Report.StageErrorKinds[def.Name] = stageErr.Kind
			bs.Report.StageCounts.Canceled++
			bs.Report.Errors = append(bs.Report.Errors, stageErr)
			return stageErr
		default:
		}

		slog.Debug("Running stage", logfields.Stage(string(def.Name)))
		start := time.Now()
		err := def.Fn(ctx, bs)
		elapsed := time.Since(start)
		bs.Report.StageDurations[def.Name] = elapsed
		bs.Recorder.ObserveStageDuration(string(def.Name), elapsed)

		if err == nil {
			bs.Report.StageCounts.Success++
			bs.Recorder.IncStageResult(string(def.Name), metrics.ResultSuccess)
			slog.Debug("Stage finished",
				logfields.Stage(string(def.Name)),
				logfields.DurationMS(float64(elapsed.Milliseconds())))
			continue
		}

		var stageErr *StageError
		if !errors.As(err, &stageErr) {
			stageErr = newFatalStageError(def.Name, err)
		}
		bs.Report.StageErrorKinds[def.Name] = stageErr.Kind

		switch stageErr.Kind {
		case StageErrorWarning:
			bs.Report.StageCounts.Warning++
			bs.Recorder.IncStageResult(string(def.Name), metrics.ResultWarning)
			bs.Report.Warnings = append(bs.Report.Warnings, stageErr)
			slog.Warn("Stage finished with warning",
				logfields.Stage(string(def.Name)),
				logfields.Error(stageErr.Err))

		case StageErrorCanceled:
			bs.Report.StageCounts.Canceled++
			bs.Recorder.IncStageResult(string(def.Name), metrics.ResultCanceled)
			bs.Report.Errors = append(bs.Report.Errors, stageErr)
			slog.Warn("Stage canceled", logfields.Stage(string(def.Name)))
			return stageErr

		default:
			bs.Report.StageCounts.Fatal++
			bs.Recorder.IncStageResult(string(def.Name), metrics.ResultFatal)
			bs.Report.Errors = append(bs.Report.Errors, stageErr)
			slog.Error("Stage failed",
				logfields.Stage(string(def.Name)),
				logfields.Error(stageErr.Err))
			return stageErr
		}
	}
	return nil
}
