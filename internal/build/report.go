package build

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ddingpy/shelfbuilder/internal/render"
	"github.com/ddingpy/shelfbuilder/internal/verify"
)

// BuildOutcome is the terminal classification of a build.
type BuildOutcome string

const (
	OutcomeSuccess  BuildOutcome = "success"
	OutcomeWarning  BuildOutcome = "warning"
	OutcomeFailed   BuildOutcome = "failed"
	OutcomeCanceled BuildOutcome = "canceled"
)

// SkipNoChanges is recorded when the incremental check short-circuits a
// build whose inputs match the previous successful one.
const SkipNoChanges = "no_changes"

const reportSchemaVersion = 1

// StageCounts tallies stage results across one pipeline run.
type StageCounts struct {
	Success  int `json:"success"`
	Warning  int `json:"warning"`
	Fatal    int `json:"fatal"`
	Canceled int `json:"canceled"`
}

// BuildReport captures everything about one build run. It is persisted
// as build-report.json next to the generated site.
type BuildReport struct {
	SchemaVersion int
	BuildID       string
	Start         time.Time
	End           time.Time

	Pages    int // pages discovered by the scan
	Assets   int // static files discovered by the scan
	Rendered int // HTML documents written

	Signature    string
	SourceCommit string
	SkipReason   string

	Outcome BuildOutcome

	Errors          []error
	Warnings        []error
	ContentWarnings []string

	StageDurations  map[StageName]time.Duration
	StageErrorKinds map[StageName]StageErrorKind
	StageCounts     StageCounts

	Layouts     map[string]render.LayoutInfo
	BrokenLinks []verify.BrokenLink
}

func newBuildReport(buildID string, start time.Time) *BuildReport {
	return &BuildReport{
		SchemaVersion:   reportSchemaVersion,
		BuildID:         buildID,
		Start:           start,
		StageDurations:  make(map[StageName]time.Duration),
		StageErrorKinds: make(map[StageName]StageErrorKind),
	}
}

// finish stamps the end time and derives the outcome.
func (r *BuildReport) finish(end time.Time) {
	r.End = end
	r.Outcome = r.deriveOutcome()
}

// deriveOutcome classifies the finished build: any canceled stage wins,
// then fatal errors, then warnings, then success.
func (r *BuildReport) deriveOutcome() BuildOutcome {
	for _, err := range r.Errors {
		var stageErr *StageError
		if errors.As(err, &stageErr) && stageErr.Kind == StageErrorCanceled {
			return OutcomeCanceled
		}
	}
	if len(r.Errors) > 0 {
		return OutcomeFailed
	}
	if len(r.Warnings) > 0 {
		return OutcomeWarning
	}
	return OutcomeSuccess
}

// Duration is the wall time of the whole build.
func (r *BuildReport) Duration() time.Duration { return r.End.Sub(r.Start) }

// Summary renders the one-line form used in logs and build-report.txt.
func (r *BuildReport) Summary() string {
	if r.SkipReason != "" {
		return fmt.Sprintf("build %s skipped (%s)", r.BuildID, r.SkipReason)
	}
	return fmt.Sprintf("build %s %s: %d pages rendered, %d warnings, %d errors in %s",
		r.BuildID, r.Outcome, r.Rendered, len(r.Warnings), len(r.Errors),
		r.Duration().Round(time.Millisecond))
}

// reportFile is the JSON shape written to disk; errors flatten to their
// messages so the file stays readable and diffable.
type reportFile struct {
	SchemaVersion    int                          `json:"schema_version"`
	BuildID          string                       `json:"build_id"`
	Start            time.Time                    `json:"start"`
	End              time.Time                    `json:"end"`
	DurationMS       int64                        `json:"duration_ms"`
	Outcome          BuildOutcome                 `json:"outcome"`
	Pages            int                          `json:"pages"`
	Assets           int                          `json:"assets"`
	Rendered         int                          `json:"rendered"`
	Signature        string                       `json:"signature,omitempty"`
	SourceCommit     string                       `json:"source_commit,omitempty"`
	SkipReason       string                       `json:"skip_reason,omitempty"`
	Errors           []string                     `json:"errors,omitempty"`
	Warnings         []string                     `json:"warnings,omitempty"`
	ContentWarnings  []string                     `json:"content_warnings,omitempty"`
	StageDurationsMS map[StageName]int64          `json:"stage_durations_ms,omitempty"`
	StageErrorKinds  map[StageName]StageErrorKind `json:"stage_error_kinds,omitempty"`
	StageCounts      StageCounts                  `json:"stage_counts"`
	Layouts          map[string]render.LayoutInfo `json:"layouts,omitempty"`
	BrokenLinks      []verify.BrokenLink          `json:"broken_links,omitempty"`
}

func (r *BuildReport) fileForm() reportFile {
	f := reportFile{
		SchemaVersion:   r.SchemaVersion,
		BuildID:         r.BuildID,
		Start:           r.Start,
		End:             r.End,
		DurationMS:      r.Duration().Milliseconds(),
		Outcome:         r.Outcome,
		Pages:           r.Pages,
		Assets:          r.Assets,
		Rendered:        r.Rendered,
		Signature:       r.Signature,
		SourceCommit:    r.SourceCommit,
		SkipReason:      r.SkipReason,
		ContentWarnings: r.ContentWarnings,
		StageErrorKinds: r.StageErrorKinds,
		StageCounts:     r.StageCounts,
		Layouts:         r.Layouts,
		BrokenLinks:     r.BrokenLinks,
	}
	for _, err := range r.Errors {
		f.Errors = append(f.Errors, err.Error())
	}
	for _, err := range r.Warnings {
		f.Warnings = append(f.Warnings, err.Error())
	}
	if len(r.StageDurations) > 0 {
		f.StageDurationsMS = make(map[StageName]int64, len(r.StageDurations))
		for name, d := range r.StageDurations {
			f.StageDurationsMS[name] = d.Milliseconds()
		}
	}
	return f
}

// Persist writes build-report.json and build-report.txt into dir via a
// temp-file rename so readers never observe a partial report.
func (r *BuildReport) Persist(dir string) error {
	data, err := json.MarshalIndent(r.fileForm(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal build report: %w", err)
	}
	data = append(data, '\n')

	if err := writeFileAtomic(filepath.Join(dir, "build-report.json"), data); err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(dir, "build-report.txt"), []byte(r.Summary()+"\n"))
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("finalize %s: %w", filepath.Base(path), err)
	}
	return nil
}
