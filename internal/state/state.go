// Package state persists build history in SQLite. The daemon reads it
// for its admin API, and the incremental skip reads the signature of
// the most recent successful build from it.
package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ddingpy/shelfbuilder/internal/build"
)

// BuildRecord is one row of build history.
type BuildRecord struct {
	ID           string    `json:"id"`
	Started      time.Time `json:"started"`
	Finished     time.Time `json:"finished"`
	Outcome      string    `json:"outcome"`
	Pages        int       `json:"pages"`
	Rendered     int       `json:"rendered"`
	Warnings     int       `json:"warnings"`
	Errors       int       `json:"errors"`
	Signature    string    `json:"signature,omitempty"`
	SourceCommit string    `json:"source_commit,omitempty"`
	SkipReason   string    `json:"skip_reason,omitempty"`
}

// NewRecord flattens a build report into a history row.
func NewRecord(r *build.BuildReport) BuildRecord {
	return BuildRecord{
		ID:           r.BuildID,
		Started:      r.Start,
		Finished:     r.End,
		Outcome:      string(r.Outcome),
		Pages:        r.Pages,
		Rendered:     r.Rendered,
		Warnings:     len(r.Warnings),
		Errors:       len(r.Errors),
		Signature:    r.Signature,
		SourceCommit: r.SourceCommit,
		SkipReason:   r.SkipReason,
	}
}

// Store is a SQLite-backed build history.
// Use ":memory:" for an in-memory database, or a file path for
// persistent storage.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

func NewStore(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if dir := filepath.Dir(dbPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create state dir: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	store := &Store{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return store, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS builds (
		id TEXT PRIMARY KEY,
		started INTEGER NOT NULL,
		finished INTEGER NOT NULL,
		outcome TEXT NOT NULL,
		pages INTEGER NOT NULL,
		rendered INTEGER NOT NULL,
		warnings INTEGER NOT NULL,
		errors INTEGER NOT NULL,
		signature TEXT NOT NULL DEFAULT '',
		source_commit TEXT NOT NULL DEFAULT '',
		skip_reason TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_builds_started ON builds(started);
	CREATE INDEX IF NOT EXISTS idx_builds_outcome ON builds(outcome);
	`
	_, err := s.db.Exec(schema)
	return err
}

// RecordBuild appends one build to the history.
func (s *Store) RecordBuild(ctx context.Context, rec BuildRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO builds
		 (id, started, finished, outcome, pages, rendered, warnings, errors, signature, source_commit, skip_reason)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Started.UnixMilli(), rec.Finished.UnixMilli(), rec.Outcome,
		rec.Pages, rec.Rendered, rec.Warnings, rec.Errors,
		rec.Signature, rec.SourceCommit, rec.SkipReason,
	)
	if err != nil {
		return fmt.Errorf("insert build %s: %w", rec.ID, err)
	}
	return nil
}

// LastSuccessfulSignature returns the input signature of the most recent
// build whose output was promoted. No such build returns "".
//
// Its shape matches what the generator's incremental skip expects.
func (s *Store) LastSuccessfulSignature(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sig string
	err := s.db.QueryRowContext(ctx,
		`SELECT signature FROM builds
		 WHERE outcome IN (?, ?) AND signature != ''
		 ORDER BY started DESC LIMIT 1`,
		string(build.OutcomeSuccess), string(build.OutcomeWarning),
	).Scan(&sig)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query last signature: %w", err)
	}
	return sig, nil
}

// RecentBuilds returns up to limit builds, newest first. A non-positive
// limit selects a default of 20.
func (s *Store) RecentBuilds(ctx context.Context, limit int) ([]BuildRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started, finished, outcome, pages, rendered, warnings, errors, signature, source_commit, skip_reason
		 FROM builds ORDER BY started DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query builds: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// Prune drops history beyond the newest keep rows.
func (s *Store) Prune(ctx context.Context, keep int) error {
	if keep <= 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`DELETE FROM builds WHERE id NOT IN
		 (SELECT id FROM builds ORDER BY started DESC, id LIMIT ?)`, keep)
	if err != nil {
		return fmt.Errorf("prune builds: %w", err)
	}
	return nil
}

func scanRecords(rows *sql.Rows) ([]BuildRecord, error) {
	var records []BuildRecord
	for rows.Next() {
		var rec BuildRecord
		var started, finished int64

		err := rows.Scan(&rec.ID, &started, &finished, &rec.Outcome,
			&rec.Pages, &rec.Rendered, &rec.Warnings, &rec.Errors,
			&rec.Signature, &rec.SourceCommit, &rec.SkipReason)
		if err != nil {
			return nil, fmt.Errorf("scan build: %w", err)
		}

		rec.Started = time.UnixMilli(started)
		rec.Finished = time.UnixMilli(finished)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return records, nil
}

// Close closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
