package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/linkmeAman/JHuntAutomator/internal/domain"
)

const (
	DefaultRunsLimit = 20
	MaxRunsLimit     = 100
)

// SourceOutcome is the result of one source inside a run. A non-empty Err
// marks the source as failed.
type SourceOutcome struct {
	Source   string
	Err      string
	Fetched  int
	Inserted int
}

func (o SourceOutcome) Failed() bool { return o.Err != "" }

const runColumns = `run_id, run_trigger, started_at, finished_at, duration_ms, sources_attempted,
  sources_succeeded, sources_failed, fetched_count, inserted_new_count, errors_summary`

func scanRun(s scanner) (domain.CrawlRun, error) {
	var (
		r                            domain.CrawlRun
		startedAt                    string
		finishedAt                   sql.NullString
		duration                     sql.NullInt64
		attempted, succeeded, failed string
	)
	if err := s.Scan(&r.RunID, &r.Trigger, &startedAt, &finishedAt, &duration,
		&attempted, &succeeded, &failed, &r.FetchedCount, &r.InsertedNewCount, &r.ErrorsSummary); err != nil {
		return r, err
	}
	r.StartedAt = parseTime(startedAt)
	r.FinishedAt = parseTimePtr(finishedAt)
	if duration.Valid {
		ms := duration.Int64
		r.DurationMS = &ms
	}
	r.SourcesAttempted = []string{}
	r.SourcesSucceeded = []string{}
	r.SourcesFailed = []domain.SourceFailure{}
	_ = json.Unmarshal([]byte(attempted), &r.SourcesAttempted)
	_ = json.Unmarshal([]byte(succeeded), &r.SourcesSucceeded)
	_ = json.Unmarshal([]byte(failed), &r.SourcesFailed)
	return r, nil
}

func getRun(ctx context.Context, q rowQueryer, runID string) (domain.CrawlRun, error) {
	r, err := scanRun(q.QueryRowContext(ctx, `SELECT `+runColumns+` FROM crawl_runs WHERE run_id = ?;`, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.CrawlRun{}, ErrNotFound
	}
	return r, err
}

// CreateRun persists a run in its Running state.
func (d *DB) CreateRun(ctx context.Context, r domain.CrawlRun) error {
	if r.RunID == "" {
		return errors.New("create run: empty run_id")
	}
	attempted, err := json.Marshal(nonNil(r.SourcesAttempted))
	if err != nil {
		return err
	}
	_, err = d.Pool.ExecContext(ctx, `
INSERT INTO crawl_runs (run_id, run_trigger, started_at, sources_attempted, sources_succeeded, sources_failed,
  fetched_count, inserted_new_count, errors_summary)
VALUES (?, ?, ?, ?, '[]', '[]', 0, 0, '');`,
		r.RunID, r.Trigger, formatTime(r.StartedAt), string(attempted))
	if err != nil {
		return fmt.Errorf("create run %s: %w", r.RunID, err)
	}
	return nil
}

// RecordSourceOutcome appends one source outcome to the run and merges the
// source's new state in the same transaction, so a crash never leaves the
// run and the source state disagreeing.
func (d *DB) RecordSourceOutcome(ctx context.Context, runID string, o SourceOutcome, p SourceStatePatch) (domain.SourceState, error) {
	tx, err := d.Pool.BeginTx(ctx, nil)
	if err != nil {
		return domain.SourceState{}, err
	}
	defer func() { _ = tx.Rollback() }()

	r, err := getRun(ctx, tx, runID)
	if err != nil {
		return domain.SourceState{}, fmt.Errorf("record outcome %s/%s: %w", runID, o.Source, err)
	}
	if r.FinishedAt != nil {
		return domain.SourceState{}, fmt.Errorf("record outcome %s/%s: run already finished", runID, o.Source)
	}
	for _, s := range r.SourcesSucceeded {
		if s == o.Source {
			return domain.SourceState{}, fmt.Errorf("record outcome %s/%s: already recorded", runID, o.Source)
		}
	}
	for _, f := range r.SourcesFailed {
		if f.Source == o.Source {
			return domain.SourceState{}, fmt.Errorf("record outcome %s/%s: already recorded", runID, o.Source)
		}
	}

	if o.Failed() {
		r.SourcesFailed = append(r.SourcesFailed, domain.SourceFailure{Source: o.Source, Error: o.Err})
	} else {
		r.SourcesSucceeded = append(r.SourcesSucceeded, o.Source)
	}
	inserted := o.Inserted
	if inserted > o.Fetched {
		inserted = o.Fetched
	}

	succeeded, err := json.Marshal(r.SourcesSucceeded)
	if err != nil {
		return domain.SourceState{}, err
	}
	failed, err := json.Marshal(r.SourcesFailed)
	if err != nil {
		return domain.SourceState{}, err
	}
	if _, err := tx.ExecContext(ctx, `
UPDATE crawl_runs SET
  sources_succeeded = ?,
  sources_failed = ?,
  fetched_count = fetched_count + ?,
  inserted_new_count = inserted_new_count + ?
WHERE run_id = ?;`, string(succeeded), string(failed), o.Fetched, inserted, runID); err != nil {
		return domain.SourceState{}, fmt.Errorf("record outcome %s/%s: %w", runID, o.Source, err)
	}

	st, err := upsertSourceState(ctx, tx, o.Source, p)
	if err != nil {
		return st, err
	}
	return st, tx.Commit()
}

// OutcomeNotRecorded is the error FinishRun stores for an attempted source
// that never got an outcome.
const OutcomeNotRecorded = "outcome not recorded"

// FinishRun stamps finished_at and duration once. Attempted sources with no
// recorded outcome are moved to sources_failed so succeeded and failed
// still cover attempted. Finishing an already finished run is a no-op.
func (d *DB) FinishRun(ctx context.Context, runID string, finishedAt time.Time, summary string) (domain.CrawlRun, error) {
	tx, err := d.Pool.BeginTx(ctx, nil)
	if err != nil {
		return domain.CrawlRun{}, err
	}
	defer func() { _ = tx.Rollback() }()

	r, err := getRun(ctx, tx, runID)
	if err != nil {
		return r, err
	}
	if r.FinishedAt == nil {
		ms := finishedAt.Sub(r.StartedAt).Milliseconds()
		if ms < 0 {
			ms = 0
		}
		missing := unrecorded(r)
		for _, src := range missing {
			r.SourcesFailed = append(r.SourcesFailed, domain.SourceFailure{Source: src, Error: OutcomeNotRecorded})
			if summary != "" {
				summary += "; "
			}
			summary += src + ": " + OutcomeNotRecorded
		}
		failed, err := json.Marshal(r.SourcesFailed)
		if err != nil {
			return r, err
		}
		if _, err := tx.ExecContext(ctx, `
UPDATE crawl_runs SET finished_at = ?, duration_ms = ?, errors_summary = ?, sources_failed = ?
WHERE run_id = ? AND finished_at IS NULL;`, formatTime(finishedAt), ms, summary, string(failed), runID); err != nil {
			return r, fmt.Errorf("finish run %s: %w", runID, err)
		}
		if r, err = getRun(ctx, tx, runID); err != nil {
			return r, err
		}
	}
	if err := tx.Commit(); err != nil {
		return r, err
	}
	r.DeriveStatus(time.Now())
	return r, nil
}

func unrecorded(r domain.CrawlRun) []string {
	done := map[string]bool{}
	for _, s := range r.SourcesSucceeded {
		done[s] = true
	}
	for _, f := range r.SourcesFailed {
		done[f.Source] = true
	}
	var out []string
	for _, s := range r.SourcesAttempted {
		if !done[s] {
			out = append(out, s)
		}
	}
	return out
}

func (d *DB) GetRun(ctx context.Context, runID string) (domain.CrawlRun, error) {
	r, err := getRun(ctx, d.Pool, runID)
	if err != nil {
		return r, err
	}
	r.DeriveStatus(time.Now())
	return r, nil
}

// ListRuns returns runs newest first.
func (d *DB) ListRuns(ctx context.Context, limit, offset int) ([]domain.CrawlRun, error) {
	if limit <= 0 {
		limit = DefaultRunsLimit
	}
	if limit > MaxRunsLimit {
		limit = MaxRunsLimit
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := d.Pool.QueryContext(ctx,
		`SELECT `+runColumns+` FROM crawl_runs ORDER BY started_at DESC, run_id DESC LIMIT ? OFFSET ?;`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	now := time.Now()
	out := []domain.CrawlRun{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		r.DeriveStatus(now)
		out = append(out, r)
	}
	return out, rows.Err()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
