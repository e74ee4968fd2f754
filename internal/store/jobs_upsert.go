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

type UpsertResult struct {
	Job      domain.Job
	Inserted bool
	// Changed is true when an existing row's content fields differed.
	Changed bool
}

// UpsertJob inserts j or, when its job_hash already exists, refreshes the
// content, score and last_seen_at of the existing row. applied, notes and
// created_at are never overwritten.
func (d *DB) UpsertJob(ctx context.Context, j domain.Job) (UpsertResult, error) {
	if j.JobHash == "" {
		return UpsertResult{}, errors.New("upsert job: empty job_hash")
	}
	now := time.Now().UTC()
	metaJSON, err := json.Marshal(metaOrEmpty(j.SourceMeta))
	if err != nil {
		return UpsertResult{}, fmt.Errorf("upsert job: meta: %w", err)
	}

	tx, err := d.Pool.BeginTx(ctx, nil)
	if err != nil {
		return UpsertResult{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var (
		id                                          int64
		title, company, location, description, reqs string
	)
	err = tx.QueryRowContext(ctx, `
SELECT id, title, company, location, description, requirements
FROM jobs WHERE job_hash = ? LIMIT 1;`, j.JobHash).Scan(&id, &title, &company, &location, &description, &reqs)

	res := UpsertResult{}
	switch {
	case errors.Is(err, sql.ErrNoRows):
		r, err := tx.ExecContext(ctx, `
INSERT INTO jobs (job_hash, title, company, location, description, requirements, url, source, remote,
  source_meta, post_date, relevance_score, keywords_matched, applied, notes, created_at, updated_at, last_seen_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, '', ?, ?, ?);`,
			j.JobHash, j.Title, j.Company, j.Location, j.Description, j.Requirements, j.URL, j.Source, j.Remote,
			string(metaJSON), j.PostDate, j.RelevanceScore, j.KeywordsMatched,
			formatTime(now), formatTime(now), formatTime(now),
		)
		if err != nil {
			return UpsertResult{}, fmt.Errorf("insert job: %w", err)
		}
		id, _ = r.LastInsertId()
		res.Inserted = true
	case err != nil:
		return UpsertResult{}, fmt.Errorf("lookup job: %w", err)
	default:
		res.Changed = title != j.Title || company != j.Company || location != j.Location ||
			description != j.Description || reqs != j.Requirements
		if _, err := tx.ExecContext(ctx, `
UPDATE jobs SET
  title = ?, company = ?, location = ?, description = ?, requirements = ?, url = ?, source = ?,
  remote = ?, source_meta = ?, post_date = ?, relevance_score = ?, keywords_matched = ?,
  updated_at = CASE WHEN ? THEN ? ELSE updated_at END,
  last_seen_at = ?
WHERE id = ?;`,
			j.Title, j.Company, j.Location, j.Description, j.Requirements, j.URL, j.Source,
			j.Remote, string(metaJSON), j.PostDate, j.RelevanceScore, j.KeywordsMatched,
			res.Changed, formatTime(now),
			formatTime(now), id,
		); err != nil {
			return UpsertResult{}, fmt.Errorf("update job: %w", err)
		}
	}

	job, err := getJob(ctx, tx, id)
	if err != nil {
		return UpsertResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return UpsertResult{}, err
	}
	res.Job = job
	return res, nil
}

// HasJobHash reports whether a posting with this hash was stored before.
func (d *DB) HasJobHash(ctx context.Context, hash string) (bool, error) {
	var one int
	err := d.Pool.QueryRowContext(ctx, `SELECT 1 FROM jobs WHERE job_hash = ? LIMIT 1;`, hash).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func metaOrEmpty(m domain.Metadata) domain.Metadata {
	if m == nil {
		return domain.Metadata{}
	}
	return m
}
