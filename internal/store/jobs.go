package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/linkmeAman/JHuntAutomator/internal/domain"
)

const (
	DefaultJobsLimit = 100
	MaxJobsLimit     = 500
)

type JobFilter struct {
	Query    string
	Location string
	Applied  *bool
	Source   string
	Remote   *bool
	Limit    int
	Offset   int
}

// JobPatch carries the only fields a user may change on a job.
type JobPatch struct {
	Applied *bool   `json:"applied"`
	Notes   *string `json:"notes"`
}

type Stats struct {
	TotalJobs   int            `json:"total_jobs"`
	AppliedJobs int            `json:"applied_jobs"`
	PendingJobs int            `json:"pending_jobs"`
	Sources     map[string]int `json:"sources"`
}

type rowQueryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const jobColumns = `id, job_hash, title, company, location, description, requirements, url, source, remote,
  source_meta, post_date, relevance_score, keywords_matched, applied, notes, created_at, updated_at, last_seen_at`

func scanJob(s scanner) (domain.Job, error) {
	var (
		j                              domain.Job
		metaJSON                       string
		createdAt, updatedAt, lastSeen string
	)
	if err := s.Scan(
		&j.ID, &j.JobHash, &j.Title, &j.Company, &j.Location, &j.Description, &j.Requirements,
		&j.URL, &j.Source, &j.Remote, &metaJSON, &j.PostDate, &j.RelevanceScore, &j.KeywordsMatched,
		&j.Applied, &j.Notes, &createdAt, &updatedAt, &lastSeen,
	); err != nil {
		return domain.Job{}, err
	}
	if metaJSON != "" && metaJSON != "{}" {
		// rows written by older builds may hold shapes the variant rejects
		_ = json.Unmarshal([]byte(metaJSON), &j.SourceMeta)
	}
	j.CreatedAt = parseTime(createdAt)
	j.UpdatedAt = parseTime(updatedAt)
	j.LastSeenAt = parseTime(lastSeen)
	return j, nil
}

func getJob(ctx context.Context, q rowQueryer, id int64) (domain.Job, error) {
	j, err := scanJob(q.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?;`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Job{}, ErrNotFound
	}
	return j, err
}

func (d *DB) GetJob(ctx context.Context, id int64) (domain.Job, error) {
	return getJob(ctx, d.Pool, id)
}

// ListJobs returns jobs ordered by relevance, newest first on ties.
func (d *DB) ListJobs(ctx context.Context, f JobFilter) ([]domain.Job, error) {
	if f.Limit <= 0 {
		f.Limit = DefaultJobsLimit
	}
	if f.Limit > MaxJobsLimit {
		f.Limit = MaxJobsLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	var (
		where []string
		args  []any
	)
	if q := strings.TrimSpace(f.Query); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		where = append(where, `(LOWER(title) LIKE ? OR LOWER(company) LIKE ? OR LOWER(description) LIKE ?)`)
		args = append(args, like, like, like)
	}
	if loc := strings.TrimSpace(f.Location); loc != "" {
		where = append(where, `LOWER(location) LIKE ?`)
		args = append(args, "%"+strings.ToLower(loc)+"%")
	}
	if f.Applied != nil {
		where = append(where, `applied = ?`)
		args = append(args, *f.Applied)
	}
	if src := strings.TrimSpace(f.Source); src != "" {
		where = append(where, `LOWER(source) = ?`)
		args = append(args, strings.ToLower(src))
	}
	if f.Remote != nil {
		where = append(where, `remote = ?`)
		args = append(args, *f.Remote)
	}

	query := `SELECT ` + jobColumns + ` FROM jobs`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	query += ` ORDER BY relevance_score DESC, created_at DESC, id DESC LIMIT ? OFFSET ?;`
	args = append(args, f.Limit, f.Offset)

	rows, err := d.Pool.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Job{}
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// UpdateJobUserFields applies a user edit of applied and/or notes.
func (d *DB) UpdateJobUserFields(ctx context.Context, id int64, p JobPatch) (domain.Job, error) {
	var (
		sets []string
		args []any
	)
	if p.Applied != nil {
		sets = append(sets, `applied = ?`)
		args = append(args, *p.Applied)
	}
	if p.Notes != nil {
		sets = append(sets, `notes = ?`)
		args = append(args, *p.Notes)
	}
	if len(sets) == 0 {
		return d.GetJob(ctx, id)
	}
	sets = append(sets, `updated_at = ?`)
	args = append(args, formatTime(time.Now()), id)

	res, err := d.Pool.ExecContext(ctx, `UPDATE jobs SET `+strings.Join(sets, ", ")+` WHERE id = ?;`, args...)
	if err != nil {
		return domain.Job{}, fmt.Errorf("update job %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.Job{}, ErrNotFound
	}
	return d.GetJob(ctx, id)
}

func (d *DB) Stats(ctx context.Context) (Stats, error) {
	st := Stats{Sources: map[string]int{}}
	if err := d.Pool.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(applied), 0) FROM jobs;`,
	).Scan(&st.TotalJobs, &st.AppliedJobs); err != nil {
		return st, err
	}
	st.PendingJobs = st.TotalJobs - st.AppliedJobs

	rows, err := d.Pool.QueryContext(ctx, `SELECT source, COUNT(*) FROM jobs GROUP BY source;`)
	if err != nil {
		return st, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			src string
			n   int
		)
		if err := rows.Scan(&src, &n); err != nil {
			return st, err
		}
		st.Sources[src] = n
	}
	return st, rows.Err()
}
