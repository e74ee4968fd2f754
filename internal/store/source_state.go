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

// SourceStatePatch lists the fields to merge into a SourceState; nil means
// leave the stored value alone.
type SourceStatePatch struct {
	LastSuccessAt       *time.Time
	CooldownUntil       *time.Time
	ClearCooldown       bool
	ConsecutiveFailures *int
	Cursor              *domain.Cursor
	LastMetrics         domain.Metadata
}

func (p SourceStatePatch) apply(st *domain.SourceState) {
	if p.LastSuccessAt != nil {
		t := p.LastSuccessAt.UTC()
		st.LastSuccessAt = &t
	}
	if p.ClearCooldown {
		st.CooldownUntil = nil
	}
	if p.CooldownUntil != nil {
		t := p.CooldownUntil.UTC()
		st.CooldownUntil = &t
	}
	if p.ConsecutiveFailures != nil {
		st.ConsecutiveFailures = *p.ConsecutiveFailures
	}
	if p.Cursor != nil {
		st.Cursor = p.Cursor.Clone()
	}
	if p.LastMetrics != nil {
		st.LastMetrics = p.LastMetrics
	}
}

const sourceStateColumns = `source, last_success_at, cooldown_until, consecutive_failures, cursor, last_metrics, updated_at`

func scanSourceState(s scanner) (domain.SourceState, error) {
	var (
		st                  domain.SourceState
		lastOK, cooldown    sql.NullString
		cursorJSON, metrics string
		updatedAt           string
	)
	if err := s.Scan(&st.Source, &lastOK, &cooldown, &st.ConsecutiveFailures, &cursorJSON, &metrics, &updatedAt); err != nil {
		return st, err
	}
	st.LastSuccessAt = parseTimePtr(lastOK)
	st.CooldownUntil = parseTimePtr(cooldown)
	st.UpdatedAt = parseTime(updatedAt)
	_ = json.Unmarshal([]byte(cursorJSON), &st.Cursor)
	_ = json.Unmarshal([]byte(metrics), &st.LastMetrics)
	return st, nil
}

func getSourceState(ctx context.Context, q rowQueryer, source string) (domain.SourceState, error) {
	st, err := scanSourceState(q.QueryRowContext(ctx,
		`SELECT `+sourceStateColumns+` FROM source_state WHERE source = ?;`, source))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.SourceState{}, ErrNotFound
	}
	return st, err
}

// GetSourceState returns ErrNotFound for a source that never ran.
func (d *DB) GetSourceState(ctx context.Context, source string) (domain.SourceState, error) {
	return getSourceState(ctx, d.Pool, source)
}

type execQueryer interface {
	rowQueryer
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertSourceState(ctx context.Context, q execQueryer, source string, p SourceStatePatch) (domain.SourceState, error) {
	st, err := getSourceState(ctx, q, source)
	if errors.Is(err, ErrNotFound) {
		st = domain.SourceState{Source: source}
	} else if err != nil {
		return st, err
	}
	p.apply(&st)
	st.UpdatedAt = time.Now().UTC()

	cursorJSON, err := json.Marshal(st.Cursor)
	if err != nil {
		return st, fmt.Errorf("source state %s: cursor: %w", source, err)
	}
	metricsJSON, err := json.Marshal(metaOrEmpty(st.LastMetrics))
	if err != nil {
		return st, fmt.Errorf("source state %s: metrics: %w", source, err)
	}

	_, err = q.ExecContext(ctx, `
INSERT INTO source_state(source, last_success_at, cooldown_until, consecutive_failures, cursor, last_metrics, updated_at)
VALUES(?,?,?,?,?,?,?)
ON CONFLICT(source) DO UPDATE SET
  last_success_at = excluded.last_success_at,
  cooldown_until = excluded.cooldown_until,
  consecutive_failures = excluded.consecutive_failures,
  cursor = excluded.cursor,
  last_metrics = excluded.last_metrics,
  updated_at = excluded.updated_at;
`, source, formatTimePtr(st.LastSuccessAt), formatTimePtr(st.CooldownUntil), st.ConsecutiveFailures,
		string(cursorJSON), string(metricsJSON), formatTime(st.UpdatedAt))
	if err != nil {
		return st, fmt.Errorf("upsert source state %s: %w", source, err)
	}
	return st, nil
}

// UpsertSourceState merges p into the stored state, creating it if needed.
func (d *DB) UpsertSourceState(ctx context.Context, source string, p SourceStatePatch) (domain.SourceState, error) {
	tx, err := d.Pool.BeginTx(ctx, nil)
	if err != nil {
		return domain.SourceState{}, err
	}
	defer func() { _ = tx.Rollback() }()

	st, err := upsertSourceState(ctx, tx, source, p)
	if err != nil {
		return st, err
	}
	return st, tx.Commit()
}

func (d *DB) ListSourceStates(ctx context.Context) ([]domain.SourceState, error) {
	rows, err := d.Pool.QueryContext(ctx, `SELECT `+sourceStateColumns+` FROM source_state ORDER BY source;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.SourceState{}
	for rows.Next() {
		st, err := scanSourceState(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}
