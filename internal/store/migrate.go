package store

import (
	"database/sql"
	"fmt"
)

func Migrate(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var v int
	if err := tx.QueryRow(`PRAGMA user_version;`).Scan(&v); err != nil {
		return err
	}

	if v >= 1 {
		return tx.Commit()
	}

	// ---- Schema v1: tables ----

	if _, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS jobs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  job_hash TEXT NOT NULL UNIQUE,
  title TEXT NOT NULL,
  company TEXT NOT NULL DEFAULT '',
  location TEXT NOT NULL DEFAULT '',
  description TEXT NOT NULL DEFAULT '',
  requirements TEXT NOT NULL DEFAULT '',
  url TEXT NOT NULL,
  source TEXT NOT NULL,
  remote INTEGER NOT NULL DEFAULT 0,
  source_meta TEXT NOT NULL DEFAULT '{}',
  post_date TEXT NOT NULL DEFAULT '',
  relevance_score REAL NOT NULL DEFAULT 0,
  keywords_matched TEXT NOT NULL DEFAULT '',
  applied INTEGER NOT NULL DEFAULT 0,
  notes TEXT NOT NULL DEFAULT '',
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL,
  last_seen_at TEXT NOT NULL
);
`); err != nil {
		return err
	}

	if _, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS crawl_runs (
  run_id TEXT PRIMARY KEY,
  started_at TEXT NOT NULL,
  finished_at TEXT,
  duration_ms INTEGER,
  sources_attempted TEXT NOT NULL DEFAULT '[]',
  sources_succeeded TEXT NOT NULL DEFAULT '[]',
  sources_failed TEXT NOT NULL DEFAULT '[]',
  fetched_count INTEGER NOT NULL DEFAULT 0,
  inserted_new_count INTEGER NOT NULL DEFAULT 0,
  errors_summary TEXT NOT NULL DEFAULT ''
);
`); err != nil {
		return err
	}

	if _, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS source_state (
  source TEXT PRIMARY KEY,
  last_success_at TEXT,
  cooldown_until TEXT,
  consecutive_failures INTEGER NOT NULL DEFAULT 0,
  cursor TEXT NOT NULL DEFAULT '{}',
  last_metrics TEXT NOT NULL DEFAULT '{}',
  updated_at TEXT NOT NULL
);
`); err != nil {
		return err
	}

	// ---- Schema v1: indexes ----

	if _, err := tx.Exec(`
CREATE INDEX IF NOT EXISTS idx_jobs_rank
ON jobs(relevance_score DESC, created_at DESC);
`); err != nil {
		return err
	}

	if _, err := tx.Exec(`
CREATE INDEX IF NOT EXISTS idx_jobs_source
ON jobs(source);
`); err != nil {
		return err
	}

	if _, err := tx.Exec(`
CREATE INDEX IF NOT EXISTS idx_crawl_runs_started
ON crawl_runs(started_at DESC);
`); err != nil {
		return err
	}

	// Older dev databases predate the run_trigger column.
	if !columnExists(tx, "crawl_runs", "run_trigger") {
		if _, err := tx.Exec(`ALTER TABLE crawl_runs ADD COLUMN run_trigger TEXT NOT NULL DEFAULT '';`); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(`PRAGMA user_version = 1;`); err != nil {
		return err
	}

	return tx.Commit()
}

func columnExists(q interface {
	QueryRow(query string, args ...any) *sql.Row
}, table, col string) bool {
	query := fmt.Sprintf(`
SELECT 1
FROM pragma_table_info('%s')
WHERE name = ?
LIMIT 1;
`, table)

	var one int
	err := q.QueryRow(query, col).Scan(&one)
	return err == nil
}
