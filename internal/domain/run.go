package domain

import (
	"fmt"
	"time"
)

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusFinished  RunStatus = "finished"
	RunStatusAbandoned RunStatus = "abandoned"
)

// AbandonAfter is how long an unfinished run may stay open before readers
// treat it as abandoned.
const AbandonAfter = time.Hour

type SourceFailure struct {
	Source string `json:"source"`
	Error  string `json:"error"`
}

type CrawlRun struct {
	RunID            string          `json:"run_id"`
	Trigger          string          `json:"trigger"`
	StartedAt        time.Time       `json:"started_at"`
	FinishedAt       *time.Time      `json:"finished_at"`
	DurationMS       *int64          `json:"duration_ms"`
	SourcesAttempted []string        `json:"sources_attempted"`
	SourcesSucceeded []string        `json:"sources_succeeded"`
	SourcesFailed    []SourceFailure `json:"sources_failed"`
	FetchedCount     int             `json:"fetched_count"`
	InsertedNewCount int             `json:"inserted_new_count"`
	ErrorsSummary    string          `json:"errors_summary,omitempty"`
	Status           RunStatus       `json:"status"`
}

// DeriveStatus sets Status from the finish timestamp and the age of the run.
func (r *CrawlRun) DeriveStatus(now time.Time) {
	switch {
	case r.FinishedAt != nil:
		r.Status = RunStatusFinished
	case now.Sub(r.StartedAt) > AbandonAfter:
		r.Status = RunStatusAbandoned
	default:
		r.Status = RunStatusRunning
	}
}

// Validate checks the bookkeeping invariants of a run record.
func (r CrawlRun) Validate() error {
	attempted := make(map[string]bool, len(r.SourcesAttempted))
	for _, s := range r.SourcesAttempted {
		attempted[s] = true
	}
	seen := map[string]bool{}
	for _, s := range r.SourcesSucceeded {
		if !attempted[s] {
			return fmt.Errorf("run %s: succeeded source %q was not attempted", r.RunID, s)
		}
		seen[s] = true
	}
	for _, f := range r.SourcesFailed {
		if !attempted[f.Source] {
			return fmt.Errorf("run %s: failed source %q was not attempted", r.RunID, f.Source)
		}
		if seen[f.Source] {
			return fmt.Errorf("run %s: source %q both succeeded and failed", r.RunID, f.Source)
		}
		seen[f.Source] = true
	}
	if r.FinishedAt != nil && len(seen) != len(attempted) {
		return fmt.Errorf("run %s: %d of %d attempted sources have no outcome", r.RunID, len(attempted)-len(seen), len(attempted))
	}
	if r.FetchedCount < r.InsertedNewCount {
		return fmt.Errorf("run %s: inserted %d exceeds fetched %d", r.RunID, r.InsertedNewCount, r.FetchedCount)
	}
	return nil
}

// CrawlResult is the response to an on-demand rescan.
type CrawlResult struct {
	Status    string `json:"status"`
	JobsFound int    `json:"jobs_found"`
	JobsAdded int    `json:"jobs_added"`
	Message   string `json:"message"`
	RunID     string `json:"run_id,omitempty"`
}

func ResultFromRun(r CrawlRun) CrawlResult {
	return CrawlResult{
		Status:    "success",
		JobsFound: r.FetchedCount,
		JobsAdded: r.InsertedNewCount,
		Message:   fmt.Sprintf("Found %d jobs, added %d new jobs", r.FetchedCount, r.InsertedNewCount),
		RunID:     r.RunID,
	}
}
