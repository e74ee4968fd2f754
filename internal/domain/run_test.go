package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCrawlRunValidate(t *testing.T) {
	now := time.Now()
	base := CrawlRun{
		RunID:            "r1",
		SourcesAttempted: []string{"remotive", "remoteok"},
		SourcesSucceeded: []string{"remotive"},
		SourcesFailed:    []SourceFailure{{Source: "remoteok", Error: "timeout"}},
		FetchedCount:     10,
		InsertedNewCount: 4,
		FinishedAt:       &now,
	}
	require.NoError(t, base.Validate())

	t.Run("overlap", func(t *testing.T) {
		r := base
		r.SourcesSucceeded = []string{"remotive", "remoteok"}
		assert.Error(t, r.Validate())
	})
	t.Run("missing outcome", func(t *testing.T) {
		r := base
		r.SourcesFailed = nil
		assert.Error(t, r.Validate())
	})
	t.Run("inserted exceeds fetched", func(t *testing.T) {
		r := base
		r.InsertedNewCount = 11
		assert.Error(t, r.Validate())
	})
	t.Run("unfinished run may be partial", func(t *testing.T) {
		r := base
		r.FinishedAt = nil
		r.SourcesFailed = nil
		assert.NoError(t, r.Validate())
	})
}

func TestCrawlRunDeriveStatus(t *testing.T) {
	now := time.Now()
	r := CrawlRun{StartedAt: now.Add(-2 * time.Hour)}
	r.DeriveStatus(now)
	assert.Equal(t, RunStatusAbandoned, r.Status)

	r.StartedAt = now.Add(-time.Minute)
	r.DeriveStatus(now)
	assert.Equal(t, RunStatusRunning, r.Status)

	r.FinishedAt = &now
	r.DeriveStatus(now)
	assert.Equal(t, RunStatusFinished, r.Status)
}

func TestResultFromRunMessage(t *testing.T) {
	res := ResultFromRun(CrawlRun{RunID: "x", FetchedCount: 12, InsertedNewCount: 3})
	assert.Equal(t, "Found 12 jobs, added 3 new jobs", res.Message)
	assert.Equal(t, "success", res.Status)
}

func TestCursorAdvance(t *testing.T) {
	var c Cursor
	t1 := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	t0 := t1.Add(-time.Hour)
	c.Advance(&t1)
	c.Advance(&t0)
	c.Advance(nil)
	require.NotNil(t, c.LastMaxPostDateSeen)
	assert.True(t, c.LastMaxPostDateSeen.Equal(t1))
}
