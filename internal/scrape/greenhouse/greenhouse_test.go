package greenhouse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/linkmeAman/JHuntAutomator/internal/config"
	"github.com/linkmeAman/JHuntAutomator/internal/domain"
	"github.com/linkmeAman/JHuntAutomator/internal/scrape/types"
	"github.com/linkmeAman/JHuntAutomator/internal/scrape/util"
)

const acmeBoard = `{"jobs":[
 {"id":11,"title":"Senior Go Engineer","absolute_url":"https://boards.greenhouse.io/acme/jobs/11",
  "location":{"name":"Remote - EU"},"content":"&lt;p&gt;Build &lt;b&gt;APIs&lt;/b&gt;&lt;/p&gt;","updated_at":"2026-10-10T12:00:00-04:00"},
 {"id":12,"title":"Office Manager","absolute_url":"https://boards.greenhouse.io/acme/jobs/12",
  "location":{"name":"Berlin"},"content":"","updated_at":"2025-01-01T00:00:00Z"},
 {"id":13,"title":"","absolute_url":"https://boards.greenhouse.io/acme/jobs/13"}
]}`

func newTestAdapter(t *testing.T, h http.HandlerFunc) *Adapter {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := util.NewClient(5*time.Second, nil, 0)
	a := New(c, arbor.NewLogger())
	a.APIBase = srv.URL
	return a
}

func request(boards ...config.Board) types.FetchRequest {
	s := config.Default()
	s.GreenhouseBoards = boards
	return types.FetchRequest{
		Settings: s,
		Since:    time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestFetchParsesBoard(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/boards/acme/jobs", r.URL.Path)
		require.Equal(t, "true", r.URL.Query().Get("content"))
		w.Header().Set("ETag", `"gh1"`)
		_, _ = w.Write([]byte(acmeBoard))
	})

	res, err := a.Fetch(context.Background(), request(config.BoardFromSlug("greenhouse", "acme")))
	require.NoError(t, err)
	require.Len(t, res.Postings, 1)

	p := res.Postings[0]
	assert.Equal(t, "Senior Go Engineer", p.Title)
	assert.Equal(t, "Acme", p.Company)
	assert.Equal(t, "Remote - EU", p.Location)
	assert.True(t, p.Remote)
	assert.Contains(t, p.Description, "**APIs**")
	require.NotNil(t, p.PostedAt)
	assert.Equal(t, 16, p.PostedAt.Hour())
	assert.Equal(t, "acme", p.Meta["board"].Str())

	assert.Equal(t, 1, res.Metrics.SkippedOld)
	assert.Equal(t, 1, res.Metrics.PagesFetched)
	assert.Len(t, res.Cursor.HTTPCache, 1)
}

func TestFetchBadBoardIsPartial(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/boards/missing/jobs" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(acmeBoard))
	})

	res, err := a.Fetch(context.Background(), request(
		config.BoardFromSlug("greenhouse", "missing"),
		config.BoardFromSlug("greenhouse", "acme"),
	))
	require.NoError(t, err)
	assert.Len(t, res.Postings, 1)
	require.Len(t, res.Metrics.Errors, 1)
	assert.Contains(t, res.Metrics.Errors[0], "board missing: bad_config")
}

func TestFetchAllBoardsFailed(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	_, err := a.Fetch(context.Background(), request(config.BoardFromSlug("greenhouse", "missing")))
	require.Error(t, err)
	assert.Equal(t, util.KindBadConfig, util.Classify(err))
}

func TestFetchNoBoards(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {})
	_, err := a.Fetch(context.Background(), request())
	assert.Equal(t, util.KindBadConfig, util.Classify(err))
}

func TestFetchNotModified(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"gh1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		_, _ = w.Write([]byte(acmeBoard))
	})
	req := request(config.BoardFromSlug("greenhouse", "acme"))
	req.Cursor = domain.Cursor{HTTPCache: map[string]domain.HTTPCacheEntry{
		a.APIBase + "/v1/boards/acme/jobs?content=true": {ETag: `"gh1"`},
	}}

	res, err := a.Fetch(context.Background(), req)
	require.NoError(t, err)
	assert.Empty(t, res.Postings)
	assert.Equal(t, 1, res.Metrics.CacheHits)
}
