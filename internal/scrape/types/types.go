package types

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/linkmeAman/JHuntAutomator/internal/config"
	"github.com/linkmeAman/JHuntAutomator/internal/domain"
)

// SeenFunc reports whether a posting URL (title and company help build the
// hash) was already stored.
type SeenFunc func(ctx context.Context, p domain.RawPosting) bool

type FetchRequest struct {
	Cursor          domain.Cursor
	Since           time.Time
	Settings        config.Settings
	Seen            SeenFunc
	MaxPages        int
	MaxJobs         int
	StopOnSeenRatio float64
}

// IsSeen is safe to call with a nil Seen.
func (r FetchRequest) IsSeen(ctx context.Context, p domain.RawPosting) bool {
	if r.Seen == nil {
		return false
	}
	return r.Seen(ctx, p)
}

type FetchResult struct {
	Postings []domain.RawPosting
	Cursor   domain.Cursor
	Metrics  Metrics
}

// Adapter fetches postings for one source. Fetch may return partial
// postings and metrics together with an error.
type Adapter interface {
	ID() string
	Fetch(ctx context.Context, req FetchRequest) (FetchResult, error)
}

type Metrics struct {
	RequestedPages   int
	PagesFetched     int
	HTTPStatusCounts map[int]int
	Retries          int
	CacheHits        int
	SkippedOld       int
	Errors           []string
	StoppedEarly     bool
	Notes            []string
}

func (m *Metrics) CountStatus(code int) {
	if m.HTTPStatusCounts == nil {
		m.HTTPStatusCounts = map[int]int{}
	}
	m.HTTPStatusCounts[code]++
}

func (m *Metrics) AddError(format string, args ...any) {
	m.Errors = append(m.Errors, fmt.Sprintf(format, args...))
}

// Merge folds o into m; used by adapters that fan out over boards.
func (m *Metrics) Merge(o Metrics) {
	m.RequestedPages += o.RequestedPages
	m.PagesFetched += o.PagesFetched
	m.Retries += o.Retries
	m.CacheHits += o.CacheHits
	m.SkippedOld += o.SkippedOld
	m.Notes = append(m.Notes, o.Notes...)
	m.Errors = append(m.Errors, o.Errors...)
	m.StoppedEarly = m.StoppedEarly || o.StoppedEarly
	for code, n := range o.HTTPStatusCounts {
		if m.HTTPStatusCounts == nil {
			m.HTTPStatusCounts = map[int]int{}
		}
		m.HTTPStatusCounts[code] += n
	}
}

// Metadata flattens the metrics into the stored last_metrics shape.
func (m Metrics) Metadata() domain.Metadata {
	md := domain.Metadata{
		"requested_pages": domain.Int(m.RequestedPages),
		"pages_fetched":   domain.Int(m.PagesFetched),
		"retries":         domain.Int(m.Retries),
		"cache_hits":      domain.Int(m.CacheHits),
		"skipped_old":     domain.Int(m.SkippedOld),
		"stopped_early":   domain.Bool(m.StoppedEarly),
		"errors":          domain.Strings(m.Errors...),
	}
	if len(m.Notes) > 0 {
		md["notes"] = domain.Strings(m.Notes...)
	}
	codes := make([]int, 0, len(m.HTTPStatusCounts))
	for code := range m.HTTPStatusCounts {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		md[fmt.Sprintf("http_status_%d", code)] = domain.Int(m.HTTPStatusCounts[code])
	}
	return md
}

// Fresh reports whether a posting dated t is inside the fetch window.
// Undated postings are always fresh.
func (r FetchRequest) Fresh(t *time.Time) bool {
	return t == nil || r.Since.IsZero() || !t.Before(r.Since)
}
