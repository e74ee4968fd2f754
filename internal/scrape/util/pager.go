package util

import (
	"context"
	"fmt"

	"github.com/linkmeAman/JHuntAutomator/internal/domain"
	"github.com/linkmeAman/JHuntAutomator/internal/scrape/types"
)

// StopOnSeenMarker prefixes the metrics error recorded when paging stops
// because most of a page was already stored.
const StopOnSeenMarker = "stop_on_seen_ratio_triggered"

// Pager decides after each page whether an adapter should keep paging.
type Pager struct {
	req     types.FetchRequest
	metrics *types.Metrics
	pages   int
}

func NewPager(req types.FetchRequest, m *types.Metrics) *Pager {
	maxPages := req.MaxPages
	if maxPages <= 0 {
		maxPages = 1
	}
	req.MaxPages = maxPages
	m.RequestedPages += maxPages
	return &Pager{req: req, metrics: m}
}

// More reports whether another page may be requested.
func (p *Pager) More() bool { return p.pages < p.req.MaxPages && !p.metrics.StoppedEarly }

// Observe records a fetched page and reports whether paging should go on.
// An empty page always ends paging.
func (p *Pager) Observe(ctx context.Context, page []domain.RawPosting) bool {
	p.pages++
	p.metrics.PagesFetched++
	if len(page) == 0 {
		return false
	}

	if p.req.StopOnSeenRatio > 0 && p.req.Seen != nil {
		seen := 0
		for _, posting := range page {
			if p.req.IsSeen(ctx, posting) {
				seen++
			}
		}
		ratio := float64(seen) / float64(len(page))
		if ratio >= p.req.StopOnSeenRatio {
			p.metrics.StoppedEarly = true
			p.metrics.Errors = append(p.metrics.Errors, StopOnSeenNote(ratio))
			return false
		}
	}
	return p.pages < p.req.MaxPages
}

// Cap truncates postings to the request's MaxJobs, if any.
func Cap(postings []domain.RawPosting, maxJobs int) []domain.RawPosting {
	if maxJobs > 0 && len(postings) > maxJobs {
		return postings[:maxJobs]
	}
	return postings
}

// StopOnSeenNote renders the marker for a ratio, as stored in metrics.
func StopOnSeenNote(ratio float64) string {
	return fmt.Sprintf("%s:%.2f", StopOnSeenMarker, ratio)
}
