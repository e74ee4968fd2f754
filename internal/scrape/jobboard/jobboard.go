// Package jobboard holds adapters for remote job boards that publish a
// machine readable feed: remotive, workingnomads and remoteok (JSON) and
// weworkremotely (RSS).
package jobboard

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/linkmeAman/JHuntAutomator/internal/domain"
	"github.com/linkmeAman/JHuntAutomator/internal/scrape/types"
	"github.com/linkmeAman/JHuntAutomator/internal/scrape/util"
)

type parseFunc func(body []byte) ([]domain.RawPosting, error)

// Adapter fetches one or more feed URLs and parses each with the board's
// parser. Feeds that take a search term get one URL per generated query.
type Adapter struct {
	id      string
	feedURL string
	search  string
	parse   parseFunc
	client  *util.Client
	logger  arbor.ILogger

	QueryVariants int
	MaxQueries    int
}

func (a *Adapter) ID() string { return a.id }

// SetBase points the adapter at another host, keeping the feed path.
func (a *Adapter) SetBase(base string) {
	u, err := url.Parse(a.feedURL)
	if err != nil {
		return
	}
	a.feedURL = strings.TrimRight(base, "/") + u.RequestURI()
}

func (a *Adapter) urls(req types.FetchRequest) []string {
	if a.search == "" {
		return []string{a.feedURL}
	}
	queries := util.GenerateQueries(req.Settings.Keywords, false, a.MaxQueries, a.QueryVariants)
	if len(queries) == 0 {
		return []string{a.feedURL}
	}
	out := make([]string, 0, len(queries))
	for _, q := range queries {
		sep := "?"
		if strings.Contains(a.feedURL, "?") {
			sep = "&"
		}
		out = append(out, a.feedURL+sep+a.search+"="+url.QueryEscape(q))
	}
	return out
}

func (a *Adapter) Fetch(ctx context.Context, req types.FetchRequest) (types.FetchResult, error) {
	res := types.FetchResult{Cursor: req.Cursor.Clone()}
	if res.Cursor.HTTPCache == nil {
		res.Cursor.HTTPCache = map[string]domain.HTTPCacheEntry{}
	}

	urls := a.urls(req)
	if req.MaxPages <= 0 || req.MaxPages > len(urls) {
		req.MaxPages = len(urls)
	}
	pager := util.NewPager(req, &res.Metrics)

	seen := map[string]bool{}
	for i := 0; pager.More() && i < len(urls); i++ {
		resp, err := a.client.Get(ctx, urls[i], res.Cursor.HTTPCache, &res.Metrics)
		if err != nil {
			// later queries rarely succeed once the first is refused
			if len(res.Postings) == 0 {
				return res, err
			}
			res.Metrics.AddError("%s: %v", urls[i], err)
			break
		}
		if resp.NotModified {
			pager.Observe(ctx, nil)
			continue
		}

		parsed, err := a.parse(resp.Body)
		if err != nil {
			return res, fmt.Errorf("%s: parse %s: %w", a.id, urls[i], err)
		}

		page := make([]domain.RawPosting, 0, len(parsed))
		for _, p := range parsed {
			if seen[p.URL] {
				continue
			}
			seen[p.URL] = true
			if !req.Fresh(p.PostedAt) {
				res.Metrics.SkippedOld++
				continue
			}
			page = append(page, p)
		}
		res.Postings = append(res.Postings, page...)
		if req.MaxJobs > 0 && len(res.Postings) >= req.MaxJobs {
			break
		}
		pager.Observe(ctx, page)
	}
	res.Postings = util.Cap(res.Postings, req.MaxJobs)
	a.logger.Debug().Str("source", a.id).Int("postings", len(res.Postings)).Int("pages", res.Metrics.PagesFetched).Msg("feed fetched")
	return res, nil
}
