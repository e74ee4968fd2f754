// Package smartrecruiters reads company postings from the public
// SmartRecruiters posting API.
package smartrecruiters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/sync/errgroup"

	"github.com/linkmeAman/JHuntAutomator/internal/config"
	"github.com/linkmeAman/JHuntAutomator/internal/domain"
	"github.com/linkmeAman/JHuntAutomator/internal/scrape/types"
	"github.com/linkmeAman/JHuntAutomator/internal/scrape/util"
)

const (
	DefaultAPIBase = "https://api.smartrecruiters.com"
	DefaultJobBase = "https://jobs.smartrecruiters.com"

	pageSize = 100
	workers  = 4
)

type Adapter struct {
	client  *util.Client
	logger  arbor.ILogger
	APIBase string
	JobBase string
}

func New(client *util.Client, logger arbor.ILogger) *Adapter {
	return &Adapter{client: client, logger: logger, APIBase: DefaultAPIBase, JobBase: DefaultJobBase}
}

func (a *Adapter) ID() string { return domain.SourceSmartRecruiters }

type postingsResponse struct {
	Content    []posting `json:"content"`
	TotalFound int       `json:"totalFound"`
	Offset     int       `json:"offset"`
	Limit      int       `json:"limit"`
}

type posting struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	ReleasedDate time.Time `json:"releasedDate"`
	Ref          string    `json:"ref"`
	Location     struct {
		City    string `json:"city"`
		Region  string `json:"region"`
		Country string `json:"country"`
		Remote  bool   `json:"remote"`
	} `json:"location"`
	Department struct {
		Label string `json:"label"`
	} `json:"department"`
	TypeOfEmployment struct {
		Label string `json:"label"`
	} `json:"typeOfEmployment"`
}

// Fetch pages every configured company in parallel. One failing company
// does not fail the source unless all of them fail.
func (a *Adapter) Fetch(ctx context.Context, req types.FetchRequest) (types.FetchResult, error) {
	res := types.FetchResult{Cursor: req.Cursor.Clone()}
	boards := req.Settings.SmartRecruitersBoards
	if len(boards) == 0 {
		return res, util.BadConfig(errors.New("smartrecruiters enabled with no boards"))
	}

	var (
		mu      sync.Mutex
		failed  int
		lastErr error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, b := range boards {
		g.Go(func() error {
			var m types.Metrics
			postings, err := a.fetchCompany(gctx, req, b, &m)

			mu.Lock()
			defer mu.Unlock()
			res.Metrics.Merge(m)
			res.Postings = append(res.Postings, postings...)
			if err != nil {
				failed++
				lastErr = err
				res.Metrics.AddError("company %s: %v", b.Slug(), err)
				a.logger.Warn().Str("source", a.ID()).Str("company", b.Slug()).Err(err).Msg("company fetch failed")
			}
			return nil
		})
	}
	_ = g.Wait()
	if ctx.Err() != nil {
		return res, ctx.Err()
	}
	res.Postings = util.Cap(res.Postings, req.MaxJobs)

	if failed == len(boards) {
		return res, lastErr
	}
	return res, nil
}

func (a *Adapter) fetchCompany(ctx context.Context, req types.FetchRequest, b config.Board, m *types.Metrics) ([]domain.RawPosting, error) {
	slug := b.Slug()
	if slug == "" {
		return nil, util.BadConfig(fmt.Errorf("board %q has no company id", b.Name))
	}
	base := fmt.Sprintf("%s/v1/companies/%s/postings", strings.TrimRight(a.APIBase, "/"), url.PathEscape(slug))

	var out []domain.RawPosting
	pager := util.NewPager(req, m)
	for offset := 0; pager.More(); offset += pageSize {
		q := url.Values{}
		q.Set("limit", fmt.Sprint(pageSize))
		q.Set("offset", fmt.Sprint(offset))

		resp, err := a.client.Get(ctx, base+"?"+q.Encode(), nil, m)
		if err != nil {
			return out, err
		}
		var pr postingsResponse
		if err := json.Unmarshal(resp.Body, &pr); err != nil {
			return out, fmt.Errorf("decode company %s: %w", slug, err)
		}

		page := a.toPostings(req, b, slug, pr.Content, m)
		out = append(out, page...)
		if !pager.Observe(ctx, page) {
			break
		}
		if len(pr.Content) < pageSize || (pr.TotalFound > 0 && offset+pageSize >= pr.TotalFound) {
			break
		}
	}
	return out, nil
}

func (a *Adapter) toPostings(req types.FetchRequest, b config.Board, slug string, in []posting, m *types.Metrics) []domain.RawPosting {
	out := make([]domain.RawPosting, 0, len(in))
	for _, p := range in {
		title := util.CleanText(p.Name)
		if p.ID == "" || title == "" {
			continue
		}
		var posted *time.Time
		if !p.ReleasedDate.IsZero() {
			t := p.ReleasedDate.UTC()
			posted = &t
		}
		if !req.Fresh(posted) {
			m.SkippedOld++
			continue
		}

		loc := util.NormalizeLocation(joinNonEmpty(", ", p.Location.City, p.Location.Region, strings.ToUpper(p.Location.Country)))
		out = append(out, domain.RawPosting{
			Title:    title,
			Company:  b.Name,
			Location: loc,
			URL:      fmt.Sprintf("%s/%s/%s", strings.TrimRight(a.JobBase, "/"), url.PathEscape(slug), url.PathEscape(p.ID)),
			Source:   domain.SourceSmartRecruiters,
			Remote:   p.Location.Remote || util.IsRemote(loc, title),
			PostedAt: posted,
			Meta: domain.Metadata{
				"board":       domain.String(slug),
				"sr_id":       domain.String(p.ID),
				"department":  domain.String(p.Department.Label),
				"employment":  domain.String(p.TypeOfEmployment.Label),
				"posting_api": domain.String(p.Ref),
			},
		})
	}
	return out
}

func joinNonEmpty(sep string, parts ...string) string {
	var keep []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			keep = append(keep, p)
		}
	}
	return strings.Join(keep, sep)
}
