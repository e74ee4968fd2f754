package lever

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"

	"github.com/linkmeAman/JHuntAutomator/internal/config"
	"github.com/linkmeAman/JHuntAutomator/internal/domain"
	"github.com/linkmeAman/JHuntAutomator/internal/scrape/types"
	"github.com/linkmeAman/JHuntAutomator/internal/scrape/util"
)

const DefaultAPIBase = "https://api.lever.co"

// maxHydrate bounds how many posting pages are fetched per board to fill in
// a missing location.
const maxHydrate = 5

type Adapter struct {
	client  *util.Client
	logger  arbor.ILogger
	APIBase string
}

func New(client *util.Client, logger arbor.ILogger) *Adapter {
	return &Adapter{client: client, logger: logger, APIBase: DefaultAPIBase}
}

func (a *Adapter) ID() string { return domain.SourceLever }

type leverPosting struct {
	ID               string `json:"id"`
	Text             string `json:"text"`
	HostedURL        string `json:"hostedUrl"`
	CreatedAt        int64  `json:"createdAt"`
	WorkplaceType    string `json:"workplaceType"`
	DescriptionPlain string `json:"descriptionPlain"`
	Description      string `json:"description"`
	Categories       struct {
		Location   string `json:"location"`
		Team       string `json:"team"`
		Commitment string `json:"commitment"`
	} `json:"categories"`
	Lists []struct {
		Text    string `json:"text"`
		Content string `json:"content"`
	} `json:"lists"`
}

func (a *Adapter) Fetch(ctx context.Context, req types.FetchRequest) (types.FetchResult, error) {
	res := types.FetchResult{Cursor: req.Cursor.Clone()}
	if res.Cursor.HTTPCache == nil {
		res.Cursor.HTTPCache = map[string]domain.HTTPCacheEntry{}
	}
	boards := req.Settings.LeverBoards
	if len(boards) == 0 {
		return res, util.BadConfig(errors.New("lever enabled with no boards"))
	}

	var (
		failed  int
		lastErr error
	)
	for _, b := range boards {
		if req.MaxJobs > 0 && len(res.Postings) >= req.MaxJobs {
			break
		}
		postings, err := a.fetchBoard(ctx, req, b, &res)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			failed++
			lastErr = err
			res.Metrics.AddError("board %s: %v", b.Slug(), err)
			a.logger.Warn().Str("source", a.ID()).Str("board", b.Slug()).Err(err).Msg("board fetch failed")
			continue
		}
		res.Postings = append(res.Postings, postings...)
	}
	res.Postings = util.Cap(res.Postings, req.MaxJobs)

	if failed == len(boards) {
		return res, lastErr
	}
	return res, nil
}

func (a *Adapter) fetchBoard(ctx context.Context, req types.FetchRequest, b config.Board, res *types.FetchResult) ([]domain.RawPosting, error) {
	slug := b.Slug()
	if slug == "" {
		return nil, util.BadConfig(fmt.Errorf("board %q has no slug", b.Name))
	}
	apiURL := fmt.Sprintf("%s/v0/postings/%s?mode=json", strings.TrimRight(a.APIBase, "/"), slug)

	res.Metrics.RequestedPages++
	resp, err := a.client.Get(ctx, apiURL, res.Cursor.HTTPCache, &res.Metrics)
	if err != nil {
		return nil, err
	}
	res.Metrics.PagesFetched++
	if resp.NotModified {
		return nil, nil
	}

	var postings []leverPosting
	if err := json.Unmarshal(resp.Body, &postings); err != nil {
		return nil, fmt.Errorf("decode board %s: %w", slug, err)
	}

	out := make([]domain.RawPosting, 0, len(postings))
	hydrated := 0
	for _, p := range postings {
		title := util.CleanText(p.Text)
		if p.ID == "" || p.HostedURL == "" || title == "" {
			continue
		}
		var posted *time.Time
		if p.CreatedAt > 0 {
			t := time.UnixMilli(p.CreatedAt).UTC()
			posted = &t
		}
		if !req.Fresh(posted) {
			res.Metrics.SkippedOld++
			continue
		}

		loc := util.NormalizeLocation(p.Categories.Location)
		if loc == "" && hydrated < maxHydrate {
			hydrated++
			loc = a.hydrateLocation(ctx, p.HostedURL, &res.Metrics)
		}
		desc := p.DescriptionPlain
		if desc == "" {
			desc = util.DescriptionMarkdown(p.Description, p.HostedURL)
		}

		var reqs []string
		for _, l := range p.Lists {
			reqs = append(reqs, util.StripTags(l.Content))
		}

		out = append(out, domain.RawPosting{
			Title:        title,
			Company:      b.Name,
			Location:     loc,
			Description:  desc,
			Requirements: strings.Join(reqs, "\n"),
			URL:          p.HostedURL,
			Source:       domain.SourceLever,
			Remote:       strings.EqualFold(p.WorkplaceType, "remote") || util.IsRemote(loc, title),
			PostedAt:     posted,
			Meta: domain.Metadata{
				"board":      domain.String(slug),
				"lever_id":   domain.String(p.ID),
				"team":       domain.String(p.Categories.Team),
				"commitment": domain.String(p.Categories.Commitment),
			},
		})
	}
	return out, nil
}

// hydrateLocation reads the posting page when the API left the location
// empty. Failures just leave it empty.
func (a *Adapter) hydrateLocation(ctx context.Context, pageURL string, m *types.Metrics) string {
	resp, err := a.client.Get(ctx, pageURL, nil, m)
	if err != nil || resp.NotModified {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return ""
	}
	return util.FindLocation(doc.Selection)
}
