package greenhouse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/linkmeAman/JHuntAutomator/internal/config"
	"github.com/linkmeAman/JHuntAutomator/internal/domain"
	"github.com/linkmeAman/JHuntAutomator/internal/scrape/types"
	"github.com/linkmeAman/JHuntAutomator/internal/scrape/util"
)

const DefaultAPIBase = "https://boards-api.greenhouse.io"

// Adapter reads the public Greenhouse job board API for every configured
// board.
type Adapter struct {
	client  *util.Client
	logger  arbor.ILogger
	APIBase string
}

func New(client *util.Client, logger arbor.ILogger) *Adapter {
	return &Adapter{client: client, logger: logger, APIBase: DefaultAPIBase}
}

func (a *Adapter) ID() string { return domain.SourceGreenhouse }

type boardResponse struct {
	Jobs []ghJob `json:"jobs"`
}

type ghJob struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	AbsoluteURL string `json:"absolute_url"`
	CompanyName string `json:"company_name"`
	Location    struct {
		Name string `json:"name"`
	} `json:"location"`
	Content   string `json:"content"`
	UpdatedAt string `json:"updated_at"`
}

// Fetch walks the boards in order. A failing board is recorded in metrics
// and skipped; the error is returned only when every board failed.
func (a *Adapter) Fetch(ctx context.Context, req types.FetchRequest) (types.FetchResult, error) {
	res := types.FetchResult{Cursor: req.Cursor.Clone()}
	if res.Cursor.HTTPCache == nil {
		res.Cursor.HTTPCache = map[string]domain.HTTPCacheEntry{}
	}
	boards := req.Settings.GreenhouseBoards
	if len(boards) == 0 {
		return res, util.BadConfig(errors.New("greenhouse enabled with no boards"))
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
	apiURL := fmt.Sprintf("%s/v1/boards/%s/jobs?content=true", strings.TrimRight(a.APIBase, "/"), slug)

	res.Metrics.RequestedPages++
	resp, err := a.client.Get(ctx, apiURL, res.Cursor.HTTPCache, &res.Metrics)
	if err != nil {
		return nil, err
	}
	res.Metrics.PagesFetched++
	if resp.NotModified {
		return nil, nil
	}

	var body boardResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return nil, fmt.Errorf("decode board %s: %w", slug, err)
	}

	company := b.Name
	out := make([]domain.RawPosting, 0, len(body.Jobs))
	for _, j := range body.Jobs {
		title := util.CleanText(j.Title)
		if title == "" || j.AbsoluteURL == "" {
			continue
		}
		posted := util.DatePtr(util.ParseDate(j.UpdatedAt))
		if !req.Fresh(posted) {
			res.Metrics.SkippedOld++
			continue
		}
		co := company
		if j.CompanyName != "" {
			co = j.CompanyName
		}
		loc := util.NormalizeLocation(j.Location.Name)
		out = append(out, domain.RawPosting{
			Title:       title,
			Company:     co,
			Location:    loc,
			Description: util.DescriptionMarkdown(j.Content, b.BoardURL),
			URL:         j.AbsoluteURL,
			Source:      domain.SourceGreenhouse,
			Remote:      util.IsRemote(loc, title),
			PostedAt:    posted,
			Meta: domain.Metadata{
				"board":         domain.String(slug),
				"greenhouse_id": domain.Int(int(j.ID)),
			},
		})
	}
	return out, nil
}
