// Package htmlboard scrapes job cards from boards that only publish HTML.
package htmlboard

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"

	"github.com/linkmeAman/JHuntAutomator/internal/domain"
	"github.com/linkmeAman/JHuntAutomator/internal/scrape/types"
	"github.com/linkmeAman/JHuntAutomator/internal/scrape/util"
)

type Adapter struct {
	board  Board
	client *util.Client
	logger arbor.ILogger

	MaxQueries    int
	QueryVariants int
}

func New(b Board, c *util.Client, logger arbor.ILogger) *Adapter {
	return &Adapter{board: b, client: c, logger: logger, MaxQueries: 6, QueryVariants: 1}
}

func (a *Adapter) ID() string { return a.board.ID }

// SetBase points the adapter at another host.
func (a *Adapter) SetBase(base string) { a.board.Base = strings.TrimRight(base, "/") }

func (a *Adapter) pages(req types.FetchRequest) []string {
	if !a.board.Searchable {
		return []string{a.board.PageURL(a.board.Base, "")}
	}
	india := a.board.Regional && req.Settings.IndiaMode
	queries := util.GenerateQueries(req.Settings.Keywords, india, a.MaxQueries, a.QueryVariants)
	if len(queries) == 0 {
		queries = []string{"software"}
	}
	out := make([]string, 0, len(queries))
	for _, q := range queries {
		u := a.board.PageURL(a.board.Base, q)
		if a.board.ID == domain.SourceIndeed && len(req.Settings.Locations) > 0 {
			u += "&l=" + url.QueryEscape(req.Settings.Locations[0])
		}
		out = append(out, u)
	}
	return out
}

func (a *Adapter) Fetch(ctx context.Context, req types.FetchRequest) (types.FetchResult, error) {
	res := types.FetchResult{Cursor: req.Cursor.Clone()}
	pages := a.pages(req)
	if req.MaxPages <= 0 || req.MaxPages > len(pages) {
		req.MaxPages = len(pages)
	}
	pager := util.NewPager(req, &res.Metrics)

	seen := map[string]bool{}
	for i := 0; pager.More() && i < len(pages); i++ {
		resp, err := a.client.Get(ctx, pages[i], nil, &res.Metrics)
		if err != nil {
			if len(res.Postings) == 0 || util.Classify(err) == util.KindBlocked {
				return res, err
			}
			res.Metrics.AddError("%s: %v", pages[i], err)
			break
		}
		parsed, err := a.Parse(resp.Body, pages[i])
		if err != nil {
			return res, err
		}

		page := parsed[:0]
		for _, p := range parsed {
			if !seen[p.URL] {
				seen[p.URL] = true
				page = append(page, p)
			}
		}
		res.Postings = append(res.Postings, page...)
		if req.MaxJobs > 0 && len(res.Postings) >= req.MaxJobs {
			break
		}
		pager.Observe(ctx, page)
	}
	res.Postings = util.Cap(res.Postings, req.MaxJobs)
	return res, nil
}

func first(card *goquery.Selection, sels []string) *goquery.Selection {
	for _, s := range sels {
		if el := card.Find(s).First(); el.Length() > 0 {
			return el
		}
	}
	return nil
}

func text(card *goquery.Selection, sels []string) string {
	if el := first(card, sels); el != nil {
		return util.CleanText(el.Text())
	}
	return ""
}

// Parse extracts postings from one page. A bot wall is a blocked error.
func (a *Adapter) Parse(body []byte, pageURL string) ([]domain.RawPosting, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%s: parse html: %w", a.board.ID, err)
	}
	if util.LooksBlocked([]byte(doc.Text())) {
		return nil, util.Blocked(errors.New(a.board.ID + " appears blocked"))
	}

	sel := a.board.Selectors
	var out []domain.RawPosting
	doc.Find(sel.Card).Each(func(_ int, card *goquery.Selection) {
		title := text(card, sel.Title)
		link := first(card, sel.Link)
		if title == "" || link == nil {
			return
		}
		href, ok := link.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}
		loc := text(card, sel.Location)
		if loc == "" {
			loc = a.board.DefaultLocation
		}
		desc := text(card, sel.Description)
		if desc == "" {
			desc = title
		}
		out = append(out, domain.RawPosting{
			Title:       title,
			Company:     text(card, sel.Company),
			Location:    loc,
			Description: desc,
			URL:         util.AbsURL(pageURL, href),
			Source:      a.board.ID,
			Remote:      a.board.Remote || util.IsRemote(loc, title),
		})
	})
	return out, nil
}
