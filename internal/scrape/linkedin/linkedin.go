// Package linkedin picks between alert email import and the opt-in
// whitelist crawl, according to linkedin_mode.
package linkedin

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"

	"github.com/linkmeAman/JHuntAutomator/internal/config"
	"github.com/linkmeAman/JHuntAutomator/internal/domain"
	"github.com/linkmeAman/JHuntAutomator/internal/scrape/email"
	"github.com/linkmeAman/JHuntAutomator/internal/scrape/types"
	"github.com/linkmeAman/JHuntAutomator/internal/scrape/util"
)

const (
	minCrawlDelay   = 3 * time.Second
	placeholderName = "LinkedIn Listing"
)

var reJobView = regexp.MustCompile(`/jobs/view/(\d+)`)

// Importer is satisfied by *email.Importer.
type Importer interface {
	Import(ctx context.Context, req types.FetchRequest, cfg config.LinkedInEmail) (types.FetchResult, error)
}

type Adapter struct {
	importer Importer
	client   *util.Client
	logger   arbor.ILogger

	// Sleep waits between crawl requests; tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
}

func New(importer Importer, client *util.Client, logger arbor.ILogger) *Adapter {
	return &Adapter{importer: importer, client: client, logger: logger, Sleep: sleepCtx}
}

// NewDefault wires the IMAP importer.
func NewDefault(client *util.Client, logger arbor.ILogger) *Adapter {
	return New(email.NewImporter(logger), client, logger)
}

func (a *Adapter) ID() string { return domain.SourceLinkedIn }

func (a *Adapter) Fetch(ctx context.Context, req types.FetchRequest) (types.FetchResult, error) {
	switch cfg := req.Settings.LinkedIn().(type) {
	case config.LinkedInEmail:
		return a.importer.Import(ctx, req, cfg)
	case config.LinkedInCrawl:
		return a.crawl(ctx, req, cfg)
	default:
		return types.FetchResult{Cursor: req.Cursor}, util.BadConfig(fmt.Errorf("unknown linkedin mode %q", req.Settings.LinkedInMode))
	}
}

// crawl fetches the whitelisted seed pages only. It reads /jobs/view/<id>
// links off each page and stores them as link-only postings; when a page has
// none, the seed itself is kept as a placeholder listing.
func (a *Adapter) crawl(ctx context.Context, req types.FetchRequest, cfg config.LinkedInCrawl) (types.FetchResult, error) {
	res := types.FetchResult{Cursor: req.Cursor.Clone()}
	if !cfg.Allowed {
		return res, util.BadConfig(errors.New("linkedin crawl not allowed; set linkedin_crawl.allowed after whitelisting"))
	}
	var seeds []string
	for _, s := range cfg.SeedURLs {
		if s = strings.TrimSpace(s); s != "" {
			seeds = append(seeds, s)
		}
	}
	if len(seeds) == 0 {
		return res, util.BadConfig(errors.New("linkedin crawl has no seed urls"))
	}
	maxPages := cfg.MaxPages
	if maxPages <= 0 {
		maxPages = 2
	}
	if len(seeds) > maxPages {
		seeds = seeds[:maxPages]
	}
	delay := time.Duration(cfg.MinDelaySec * float64(time.Second))
	if delay < minCrawlDelay {
		delay = minCrawlDelay
	}
	res.Metrics.RequestedPages = len(seeds)

	seen := map[string]bool{}
	for i, seed := range seeds {
		if i > 0 {
			jitter := time.Duration(200+rand.IntN(600)) * time.Millisecond
			if err := a.Sleep(ctx, delay+jitter); err != nil {
				return res, err
			}
		}
		resp, err := a.client.Get(ctx, seed, res.Cursor.HTTPCache, &res.Metrics)
		if err != nil {
			if ctx.Err() != nil || util.Classify(err) == util.KindBlocked {
				return res, err
			}
			res.Metrics.AddError("seed %s: %v", seed, err)
			a.logger.Warn().Str("source", a.ID()).Str("url", seed).Err(err).Msg("linkedin seed failed")
			continue
		}
		if resp.NotModified {
			continue
		}
		res.Metrics.PagesFetched++
		if crawlBlocked(resp.Body) {
			return res, util.Blocked(errors.New("blocked by linkedin"))
		}

		links, err := jobLinks(resp.Body, seed)
		if err != nil {
			res.Metrics.AddError("seed %s: %v", seed, err)
			continue
		}
		if len(links) == 0 {
			links = []jobLink{{URL: seed, Title: placeholderName}}
		}
		for _, l := range links {
			if seen[l.URL] {
				continue
			}
			seen[l.URL] = true
			md := domain.Metadata{"seed_url": domain.String(seed)}
			if l.ID != "" {
				md["linkedin_id"] = domain.String(l.ID)
			}
			res.Postings = append(res.Postings, domain.RawPosting{
				Title:       l.Title,
				Description: "LinkedIn search result",
				URL:         l.URL,
				Source:      domain.SourceLinkedIn,
				Meta:        md,
			})
		}
	}
	res.Postings = util.Cap(res.Postings, req.MaxJobs)
	return res, nil
}

// crawlBlocked is stricter than util.LooksBlocked: any "verify" prompt ends
// the crawl.
func crawlBlocked(body []byte) bool {
	l := bytes.ToLower(body)
	for _, tok := range []string{"captcha", "verify", "access denied"} {
		if bytes.Contains(l, []byte(tok)) {
			return true
		}
	}
	return false
}

type jobLink struct {
	ID    string
	URL   string
	Title string
}

func jobLinks(body []byte, base string) ([]jobLink, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	var out []jobLink
	idx := map[string]int{}
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		m := reJobView.FindStringSubmatch(util.AbsURL(base, href))
		if len(m) != 2 {
			return
		}
		title := util.CleanText(s.Text())
		if util.LooksLikeJunkTitle(title) {
			title = ""
		}
		if i, ok := idx[m[1]]; ok {
			if out[i].Title == placeholderName && title != "" {
				out[i].Title = title
			}
			return
		}
		if title == "" {
			title = placeholderName
		}
		idx[m[1]] = len(out)
		out = append(out, jobLink{
			ID:    m[1],
			URL:   "https://www.linkedin.com/jobs/view/" + m[1] + "/",
			Title: title,
		})
	})
	return out, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
