// Package workday reads postings from Workday career sites through the
// JSON endpoint their own search page calls.
package workday

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/linkmeAman/JHuntAutomator/internal/config"
	"github.com/linkmeAman/JHuntAutomator/internal/domain"
	"github.com/linkmeAman/JHuntAutomator/internal/scrape/types"
	"github.com/linkmeAman/JHuntAutomator/internal/scrape/util"
)

// pageSize is the largest page Workday tenants accept.
const pageSize = 20

const csrfCookie = "CALYPSO_CSRF_TOKEN"

type Adapter struct {
	client *util.Client
	logger arbor.ILogger
	Now    func() time.Time
}

func New(client *util.Client, logger arbor.ILogger) *Adapter {
	return &Adapter{client: client, logger: logger, Now: time.Now}
}

func (a *Adapter) ID() string { return domain.SourceWorkday }

type searchRequest struct {
	AppliedFacets map[string]any `json:"appliedFacets"`
	Limit         int            `json:"limit"`
	Offset        int            `json:"offset"`
	SearchText    string         `json:"searchText"`
}

type searchResponse struct {
	Total       int         `json:"total"`
	JobPostings []wdPosting `json:"jobPostings"`
}

type wdPosting struct {
	Title         string   `json:"title"`
	ExternalPath  string   `json:"externalPath"`
	ExternalURL   string   `json:"externalUrl"`
	LocationsText string   `json:"locationsText"`
	Location      string   `json:"location"`
	PostedOn      string   `json:"postedOn"`
	PostedOnDate  string   `json:"postedOnDate"`
	BulletFields  []string `json:"bulletFields"`
}

// site is a parsed careers site URL such as
// https://acme.wd5.myworkdayjobs.com/en-US/External.
type site struct {
	Scheme string
	Host   string
	Tenant string
	Name   string
	Locale string
	Raw    string
}

func (a *Adapter) Fetch(ctx context.Context, req types.FetchRequest) (types.FetchResult, error) {
	res := types.FetchResult{Cursor: req.Cursor.Clone()}
	boards := req.Settings.WorkdayBoards
	if len(boards) == 0 {
		return res, util.BadConfig(errors.New("workday enabled with no boards"))
	}

	blockedHost := map[string]bool{}
	var (
		failed  int
		lastErr error
	)
	for _, b := range boards {
		if req.MaxJobs > 0 && len(res.Postings) >= req.MaxJobs {
			break
		}
		postings, err := a.fetchSite(ctx, req, b, blockedHost, &res.Metrics)
		res.Postings = append(res.Postings, postings...)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			failed++
			lastErr = err
			res.Metrics.AddError("site %s: %v", b.BoardURL, err)
			a.logger.Warn().Str("source", a.ID()).Str("site", b.BoardURL).Err(err).Msg("site fetch failed")
		}
	}
	res.Postings = util.Cap(res.Postings, req.MaxJobs)

	if failed == len(boards) {
		return res, lastErr
	}
	return res, nil
}

func (a *Adapter) fetchSite(ctx context.Context, req types.FetchRequest, b config.Board, blockedHost map[string]bool, m *types.Metrics) ([]domain.RawPosting, error) {
	s, err := parseSite(b.BoardURL)
	if err != nil {
		return nil, util.BadConfig(err)
	}
	// Sites on one host share a Cloudflare verdict.
	if blockedHost[s.Host] {
		return nil, util.Blocked(fmt.Errorf("host %s blocked earlier in this run", s.Host))
	}

	sc := a.session()
	csrf, err := bootstrap(ctx, sc, s, m)
	if err != nil {
		if util.Classify(err) == util.KindBlocked {
			blockedHost[s.Host] = true
		}
		return nil, err
	}

	headers := []string{
		"Origin", s.Scheme + "://" + s.Host,
		"Referer", s.Raw,
		"Accept-Language", firstNonEmpty(s.Locale, "en-US"),
	}
	if csrf != "" {
		headers = append(headers, "X-Calypso-Csrf-Token", csrf)
	}

	var out []domain.RawPosting
	pager := util.NewPager(req, m)
	for offset := 0; pager.More(); offset += pageSize {
		body := searchRequest{AppliedFacets: map[string]any{}, Limit: pageSize, Offset: offset}
		resp, err := sc.PostJSON(ctx, s.jobsEndpoint(), body, m, headers...)
		if err != nil {
			if util.Classify(err) == util.KindBlocked {
				blockedHost[s.Host] = true
			}
			return out, err
		}
		var sr searchResponse
		if err := json.Unmarshal(resp.Body, &sr); err != nil {
			return out, fmt.Errorf("decode %s: %w", s.Raw, err)
		}

		page := a.toPostings(req, b, s, sr.JobPostings, m)
		out = append(out, page...)
		if !pager.Observe(ctx, page) {
			break
		}
		if len(sr.JobPostings) < pageSize || (sr.Total > 0 && offset+pageSize >= sr.Total) {
			break
		}
	}
	return out, nil
}

// session copies the shared client with its own cookie jar so the
// Workday session cookies of one site do not leak into another.
func (a *Adapter) session() *util.Client {
	sc := *a.client
	jar, _ := cookiejar.New(nil)
	hc := &http.Client{Jar: jar}
	if a.client.HTTP != nil {
		hc.Timeout = a.client.HTTP.Timeout
		hc.Transport = a.client.HTTP.Transport
	}
	sc.HTTP = hc
	return &sc
}

// bootstrap loads the careers page once so the tenant sets its session
// cookies, and returns the CSRF token when one was issued.
func bootstrap(ctx context.Context, sc *util.Client, s site, m *types.Metrics) (string, error) {
	resp, err := sc.Get(ctx, s.Raw, nil, m, "Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	if err != nil {
		return "", err
	}
	if looksLikeCloudflare(resp) {
		return "", util.Blocked(fmt.Errorf("cloudflare challenge on %s", s.Host))
	}
	u, _ := url.Parse(s.Raw)
	for _, c := range sc.HTTP.Jar.Cookies(u) {
		if c.Name == csrfCookie && c.Value != "" {
			return c.Value, nil
		}
	}
	return "", nil
}

func (a *Adapter) toPostings(req types.FetchRequest, b config.Board, s site, in []wdPosting, m *types.Metrics) []domain.RawPosting {
	now := a.Now()
	out := make([]domain.RawPosting, 0, len(in))
	for _, p := range in {
		title := util.CleanText(p.Title)
		jobURL := s.absoluteJobURL(p)
		if title == "" || jobURL == "" {
			continue
		}
		posted := parsePostedDate(p.PostedOnDate)
		if posted == nil {
			posted = parsePostedOn(p.PostedOn, now)
		}
		if !req.Fresh(posted) {
			m.SkippedOld++
			continue
		}

		loc := util.NormalizeLocation(firstNonEmpty(p.LocationsText, p.Location))
		reqID := ""
		if len(p.BulletFields) > 0 {
			reqID = strings.TrimSpace(p.BulletFields[0])
		}
		out = append(out, domain.RawPosting{
			Title:    title,
			Company:  b.Name,
			Location: loc,
			URL:      jobURL,
			Source:   domain.SourceWorkday,
			Remote:   util.IsRemote(loc, title),
			PostedAt: posted,
			Meta: domain.Metadata{
				"tenant":    domain.String(s.Tenant),
				"site":      domain.String(s.Name),
				"req_id":    domain.String(reqID),
				"work_mode": domain.String(util.InferWorkModeFromText(loc, title, "")),
			},
		})
	}
	return out
}

func parseSite(raw string) (site, error) {
	raw = strings.TrimRight(strings.TrimSpace(raw), "/")
	if raw == "" {
		return site{}, errors.New("empty site url")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return site{}, err
	}
	if u.Scheme == "" {
		u.Scheme = "https"
	}
	if u.Host == "" {
		return site{}, fmt.Errorf("missing host in %q", raw)
	}
	tenant, _, _ := strings.Cut(u.Hostname(), ".")

	segs := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segs) == 0 || segs[0] == "" {
		return site{}, fmt.Errorf("no site name in %q", raw)
	}
	locale := ""
	if len(segs) >= 2 && looksLikeLocale(segs[0]) {
		locale = normalizeLocale(segs[0])
		segs = segs[1:]
	}
	u.RawQuery, u.Fragment = "", ""
	return site{
		Scheme: u.Scheme,
		Host:   u.Host,
		Tenant: tenant,
		Name:   segs[len(segs)-1],
		Locale: locale,
		Raw:    u.String(),
	}, nil
}

func looksLikeLocale(s string) bool {
	return len(s) == 5 && s[2] == '-' && isAlpha(s[:2]) && isAlpha(s[3:])
}

func normalizeLocale(s string) string {
	return strings.ToLower(s[:2]) + "-" + strings.ToUpper(s[3:])
}

func isAlpha(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i] | 0x20
		if c < 'a' || c > 'z' {
			return false
		}
	}
	return true
}

func (s site) jobsEndpoint() string {
	return fmt.Sprintf("%s://%s/wday/cxs/%s/%s/jobs", s.Scheme, s.Host, s.Tenant, s.Name)
}

func (s site) absoluteJobURL(p wdPosting) string {
	if v := strings.TrimSpace(p.ExternalURL); v != "" {
		return v
	}
	path := strings.TrimSpace(p.ExternalPath)
	switch {
	case path == "":
		return ""
	case strings.HasPrefix(path, "http://"), strings.HasPrefix(path, "https://"):
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	// externalPath is relative to the site, not the host
	return s.Raw + path
}

func parsePostedDate(v string) *time.Time {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return util.DatePtr(t.UTC())
	}
	if t, err := time.Parse("2006-01-02", v); err == nil {
		return &t
	}
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		t := time.Unix(n, 0)
		if n >= 1_000_000_000_000 {
			t = time.UnixMilli(n)
		}
		return util.DatePtr(t.UTC())
	}
	return nil
}

// parsePostedOn reads the relative labels the search page shows, such as
// "Posted Today", "Posted Yesterday" and "Posted 3 Days Ago". "30+ Days"
// counts as 30.
func parsePostedOn(v string, now time.Time) *time.Time {
	l := strings.ToLower(strings.TrimSpace(v))
	if l == "" {
		return nil
	}
	day := now.UTC().Truncate(24 * time.Hour)
	switch {
	case strings.Contains(l, "today"):
		return &day
	case strings.Contains(l, "yesterday"):
		t := day.AddDate(0, 0, -1)
		return &t
	}
	for _, f := range strings.Fields(l) {
		n, err := strconv.Atoi(strings.TrimSuffix(f, "+"))
		if err == nil && strings.Contains(l, "day") {
			t := day.AddDate(0, 0, -n)
			return &t
		}
	}
	return nil
}

func looksLikeCloudflare(resp *util.Response) bool {
	server := strings.ToLower(resp.Header.Get("Server"))
	if strings.Contains(server, "cloudflare") && resp.Header.Get("CF-RAY") != "" && !isJSONOrCareers(resp.Body) {
		return true
	}
	preview := resp.Body
	if len(preview) > 4096 {
		preview = preview[:4096]
	}
	low := strings.ToLower(string(preview))
	return strings.Contains(low, "/cdn-cgi/challenge") ||
		(strings.Contains(low, "cloudflare") && strings.Contains(low, "checking your browser")) ||
		(strings.Contains(low, "attention required") && strings.Contains(low, "cloudflare"))
}

func isJSONOrCareers(body []byte) bool {
	l := strings.ToLower(string(body))
	return strings.HasPrefix(strings.TrimSpace(l), "{") || strings.Contains(l, "workday")
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
