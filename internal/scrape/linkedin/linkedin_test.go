package linkedin

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

type stubImporter struct {
	called bool
	cfg    config.LinkedInEmail
}

func (s *stubImporter) Import(_ context.Context, req types.FetchRequest, cfg config.LinkedInEmail) (types.FetchResult, error) {
	s.called = true
	s.cfg = cfg
	return types.FetchResult{Postings: []domain.RawPosting{{Title: "From email", URL: "https://www.linkedin.com/jobs/view/1/"}}}, nil
}

func newTestAdapter(imp Importer) (*Adapter, *[]time.Duration) {
	a := New(imp, util.NewClient(5*time.Second, nil, 0), arbor.NewLogger())
	var slept []time.Duration
	a.Sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return a, &slept
}

func TestEmailModeDelegatesToImporter(t *testing.T) {
	imp := &stubImporter{}
	a, _ := newTestAdapter(imp)

	s := config.Default()
	s.LinkedInMode = config.LinkedInModeEmail

	res, err := a.Fetch(context.Background(), types.FetchRequest{Settings: s})
	require.NoError(t, err)
	assert.True(t, imp.called)
	assert.Equal(t, "imap.gmail.com", imp.cfg.IMAPHost)
	require.Len(t, res.Postings, 1)
}

func TestCrawlRefusesWhenNotAllowed(t *testing.T) {
	imp := &stubImporter{}
	a, _ := newTestAdapter(imp)

	s := config.Default()
	s.LinkedInMode = config.LinkedInModeWhitelistCrawl
	s.LinkedInCrawl = &config.LinkedInCrawl{Allowed: false, SeedURLs: []string{"https://example.com"}}

	res, err := a.Fetch(context.Background(), types.FetchRequest{Settings: s})
	require.Error(t, err)
	assert.Equal(t, util.KindBadConfig, util.Classify(err))
	assert.Empty(t, res.Postings)
	assert.False(t, imp.called)
}

func TestCrawlCollectsJobLinks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/search/a":
			_, _ = w.Write([]byte(`<html><body>
				<a href="/jobs/view/101/?refId=x">Go Engineer</a>
				<a href="https://www.linkedin.com/jobs/view/101/">View job</a>
				<a href="/jobs/view/202/"></a>
				<a href="/company/acme">Acme</a>
			</body></html>`))
		case "/search/b":
			_, _ = w.Write([]byte(`<html><body>No results</body></html>`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	a, slept := newTestAdapter(&stubImporter{})
	s := config.Default()
	s.LinkedInMode = config.LinkedInModeWhitelistCrawl
	s.LinkedInCrawl = &config.LinkedInCrawl{
		Allowed:     true,
		SeedURLs:    []string{srv.URL + "/search/a", srv.URL + "/search/b", srv.URL + "/search/c"},
		MaxPages:    2,
		MinDelaySec: 1,
	}

	res, err := a.Fetch(context.Background(), types.FetchRequest{Settings: s})
	require.NoError(t, err)
	require.Len(t, res.Postings, 3)

	assert.Equal(t, "Go Engineer", res.Postings[0].Title)
	assert.Equal(t, "https://www.linkedin.com/jobs/view/101/", res.Postings[0].URL)
	assert.Equal(t, "LinkedIn Listing", res.Postings[1].Title)
	assert.Equal(t, "https://www.linkedin.com/jobs/view/202/", res.Postings[1].URL)
	assert.Equal(t, srv.URL+"/search/b", res.Postings[2].URL)

	require.Len(t, *slept, 1)
	assert.GreaterOrEqual(t, (*slept)[0], minCrawlDelay)
	assert.Equal(t, 2, res.Metrics.RequestedPages)
	assert.Equal(t, 2, res.Metrics.PagesFetched)
}

func TestCrawlCaptchaIsBlocked(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><body>Please verify you are a human</body></html>`))
	}))
	defer srv.Close()

	a, _ := newTestAdapter(&stubImporter{})
	s := config.Default()
	s.LinkedInMode = config.LinkedInModeWhitelistCrawl
	s.LinkedInCrawl = &config.LinkedInCrawl{Allowed: true, SeedURLs: []string{srv.URL}}

	_, err := a.Fetch(context.Background(), types.FetchRequest{Settings: s})
	require.Error(t, err)
	assert.Equal(t, util.KindBlocked, util.Classify(err))
}
