package workday

import (
	"context"
	"encoding/json"
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

var fixedNow = time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

func newAdapter() *Adapter {
	a := New(util.NewClient(5*time.Second, nil, 0), arbor.NewLogger())
	a.Now = func() time.Time { return fixedNow }
	return a
}

func TestParseSite(t *testing.T) {
	s, err := parseSite("https://acme.wd5.myworkdayjobs.com/en-us/External/")
	require.NoError(t, err)
	assert.Equal(t, "acme", s.Tenant)
	assert.Equal(t, "External", s.Name)
	assert.Equal(t, "en-US", s.Locale)
	assert.Equal(t, "https://acme.wd5.myworkdayjobs.com/wday/cxs/acme/External/jobs", s.jobsEndpoint())

	s, err = parseSite("https://acme.wd1.myworkdayjobs.com/Careers")
	require.NoError(t, err)
	assert.Equal(t, "Careers", s.Name)
	assert.Empty(t, s.Locale)

	_, err = parseSite("https://acme.wd1.myworkdayjobs.com/")
	assert.Error(t, err)
}

func TestParsePostedOn(t *testing.T) {
	day := time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)
	cases := map[string]time.Time{
		"Posted Today":        day,
		"Posted Yesterday":    day.AddDate(0, 0, -1),
		"Posted 3 Days Ago":   day.AddDate(0, 0, -3),
		"Posted 30+ Days Ago": day.AddDate(0, 0, -30),
	}
	for in, want := range cases {
		got := parsePostedOn(in, fixedNow)
		require.NotNil(t, got, in)
		assert.Equal(t, want, *got, in)
	}
	assert.Nil(t, parsePostedOn("", fixedNow))
	assert.Nil(t, parsePostedOn("Posted recently", fixedNow))
}

func TestFetchPagesWithSessionCookie(t *testing.T) {
	var (
		gotCSRF []string
		offsets []int
	)
	mux := http.NewServeMux()
	mux.HandleFunc("/en-US/External", func(w http.ResponseWriter, _ *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: csrfCookie, Value: "tok-1", Path: "/"})
		_, _ = w.Write([]byte(`<html><body>Workday careers</body></html>`))
	})
	mux.HandleFunc("/wday/cxs/127/External/jobs", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		gotCSRF = append(gotCSRF, r.Header.Get("X-Calypso-Csrf-Token"))
		var body searchRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		offsets = append(offsets, body.Offset)

		resp := searchResponse{Total: 21}
		if body.Offset == 0 {
			for i := 0; i < pageSize; i++ {
				resp.JobPostings = append(resp.JobPostings, wdPosting{
					Title:         "Engineer",
					ExternalPath:  "/job/Remote/Engineer_R" + string(rune('A'+i)),
					LocationsText: "Remote - US",
					PostedOn:      "Posted Today",
				})
			}
		} else {
			resp.JobPostings = []wdPosting{
				{Title: "Old Role", ExternalPath: "/job/Old", PostedOn: "Posted 30+ Days Ago"},
			}
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	s := config.Default()
	s.WorkdayBoards = []config.Board{{Name: "Acme", BoardURL: srv.URL + "/en-US/External"}}

	res, err := newAdapter().Fetch(context.Background(), types.FetchRequest{
		Settings: s,
		Since:    fixedNow.AddDate(0, 0, -14),
		MaxPages: 5,
	})
	require.NoError(t, err)
	assert.Equal(t, []int{0, pageSize}, offsets)
	assert.Equal(t, []string{"tok-1", "tok-1"}, gotCSRF)
	require.Len(t, res.Postings, pageSize)
	assert.Equal(t, 1, res.Metrics.SkippedOld)

	p := res.Postings[0]
	assert.Equal(t, srv.URL+"/en-US/External/job/Remote/Engineer_RA", p.URL)
	assert.Equal(t, "Acme", p.Company)
	assert.Equal(t, domain.SourceWorkday, p.Source)
	assert.True(t, p.Remote)
	assert.Equal(t, "External", p.Meta["site"].Str())
}

func TestCloudflareChallengeBlocksHost(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		_, _ = w.Write([]byte(`<html><title>Attention Required! | Cloudflare</title></html>`))
	}))
	defer srv.Close()

	s := config.Default()
	s.WorkdayBoards = []config.Board{
		{Name: "A", BoardURL: srv.URL + "/A"},
		{Name: "B", BoardURL: srv.URL + "/B"},
	}

	res, err := newAdapter().Fetch(context.Background(), types.FetchRequest{Settings: s})
	require.Error(t, err)
	assert.Equal(t, util.KindBlocked, util.Classify(err))
	assert.Equal(t, 1, hits, "second site on the same host is not requested")
	assert.Len(t, res.Metrics.Errors, 2)
}
