package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkmeAman/JHuntAutomator/internal/domain"
)

func TestNormalizeAndValidateDefaultsAreValid(t *testing.T) {
	_, vr := NormalizeAndValidate(Default())
	require.True(t, vr.OK(), "errors: %v", vr.Errors)
}

func TestNormalizeAndValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Settings)
		want   string
	}{
		{
			name: "malformed board url",
			mutate: func(s *Settings) {
				s.GreenhouseBoards = []Board{{Name: "Broken", BoardURL: "htp//broken"}}
			},
			want: "greenhouse_boards[0].board_url",
		},
		{
			name: "non http board url",
			mutate: func(s *Settings) {
				s.GreenhouseBoards = []Board{{Name: "Ftp", BoardURL: "ftp://example.com/jobs"}}
			},
			want: "malformed board URL",
		},
		{
			name: "board name that is not a slug and no url",
			mutate: func(s *Settings) {
				s.GreenhouseBoards = []Board{{Name: "Data Dog Inc"}}
			},
			want: "board_url",
		},
		{
			name: "linkedin crawl without consent",
			mutate: func(s *Settings) {
				s.LinkedInMode = LinkedInModeWhitelistCrawl
				s.LinkedInCrawl.SeedURLs = []string{"https://www.linkedin.com/jobs/search?keywords=go"}
			},
			want: "linkedin_crawl.allowed must be true",
		},
		{
			name: "linkedin crawl allowed without seeds",
			mutate: func(s *Settings) {
				s.LinkedInMode = LinkedInModeWhitelistCrawl
				s.LinkedInCrawl.Allowed = true
			},
			want: "seed_urls",
		},
		{
			name:   "unknown linkedin mode",
			mutate: func(s *Settings) { s.LinkedInMode = "scrape" },
			want:   "linkedin_mode",
		},
		{
			name:   "hour out of range",
			mutate: func(s *Settings) { s.CrawlHour = 24 },
			want:   "crawl_hour",
		},
		{
			name:   "minute out of range",
			mutate: func(s *Settings) { s.CrawlMinute = -1 },
			want:   "crawl_minute",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Default()
			tt.mutate(&s)
			_, vr := NormalizeAndValidate(s)
			require.False(t, vr.OK())
			assert.Contains(t, joined(vr.Errors), tt.want)
			assert.ErrorIs(t, vr.Err(), ErrInvalidSettings)
		})
	}
}

func TestNormalizeAndValidateAllowsConsentedCrawl(t *testing.T) {
	s := Default()
	s.LinkedInMode = LinkedInModeWhitelistCrawl
	s.LinkedInCrawl.Allowed = true
	s.LinkedInCrawl.SeedURLs = []string{"https://www.linkedin.com/jobs/search?keywords=go", " "}

	out, vr := NormalizeAndValidate(s)
	require.True(t, vr.OK(), "errors: %v", vr.Errors)
	assert.Len(t, out.LinkedInCrawl.SeedURLs, 1)

	crawl, ok := out.LinkedIn().(LinkedInCrawl)
	require.True(t, ok)
	assert.True(t, crawl.Allowed)
}

func TestNormalizeAndValidateTrimsAndWarns(t *testing.T) {
	s := Default()
	s.Keywords = []string{" Python ", "python", "", "Go"}
	s.Sources = map[string]bool{"Remotive ": true, "myspace": true}

	out, vr := NormalizeAndValidate(s)
	require.True(t, vr.OK())
	assert.Equal(t, []string{"Python", "Go"}, out.Keywords)
	assert.True(t, out.SourceEnabled(domain.SourceRemotive))
	assert.Contains(t, joined(vr.Warnings), `unknown source "myspace"`)
}

func TestNormalizeAndValidateDoesNotMutateInput(t *testing.T) {
	s := Default()
	s.IndiaMode = true
	before := len(s.Locations)
	_, _ = NormalizeAndValidate(s)
	assert.Len(t, s.Locations, before)
	assert.False(t, s.Sources[domain.SourceNaukri])
}

func joined(xs []string) string {
	out := ""
	for _, x := range xs {
		out += x + "\n"
	}
	return out
}

func TestAtsBoardSlugs(t *testing.T) {
	s := Default()
	s.SmartRecruitersBoards = []Board{{Name: "BoschGroup"}}
	s.Sources[domain.SourceSmartRecruiters] = true

	out, vr := NormalizeAndValidate(s)
	require.True(t, vr.OK(), "errors: %v", vr.Errors)
	require.Len(t, out.SmartRecruitersBoards, 1)
	assert.Equal(t, "https://jobs.smartrecruiters.com/BoschGroup", out.SmartRecruitersBoards[0].BoardURL)
	assert.Equal(t, "BoschGroup", out.SmartRecruitersBoards[0].Slug())

	s = Default()
	s.WorkdayBoards = []Board{{Name: "acme"}}
	_, vr = NormalizeAndValidate(s)
	require.False(t, vr.OK())
	assert.Contains(t, vr.Errors[0], "malformed board URL")

	s = Default()
	s.WorkdayBoards = []Board{{Name: "Acme", BoardURL: "https://careers.acme.com/jobs"}}
	_, vr = NormalizeAndValidate(s)
	require.True(t, vr.OK(), "errors: %v", vr.Errors)
	assert.Contains(t, vr.Warnings, `workday board "https://careers.acme.com/jobs" does not look like a myworkdayjobs.com site`)
}
