package domain

import "time"

// Source identifiers.
const (
	SourceGreenhouse      = "greenhouse"
	SourceLever           = "lever"
	SourceSmartRecruiters = "smartrecruiters"
	SourceWorkday         = "workday"
	SourceRemotive        = "remotive"
	SourceWorkingNomads   = "workingnomads"
	SourceRemoteOK        = "remoteok"
	SourceWeWorkRemotely  = "weworkremotely"
	SourceRemoteCo        = "remote_co"
	SourceIndeed          = "indeed"
	SourceNaukri          = "naukri"
	SourceShine           = "shine"
	SourceTimesJobs       = "timesjobs"
	SourceLinkedIn        = "linkedin"
	SourceGlassdoor       = "glassdoor"
	SourceWellfound       = "wellfound"
	SourceYC              = "yc"
)

// KnownSources lists every source in registry order.
var KnownSources = []string{
	SourceGreenhouse,
	SourceLever,
	SourceSmartRecruiters,
	SourceWorkday,
	SourceRemotive,
	SourceWorkingNomads,
	SourceRemoteOK,
	SourceWeWorkRemotely,
	SourceRemoteCo,
	SourceIndeed,
	SourceNaukri,
	SourceShine,
	SourceTimesJobs,
	SourceLinkedIn,
	SourceGlassdoor,
	SourceWellfound,
	SourceYC,
}

type HTTPCacheEntry struct {
	ETag         string `json:"etag,omitempty"`
	LastModified string `json:"last_modified,omitempty"`
}

// Cursor is the incremental-fetch position of one source.
type Cursor struct {
	LastMaxPostDateSeen *time.Time                `json:"last_max_post_date_seen,omitempty"`
	HTTPCache           map[string]HTTPCacheEntry `json:"http_cache,omitempty"`
}

// Advance moves the last seen post date forward when t is newer.
func (c *Cursor) Advance(t *time.Time) {
	if t == nil || t.IsZero() {
		return
	}
	if c.LastMaxPostDateSeen == nil || t.After(*c.LastMaxPostDateSeen) {
		tt := t.UTC()
		c.LastMaxPostDateSeen = &tt
	}
}

func (c Cursor) Clone() Cursor {
	out := Cursor{LastMaxPostDateSeen: c.LastMaxPostDateSeen}
	if c.HTTPCache != nil {
		out.HTTPCache = make(map[string]HTTPCacheEntry, len(c.HTTPCache))
		for k, v := range c.HTTPCache {
			out.HTTPCache[k] = v
		}
	}
	return out
}

type SourceState struct {
	Source              string     `json:"source"`
	LastSuccessAt       *time.Time `json:"last_success_at"`
	CooldownUntil       *time.Time `json:"cooldown_until"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	Cursor              Cursor     `json:"cursor"`
	LastMetrics         Metadata   `json:"last_metrics"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

func (s SourceState) InCooldown(now time.Time) bool {
	return s.CooldownUntil != nil && s.CooldownUntil.After(now)
}
