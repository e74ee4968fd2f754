package util

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

// HostLimiter keeps one token bucket per host so every source hitting the
// same host shares its budget. A nil *HostLimiter never waits.
type HostLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*rate.Limiter
	overrides map[string]rate.Limit
	r         rate.Limit
	b         int
}

// NewHostLimiter allows reqPerSec per host with the given burst.
// reqPerSec <= 0 disables limiting.
func NewHostLimiter(reqPerSec float64, burst int) *HostLimiter {
	if burst < 1 {
		burst = 1
	}
	r := rate.Limit(reqPerSec)
	if reqPerSec <= 0 {
		r = rate.Inf
	}
	return &HostLimiter{
		buckets:   map[string]*rate.Limiter{},
		overrides: map[string]rate.Limit{},
		r:         r,
		b:         burst,
	}
}

// Override sets a slower (or faster) rate for one host. It applies to
// buckets created after the call and to an existing bucket for host.
func (hl *HostLimiter) Override(host string, reqPerSec float64) {
	host = hostKey(host)
	hl.mu.Lock()
	defer hl.mu.Unlock()
	hl.overrides[host] = rate.Limit(reqPerSec)
	if lim, ok := hl.buckets[host]; ok {
		lim.SetLimit(rate.Limit(reqPerSec))
	}
}

func (hl *HostLimiter) limiterFor(host string) *rate.Limiter {
	hl.mu.Lock()
	defer hl.mu.Unlock()

	if lim, ok := hl.buckets[host]; ok {
		return lim
	}
	r := hl.r
	if o, ok := hl.overrides[host]; ok {
		r = o
	}
	lim := rate.NewLimiter(r, hl.b)
	hl.buckets[host] = lim
	return lim
}

// WaitURL blocks until the host of raw may be requested or ctx ends.
func (hl *HostLimiter) WaitURL(ctx context.Context, raw string) error {
	if hl == nil {
		return nil
	}
	key := "_"
	if u, err := url.Parse(raw); err == nil && u.Host != "" {
		key = hostKey(u.Hostname())
	}
	return hl.limiterFor(key).Wait(ctx)
}

// hostKey folds case and a leading "www." so both spellings share a bucket.
func hostKey(h string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(h)), "www.")
}
