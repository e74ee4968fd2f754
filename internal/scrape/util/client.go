package util

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/linkmeAman/JHuntAutomator/internal/domain"
	"github.com/linkmeAman/JHuntAutomator/internal/scrape/types"
)

const (
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
	maxBodyBytes     = 10 << 20
)

// Client is the shared HTTP client for adapters: host rate limiting, retries
// with backoff, conditional requests and status classification.
type Client struct {
	HTTP      *http.Client
	Limiter   *HostLimiter
	Retries   int
	Backoff   time.Duration
	UserAgent string
}

func NewClient(timeout time.Duration, limiter *HostLimiter, retries int) *Client {
	return &Client{
		HTTP:      &http.Client{Timeout: timeout},
		Limiter:   limiter,
		Retries:   retries,
		Backoff:   time.Second,
		UserAgent: DefaultUserAgent,
	}
}

type Response struct {
	URL         string
	Status      int
	Header      http.Header
	Body        []byte
	NotModified bool
}

// Get fetches raw. cache may be nil; when set, validators from it are sent
// and refreshed from the response. Non-2xx statuses come back as
// SourceErrors.
func (c *Client) Get(ctx context.Context, raw string, cache map[string]domain.HTTPCacheEntry, m *types.Metrics, headers ...string) (*Response, error) {
	return c.send(ctx, http.MethodGet, raw, nil, cache, m, headers)
}

// PostJSON sends payload as a JSON body with the same retry and
// classification rules as Get. Responses are never cached.
func (c *Client) PostJSON(ctx context.Context, raw string, payload any, m *types.Metrics, headers ...string) (*Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode body: %w", err)
	}
	headers = append([]string{"Content-Type", "application/json", "Accept", "application/json"}, headers...)
	return c.send(ctx, http.MethodPost, raw, body, nil, m, headers)
}

func (c *Client) send(ctx context.Context, method, raw string, body []byte, cache map[string]domain.HTTPCacheEntry, m *types.Metrics, headers []string) (*Response, error) {
	if m == nil {
		m = &types.Metrics{}
	}
	backoff := c.Backoff
	if backoff <= 0 {
		backoff = time.Second
	}

	var lastErr error
	for attempt := 0; attempt <= c.Retries; attempt++ {
		if attempt > 0 {
			m.Retries++
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		resp, err := c.do(ctx, method, raw, body, cache, headers)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			switch Classify(err) {
			case KindTLS:
				return nil, TLS(err)
			case KindTransient, KindTimeout, KindOther:
				continue
			}
			return nil, err
		}
		m.CountStatus(resp.Status)

		switch {
		case resp.Status == http.StatusNotModified:
			m.CacheHits++
			resp.NotModified = true
			return resp, nil
		case resp.Status >= 200 && resp.Status < 300:
			if cache != nil {
				remember(cache, raw, resp.Header)
			}
			return resp, nil
		case resp.Status == http.StatusForbidden:
			return resp, Blocked(fmt.Errorf("%s %s: status %d", method, raw, resp.Status))
		case resp.Status == http.StatusTooManyRequests:
			return resp, RateLimited(fmt.Errorf("%s %s: status %d", method, raw, resp.Status))
		case resp.Status == http.StatusNotFound || resp.Status == http.StatusBadRequest || resp.Status == http.StatusGone:
			return resp, BadConfig(fmt.Errorf("%s %s: status %d", method, raw, resp.Status))
		case resp.Status >= 500:
			lastErr = fmt.Errorf("%s %s: status %d", method, raw, resp.Status)
			continue
		default:
			return resp, fmt.Errorf("%s %s: status %d", method, raw, resp.Status)
		}
	}
	if Classify(lastErr) == KindOther {
		return nil, Transient(lastErr)
	}
	return nil, lastErr
}

func (c *Client) do(ctx context.Context, method, raw string, body []byte, cache map[string]domain.HTTPCacheEntry, headers []string) (*Response, error) {
	if c.Limiter != nil {
		if err := c.Limiter.WaitURL(ctx, raw); err != nil {
			return nil, err
		}
	}
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, raw, rd)
	if err != nil {
		return nil, BadConfig(err)
	}
	ua := c.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "text/html,application/json;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.8")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	if entry, ok := cache[raw]; ok {
		if entry.ETag != "" {
			req.Header.Set("If-None-Match", entry.ETag)
		}
		if entry.LastModified != "" {
			req.Header.Set("If-Modified-Since", entry.LastModified)
		}
	}

	hc := c.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	res, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	data, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return nil, Transient(fmt.Errorf("read body: %w", err))
	}
	return &Response{URL: raw, Status: res.StatusCode, Header: res.Header, Body: data}, nil
}

func remember(cache map[string]domain.HTTPCacheEntry, raw string, h http.Header) {
	entry := domain.HTTPCacheEntry{
		ETag:         h.Get("ETag"),
		LastModified: h.Get("Last-Modified"),
	}
	if entry.ETag == "" && entry.LastModified == "" {
		return
	}
	cache[raw] = entry
}
