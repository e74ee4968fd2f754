package util

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkmeAman/JHuntAutomator/internal/domain"
	"github.com/linkmeAman/JHuntAutomator/internal/scrape/types"
)

func page(urls ...string) []domain.RawPosting {
	out := make([]domain.RawPosting, 0, len(urls))
	for _, u := range urls {
		out = append(out, domain.RawPosting{Title: "t", URL: u})
	}
	return out
}

func seenSet(urls ...string) types.SeenFunc {
	known := map[string]bool{}
	for _, u := range urls {
		known[u] = true
	}
	return func(_ context.Context, p domain.RawPosting) bool { return known[p.URL] }
}

func TestPagerStopsOnSeenRatio(t *testing.T) {
	var m types.Metrics
	p := NewPager(types.FetchRequest{
		MaxPages:        3,
		StopOnSeenRatio: 0.8,
		Seen:            seenSet("a", "b", "c", "d", "e", "f", "g", "h", "i"),
	}, &m)

	fetched := 0
	for p.More() {
		fetched++
		var next bool
		if fetched == 1 {
			next = p.Observe(context.Background(), page("new1", "new2", "a"))
		} else {
			next = p.Observe(context.Background(), page("b", "c", "d", "e", "f", "g", "h", "i", "j", "k"))
		}
		if !next {
			break
		}
	}

	assert.Equal(t, 2, fetched)
	assert.Equal(t, 3, m.RequestedPages)
	assert.Equal(t, 2, m.PagesFetched)
	assert.True(t, m.StoppedEarly)
	require.Len(t, m.Errors, 1)
	assert.True(t, strings.HasPrefix(m.Errors[0], StopOnSeenMarker+":"))
	assert.Equal(t, "stop_on_seen_ratio_triggered:0.80", m.Errors[0])
}

func TestPagerEmptyPageEnds(t *testing.T) {
	var m types.Metrics
	p := NewPager(types.FetchRequest{MaxPages: 5, StopOnSeenRatio: 0.8, Seen: seenSet()}, &m)
	require.True(t, p.More())
	assert.False(t, p.Observe(context.Background(), nil))
	assert.False(t, m.StoppedEarly)
	assert.Empty(t, m.Errors)
}

func TestPagerRespectsMaxPages(t *testing.T) {
	var m types.Metrics
	p := NewPager(types.FetchRequest{MaxPages: 2}, &m)
	assert.True(t, p.Observe(context.Background(), page("a")))
	assert.False(t, p.Observe(context.Background(), page("b")))
	assert.False(t, p.More())
}

func TestCap(t *testing.T) {
	assert.Len(t, Cap(page("a", "b", "c"), 2), 2)
	assert.Len(t, Cap(page("a", "b", "c"), 0), 3)
}
