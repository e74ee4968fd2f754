package crawl

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkmeAman/JHuntAutomator/internal/domain"
	"github.com/linkmeAman/JHuntAutomator/internal/scrape/util"
)

func TestCooldownFor(t *testing.T) {
	cases := []struct {
		kind     util.Kind
		failures int
		want     time.Duration
	}{
		{util.KindBlocked, 1, 30 * time.Minute},
		{util.KindBlocked, 3, 90 * time.Minute},
		{util.KindRateLimited, 9, 120 * time.Minute},
		{util.KindBadConfig, 1, 120 * time.Minute},
		{util.KindTLS, 1, 60 * time.Minute},
		{util.KindTransient, 2, 0},
		{util.KindTransient, 3, 15 * time.Minute},
		{util.KindTimeout, 1, 0},
		{util.KindTimeout, 5, 15 * time.Minute},
		{util.KindOther, 2, 0},
		{util.KindOther, 3, 10 * time.Minute},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CooldownFor(tc.kind, tc.failures), "%s x%d", tc.kind, tc.failures)
	}
}

func TestSanitizeCooldown(t *testing.T) {
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

	near := now.Add(2 * time.Hour)
	st := domain.SourceState{CooldownUntil: &near}
	assert.False(t, SanitizeCooldown(&st, now))
	assert.NotNil(t, st.CooldownUntil)

	far := now.Add(7 * time.Hour)
	st = domain.SourceState{CooldownUntil: &far}
	assert.True(t, SanitizeCooldown(&st, now))
	assert.Nil(t, st.CooldownUntil)
}

func TestFailurePatchCountsStreak(t *testing.T) {
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	prev := domain.SourceState{ConsecutiveFailures: 2}

	p, d := FailurePatch(prev, util.KindTransient, now, nil)
	require.NotNil(t, p.ConsecutiveFailures)
	assert.Equal(t, 3, *p.ConsecutiveFailures)
	assert.Equal(t, 15*time.Minute, d)
	require.NotNil(t, p.CooldownUntil)
	assert.Equal(t, now.Add(d), *p.CooldownUntil)
	assert.Nil(t, p.Cursor)

	p, d = FailurePatch(domain.SourceState{}, util.KindOther, now, nil)
	assert.Zero(t, d)
	assert.Nil(t, p.CooldownUntil)
}

func TestSuccessPatchResets(t *testing.T) {
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	p := SuccessPatch(now, domain.Cursor{}, domain.Metadata{})
	assert.True(t, p.ClearCooldown)
	require.NotNil(t, p.ConsecutiveFailures)
	assert.Zero(t, *p.ConsecutiveFailures)
	assert.Equal(t, now, *p.LastSuccessAt)
}

func TestSince(t *testing.T) {
	now := time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)
	day := 24 * time.Hour

	assert.Equal(t, now.Add(-14*day), Since(now, domain.Cursor{}, 14*day, 2*day))

	recent := now.Add(-3 * day)
	assert.Equal(t, now.Add(-5*day), Since(now, domain.Cursor{LastMaxPostDateSeen: &recent}, 14*day, 2*day))

	old := now.Add(-30 * day)
	assert.Equal(t, now.Add(-14*day), Since(now, domain.Cursor{LastMaxPostDateSeen: &old}, 14*day, 2*day))
}
