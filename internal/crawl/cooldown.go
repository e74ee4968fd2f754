package crawl

import (
	"time"

	"github.com/linkmeAman/JHuntAutomator/internal/domain"
	"github.com/linkmeAman/JHuntAutomator/internal/scrape/util"
	"github.com/linkmeAman/JHuntAutomator/internal/store"
)

// maxSaneCooldown guards against clock jumps or hand-edited rows that would
// otherwise park a source for days.
const maxSaneCooldown = 6 * time.Hour

// CooldownFor returns how long a source sits out after a failure of kind.
// failures counts the failure being recorded. Zero means no cooldown.
func CooldownFor(kind util.Kind, failures int) time.Duration {
	n := max(1, failures)
	switch kind {
	case util.KindBlocked, util.KindRateLimited:
		return time.Duration(min(120, 30*n)) * time.Minute
	case util.KindBadConfig:
		return 120 * time.Minute
	case util.KindTLS:
		return 60 * time.Minute
	case util.KindTransient, util.KindTimeout:
		if failures >= 3 {
			return time.Duration(min(15, 5*n)) * time.Minute
		}
	default:
		if failures >= 3 {
			return 10 * time.Minute
		}
	}
	return 0
}

// SanitizeCooldown clears a cooldown that ends more than six hours out.
// It reports whether st was changed.
func SanitizeCooldown(st *domain.SourceState, now time.Time) bool {
	if st.CooldownUntil != nil && st.CooldownUntil.After(now.Add(maxSaneCooldown)) {
		st.CooldownUntil = nil
		return true
	}
	return false
}

// SuccessPatch resets the failure streak and stores the advanced cursor.
func SuccessPatch(now time.Time, cursor domain.Cursor, metrics domain.Metadata) store.SourceStatePatch {
	zero := 0
	return store.SourceStatePatch{
		LastSuccessAt:       &now,
		ClearCooldown:       true,
		ConsecutiveFailures: &zero,
		Cursor:              &cursor,
		LastMetrics:         metrics,
	}
}

// FailurePatch bumps the failure streak and applies the cooldown for kind.
// The cursor is left as it was so the next run retries the same window.
func FailurePatch(prev domain.SourceState, kind util.Kind, now time.Time, metrics domain.Metadata) (store.SourceStatePatch, time.Duration) {
	failures := prev.ConsecutiveFailures + 1
	p := store.SourceStatePatch{
		ConsecutiveFailures: &failures,
		LastMetrics:         metrics,
	}
	d := CooldownFor(kind, failures)
	if d > 0 {
		until := now.Add(d)
		p.CooldownUntil = &until
	}
	return p, d
}

// Since is the lower bound on post dates worth fetching: the lookback window,
// narrowed to the newest post already seen minus a buffer.
func Since(now time.Time, c domain.Cursor, lookback, buffer time.Duration) time.Time {
	since := now.Add(-lookback)
	if c.LastMaxPostDateSeen != nil {
		if s := c.LastMaxPostDateSeen.Add(-buffer); s.After(since) {
			since = s
		}
	}
	return since
}
