package ratelimit

import (
	"fmt"
	"testing"
	"time"
)

func TestHit_BlocksFourthRequestInWindow(t *testing.T) {
	l := NewFixedWindowLimiter(60, 1000)
	now := int64(1_700_000_000)

	for i := 0; i < 3; i++ {
		if got := l.hit("k", 3, now+int64(i)); got != 0 {
			t.Fatalf("request %d: hit() = %d, want 0", i+1, got)
		}
	}

	retryAfter := l.hit("k", 3, now+3)
	if retryAfter < 1 || retryAfter > 60 {
		t.Errorf("retry-after = %d, want in [1, 60]", retryAfter)
	}
}

func TestHit_NextWindowResets(t *testing.T) {
	l := NewFixedWindowLimiter(60, 1000)
	now := int64(1_700_000_000)
	windowStart := now / 60 * 60

	for i := 0; i < 3; i++ {
		l.hit("k", 3, now)
	}
	if got := l.hit("k", 3, now); got == 0 {
		t.Fatal("4th hit in window admitted, want blocked")
	}

	if got := l.hit("k", 3, windowStart+60); got != 0 {
		t.Errorf("hit() in next window = %d, want 0", got)
	}
}

func TestHit_RetryAfterCountsDownToWindowEnd(t *testing.T) {
	l := NewFixedWindowLimiter(60, 1000)
	windowStart := int64(1_700_000_040) / 60 * 60

	l.hit("k", 1, windowStart)
	got := l.hit("k", 1, windowStart+45)
	if got != 15 {
		t.Errorf("retry-after = %d, want 15", got)
	}
}

func TestHit_RetryAfterMinimumOneSecond(t *testing.T) {
	l := NewFixedWindowLimiter(60, 1000)
	windowStart := int64(1_700_000_100) / 60 * 60

	l.hit("k", 1, windowStart)
	// Last second of the window: raw retry-after would be 0.
	if got := l.hit("k", 1, windowStart+60-1); got < 1 {
		t.Errorf("retry-after = %d, want >= 1", got)
	}
}

func TestHit_ZeroLimitBlocksUnconditionally(t *testing.T) {
	l := NewFixedWindowLimiter(60, 1000)

	if got := l.hit("k", 0, 1_700_000_000); got != 60 {
		t.Errorf("hit() with limit 0 = %d, want full window 60", got)
	}
	if l.Len() != 0 {
		t.Errorf("Len() = %d, want 0 (blocked keys are not tracked)", l.Len())
	}
}

func TestHit_IndependentKeys(t *testing.T) {
	l := NewFixedWindowLimiter(60, 1000)
	now := int64(1_700_000_000)

	l.hit("a", 1, now)
	if got := l.hit("a", 1, now); got == 0 {
		t.Error("key a should be blocked")
	}
	if got := l.hit("b", 1, now); got != 0 {
		t.Errorf("key b blocked by key a's counter: hit() = %d", got)
	}
}

func TestPrune_DropsExpiredWindows(t *testing.T) {
	l := NewFixedWindowLimiter(60, 10)
	now := int64(1_700_000_000) / 60 * 60

	for i := 0; i < 11; i++ {
		l.hit(fmt.Sprintf("old-%d", i), 100, now)
	}
	if l.Len() != 11 {
		t.Fatalf("Len() = %d, want 11", l.Len())
	}

	// Two windows later the old entries are prunable. The 12th key pushes
	// the map over maxKeys and triggers the opportunistic prune.
	later := now + 120
	l.hit("fresh", 100, later)

	if got := l.Len(); got != 1 {
		t.Errorf("Len() after prune = %d, want 1", got)
	}
}

func TestPrune_KeepsPreviousWindow(t *testing.T) {
	l := NewFixedWindowLimiter(60, 1)
	now := int64(1_700_000_000) / 60 * 60

	l.hit("prev", 100, now)
	l.hit("cur", 100, now+60)

	if got := l.Len(); got != 2 {
		t.Errorf("Len() = %d, want 2 (previous window survives the prune)", got)
	}
}

func TestPrune_Throttled(t *testing.T) {
	l := NewFixedWindowLimiter(60, 1)
	now := int64(1_700_000_000) / 60 * 60

	l.hit("a", 100, now)
	l.hit("b", 100, now+120)  // prunes "a"
	l.hit("c", 100, now+125)  // within 10s of last prune: no prune
	l.hit("d", 100, now+125)

	// "b" is two windows old relative to nothing here; the point is only
	// that no prune ran since lastPruneAt.
	if got := l.Len(); got != 3 {
		t.Errorf("Len() = %d, want 3 (prune throttled to every %s)", got, pruneInterval)
	}
}

func TestHit_WallClock(t *testing.T) {
	l := NewFixedWindowLimiter(60, 1000)
	l.now = func() time.Time { return time.Unix(1_700_000_000, 0) }

	if got := l.Hit("k", 1); got != 0 {
		t.Fatalf("Hit() = %d, want 0", got)
	}
	if got := l.Hit("k", 1); got < 1 || got > 60 {
		t.Errorf("Hit() = %d, want retry-after in [1, 60]", got)
	}
}
