package ratelimit

import (
	"sync"
	"time"
)

// pruneInterval is the minimum gap between opportunistic prunes.
const pruneInterval = 10 * time.Second

type windowCount struct {
	windowStart int64
	count       int
}

// FixedWindowLimiter is an in-memory fixed-window counter. A key's window
// starts at an aligned boundary (floor(now / window) * window) and its count
// resets whenever the stored window differs from the current one.
//
// All state sits behind a single mutex; the lock only ever covers map
// operations, never I/O.
type FixedWindowLimiter struct {
	windowSeconds int64
	maxKeys       int

	mu          sync.Mutex
	counters    map[string]windowCount
	lastPruneAt int64

	// now is swappable in tests.
	now func() time.Time
}

// NewFixedWindowLimiter creates a limiter. windowSeconds must be positive;
// maxKeys bounds counter-map growth before pruning kicks in.
func NewFixedWindowLimiter(windowSeconds, maxKeys int) *FixedWindowLimiter {
	if windowSeconds < 1 {
		windowSeconds = 1
	}
	if maxKeys < 1 {
		maxKeys = 1
	}
	return &FixedWindowLimiter{
		windowSeconds: int64(windowSeconds),
		maxKeys:       maxKeys,
		counters:      make(map[string]windowCount),
		now:           time.Now,
	}
}

// WindowSeconds returns the configured window length.
func (l *FixedWindowLimiter) WindowSeconds() int {
	return int(l.windowSeconds)
}

// Hit records one request against key. It returns 0 when the request is
// admitted, or the retry-after in seconds (>= 1) when the limit is
// exceeded. A limit of 0 (or less) blocks unconditionally for a full
// window.
func (l *FixedWindowLimiter) Hit(key string, limit int) int {
	return l.hit(key, limit, l.now().Unix())
}

func (l *FixedWindowLimiter) hit(key string, limit int, now int64) int {
	if limit <= 0 {
		return int(l.windowSeconds)
	}

	windowStart := l.windowStart(now)

	l.mu.Lock()
	defer l.mu.Unlock()

	count := 0
	if existing, ok := l.counters[key]; ok && existing.windowStart == windowStart {
		count = existing.count
	}

	if count >= limit {
		retryAfter := windowStart + l.windowSeconds - now
		if retryAfter < 1 {
			retryAfter = 1
		}
		return int(retryAfter)
	}

	l.counters[key] = windowCount{windowStart: windowStart, count: count + 1}

	// Opportunistic pruning to avoid unbounded growth.
	if len(l.counters) > l.maxKeys && now-l.lastPruneAt > int64(pruneInterval/time.Second) {
		l.prune(now)
	}

	return 0
}

func (l *FixedWindowLimiter) windowStart(now int64) int64 {
	return now / l.windowSeconds * l.windowSeconds
}

// prune drops every counter whose window ended before the previous window.
// Must be called with the lock held.
func (l *FixedWindowLimiter) prune(now int64) {
	l.lastPruneAt = now
	cutoff := l.windowStart(now) - l.windowSeconds
	for k, c := range l.counters {
		if c.windowStart < cutoff {
			delete(l.counters, k)
		}
	}
}

// Len returns the number of tracked keys.
func (l *FixedWindowLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.counters)
}
