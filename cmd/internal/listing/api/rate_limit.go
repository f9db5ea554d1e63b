package listingapi

import (
	"sync"
	"time"
)

// keyedLimiter is a sliding-window limiter per key (client IP).
type keyedLimiter struct {
	mu        sync.Mutex
	limit     int
	window    time.Duration
	events    map[string][]time.Time
	lastPrune time.Time
}

func newKeyedLimiter(limit int, window time.Duration) *keyedLimiter {
	return &keyedLimiter{
		limit:  limit,
		window: window,
		events: make(map[string][]time.Time),
	}
}

// Allow records an event for key at now. When the window is full it returns
// false and the wait until the oldest event leaves the window.
func (l *keyedLimiter) Allow(key string, now time.Time) (bool, time.Duration) {
	if l == nil || l.limit <= 0 || key == "" {
		return true, 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastPrune) > l.window {
		l.prune(now)
	}

	cut := now.Add(-l.window)
	kept := l.events[key][:0]
	for _, t := range l.events[key] {
		if t.After(cut) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= l.limit {
		l.events[key] = kept
		return false, kept[0].Add(l.window).Sub(now)
	}
	l.events[key] = append(kept, now)
	return true, 0
}

func (l *keyedLimiter) prune(now time.Time) {
	cut := now.Add(-l.window)
	for k, ts := range l.events {
		if len(ts) == 0 || !ts[len(ts)-1].After(cut) {
			delete(l.events, k)
		}
	}
	l.lastPrune = now
}
