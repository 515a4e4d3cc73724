package rate

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// KeyedLimiter applies an independent token-bucket limit per key (one key
// per user for join/leave actions). Idle buckets are swept on access so the
// map does not grow with every user ever seen.
type KeyedLimiter struct {
	limit rate.Limit
	burst int

	mu          sync.Mutex
	entries     map[string]*limiterEntry
	lastCleanup time.Time
	idleAfter   time.Duration
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewKeyedLimiter allows up to limit events per window per key, with burst
// capacity equal to limit.
func NewKeyedLimiter(limit int, window time.Duration) *KeyedLimiter {
	return &KeyedLimiter{
		limit:       rate.Every(window / time.Duration(limit)),
		burst:       limit,
		entries:     make(map[string]*limiterEntry),
		lastCleanup: time.Now(),
		idleAfter:   window,
	}
}

// Allow reports whether the key may act now.
func (l *KeyedLimiter) Allow(key string) bool {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	l.maybeCleanup(now)

	entry, ok := l.entries[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.entries[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter.Allow()
}

func (l *KeyedLimiter) maybeCleanup(now time.Time) {
	if l.idleAfter <= 0 || now.Sub(l.lastCleanup) < l.idleAfter {
		return
	}
	for key, entry := range l.entries {
		if now.Sub(entry.lastSeen) >= l.idleAfter {
			delete(l.entries, key)
		}
	}
	l.lastCleanup = now
}
