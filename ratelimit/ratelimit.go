// Package ratelimit provides the two small keyed limiters the payment entry
// points need: a token bucket for address generation and a fixed window for
// payment status polling.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// pruneThreshold is the number of tracked keys above which stale entries are
// swept on the next request.
const pruneThreshold = 4096

// TokenBucket is a keyed token-bucket limiter. Each key gets its own bucket
// with the configured refill interval and capacity.
type TokenBucket struct {
	interval time.Duration
	capacity int

	mtx      sync.Mutex
	limiters map[string]*keyedLimiter
}

type keyedLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewTokenBucket returns a limiter that grants capacity tokens per key,
// refilling one token every interval.
func NewTokenBucket(interval time.Duration, capacity int) *TokenBucket {
	return &TokenBucket{
		interval: interval,
		capacity: capacity,
		limiters: make(map[string]*keyedLimiter),
	}
}

// Allow consumes a token for key and reports whether one was available.
func (tb *TokenBucket) Allow(key string) bool {
	tb.mtx.Lock()
	defer tb.mtx.Unlock()

	now := time.Now()
	entry, ok := tb.limiters[key]
	if !ok {
		entry = &keyedLimiter{
			limiter: rate.NewLimiter(rate.Every(tb.interval), tb.capacity),
		}
		tb.limiters[key] = entry
	}
	entry.lastSeen = now

	if len(tb.limiters) > pruneThreshold {
		tb.prune(now)
	}
	return entry.limiter.Allow()
}

// prune drops buckets that have been idle long enough to be full again.
// Callers must hold the mutex.
func (tb *TokenBucket) prune(now time.Time) {
	idleCutoff := time.Duration(tb.capacity) * tb.interval
	for key, entry := range tb.limiters {
		if now.Sub(entry.lastSeen) > idleCutoff {
			delete(tb.limiters, key)
		}
	}
}

// FixedWindow is a keyed fixed-window limiter allowing one request per key
// per window.
type FixedWindow struct {
	window time.Duration

	mtx      sync.Mutex
	lastUsed map[string]time.Time
}

// NewFixedWindow returns a limiter that allows one request per key every
// window.
func NewFixedWindow(window time.Duration) *FixedWindow {
	return &FixedWindow{
		window:   window,
		lastUsed: make(map[string]time.Time),
	}
}

// Allow reports whether key may proceed, and if so starts its window.
func (fw *FixedWindow) Allow(key string) bool {
	fw.mtx.Lock()
	defer fw.mtx.Unlock()

	now := time.Now()
	if last, ok := fw.lastUsed[key]; ok && now.Sub(last) < fw.window {
		return false
	}
	fw.lastUsed[key] = now

	if len(fw.lastUsed) > pruneThreshold {
		for key, last := range fw.lastUsed {
			if now.Sub(last) >= fw.window {
				delete(fw.lastUsed, key)
			}
		}
	}
	return true
}
