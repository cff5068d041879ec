// Package ratelimit provides the per-client fixed-window admission counters.
//
// Fixed windows admit bursts at window boundaries (up to 2N requests in a
// short span as one window closes and the next opens). That trade-off is
// part of the contract; callers needing smoother admission should front the
// gateway with a token bucket instead.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"scoutgw/internal/domain"
)

// Memory is the single-process fixed-window limiter. Entries are created
// lazily on a client's first request and reset in place once their window
// expires; Sweep reclaims entries for clients that went quiet.
type Memory struct {
	mu     sync.Mutex
	window time.Duration
	limit  int64
	items  map[string]entry

	now func() time.Time // test seam
}

type entry struct {
	count   int64
	resetAt time.Time
}

var _ domain.RateLimiter = (*Memory)(nil)

// NewMemory creates an in-memory limiter admitting limit requests per client
// per window.
func NewMemory(limit int, window time.Duration) *Memory {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &Memory{
		window: window,
		limit:  int64(limit),
		items:  make(map[string]entry),
		now:    time.Now,
	}
}

// Admit counts one request for the client and decides whether it is within
// the window budget. Safe for concurrent use; updates for one client apply
// in arrival order under the lock.
func (l *Memory) Admit(_ context.Context, clientID string) (domain.RateDecision, error) {
	now := l.now().UTC()

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.items[clientID]
	if !ok || now.After(e.resetAt) {
		e = entry{resetAt: now.Add(l.window)}
	}
	e.count++
	l.items[clientID] = e

	d := domain.RateDecision{
		Allowed:   e.count <= l.limit,
		Count:     e.count,
		Limit:     l.limit,
		Remaining: l.limit - e.count,
		ResetAt:   e.resetAt,
	}
	if d.Remaining < 0 {
		d.Remaining = 0
	}
	return d, nil
}

// Sweep removes entries whose window has expired and reports how many were
// dropped. Admit resets expired entries lazily regardless, so Sweep only
// bounds memory growth from one-off clients.
func (l *Memory) Sweep() int {
	now := l.now().UTC()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for k, e := range l.items {
		if now.After(e.resetAt) {
			delete(l.items, k)
			removed++
		}
	}
	return removed
}
