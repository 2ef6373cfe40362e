package gateway

import (
	"sync"
	"time"
)

// RateLimiter bounds outbound call volume and token spend over a rolling
// 60-second window. One instance is shared per external dependency, so all
// window mutation happens under a single mutex.
type RateLimiter struct {
	mu          sync.Mutex
	maxRequests int
	maxTokens   int
	window      time.Duration
	grants      []grant

	now func() time.Time
}

type grant struct {
	at     time.Time
	tokens int
}

func NewRateLimiter(maxRequestsPerMinute, maxTokensPerMinute int) *RateLimiter {
	return &RateLimiter{
		maxRequests: maxRequestsPerMinute,
		maxTokens:   maxTokensPerMinute,
		window:      time.Minute,
		now:         time.Now,
	}
}

// Acquire records the attempt and returns true if granting estimatedTokens
// keeps both window counters under their ceilings. Denial has no side
// effect. A token cost of 0 consumes request budget only.
func (r *RateLimiter) Acquire(estimatedTokens int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.prune(now)

	tokenSum := 0
	for _, g := range r.grants {
		tokenSum += g.tokens
	}

	if len(r.grants)+1 > r.maxRequests || tokenSum+estimatedTokens > r.maxTokens {
		return false
	}

	r.grants = append(r.grants, grant{at: now, tokens: estimatedTokens})
	return true
}

// WaitTime returns how long until the oldest grant ages out of the window.
// Callers sleep this long instead of busy-polling Acquire.
func (r *RateLimiter) WaitTime() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.prune(now)

	if len(r.grants) == 0 {
		return 0
	}
	remaining := r.window - now.Sub(r.grants[0].at)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// prune drops grants older than the window. Caller holds the lock.
func (r *RateLimiter) prune(now time.Time) {
	cutoff := now.Add(-r.window)
	i := 0
	for i < len(r.grants) && !r.grants[i].at.After(cutoff) {
		i++
	}
	if i > 0 {
		r.grants = append(r.grants[:0], r.grants[i:]...)
	}
}
