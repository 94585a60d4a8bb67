// Package ratelimit implements the per-caller sliding-window limiter that
// gates every tool invocation.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultWindow is the trailing window requests are counted over.
const DefaultWindow = time.Minute

// DefaultMaxCallers bounds how many distinct caller buckets are tracked.
const DefaultMaxCallers = 10000

// Decision is the outcome of a single Allow call.
type Decision struct {
	Allowed   bool
	Count     int
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter decides whether a caller may make another request.
type Limiter interface {
	Allow(ctx context.Context, key string) Decision
}

// SlidingWindow is an in-process limiter. Each instance enforces its limit
// independently; running several gateways multiplies the effective ceiling.
//
// Buckets live in a size-bounded LRU whose entries expire one window after
// their last accepted request. A caller evicted for capacity starts over with
// an empty window.
type SlidingWindow struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	buckets *expirable.LRU[string, []time.Time]
	now     func() time.Time
}

// NewSlidingWindow creates a limiter allowing limit requests per window.
func NewSlidingWindow(limit, maxCallers int, window time.Duration) *SlidingWindow {
	if limit <= 0 {
		limit = 1
	}
	if maxCallers <= 0 {
		maxCallers = DefaultMaxCallers
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &SlidingWindow{
		limit:   limit,
		window:  window,
		buckets: expirable.NewLRU[string, []time.Time](maxCallers, nil, window),
		now:     time.Now,
	}
}

// Allow prunes the caller's bucket, then records the request if the caller
// is still under the limit. Rejected requests are not recorded.
func (l *SlidingWindow) Allow(_ context.Context, key string) Decision {
	now := l.now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	stamps, _ := l.buckets.Get(key)
	kept := make([]time.Time, 0, len(stamps)+1)
	for _, ts := range stamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= l.limit {
		l.buckets.Add(key, kept)
		return Decision{
			Allowed: false,
			Count:   len(kept),
			Limit:   l.limit,
			ResetAt: kept[0].Add(l.window),
		}
	}

	kept = append(kept, now)
	l.buckets.Add(key, kept)
	return Decision{
		Allowed:   true,
		Count:     len(kept),
		Limit:     l.limit,
		Remaining: l.limit - len(kept),
		ResetAt:   kept[0].Add(l.window),
	}
}

// Limit returns the configured ceiling.
func (l *SlidingWindow) Limit() int { return l.limit }

// Len returns the number of tracked caller buckets.
func (l *SlidingWindow) Len() int { return l.buckets.Len() }
