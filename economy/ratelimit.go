/*
ratelimit.go - Per-account sliding-window limiter for purchase intents

PURPOSE:
  Gates how many purchase intents an account may open per rolling window.
  The contract is exact: with a limit of 10 per minute, calls 1-10 succeed
  and call 11 is denied until the oldest hit leaves the window. Denial has
  no side effect and writes no ledger record.
*/
package economy

import (
	"sync"
	"time"
)

// SlidingWindow counts hits per account over a rolling window.
type SlidingWindow struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	hits   map[string][]time.Time
	now    func() time.Time
}

func NewSlidingWindow(limit int, window time.Duration) *SlidingWindow {
	return &SlidingWindow{
		limit:  limit,
		window: window,
		hits:   make(map[string][]time.Time),
		now:    time.Now,
	}
}

// TryAcquire records a hit for the account if it is under the limit.
// Returns false (denied) when the rolling window is already full.
func (sw *SlidingWindow) TryAcquire(accountID string) bool {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := sw.now()
	cutoff := now.Add(-sw.window)

	hits := sw.hits[accountID]
	kept := hits[:0]
	for _, t := range hits {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= sw.limit {
		sw.hits[accountID] = kept
		return false
	}
	sw.hits[accountID] = append(kept, now)
	return true
}
