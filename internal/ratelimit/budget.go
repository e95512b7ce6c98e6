// Package ratelimit tracks API calls against rolling hourly and daily
// windows. One Budget instance is shared per downstream dependency so the
// allowance is respected globally, not per caller.
package ratelimit

import (
	"sync"
	"time"

	"github.com/fortunefaded/marketing-tool-sub003/internal/timeframe"
)

// Usage reports how many calls each rolling window currently holds.
type Usage struct {
	Hourly int
	Daily  int
}

// Budget maintains timestamped call records against two rolling windows.
// It never blocks; callers sleep externally on WaitTime.
type Budget struct {
	mu            sync.Mutex
	clock         timeframe.Clock
	hourlyCeiling int
	dailyCeiling  int
	calls         []time.Time
}

// NewBudget creates a budget with the given window ceilings. A nil clock
// falls back to the system clock.
func NewBudget(hourlyCeiling, dailyCeiling int, clock timeframe.Clock) *Budget {
	if clock == nil {
		clock = timeframe.SystemClock{}
	}
	return &Budget{
		clock:         clock,
		hourlyCeiling: hourlyCeiling,
		dailyCeiling:  dailyCeiling,
	}
}

// CanProceed reports whether a call may be made now without exceeding either
// window ceiling.
func (b *Budget) CanProceed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.clock.Now()
	b.evict(now)
	return b.countSince(now.Add(-time.Hour)) < b.hourlyCeiling &&
		len(b.calls) < b.dailyCeiling
}

// RecordCall registers one call at the current time.
func (b *Budget) RecordCall() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.clock.Now()
	b.evict(now)
	b.calls = append(b.calls, now)
}

// WaitTime returns how long the caller must wait until the saturated window
// frees a slot, or 0 when under budget.
func (b *Budget) WaitTime() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.clock.Now()
	b.evict(now)

	var wait time.Duration
	if b.countSince(now.Add(-time.Hour)) >= b.hourlyCeiling {
		oldest := b.oldestSince(now.Add(-time.Hour))
		if w := oldest.Add(time.Hour).Sub(now); w > wait {
			wait = w
		}
	}
	if len(b.calls) >= b.dailyCeiling {
		if w := b.calls[0].Add(24 * time.Hour).Sub(now); w > wait {
			wait = w
		}
	}
	if wait < 0 {
		wait = 0
	}
	return wait
}

// CurrentUsage returns the rolling call counts for both windows.
func (b *Budget) CurrentUsage() Usage {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.clock.Now()
	b.evict(now)
	return Usage{
		Hourly: b.countSince(now.Add(-time.Hour)),
		Daily:  len(b.calls),
	}
}

// HourlyRemaining returns how many calls remain in the hourly window.
func (b *Budget) HourlyRemaining() int {
	usage := b.CurrentUsage()
	remaining := b.hourlyCeiling - usage.Hourly
	if remaining < 0 {
		return 0
	}
	return remaining
}

// evict drops calls older than the daily window. Calls are appended in time
// order so the slice stays sorted. Callers must hold the mutex.
func (b *Budget) evict(now time.Time) {
	cutoff := now.Add(-24 * time.Hour)
	idx := 0
	for idx < len(b.calls) && !b.calls[idx].After(cutoff) {
		idx++
	}
	if idx > 0 {
		b.calls = append(b.calls[:0], b.calls[idx:]...)
	}
}

func (b *Budget) countSince(cutoff time.Time) int {
	count := 0
	for i := len(b.calls) - 1; i >= 0; i-- {
		if !b.calls[i].After(cutoff) {
			break
		}
		count++
	}
	return count
}

func (b *Budget) oldestSince(cutoff time.Time) time.Time {
	for _, t := range b.calls {
		if t.After(cutoff) {
			return t
		}
	}
	return time.Time{}
}
