// Package breaker implements a closed/open/half-open circuit breaker that
// isolates a consistently failing downstream dependency. One instance is
// shared per dependency.
package breaker

import (
	"sync"
	"time"

	"github.com/fortunefaded/marketing-tool-sub003/internal/timeframe"
)

// State is the breaker's position.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// Breaker gates calls to a downstream dependency based on consecutive
// failures.
type Breaker struct {
	mu               sync.Mutex
	clock            timeframe.Clock
	failureThreshold int
	cooldown         time.Duration

	state         State
	failures      int
	lastFailureAt time.Time
	probeInFlight bool

	onStateChange func(from, to State)
}

// New creates a closed breaker. A nil clock falls back to the system clock.
func New(failureThreshold int, cooldown time.Duration, clock timeframe.Clock) *Breaker {
	if clock == nil {
		clock = timeframe.SystemClock{}
	}
	return &Breaker{
		clock:            clock,
		failureThreshold: failureThreshold,
		cooldown:         cooldown,
		state:            StateClosed,
	}
}

// OnStateChange registers a hook invoked on every transition, e.g. for a
// metrics gauge. Must be set before the breaker is shared.
func (b *Breaker) OnStateChange(fn func(from, to State)) {
	b.onStateChange = fn
}

// CanAttempt reports whether a call may be attempted. In the open state it
// returns false until the cooldown elapses, then moves to half-open and
// admits exactly one probe at a time.
func (b *Breaker) CanAttempt() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if b.clock.Now().Sub(b.lastFailureAt) < b.cooldown {
			return false
		}
		b.transition(StateHalfOpen)
		b.probeInFlight = true
		return true
	case StateHalfOpen:
		if b.probeInFlight {
			return false
		}
		b.probeInFlight = true
		return true
	}
	return false
}

// OnSuccess resets the failure count; a half-open probe success closes the
// circuit.
func (b *Breaker) OnSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	b.probeInFlight = false
	if b.state != StateClosed {
		b.transition(StateClosed)
	}
}

// OnFailure records a failure. The circuit opens at the failure threshold
// and reopens immediately on a half-open probe failure.
func (b *Breaker) OnFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.lastFailureAt = b.clock.Now()
	b.probeInFlight = false

	if b.state == StateHalfOpen {
		b.transition(StateOpen)
		return
	}
	if b.state == StateClosed && b.failures >= b.failureThreshold {
		b.transition(StateOpen)
	}
}

// AbandonProbe releases a probe claimed by CanAttempt when the attempt ends
// without an upstream verdict, e.g. on context cancellation. State and the
// failure count are untouched; in half-open the next CanAttempt admits a
// fresh probe.
func (b *Breaker) AbandonProbe() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probeInFlight = false
}

// CurrentState returns the breaker's position.
func (b *Breaker) CurrentState() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Failures returns the consecutive failure count.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// transition must be called with the mutex held.
func (b *Breaker) transition(to State) {
	from := b.state
	b.state = to
	if b.onStateChange != nil && from != to {
		b.onStateChange(from, to)
	}
}
