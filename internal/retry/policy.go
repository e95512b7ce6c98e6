// Package retry decides whether an upstream failure is worth another
// attempt and how long to back off before it.
package retry

import (
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/fortunefaded/marketing-tool-sub003/internal/config"
	"github.com/fortunefaded/marketing-tool-sub003/internal/insights"
)

// Policy computes exponential-backoff-with-jitter delays. Jitter is ±25%
// applied multiplicatively so concurrent callers spread out instead of
// retrying in lockstep.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
	MaxDelay    time.Duration

	// rng is injectable for deterministic tests; nil uses the shared
	// math/rand source.
	rng *rand.Rand
}

// DefaultPolicy returns the standard policy: 3 attempts, 1s base, 2x
// multiplier, 30s cap.
func DefaultPolicy() *Policy {
	return &Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		Multiplier:  2.0,
		MaxDelay:    30 * time.Second,
	}
}

// FromConfig builds a policy from the application configuration.
func FromConfig(cfg *config.Config) *Policy {
	return &Policy{
		MaxAttempts: cfg.RetryMaxAttempts,
		BaseDelay:   time.Duration(cfg.RetryBaseDelayMs) * time.Millisecond,
		Multiplier:  cfg.RetryMultiplier,
		MaxDelay:    time.Duration(cfg.RetryMaxDelayMs) * time.Millisecond,
	}
}

// WithRand returns a copy of the policy using the given random source.
func (p *Policy) WithRand(rng *rand.Rand) *Policy {
	clone := *p
	clone.rng = rng
	return &clone
}

// ShouldRetry reports whether the error may be reattempted given how many
// attempts have already run. attemptIndex is zero-based.
func (p *Policy) ShouldRetry(err error, attemptIndex int) bool {
	if attemptIndex >= p.MaxAttempts-1 {
		return false
	}
	var apiErr *insights.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	return false
}

// NextDelay returns the backoff before the attempt after attemptIndex.
// Rate-limit errors that carry a suggested wait use it directly.
func (p *Policy) NextDelay(err error, attemptIndex int) time.Duration {
	var apiErr *insights.APIError
	if errors.As(err, &apiErr) && apiErr.Kind == insights.KindRateLimit && apiErr.RetryAfter > 0 {
		return apiErr.RetryAfter
	}

	backoff := float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(attemptIndex))
	if capped := float64(p.MaxDelay); backoff > capped {
		backoff = capped
	}

	// ±25% multiplicative jitter.
	jitter := 0.75 + 0.5*p.random()
	delay := time.Duration(backoff * jitter)
	if delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}

func (p *Policy) random() float64 {
	if p.rng != nil {
		return p.rng.Float64()
	}
	return rand.Float64()
}
