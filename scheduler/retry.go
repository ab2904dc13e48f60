package scheduler

import (
	"math"
	"math/rand"
	"time"
)

// RetryPolicy configures how the scheduler retries a node whose failure is
// classified Transient. Zero-valued fields other than Jitter fall back to
// DefaultRetryPolicy's values via normalize; a zero Jitter disables jitter.
type RetryPolicy struct {
	// MaxAttempts caps the total number of attempts (including the first).
	// A value of 1 means no retries; 0 or less falls back to the default.
	MaxAttempts int
	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration
	// MaxBackoff caps the computed delay between retries.
	MaxBackoff time.Duration
	// BackoffMultiplier multiplies the delay after each retry; 2.0 gives
	// exponential backoff.
	BackoffMultiplier float64
	// Jitter adds up to this fraction of randomness to the computed delay
	// to avoid synchronized retries across concurrent runs.
	Jitter float64
}

// DefaultRetryPolicy matches the engine's default: base 100ms, factor 2,
// cap 10s, three total attempts.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:       3,
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        10 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            0.1,
	}
}

func (p RetryPolicy) normalize() RetryPolicy {
	d := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = d.InitialBackoff
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = d.MaxBackoff
	}
	if p.BackoffMultiplier <= 0 {
		p.BackoffMultiplier = d.BackoffMultiplier
	}
	return p
}

// backoff computes the delay after the given failed attempt (1 before the
// first retry, which waits InitialBackoff), applying exponential
// growth capped at MaxBackoff and up to Jitter fraction of randomness.
func (p RetryPolicy) backoff(attempt int) time.Duration {
	d := float64(p.InitialBackoff) * math.Pow(p.BackoffMultiplier, float64(attempt-1))
	if d > float64(p.MaxBackoff) {
		d = float64(p.MaxBackoff)
	}
	if p.Jitter > 0 {
		d += d * p.Jitter * (rand.Float64()*2 - 1) //nolint:gosec // jitter doesn't need crypto rand
	}
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}
