package pool

import (
	"sync"
	"time"

	"github.com/flowcraft/core/errs"
)

type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

// circuitBreaker trips after a configurable number of consecutive
// connection failures for a server and fails acquisitions fast until a
// cool-down elapses, then admits exactly one trial acquisition before
// deciding whether to close or reopen. Modeled on the mutex-guarded
// state machine of the adaptive rate limiter the provider client
// middleware uses, adapted here to count failures instead of tokens.
type circuitBreaker struct {
	mu sync.Mutex

	threshold int
	coolDown  time.Duration

	state         breakerState
	failures      int
	openedAt      time.Time
	trialInFlight bool
}

func newCircuitBreaker(threshold int, coolDown time.Duration) *circuitBreaker {
	if threshold <= 0 {
		threshold = 1
	}
	return &circuitBreaker{threshold: threshold, coolDown: coolDown, state: breakerClosed}
}

// allow reports whether an acquisition may proceed. It returns an error
// when the breaker is open and the cool-down has not yet elapsed.
func (b *circuitBreaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case breakerClosed:
		return nil
	case breakerOpen:
		if time.Since(b.openedAt) < b.coolDown {
			return errs.NewTransient(errs.CircuitOpen, "mcp pool: circuit open")
		}
		if b.trialInFlight {
			return errs.NewTransient(errs.CircuitOpen, "mcp pool: circuit open, trial in flight")
		}
		b.state = breakerHalfOpen
		b.trialInFlight = true
		return nil
	case breakerHalfOpen:
		return errs.NewTransient(errs.CircuitOpen, "mcp pool: circuit open, trial in flight")
	default:
		return nil
	}
}

// recordSuccess closes the breaker and resets the failure count.
func (b *circuitBreaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = breakerClosed
	b.failures = 0
	b.trialInFlight = false
}

// recordFailure increments the failure count, tripping the breaker once
// threshold consecutive failures have accumulated. A failure during the
// half-open trial reopens the breaker immediately.
func (b *circuitBreaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == breakerHalfOpen {
		b.state = breakerOpen
		b.openedAt = time.Now()
		b.trialInFlight = false
		return
	}
	b.failures++
	if b.failures >= b.threshold {
		b.state = breakerOpen
		b.openedAt = time.Now()
	}
}
