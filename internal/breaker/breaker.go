// Package breaker implements the per-collector circuit breaker state
// machine (spec.md §4.7). One Breaker guards one collector; breakers are
// never shared across collectors or cadences. The mutex-guarded struct
// shape follows the teacher's sink.Retry type (blip/sink/retry.go), which
// wraps an unreliable downstream behind a small stateful, lock-protected
// struct with an explicit admit/record split.
package breaker

import (
	"sync"
	"time"
)

// State is one of the three reachable circuit breaker states.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Config holds the breaker's tunables (spec.md §4.7).
type Config struct {
	FailureThreshold         int
	RecoveryTimeout          time.Duration
	HalfOpenSuccessThreshold int
	HalfOpenFailureThreshold int
}

// Breaker is a single collector's failure-isolation state machine. All
// exported methods are safe for concurrent use, though spec.md only
// requires safety within one supervisor loop (breakers are not shared
// across cadences).
type Breaker struct {
	cfg   Config
	clock Clock

	mu                  sync.Mutex
	state               State
	consecutiveFailures int
	consecutiveSuccess  int
	openedAt            time.Time
}

// New constructs a Breaker in the Closed state using the given clock.
func New(cfg Config, clock Clock) *Breaker {
	return &Breaker{cfg: cfg, clock: clock, state: Closed}
}

// Allow reports whether a call may proceed. In Open state, it is a pure
// query except when the recovery timeout has elapsed, in which case it
// transitions to HalfOpen as a side effect (spec.md §4.7: "the transition
// may be driven by the next admission check").
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed, HalfOpen:
		return true
	case Open:
		if b.clock.Now().Sub(b.openedAt) >= b.cfg.RecoveryTimeout {
			b.transitionLocked(HalfOpen)
			return true
		}
		return false
	default:
		return false
	}
}

// RecordSuccess reports a successful call to the breaker.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		b.consecutiveFailures = 0
	case HalfOpen:
		b.consecutiveSuccess++
		if b.consecutiveSuccess >= b.cfg.HalfOpenSuccessThreshold {
			b.transitionLocked(Closed)
		}
	case Open:
		// A success can only be reported for a call that was admitted, and
		// Open never admits calls; nothing to do if it happens anyway.
	}
}

// RecordFailure reports a failed call to the breaker.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		b.consecutiveFailures++
		if b.consecutiveFailures >= b.cfg.FailureThreshold {
			b.transitionLocked(Open)
		}
	case HalfOpen:
		b.consecutiveFailures++
		if b.consecutiveFailures >= b.cfg.HalfOpenFailureThreshold {
			b.transitionLocked(Open)
		}
	case Open:
		// Already open; nothing to do.
	}
}

// CurrentState returns the breaker's current state, for observability only.
func (b *Breaker) CurrentState() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// transitionLocked moves to newState and resets both counters, per spec.md
// §4.7 ("Every transition resets both counters"). Callers must hold b.mu.
func (b *Breaker) transitionLocked(newState State) {
	b.state = newState
	b.consecutiveFailures = 0
	b.consecutiveSuccess = 0
	if newState == Open {
		b.openedAt = b.clock.Now()
	}
}
