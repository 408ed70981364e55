// Package breaker implements the circuit breaker guarding the primary
// solver path.
//
// The breaker has three states:
//
//   - CLOSED: normal operation, primary solve attempts pass through
//   - OPEN: primary backend failing, attempts are redirected to fallback
//   - HALF-OPEN: recovery timeout elapsed, a single probe is allowed
package breaker

import (
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	StateClosed   State = iota // Normal operation; attempts pass through.
	StateOpen                  // Failing; attempts are rejected immediately.
	StateHalfOpen              // Probing; one attempt allowed to test recovery.
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Default thresholds.
const (
	DefaultFailureThreshold = 5
	DefaultRecoveryTimeout  = 60 * time.Second
)

// Breaker tracks consecutive failures of the primary solver and temporarily
// disables it. Safe for concurrent use; at most one probe is admitted while
// half-open.
type Breaker struct {
	mu sync.Mutex

	failureThreshold int
	recoveryTimeout  time.Duration

	state       State
	failures    int
	lastFailure time.Time
	probing     bool

	now func() time.Time
}

// New creates a breaker that opens after threshold consecutive failures and
// allows a recovery probe once timeout has elapsed since the last failure.
// Non-positive arguments fall back to the defaults.
func New(threshold int, timeout time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = DefaultFailureThreshold
	}
	if timeout <= 0 {
		timeout = DefaultRecoveryTimeout
	}
	return &Breaker{
		failureThreshold: threshold,
		recoveryTimeout:  timeout,
		now:              time.Now,
	}
}

// Allow reports whether a primary solve attempt may proceed. When the circuit
// is open and the recovery timeout has elapsed, it transitions to half-open
// and admits exactly one probing attempt.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if b.now().Sub(b.lastFailure) >= b.recoveryTimeout {
			b.state = StateHalfOpen
			b.probing = true
			return true
		}
		return false
	case StateHalfOpen:
		// Only one in-flight probe at a time.
		if b.probing {
			return false
		}
		b.probing = true
		return true
	}
	return false
}

// RecordSuccess resets the failure counter and closes the circuit after a
// successful half-open probe.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	b.probing = false
	if b.state == StateHalfOpen {
		b.state = StateClosed
	}
}

// RecordFailure increments the failure counter and stamps the failure time.
// The circuit opens when the counter reaches the threshold, or immediately
// when a half-open probe fails.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.lastFailure = b.now()
	b.probing = false

	if b.state == StateHalfOpen || b.failures >= b.failureThreshold {
		b.state = StateOpen
	}
}

// State returns the current circuit breaker state.
func (b *Breaker) State() State {
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

// Reset forces the breaker back to closed state.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failures = 0
	b.probing = false
}
