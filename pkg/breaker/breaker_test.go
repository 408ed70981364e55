package breaker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeClock lets tests advance the breaker's view of time.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time {
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.t = c.t.Add(d)
}

func newTestBreaker(threshold int, timeout time.Duration) (*Breaker, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	b := New(threshold, timeout)
	b.now = clock.now
	return b, clock
}

func TestNew_Defaults(t *testing.T) {
	b := New(0, 0)

	assert.Equal(t, DefaultFailureThreshold, b.failureThreshold)
	assert.Equal(t, DefaultRecoveryTimeout, b.recoveryTimeout)
	assert.Equal(t, StateClosed, b.State())
}

func TestClosed_AllowsExecution(t *testing.T) {
	b, _ := newTestBreaker(5, time.Minute)

	assert.True(t, b.Allow())
	assert.Equal(t, StateClosed, b.State())
}

func TestOpensAfterThresholdFailures(t *testing.T) {
	b, _ := newTestBreaker(5, time.Minute)

	for i := 0; i < 4; i++ {
		b.RecordFailure()
		assert.Equal(t, StateClosed, b.State(), "failure %d", i+1)
		assert.True(t, b.Allow())
	}

	b.RecordFailure()
	assert.Equal(t, StateOpen, b.State())
	assert.False(t, b.Allow())
	assert.Equal(t, 5, b.Failures())
}

func TestSuccessResetsFailureCount(t *testing.T) {
	b, _ := newTestBreaker(3, time.Minute)

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	assert.Equal(t, 0, b.Failures())

	// Counter restarted, so two more failures stay below threshold.
	b.RecordFailure()
	b.RecordFailure()
	assert.Equal(t, StateClosed, b.State())
}

func TestRecoveryProbeAfterTimeout(t *testing.T) {
	b, clock := newTestBreaker(2, time.Minute)

	b.RecordFailure()
	b.RecordFailure()
	assert.Equal(t, StateOpen, b.State())
	assert.False(t, b.Allow())

	clock.advance(59 * time.Second)
	assert.False(t, b.Allow())

	clock.advance(1 * time.Second)
	assert.True(t, b.Allow())
	assert.Equal(t, StateHalfOpen, b.State())

	b.RecordSuccess()
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, 0, b.Failures())
}

func TestHalfOpen_SingleProbe(t *testing.T) {
	b, clock := newTestBreaker(1, time.Second)

	b.RecordFailure()
	clock.advance(time.Second)

	// First caller gets the probe; concurrent callers are held back.
	assert.True(t, b.Allow())
	assert.False(t, b.Allow())
	assert.False(t, b.Allow())

	b.RecordSuccess()
	assert.Equal(t, StateClosed, b.State())
	assert.True(t, b.Allow())
}

func TestHalfOpen_FailedProbeReopens(t *testing.T) {
	b, clock := newTestBreaker(3, time.Second)

	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}
	clock.advance(time.Second)
	assert.True(t, b.Allow())

	b.RecordFailure()
	assert.Equal(t, StateOpen, b.State())
	assert.False(t, b.Allow())

	// The failed probe restamps the failure time; a fresh timeout applies.
	clock.advance(time.Second)
	assert.True(t, b.Allow())
	assert.Equal(t, StateHalfOpen, b.State())
}

func TestReset(t *testing.T) {
	b, _ := newTestBreaker(1, time.Minute)

	b.RecordFailure()
	assert.Equal(t, StateOpen, b.State())

	b.Reset()
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, 0, b.Failures())
	assert.True(t, b.Allow())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
}
