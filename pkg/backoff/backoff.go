// Package backoff computes exponential retry delays for failed jobs.
package backoff

import (
	"math/rand"
	"time"
)

// Default policy values.
const (
	DefaultBaseDelay = 1 * time.Second
	DefaultMaxDelay  = 60 * time.Second
)

// Policy computes the delay before a failed job's next attempt:
// BaseDelay * 2^(attempt-1), capped at MaxDelay.
type Policy struct {
	BaseDelay time.Duration
	MaxDelay  time.Duration

	// JitterFraction randomizes the delay by up to the given fraction
	// (0.0 to 1.0). Zero keeps Delay deterministic.
	JitterFraction float64
}

// Default returns the default retry policy (1s base, 60s cap, no jitter).
func Default() Policy {
	return Policy{
		BaseDelay: DefaultBaseDelay,
		MaxDelay:  DefaultMaxDelay,
	}
}

// Delay returns the backoff before the given attempt (1-based). Attempts
// <= 0 yield zero delay.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	delay := p.BaseDelay
	// Shift with an overflow guard; past the cap the exact value is moot.
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= p.MaxDelay || delay < 0 {
			delay = p.MaxDelay
			break
		}
	}
	if delay > p.MaxDelay {
		delay = p.MaxDelay
	}

	if p.JitterFraction > 0 {
		jitter := time.Duration(float64(delay) * p.JitterFraction * (rand.Float64()*2 - 1))
		if delay+jitter > 0 {
			delay += jitter
		}
	}

	return delay
}
