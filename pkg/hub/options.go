package hub

import (
	"log/slog"

	"github.com/nqba/qih/pkg/backoff"
	"github.com/nqba/qih/pkg/breaker"
	"github.com/nqba/qih/pkg/security"
	"github.com/nqba/qih/pkg/usage"
)

// Defaults for hub configuration.
const (
	DefaultWorkers      = 4
	DefaultMaxRetries   = 3
	DefaultTTLDays      = 90
	DefaultSweepSpec    = "@every 1m"
	DefaultQPUCostPerMS = 0.0005
)

// Config holds hub configuration.
type Config struct {
	// Workers is the number of concurrent queue consumers.
	Workers int

	// MaxRetries is the default retry budget for new jobs.
	MaxRetries int

	// TTLDays is the default retention window before terminal jobs are
	// archived.
	TTLDays int

	// SweepSpec is the cron schedule for the archival sweep.
	SweepSpec string

	// QPUCostPerMS converts primary solver time to an estimated cost.
	QPUCostPerMS float64
}

// Option configures a Hub.
type Option interface {
	apply(*Hub)
}

type optionFunc func(*Hub)

func (f optionFunc) apply(h *Hub) { f(h) }

// WithWorkers sets the consumer pool size, clamped to [1, MaxWorkers].
func WithWorkers(n int) Option {
	return optionFunc(func(h *Hub) {
		h.cfg.Workers = security.ClampWorkers(n)
	})
}

// WithMaxRetries sets the default retry budget for new jobs.
func WithMaxRetries(n int) Option {
	return optionFunc(func(h *Hub) {
		h.cfg.MaxRetries = security.ClampRetries(n)
	})
}

// WithTTLDays sets the default retention window for terminal jobs.
func WithTTLDays(days int) Option {
	return optionFunc(func(h *Hub) {
		if days >= 0 {
			h.cfg.TTLDays = days
		}
	})
}

// WithSweepSpec sets the archival sweep cron schedule. Accepts standard cron
// expressions and descriptors like "@hourly" or "@every 5m".
func WithSweepSpec(spec string) Option {
	return optionFunc(func(h *Hub) {
		h.cfg.SweepSpec = spec
	})
}

// WithQPUCostPerMS sets the estimated cost per millisecond of primary solver
// time.
func WithQPUCostPerMS(cost float64) Option {
	return optionFunc(func(h *Hub) {
		h.cfg.QPUCostPerMS = cost
	})
}

// WithRetryPolicy replaces the backoff policy applied between job attempts.
func WithRetryPolicy(p backoff.Policy) Option {
	return optionFunc(func(h *Hub) {
		h.retry = p
	})
}

// WithBreaker replaces the circuit breaker guarding the primary solver.
func WithBreaker(b *breaker.Breaker) Option {
	return optionFunc(func(h *Hub) {
		h.cb = b
	})
}

// WithUsageTracker replaces the usage tracker fed on job completion.
func WithUsageTracker(t *usage.Tracker) Option {
	return optionFunc(func(h *Hub) {
		h.usage = t
	})
}

// WithLogger replaces the hub's logger.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(h *Hub) {
		h.logger = l
	})
}

// SubmitOption configures a single submission.
type SubmitOption interface {
	applySubmit(*submitOptions)
}

type submitOptions struct {
	idempotencyKey string
	maxRetries     *int
	ttlDays        *int
}

type submitOptionFunc func(*submitOptions)

func (f submitOptionFunc) applySubmit(o *submitOptions) { f(o) }

// IdempotencyKey deduplicates repeated submissions: a second submission by
// the same user with the same key returns the original job id.
func IdempotencyKey(key string) SubmitOption {
	return submitOptionFunc(func(o *submitOptions) {
		o.idempotencyKey = key
	})
}

// Retries overrides the job's retry budget, clamped to [0, MaxRetries].
func Retries(n int) SubmitOption {
	return submitOptionFunc(func(o *submitOptions) {
		n = security.ClampRetries(n)
		o.maxRetries = &n
	})
}

// TTL overrides the job's retention window in days.
func TTL(days int) SubmitOption {
	return submitOptionFunc(func(o *submitOptions) {
		if days >= 0 {
			o.ttlDays = &days
		}
	})
}
