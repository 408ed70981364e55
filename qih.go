// Package qih provides an asynchronous optimization job scheduler with a
// primary (quantum) solver path, classical fallback behind a circuit
// breaker, retry with exponential backoff, and per-user usage metering.
//
// This is the main package users should import. It re-exports the public
// types from the pkg/ packages for a clean API surface.
//
// Basic usage:
//
//	store := qih.NewMemoryStore()
//	registry := qih.NewRegistry()
//	registry.AddFallback(qih.NewTabuSolver())
//
//	h := qih.New(store, registry, qih.WithWorkers(8))
//	go h.Start(ctx)
//
//	jobID, _ := h.Submit(ctx, "user-1", qih.OptimizationRequest{
//	    Operation:      "qubo",
//	    Inputs:         map[string]any{"linear": map[string]any{"x0": -1.0}},
//	    TimeoutSeconds: 30,
//	    Priority:       qih.PriorityHigh,
//	})
//
//	job, _ := h.Job(ctx, jobID)
package qih

import (
	"log/slog"

	"gorm.io/gorm"

	"github.com/nqba/qih/pkg/backoff"
	"github.com/nqba/qih/pkg/breaker"
	"github.com/nqba/qih/pkg/core"
	"github.com/nqba/qih/pkg/hub"
	"github.com/nqba/qih/pkg/security"
	"github.com/nqba/qih/pkg/solver"
	"github.com/nqba/qih/pkg/storage"
	"github.com/nqba/qih/pkg/usage"
)

// Type aliases re-exported from pkg/.
type (
	// QuantumJob is the scheduler's unit of tracked work.
	QuantumJob = core.QuantumJob

	// OptimizationRequest describes a unit of optimization work.
	OptimizationRequest = core.OptimizationRequest

	// JobMetrics accumulates per-job usage counters.
	JobMetrics = core.JobMetrics

	// Result is the outcome of a successful job.
	Result = core.Result

	// JobStatus represents the current state of a job.
	JobStatus = core.JobStatus

	// Priority orders jobs in the scheduler queue.
	Priority = core.Priority

	// SolverClass distinguishes the primary backend from classical fallbacks.
	SolverClass = core.SolverClass

	// JobStore defines the persistence layer for job records.
	JobStore = core.JobStore

	// Event is the interface for all scheduler events.
	Event = core.Event

	// JobQueued is emitted when a job is accepted into the queue.
	JobQueued = core.JobQueued

	// JobStarted is emitted when a worker claims a job.
	JobStarted = core.JobStarted

	// JobCompleted is emitted when a job completes successfully.
	JobCompleted = core.JobCompleted

	// JobFailed is emitted when a job fails permanently.
	JobFailed = core.JobFailed

	// JobRetrying is emitted when a failed job is recycled into the queue.
	JobRetrying = core.JobRetrying

	// JobArchived is emitted when the retention sweep archives a job.
	JobArchived = core.JobArchived

	// Hub is the job scheduler.
	Hub = hub.Hub

	// Option configures a Hub.
	Option = hub.Option

	// SubmitOption configures a single submission.
	SubmitOption = hub.SubmitOption

	// Solver is a single optimization backend.
	Solver = solver.Solver

	// SolverResult is a backend's answer to a single problem.
	SolverResult = solver.Result

	// SolverFunc adapts a plain function into a Solver.
	SolverFunc = solver.Func

	// Registry holds the pluggable solver backends.
	Registry = solver.Registry

	// Breaker is the circuit breaker guarding the primary solver path.
	Breaker = breaker.Breaker

	// RetryPolicy computes exponential retry delays for failed jobs.
	RetryPolicy = backoff.Policy

	// UsageTracker accumulates per-user and global billing counters.
	UsageTracker = usage.Tracker

	// UserUsage is a snapshot of one user's accumulated counters.
	UserUsage = usage.UserUsage

	// GlobalUsage is a snapshot of the platform-wide counters.
	GlobalUsage = usage.GlobalUsage

	// MemoryStore is the default in-process JobStore.
	MemoryStore = storage.MemoryStore

	// GormStore implements JobStore on a GORM-managed database.
	GormStore = storage.GormStore
)

// Status constants.
const (
	StatusQueued    = core.StatusQueued
	StatusRunning   = core.StatusRunning
	StatusCompleted = core.StatusCompleted
	StatusFailed    = core.StatusFailed
	StatusArchived  = core.StatusArchived
)

// Priority tiers.
const (
	PriorityLow    = core.PriorityLow
	PriorityNormal = core.PriorityNormal
	PriorityHigh   = core.PriorityHigh
	PriorityUrgent = core.PriorityUrgent
)

// Solver classes.
const (
	SolverQuantum   = core.SolverQuantum
	SolverClassical = core.SolverClassical
)

// Error variables.
var (
	ErrInvalidOperationName = core.ErrInvalidOperationName
	ErrInvalidTimeout       = core.ErrInvalidTimeout
	ErrInvalidPriority      = core.ErrInvalidPriority
	ErrInputsTooLarge       = core.ErrInputsTooLarge
	ErrNotFound             = core.ErrNotFound
	ErrPermissionDenied     = core.ErrPermissionDenied
	ErrNotCancellable       = core.ErrNotCancellable
	ErrNotRetryable         = core.ErrNotRetryable
	ErrNoSolver             = core.ErrNoSolver
)

// New creates a hub over the given store and solver registry.
func New(store JobStore, registry *Registry, opts ...Option) *Hub {
	return hub.New(store, registry, opts...)
}

// NewMemoryStore creates an in-memory job store.
func NewMemoryStore() *MemoryStore {
	return storage.NewMemoryStore()
}

// NewGormStore creates a GORM-backed job store.
func NewGormStore(db *gorm.DB) *GormStore {
	return storage.NewGormStore(db)
}

// NewRegistry creates an empty solver registry.
func NewRegistry() *Registry {
	return solver.NewRegistry()
}

// NewBreaker creates a circuit breaker with the given threshold and recovery
// timeout.
var NewBreaker = breaker.New

// NewTabuSolver returns the built-in classical QUBO fallback solver.
func NewTabuSolver() Solver {
	return solver.NewTabu()
}

// NewUsageTracker creates an empty usage tracker.
func NewUsageTracker() *UsageTracker {
	return usage.NewTracker()
}

// DefaultRetryPolicy returns the default backoff policy (1s base, 60s cap).
func DefaultRetryPolicy() RetryPolicy {
	return backoff.Default()
}

// Hub option functions.

// WithWorkers sets the consumer pool size.
func WithWorkers(n int) Option { return hub.WithWorkers(n) }

// WithMaxRetries sets the default retry budget for new jobs.
func WithMaxRetries(n int) Option { return hub.WithMaxRetries(n) }

// WithTTLDays sets the retention window for terminal jobs.
func WithTTLDays(days int) Option { return hub.WithTTLDays(days) }

// WithSweepSpec sets the archival sweep cron schedule.
func WithSweepSpec(spec string) Option { return hub.WithSweepSpec(spec) }

// WithQPUCostPerMS sets the estimated cost per millisecond of primary solver
// time.
func WithQPUCostPerMS(cost float64) Option { return hub.WithQPUCostPerMS(cost) }

// WithLogger replaces the hub's logger.
func WithLogger(l *slog.Logger) Option { return hub.WithLogger(l) }

// WithRetryPolicy replaces the backoff policy applied between job attempts.
func WithRetryPolicy(p RetryPolicy) Option { return hub.WithRetryPolicy(p) }

// WithBreaker replaces the circuit breaker guarding the primary solver.
func WithBreaker(b *Breaker) Option { return hub.WithBreaker(b) }

// WithUsageTracker replaces the usage tracker fed on job completion.
func WithUsageTracker(t *UsageTracker) Option { return hub.WithUsageTracker(t) }

// Submit option functions.

// IdempotencyKey deduplicates repeated submissions.
func IdempotencyKey(key string) SubmitOption { return hub.IdempotencyKey(key) }

// Retries overrides the job's retry budget.
func Retries(n int) SubmitOption { return hub.Retries(n) }

// TTL overrides the job's retention window in days.
func TTL(days int) SubmitOption { return hub.TTL(days) }

// SanitizeErrorMessage truncates and sanitizes error messages for storage.
func SanitizeErrorMessage(msg string) string {
	return security.SanitizeErrorMessage(msg)
}

// ValidateOperationName validates an operation tag.
func ValidateOperationName(name string) error {
	return security.ValidateOperationName(name)
}
