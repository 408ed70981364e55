// Package core provides the domain models and interfaces for the qih package.
package core

import (
	"time"
)

// JobStatus represents the current state of a job.
type JobStatus string

const (
	StatusQueued    JobStatus = "queued"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	StatusArchived  JobStatus = "archived" // Past retention, kept for audit only
)

// Terminal reports whether the status is a terminal state.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusArchived
}

// Priority orders jobs in the scheduler queue. Higher runs first;
// submission order is preserved within a tier.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityUrgent
)

// String returns a human-readable priority name.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityUrgent:
		return "urgent"
	default:
		return "unknown"
	}
}

// Valid reports whether p is one of the defined priority tiers.
func (p Priority) Valid() bool {
	return p >= PriorityLow && p <= PriorityUrgent
}

// ParsePriority converts a priority name ("low", "normal", "high", "urgent")
// to a Priority. An empty string maps to normal.
func ParsePriority(s string) (Priority, error) {
	switch s {
	case "low":
		return PriorityLow, nil
	case "normal", "":
		return PriorityNormal, nil
	case "high":
		return PriorityHigh, nil
	case "urgent":
		return PriorityUrgent, nil
	default:
		return PriorityNormal, ErrInvalidPriority
	}
}

// SolverClass distinguishes the primary (quantum) backend from classical
// fallbacks.
type SolverClass string

const (
	SolverQuantum   SolverClass = "quantum"
	SolverClassical SolverClass = "classical"
)

// PreferPrimary is the solver preference naming the primary backend.
// An empty preference means the same thing.
const PreferPrimary = "primary"

// OptimizationRequest describes a unit of optimization work. It is immutable
// after submission.
type OptimizationRequest struct {
	// Operation tags the problem shape, e.g. "qubo".
	Operation string

	// Inputs is the opaque payload interpreted by the solver backend.
	Inputs map[string]any

	// SolverPreference is "" or PreferPrimary to try the primary backend
	// first, or the name of a registered fallback solver.
	SolverPreference string

	// TimeoutSeconds bounds each solver invocation. Must be positive.
	TimeoutSeconds int

	Priority Priority

	// Metadata carries free-form caller annotations (org id, trace id, ...).
	Metadata map[string]string
}

// JobMetrics accumulates per-job usage counters. Fields start at zero and are
// only ever incremented by the worker that executed the job.
type JobMetrics struct {
	QPUTimeMS      float64 `json:"qpu_time_ms"`
	Reads          int64   `json:"reads"`
	ProblemsSolved int64   `json:"problems_solved"`
	BytesIn        int64   `json:"bytes_in"`
	BytesOut       int64   `json:"bytes_out"`
	FallbackTimeMS float64 `json:"fallback_time_ms"`
	CostEstimate   float64 `json:"cost_estimate"`
}

// Merge folds another set of counters into m.
func (m *JobMetrics) Merge(o JobMetrics) {
	m.QPUTimeMS += o.QPUTimeMS
	m.Reads += o.Reads
	m.ProblemsSolved += o.ProblemsSolved
	m.BytesIn += o.BytesIn
	m.BytesOut += o.BytesOut
	m.FallbackTimeMS += o.FallbackTimeMS
	m.CostEstimate += o.CostEstimate
}

// Result is the outcome of a successful job.
type Result struct {
	Solution       map[string]any `json:"solution"`
	ObjectiveValue float64        `json:"objective_value"`
	SolverUsed     SolverClass    `json:"solver_used"`
	SolverName     string         `json:"solver_name"`

	// QuantumAdvantage is reported by the primary backend when it has a
	// figure; it is never computed locally and is nil for classical results.
	QuantumAdvantage *float64 `json:"quantum_advantage,omitempty"`
}

// QuantumJob is the scheduler's unit of tracked work. Once created, only the
// scheduler mutates it; readers receive snapshots via Clone.
type QuantumJob struct {
	ID      string
	UserID  string
	Request OptimizationRequest

	Status   JobStatus
	Priority Priority

	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time

	Result  *Result
	Error   string
	Metrics JobMetrics

	RetryCount int
	MaxRetries int

	// IdempotencyKey deduplicates repeated submissions by the same user.
	IdempotencyKey string

	// TTLDays is the retention window after completion before the job is
	// archived by the sweep.
	TTLDays int
}

// Clone returns a deep copy suitable for handing to readers.
func (j *QuantumJob) Clone() *QuantumJob {
	c := *j
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	if j.Result != nil {
		r := *j.Result
		if j.Result.Solution != nil {
			r.Solution = make(map[string]any, len(j.Result.Solution))
			for k, v := range j.Result.Solution {
				r.Solution[k] = v
			}
		}
		if j.Result.QuantumAdvantage != nil {
			qa := *j.Result.QuantumAdvantage
			r.QuantumAdvantage = &qa
		}
		c.Result = &r
	}
	if j.Request.Inputs != nil {
		c.Request.Inputs = make(map[string]any, len(j.Request.Inputs))
		for k, v := range j.Request.Inputs {
			c.Request.Inputs[k] = v
		}
	}
	if j.Request.Metadata != nil {
		c.Request.Metadata = make(map[string]string, len(j.Request.Metadata))
		for k, v := range j.Request.Metadata {
			c.Request.Metadata[k] = v
		}
	}
	return &c
}

// ExpiresAt returns the archival deadline, or the zero time while the job is
// not yet terminal.
func (j *QuantumJob) ExpiresAt() time.Time {
	if j.CompletedAt == nil {
		return time.Time{}
	}
	return j.CompletedAt.Add(time.Duration(j.TTLDays) * 24 * time.Hour)
}
