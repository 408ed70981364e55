// Package usage accumulates per-user and global billing counters for
// completed jobs.
package usage

import (
	"sync"

	"github.com/nqba/qih/pkg/core"
)

// UserUsage is a snapshot of one user's accumulated counters.
type UserUsage struct {
	JobsCompleted  int64   `json:"jobs_completed"`
	QPUTimeMS      float64 `json:"qpu_time_ms"`
	Reads          int64   `json:"reads"`
	ProblemsSolved int64   `json:"problems_solved"`
	BytesProcessed int64   `json:"bytes_processed"`
	CostEstimate   float64 `json:"cost_estimate"`
}

// GlobalUsage is a snapshot of the platform-wide counters.
type GlobalUsage struct {
	TotalJobs           int64   `json:"total_jobs"`
	QuantumJobs         int64   `json:"quantum_jobs"`
	ClassicalJobs       int64   `json:"classical_jobs"`
	TotalQPUTimeMS      float64 `json:"total_qpu_time_ms"`
	TotalReads          int64   `json:"total_reads"`
	TotalProblemsSolved int64   `json:"total_problems_solved"`
}

// Tracker accumulates usage whenever a job completes. Safe for concurrent
// use; RecordCompletion must be called exactly once per completed job.
type Tracker struct {
	mu     sync.Mutex
	users  map[string]*UserUsage
	global GlobalUsage
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{users: make(map[string]*UserUsage)}
}

// RecordCompletion folds a completed job's metrics into the owner's bucket
// and the global bucket.
func (t *Tracker) RecordCompletion(job *core.QuantumJob) {
	m := job.Metrics

	t.mu.Lock()
	u := t.users[job.UserID]
	if u == nil {
		u = &UserUsage{}
		t.users[job.UserID] = u
	}
	u.JobsCompleted++
	u.QPUTimeMS += m.QPUTimeMS
	u.Reads += m.Reads
	u.ProblemsSolved += m.ProblemsSolved
	u.BytesProcessed += m.BytesIn + m.BytesOut
	u.CostEstimate += m.CostEstimate

	t.global.TotalJobs++
	if job.Result != nil && job.Result.SolverUsed == core.SolverQuantum {
		t.global.QuantumJobs++
	} else {
		t.global.ClassicalJobs++
	}
	t.global.TotalQPUTimeMS += m.QPUTimeMS
	t.global.TotalReads += m.Reads
	t.global.TotalProblemsSolved += m.ProblemsSolved
	t.mu.Unlock()

	solverClass := core.SolverClassical
	if job.Result != nil {
		solverClass = job.Result.SolverUsed
	}
	jobsCompletedCounter.WithLabelValues(string(solverClass)).Inc()
	qpuTimeCounter.Add(m.QPUTimeMS)
	readsCounter.Add(float64(m.Reads))
	if job.StartedAt != nil && job.CompletedAt != nil {
		jobDurationHist.Observe(job.CompletedAt.Sub(*job.StartedAt).Seconds())
	}
}

// UserUsage returns a snapshot of the user's counters. Unknown users get a
// zero snapshot.
func (t *Tracker) UserUsage(userID string) UserUsage {
	t.mu.Lock()
	defer t.mu.Unlock()
	if u := t.users[userID]; u != nil {
		return *u
	}
	return UserUsage{}
}

// Global returns a snapshot of the platform-wide counters.
func (t *Tracker) Global() GlobalUsage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.global
}
