// Package hub implements the quantum optimization job scheduler: priority
// queuing, primary-solver execution with classical fallback behind a circuit
// breaker, retry with exponential backoff, usage metering, and TTL archival.
package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nqba/qih/pkg/backoff"
	"github.com/nqba/qih/pkg/breaker"
	"github.com/nqba/qih/pkg/core"
	"github.com/nqba/qih/pkg/security"
	"github.com/nqba/qih/pkg/solver"
	"github.com/nqba/qih/pkg/usage"
)

// ErrInvalidUserID rejects submissions and job control calls without a
// caller identity.
var ErrInvalidUserID = errors.New("qih: user id required")

// Hub is the job scheduler. Construct with New, register solvers on the
// registry, then run Start in a goroutine; Submit and the query methods are
// safe to call at any point.
type Hub struct {
	store    core.JobStore
	registry *solver.Registry
	cb       *breaker.Breaker
	retry    backoff.Policy
	usage    *usage.Tracker
	logger   *slog.Logger
	cfg      Config

	// mu guards the job table, the queue, and every job mutation outside a
	// worker's own execution of its claimed job.
	mu        sync.Mutex
	queue     *jobQueue
	live      map[string]*core.QuantumJob // queued or running jobs
	idemKeys  map[string]string
	cancels   map[string]context.CancelFunc
	cancelled map[string]bool
	wake      chan struct{}

	wg sync.WaitGroup

	// Hooks and event stream
	hookMu     sync.RWMutex
	onStart    []func(context.Context, *core.QuantumJob)
	onComplete []func(context.Context, *core.QuantumJob)
	onFail     []func(context.Context, *core.QuantumJob, error)
	onRetry    []func(context.Context, *core.QuantumJob, int, error)
	eventSubs  []chan core.Event
}

// New creates a hub over the given store and solver registry.
func New(store core.JobStore, registry *solver.Registry, opts ...Option) *Hub {
	h := &Hub{
		store:    store,
		registry: registry,
		cb:       breaker.New(breaker.DefaultFailureThreshold, breaker.DefaultRecoveryTimeout),
		retry:    backoff.Default(),
		usage:    usage.NewTracker(),
		logger:   slog.Default(),
		cfg: Config{
			Workers:      DefaultWorkers,
			MaxRetries:   DefaultMaxRetries,
			TTLDays:      DefaultTTLDays,
			SweepSpec:    DefaultSweepSpec,
			QPUCostPerMS: DefaultQPUCostPerMS,
		},
		queue:     newJobQueue(),
		live:      make(map[string]*core.QuantumJob),
		idemKeys:  make(map[string]string),
		cancels:   make(map[string]context.CancelFunc),
		cancelled: make(map[string]bool),
		wake:      make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt.apply(h)
	}
	return h
}

// Usage returns the hub's usage tracker.
func (h *Hub) Usage() *usage.Tracker {
	return h.usage
}

// Breaker returns the circuit breaker guarding the primary solver.
func (h *Hub) Breaker() *breaker.Breaker {
	return h.cb
}

// Registry returns the solver registry.
func (h *Hub) Registry() *solver.Registry {
	return h.registry
}

// Submit validates the request and enqueues a new job, returning its id.
// With an IdempotencyKey option, a repeated submission returns the existing
// job's id without creating a duplicate.
func (h *Hub) Submit(ctx context.Context, userID string, req core.OptimizationRequest, opts ...SubmitOption) (string, error) {
	if userID == "" {
		return "", ErrInvalidUserID
	}
	if err := security.ValidateOperationName(req.Operation); err != nil {
		return "", err
	}
	timeout, err := security.ValidateTimeout(req.TimeoutSeconds)
	if err != nil {
		return "", err
	}
	req.TimeoutSeconds = timeout
	if !req.Priority.Valid() {
		return "", core.ErrInvalidPriority
	}
	if req.Inputs != nil {
		inputBytes, err := json.Marshal(req.Inputs)
		if err != nil {
			return "", fmt.Errorf("qih: failed to marshal inputs: %w", err)
		}
		if len(inputBytes) > security.MaxInputsSize {
			return "", core.ErrInputsTooLarge
		}
	}

	var so submitOptions
	for _, opt := range opts {
		opt.applySubmit(&so)
	}
	if err := security.ValidateIdempotencyKey(so.idempotencyKey); err != nil {
		return "", err
	}

	h.mu.Lock()
	if so.idempotencyKey != "" {
		key := idemKey(userID, so.idempotencyKey)
		if id, ok := h.idemKeys[key]; ok {
			h.mu.Unlock()
			return id, nil
		}
		existing, err := h.store.GetByIdempotencyKey(ctx, userID, so.idempotencyKey)
		if err != nil {
			h.mu.Unlock()
			return "", err
		}
		if existing != nil {
			h.idemKeys[key] = existing.ID
			h.mu.Unlock()
			return existing.ID, nil
		}
	}

	job := &core.QuantumJob{
		ID:             uuid.New().String(),
		UserID:         userID,
		Request:        req,
		Status:         core.StatusQueued,
		Priority:       req.Priority,
		CreatedAt:      time.Now(),
		MaxRetries:     h.cfg.MaxRetries,
		IdempotencyKey: so.idempotencyKey,
		TTLDays:        h.cfg.TTLDays,
	}
	if so.maxRetries != nil {
		job.MaxRetries = *so.maxRetries
	}
	if so.ttlDays != nil {
		job.TTLDays = *so.ttlDays
	}

	if err := h.store.Create(ctx, job); err != nil {
		h.mu.Unlock()
		return "", err
	}
	h.live[job.ID] = job
	h.queue.push(job)
	if so.idempotencyKey != "" {
		h.idemKeys[idemKey(userID, so.idempotencyKey)] = job.ID
	}
	// Snapshot before unlocking; a worker may claim the job immediately.
	snap := job.Clone()
	h.mu.Unlock()

	h.signal()
	h.emit(&core.JobQueued{Job: snap, Timestamp: time.Now()})
	return job.ID, nil
}

// Job returns a snapshot of the job with the given id, or (nil, nil) when it
// does not exist.
func (h *Hub) Job(ctx context.Context, jobID string) (*core.QuantumJob, error) {
	h.mu.Lock()
	if j, ok := h.live[jobID]; ok {
		snap := j.Clone()
		h.mu.Unlock()
		return snap, nil
	}
	h.mu.Unlock()
	return h.store.Get(ctx, jobID)
}

// UserJobs returns snapshots of the user's jobs, newest first. With no
// status filter, archived jobs are excluded.
func (h *Hub) UserJobs(ctx context.Context, userID string, statuses ...core.JobStatus) ([]*core.QuantumJob, error) {
	return h.store.ListByUser(ctx, userID, statuses...)
}

// QueueDepth returns the number of jobs waiting to be claimed.
func (h *Hub) QueueDepth() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.queue.len()
}

// Cancel cancels a queued or running job owned by userID. A queued job is
// removed from the queue and marked failed with a "cancelled by user" error.
// A running job has its solver context cancelled, best-effort: a solver call
// that ignores cancellation runs to its timeout. Terminal jobs are rejected
// with ErrNotCancellable.
func (h *Hub) Cancel(ctx context.Context, jobID, userID string) error {
	if userID == "" {
		return ErrInvalidUserID
	}

	h.mu.Lock()
	j, ok := h.live[jobID]
	if !ok {
		h.mu.Unlock()
		snap, err := h.store.Get(ctx, jobID)
		if err != nil {
			return err
		}
		if snap == nil {
			return core.ErrNotFound
		}
		if snap.UserID != userID {
			return core.ErrPermissionDenied
		}
		return core.ErrNotCancellable
	}
	if j.UserID != userID {
		h.mu.Unlock()
		return core.ErrPermissionDenied
	}

	switch j.Status {
	case core.StatusQueued:
		h.queue.remove(jobID)
		h.failLocked(ctx, j, core.CancelledByUser)
		snap := j.Clone()
		h.mu.Unlock()
		cause := errors.New(core.CancelledByUser)
		h.emit(&core.JobFailed{Job: snap, Error: cause, Timestamp: time.Now()})
		h.callFailHooks(ctx, snap, cause)
		return nil
	case core.StatusRunning:
		h.cancelled[jobID] = true
		if cancel := h.cancels[jobID]; cancel != nil {
			cancel()
		}
		h.mu.Unlock()
		return nil
	default:
		h.mu.Unlock()
		return core.ErrNotCancellable
	}
}

// Retry requeues a FAILED job owned by userID, clearing its timestamps and
// error while preserving its retry count. Jobs in any other state are
// rejected with ErrNotRetryable.
func (h *Hub) Retry(ctx context.Context, jobID, userID string) error {
	if userID == "" {
		return ErrInvalidUserID
	}

	snap, err := h.store.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if snap == nil {
		return core.ErrNotFound
	}
	if snap.UserID != userID {
		return core.ErrPermissionDenied
	}
	if snap.Status != core.StatusFailed {
		return core.ErrNotRetryable
	}

	h.mu.Lock()
	if _, ok := h.live[jobID]; ok {
		// Raced with a concurrent retry.
		h.mu.Unlock()
		return core.ErrNotRetryable
	}
	job := snap
	job.Status = core.StatusQueued
	job.StartedAt = nil
	job.CompletedAt = nil
	job.Error = ""
	job.Result = nil
	if err := h.store.Update(ctx, job); err != nil {
		h.mu.Unlock()
		return err
	}
	h.live[job.ID] = job
	h.queue.push(job)
	snap = job.Clone()
	h.mu.Unlock()

	h.signal()
	h.emit(&core.JobQueued{Job: snap, Timestamp: time.Now()})
	return nil
}

// failLocked marks a live job failed. Caller holds h.mu and is responsible
// for emitting events after releasing it.
func (h *Hub) failLocked(ctx context.Context, job *core.QuantumJob, msg string) {
	now := time.Now()
	job.Status = core.StatusFailed
	job.CompletedAt = &now
	job.Error = msg
	delete(h.live, job.ID)
	delete(h.cancelled, job.ID)
	if err := h.store.Update(ctx, job); err != nil {
		h.logger.Error("failed to persist job failure", "job_id", job.ID, "error", err)
	}
}

// signal wakes one idle worker. Dropped when the buffer is full; workers
// also poll.
func (h *Hub) signal() {
	select {
	case h.wake <- struct{}{}:
	default:
	}
}

func idemKey(userID, key string) string {
	return userID + "\x00" + key
}

// OnJobStart registers a callback for when a worker claims a job.
func (h *Hub) OnJobStart(fn func(context.Context, *core.QuantumJob)) {
	h.hookMu.Lock()
	h.onStart = append(h.onStart, fn)
	h.hookMu.Unlock()
}

// OnJobComplete registers a callback for when a job completes successfully.
func (h *Hub) OnJobComplete(fn func(context.Context, *core.QuantumJob)) {
	h.hookMu.Lock()
	h.onComplete = append(h.onComplete, fn)
	h.hookMu.Unlock()
}

// OnJobFail registers a callback for when a job fails permanently.
func (h *Hub) OnJobFail(fn func(context.Context, *core.QuantumJob, error)) {
	h.hookMu.Lock()
	h.onFail = append(h.onFail, fn)
	h.hookMu.Unlock()
}

// OnJobRetry registers a callback for when a failed job is recycled back
// into the queue.
func (h *Hub) OnJobRetry(fn func(context.Context, *core.QuantumJob, int, error)) {
	h.hookMu.Lock()
	h.onRetry = append(h.onRetry, fn)
	h.hookMu.Unlock()
}

// Events returns a channel for receiving scheduler events. The caller must
// call Unsubscribe when done to prevent resource leaks.
func (h *Hub) Events() <-chan core.Event {
	ch := make(chan core.Event, 100)
	h.hookMu.Lock()
	h.eventSubs = append(h.eventSubs, ch)
	h.hookMu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber channel created by Events(). The channel
// is not closed; callers must stop reading before calling Unsubscribe.
func (h *Hub) Unsubscribe(ch <-chan core.Event) {
	h.hookMu.Lock()
	defer h.hookMu.Unlock()
	for i, sub := range h.eventSubs {
		if sub == ch {
			h.eventSubs = append(h.eventSubs[:i], h.eventSubs[i+1:]...)
			return
		}
	}
}

// emit delivers an event to all subscribers, dropping it for slow consumers
// rather than blocking the scheduler.
func (h *Hub) emit(e core.Event) {
	h.hookMu.RLock()
	subs := make([]chan core.Event, len(h.eventSubs))
	copy(subs, h.eventSubs)
	h.hookMu.RUnlock()

	for _, ch := range subs {
		select {
		case ch <- e:
		default:
		}
	}
}

func (h *Hub) callStartHooks(ctx context.Context, job *core.QuantumJob) {
	h.hookMu.RLock()
	hooks := make([]func(context.Context, *core.QuantumJob), len(h.onStart))
	copy(hooks, h.onStart)
	h.hookMu.RUnlock()
	for _, fn := range hooks {
		fn(ctx, job)
	}
}

func (h *Hub) callCompleteHooks(ctx context.Context, job *core.QuantumJob) {
	h.hookMu.RLock()
	hooks := make([]func(context.Context, *core.QuantumJob), len(h.onComplete))
	copy(hooks, h.onComplete)
	h.hookMu.RUnlock()
	for _, fn := range hooks {
		fn(ctx, job)
	}
}

func (h *Hub) callFailHooks(ctx context.Context, job *core.QuantumJob, err error) {
	h.hookMu.RLock()
	hooks := make([]func(context.Context, *core.QuantumJob, error), len(h.onFail))
	copy(hooks, h.onFail)
	h.hookMu.RUnlock()
	for _, fn := range hooks {
		fn(ctx, job, err)
	}
}

func (h *Hub) callRetryHooks(ctx context.Context, job *core.QuantumJob, attempt int, err error) {
	h.hookMu.RLock()
	hooks := make([]func(context.Context, *core.QuantumJob, int, error), len(h.onRetry))
	copy(hooks, h.onRetry)
	h.hookMu.RUnlock()
	for _, fn := range hooks {
		fn(ctx, job, attempt, err)
	}
}
