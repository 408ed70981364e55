package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nqba/qih/pkg/core"
	"github.com/nqba/qih/pkg/security"
	"github.com/nqba/qih/pkg/solver"
)

// pollInterval is the idle workers' fallback wakeup, covering signals lost
// while the wake buffer is full.
const pollInterval = 100 * time.Millisecond

// Start runs the worker pool and the archival sweep until ctx is cancelled,
// then waits for in-flight jobs and pending retries to settle. Blocks.
func (h *Hub) Start(ctx context.Context) error {
	sched, err := parseSweepSpec(h.cfg.SweepSpec)
	if err != nil {
		return err
	}
	if err := h.recoverPersisted(ctx); err != nil {
		return fmt.Errorf("qih: recover persisted jobs: %w", err)
	}

	workers := security.ClampWorkers(h.cfg.Workers)
	for i := 0; i < workers; i++ {
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			h.runWorker(ctx)
		}()
	}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.runSweeper(ctx, sched)
	}()

	<-ctx.Done()
	h.wg.Wait()
	return ctx.Err()
}

// recoverPersisted reloads non-terminal jobs a previous run left in the
// store. RUNNING claims are reset to QUEUED without burning a retry; the
// interrupted attempt never produced a verdict. Idempotency keys are
// re-indexed so resubmissions keep resolving to the recovered job.
func (h *Hub) recoverPersisted(ctx context.Context) error {
	jobs, err := h.store.ListByStatus(ctx, []core.JobStatus{core.StatusQueued, core.StatusRunning}, 0)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	recovered := 0
	for _, job := range jobs {
		if _, ok := h.live[job.ID]; ok {
			// Submitted to this hub instance, already tracked.
			continue
		}
		if job.Status == core.StatusRunning {
			job.Status = core.StatusQueued
			job.StartedAt = nil
			if err := h.store.Update(ctx, job); err != nil {
				return err
			}
		}
		h.live[job.ID] = job
		h.queue.push(job)
		if job.IdempotencyKey != "" {
			h.idemKeys[idemKey(job.UserID, job.IdempotencyKey)] = job.ID
		}
		recovered++
	}
	if recovered > 0 {
		h.logger.Info("recovered persisted jobs", "count", recovered)
	}
	return nil
}

func (h *Hub) runWorker(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		job, jobCtx, cancel := h.claim(ctx)
		if job == nil {
			select {
			case <-ctx.Done():
				return
			case <-h.wake:
			case <-ticker.C:
			}
			continue
		}
		h.execute(ctx, job, jobCtx, cancel)
	}
}

// claim atomically pops the next queued job and marks it running. The
// returned context is cancelled by user cancellation or shutdown.
func (h *Hub) claim(ctx context.Context) (*core.QuantumJob, context.Context, context.CancelFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for {
		job := h.queue.pop()
		if job == nil {
			return nil, nil, nil
		}
		if job.Status != core.StatusQueued {
			continue // removed or superseded while queued
		}

		now := time.Now()
		job.Status = core.StatusRunning
		job.StartedAt = &now
		if err := h.store.Update(ctx, job); err != nil {
			h.logger.Error("failed to persist job start", "job_id", job.ID, "error", err)
		}

		jobCtx, cancel := context.WithCancel(ctx)
		h.cancels[job.ID] = cancel
		return job, jobCtx, cancel
	}
}

func (h *Hub) execute(ctx context.Context, job *core.QuantumJob, jobCtx context.Context, cancel context.CancelFunc) {
	defer cancel()
	started := time.Now()

	// The worker is the job's sole mutator between claim and the terminal
	// transition, so an unlocked clone here is safe.
	snap := job.Clone()
	h.callStartHooks(ctx, snap)
	h.emit(&core.JobStarted{Job: snap, Timestamp: started})

	// Attempt counters accumulate here and are folded into job.Metrics only
	// under h.mu, so concurrent status readers never observe partial writes.
	var attempt core.JobMetrics
	result, err := h.solve(jobCtx, job, &attempt)

	h.mu.Lock()
	delete(h.cancels, job.ID)
	wasCancelled := h.cancelled[job.ID]
	delete(h.cancelled, job.ID)
	h.mu.Unlock()

	switch {
	case err == nil:
		h.complete(ctx, job, result, attempt, time.Since(started))
	case wasCancelled:
		h.fail(ctx, job, attempt, errors.New(core.CancelledByUser))
	case ctx.Err() != nil:
		// Shutting down: return the job to the queue so a later Start
		// (or another process over the same store) picks it up.
		h.requeueForShutdown(job, attempt)
	default:
		h.handleError(ctx, job, attempt, err)
	}
}

// solve drives one execution attempt: primary solver if allowed, classical
// fallback otherwise or on primary failure. Usage counters go into m.
func (h *Hub) solve(ctx context.Context, job *core.QuantumJob, m *core.JobMetrics) (*core.Result, error) {
	req := job.Request
	timeout := time.Duration(req.TimeoutSeconds) * time.Second

	pref := req.SolverPreference
	primary := h.registry.Primary()
	primaryName := ""
	if primary != nil {
		primaryName = primary.Name()
	}

	// A preference naming a specific fallback bypasses the primary path.
	if pref != "" && pref != core.PreferPrimary && pref != primaryName {
		s := h.registry.ByName(pref)
		if s == nil {
			return nil, core.ErrNoSolver
		}
		return h.runFallback(ctx, job, s, timeout, m)
	}

	if primary != nil && primary.Supports(req.Operation) && h.cb.Allow() {
		start := time.Now()
		res, err := solver.Run(ctx, primary, req.Inputs, timeout)
		elapsedMS := float64(time.Since(start).Microseconds()) / 1000
		if err == nil {
			h.cb.RecordSuccess()
			m.QPUTimeMS += elapsedMS
			m.Reads += res.Reads
			m.ProblemsSolved += res.ProblemsSolved
			m.CostEstimate += elapsedMS * h.cfg.QPUCostPerMS
			return &core.Result{
				Solution:         res.Solution,
				ObjectiveValue:   res.ObjectiveValue,
				SolverUsed:       core.SolverQuantum,
				SolverName:       primary.Name(),
				QuantumAdvantage: res.QuantumAdvantage,
			}, nil
		}
		if ctx.Err() != nil {
			// Cancellation or shutdown, not a backend failure.
			return nil, err
		}
		h.cb.RecordFailure()
		h.logger.Warn("primary solver failed, falling back to classical",
			"job_id", job.ID, "solver", primary.Name(), "error", err)
	}

	s := h.registry.Fallback(req.Operation)
	if s == nil {
		return nil, core.ErrNoSolver
	}
	return h.runFallback(ctx, job, s, timeout, m)
}

func (h *Hub) runFallback(ctx context.Context, job *core.QuantumJob, s solver.Solver, timeout time.Duration, m *core.JobMetrics) (*core.Result, error) {
	start := time.Now()
	res, err := solver.Run(ctx, s, job.Request.Inputs, timeout)
	m.FallbackTimeMS += float64(time.Since(start).Microseconds()) / 1000
	if err != nil {
		return nil, err
	}
	m.Reads += res.Reads
	m.ProblemsSolved += res.ProblemsSolved
	return &core.Result{
		Solution:       res.Solution,
		ObjectiveValue: res.ObjectiveValue,
		SolverUsed:     core.SolverClassical,
		SolverName:     s.Name(),
	}, nil
}

func (h *Hub) complete(ctx context.Context, job *core.QuantumJob, result *core.Result, attempt core.JobMetrics, duration time.Duration) {
	if b, err := jsonSize(job.Request.Inputs); err == nil {
		attempt.BytesIn += b
	}
	if b, err := jsonSize(result.Solution); err == nil {
		attempt.BytesOut += b
	}

	h.mu.Lock()
	now := time.Now()
	job.Status = core.StatusCompleted
	job.CompletedAt = &now
	job.Result = result
	job.Metrics.Merge(attempt)
	delete(h.live, job.ID)
	if err := h.store.Update(ctx, job); err != nil {
		h.logger.Error("failed to persist job completion", "job_id", job.ID, "error", err)
	}
	snap := job.Clone()
	h.mu.Unlock()

	h.usage.RecordCompletion(snap)

	h.callCompleteHooks(ctx, snap)
	h.emit(&core.JobCompleted{Job: snap, Duration: duration, Timestamp: now})
}

// handleError applies the retry policy to a failed attempt: recycle the job
// back to the queue after backoff while retries remain, otherwise fail it
// terminally.
func (h *Hub) handleError(ctx context.Context, job *core.QuantumJob, m core.JobMetrics, err error) {
	if job.RetryCount >= job.MaxRetries {
		h.fail(ctx, job, m, err)
		return
	}

	h.mu.Lock()
	job.RetryCount++
	attempt := job.RetryCount
	job.Status = core.StatusQueued
	job.StartedAt = nil
	job.CompletedAt = nil
	job.Error = ""
	job.Metrics.Merge(m)
	if uerr := h.store.Update(ctx, job); uerr != nil {
		h.logger.Error("failed to persist job retry", "job_id", job.ID, "error", uerr)
	}
	snap := job.Clone()
	h.mu.Unlock()

	delay := h.retry.Delay(attempt)
	nextRun := time.Now().Add(delay)

	h.callRetryHooks(ctx, snap, attempt, err)
	h.emit(&core.JobRetrying{Job: snap, Attempt: attempt, Error: err, NextRunAt: nextRun, Timestamp: time.Now()})
	h.logger.Info("retrying job", "job_id", job.ID, "attempt", attempt, "delay", delay, "error", err)

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			// Shutdown: requeue immediately so the persisted state is
			// consistent for the next run.
		}
		h.mu.Lock()
		if j, ok := h.live[job.ID]; ok && j.Status == core.StatusQueued {
			h.queue.push(j)
		}
		h.mu.Unlock()
		h.signal()
	}()
}

func (h *Hub) fail(ctx context.Context, job *core.QuantumJob, m core.JobMetrics, err error) {
	msg := security.SanitizeErrorMessage(err.Error())

	h.mu.Lock()
	job.Metrics.Merge(m)
	h.failLocked(ctx, job, msg)
	snap := job.Clone()
	h.mu.Unlock()

	h.callFailHooks(ctx, snap, err)
	h.emit(&core.JobFailed{Job: snap, Error: err, Timestamp: time.Now()})
	h.logger.Warn("job failed", "job_id", snap.ID, "retries", snap.RetryCount, "error", err)
}

// requeueForShutdown undoes the RUNNING claim of a job interrupted by
// shutdown without burning a retry.
func (h *Hub) requeueForShutdown(job *core.QuantumJob, m core.JobMetrics) {
	h.mu.Lock()
	job.Status = core.StatusQueued
	job.StartedAt = nil
	job.Metrics.Merge(m)
	// Persist with a background context; the run context is already gone.
	if err := h.store.Update(context.Background(), job); err != nil {
		h.logger.Error("failed to persist job requeue on shutdown", "job_id", job.ID, "error", err)
	}
	h.queue.push(job)
	h.mu.Unlock()
}

func jsonSize(v map[string]any) (int64, error) {
	if v == nil {
		return 0, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return 0, err
	}
	return int64(len(b)), nil
}
