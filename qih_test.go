package qih_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nqba/qih"
)

// The facade exercised end to end: a primary solver with a classical
// fallback, driven entirely through the root package API.
func TestFacade_EndToEnd(t *testing.T) {
	registry := qih.NewRegistry()
	registry.SetPrimary(&qih.SolverFunc{
		SolverName:  "annealer",
		SolverClass: qih.SolverQuantum,
		Fn: func(ctx context.Context, inputs map[string]any) (*qih.SolverResult, error) {
			return &qih.SolverResult{
				Solution:       map[string]any{"x0": 1},
				ObjectiveValue: -1,
				Reads:          100,
				ProblemsSolved: 1,
			}, nil
		},
	})
	registry.AddFallback(qih.NewTabuSolver())

	h := qih.New(qih.NewMemoryStore(), registry,
		qih.WithWorkers(2),
		qih.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = h.Start(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	jobID, err := h.Submit(ctx, "user-1", qih.OptimizationRequest{
		Operation:      "qubo",
		Inputs:         map[string]any{"linear": map[string]any{"x0": -1.0}},
		TimeoutSeconds: 30,
		Priority:       qih.PriorityHigh,
	}, qih.IdempotencyKey("demo-1"))
	require.NoError(t, err)

	var job *qih.QuantumJob
	require.Eventually(t, func() bool {
		j, err := h.Job(ctx, jobID)
		if err != nil || j == nil {
			return false
		}
		job = j
		return j.Status == qih.StatusCompleted
	}, 5*time.Second, 5*time.Millisecond)

	require.NotNil(t, job.Result)
	assert.Equal(t, qih.SolverQuantum, job.Result.SolverUsed)
	assert.Equal(t, "annealer", job.Result.SolverName)
	assert.Equal(t, int64(100), job.Metrics.Reads)

	// Same idempotency key resolves to the same job.
	again, err := h.Submit(ctx, "user-1", qih.OptimizationRequest{
		Operation:      "qubo",
		Inputs:         map[string]any{"linear": map[string]any{"x0": -1.0}},
		TimeoutSeconds: 30,
		Priority:       qih.PriorityHigh,
	}, qih.IdempotencyKey("demo-1"))
	require.NoError(t, err)
	assert.Equal(t, jobID, again)

	u := h.Usage().UserUsage("user-1")
	assert.Equal(t, int64(1), u.JobsCompleted)
	assert.Equal(t, int64(100), u.Reads)
}
