// Package solver defines the solver backend contract and the registry of
// pluggable backends the scheduler draws from.
package solver

import (
	"context"
	"errors"
	"time"

	"github.com/nqba/qih/pkg/core"
)

// Result is a solver backend's answer to a single problem.
type Result struct {
	Solution       map[string]any
	ObjectiveValue float64

	// Usage reported by the backend, folded into the job's metrics.
	Reads          int64
	ProblemsSolved int64

	// QuantumAdvantage is optionally reported by quantum-class backends.
	QuantumAdvantage *float64
}

// Solver is a single optimization backend.
type Solver interface {
	// Name identifies the backend, e.g. "dwave-advantage" or "tabu".
	Name() string

	// Class reports whether this is the primary quantum backend or a
	// classical fallback.
	Class() core.SolverClass

	// Supports reports whether the backend can handle the operation tag.
	Supports(operation string) bool

	// Solve runs the problem to completion or until ctx expires.
	Solve(ctx context.Context, inputs map[string]any) (*Result, error)
}

// Func adapts a plain function into a Solver.
type Func struct {
	SolverName  string
	SolverClass core.SolverClass
	Operations  []string
	Fn          func(ctx context.Context, inputs map[string]any) (*Result, error)
}

func (f *Func) Name() string            { return f.SolverName }
func (f *Func) Class() core.SolverClass { return f.SolverClass }

func (f *Func) Supports(operation string) bool {
	if len(f.Operations) == 0 {
		return true
	}
	for _, op := range f.Operations {
		if op == operation {
			return true
		}
	}
	return false
}

func (f *Func) Solve(ctx context.Context, inputs map[string]any) (*Result, error) {
	return f.Fn(ctx, inputs)
}

// Run invokes s bounded by timeout and normalizes failures: a deadline hit
// becomes *core.SolverTimeoutError, any other backend error becomes
// *core.SolverError. Cancellation of the parent ctx is passed through
// untouched so callers can tell user cancellation from solver failure.
func Run(ctx context.Context, s Solver, inputs map[string]any, timeout time.Duration) (*Result, error) {
	solveCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := s.Solve(solveCtx, inputs)
	if err == nil {
		return res, nil
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) || solveCtx.Err() == context.DeadlineExceeded {
		return nil, &core.SolverTimeoutError{Solver: s.Name(), Timeout: timeout}
	}
	return nil, &core.SolverError{Solver: s.Name(), Err: err}
}
