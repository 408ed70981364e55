package solver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nqba/qih/pkg/core"
)

func TestNewTabu_Metadata(t *testing.T) {
	s := NewTabu()

	assert.Equal(t, "tabu", s.Name())
	assert.Equal(t, core.SolverClassical, s.Class())
	assert.True(t, s.Supports("qubo"))
	assert.False(t, s.Supports("tsp"))
}

func TestTabu_LinearOnly(t *testing.T) {
	s := NewTabu()

	// Minimum is x0=1 (bias -2), x1=0 (bias +1).
	res, err := s.Solve(context.Background(), map[string]any{
		"linear": map[string]any{"x0": -2.0, "x1": 1.0},
	})
	require.NoError(t, err)

	assert.Equal(t, float64(-2), res.ObjectiveValue)
	assert.Equal(t, 1, res.Solution["x0"])
	assert.Equal(t, 0, res.Solution["x1"])
	assert.Equal(t, int64(1), res.ProblemsSolved)
	assert.Equal(t, int64(defaultReads), res.Reads)
}

func TestTabu_QuadraticPenalty(t *testing.T) {
	s := NewTabu()

	// Both variables want to be on, but turning both on costs more than
	// either gains: the optimum picks only the stronger one.
	res, err := s.Solve(context.Background(), map[string]any{
		"linear":    map[string]any{"a": -1.0, "b": -2.0},
		"quadratic": map[string]any{"a,b": 5.0},
		"num_reads": 50,
	})
	require.NoError(t, err)

	assert.Equal(t, float64(-2), res.ObjectiveValue)
	assert.Equal(t, 0, res.Solution["a"])
	assert.Equal(t, 1, res.Solution["b"])
}

func TestTabu_NumReads(t *testing.T) {
	s := NewTabu()

	res, err := s.Solve(context.Background(), map[string]any{
		"linear":    map[string]any{"x": -1.0},
		"num_reads": 3.0,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Reads)
}

func TestTabu_InvalidInputs(t *testing.T) {
	s := NewTabu()

	_, err := s.Solve(context.Background(), map[string]any{})
	assert.Error(t, err, "empty problem rejected")

	_, err = s.Solve(context.Background(), map[string]any{
		"linear": map[string]any{"x": "not-a-number"},
	})
	assert.Error(t, err)

	_, err = s.Solve(context.Background(), map[string]any{
		"quadratic": map[string]any{"malformed-key": 1.0},
	})
	assert.Error(t, err)
}
