package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobStatus_Terminal(t *testing.T) {
	assert.False(t, StatusQueued.Terminal())
	assert.False(t, StatusRunning.Terminal())
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.True(t, StatusArchived.Terminal())
}

func TestParsePriority(t *testing.T) {
	cases := []struct {
		in   string
		want Priority
	}{
		{"low", PriorityLow},
		{"normal", PriorityNormal},
		{"", PriorityNormal},
		{"high", PriorityHigh},
		{"urgent", PriorityUrgent},
	}
	for _, tc := range cases {
		got, err := ParsePriority(tc.in)
		require.NoError(t, err, "priority %q", tc.in)
		assert.Equal(t, tc.want, got)
	}

	_, err := ParsePriority("critical")
	assert.ErrorIs(t, err, ErrInvalidPriority)
}

func TestPriority_Ordering(t *testing.T) {
	assert.True(t, PriorityUrgent > PriorityHigh)
	assert.True(t, PriorityHigh > PriorityNormal)
	assert.True(t, PriorityNormal > PriorityLow)
}

func TestClone_IsDeep(t *testing.T) {
	started := time.Now()
	qa := 1.5
	job := &QuantumJob{
		ID:     "j1",
		UserID: "u1",
		Request: OptimizationRequest{
			Operation: "qubo",
			Inputs:    map[string]any{"linear": map[string]any{"x0": -1.0}},
			Metadata:  map[string]string{"org": "acme"},
		},
		Status:    StatusRunning,
		StartedAt: &started,
		Result: &Result{
			Solution:         map[string]any{"x0": 1},
			SolverUsed:       SolverQuantum,
			QuantumAdvantage: &qa,
		},
	}

	snap := job.Clone()

	snap.Request.Inputs["linear"] = nil
	snap.Request.Metadata["org"] = "other"
	snap.Result.Solution["x0"] = 0
	*snap.StartedAt = snap.StartedAt.Add(time.Hour)
	*snap.Result.QuantumAdvantage = 99

	assert.NotNil(t, job.Request.Inputs["linear"])
	assert.Equal(t, "acme", job.Request.Metadata["org"])
	assert.Equal(t, 1, job.Result.Solution["x0"])
	assert.Equal(t, started, *job.StartedAt)
	assert.Equal(t, 1.5, *job.Result.QuantumAdvantage)
}

func TestExpiresAt(t *testing.T) {
	job := &QuantumJob{TTLDays: 30}
	assert.True(t, job.ExpiresAt().IsZero(), "no deadline while running")

	completed := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	job.CompletedAt = &completed
	assert.Equal(t, completed.AddDate(0, 0, 30), job.ExpiresAt())
}
