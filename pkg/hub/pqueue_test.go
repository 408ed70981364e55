package hub

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nqba/qih/pkg/core"
)

func queuedJob(id string, p core.Priority) *core.QuantumJob {
	return &core.QuantumJob{ID: id, Status: core.StatusQueued, Priority: p}
}

func TestJobQueue_PriorityThenFIFO(t *testing.T) {
	q := newJobQueue()
	q.push(queuedJob("low", core.PriorityLow))
	q.push(queuedJob("high", core.PriorityHigh))
	q.push(queuedJob("normal-1", core.PriorityNormal))
	q.push(queuedJob("urgent", core.PriorityUrgent))
	q.push(queuedJob("normal-2", core.PriorityNormal))

	var order []string
	for q.len() > 0 {
		order = append(order, q.pop().ID)
	}
	assert.Equal(t, []string{"urgent", "high", "normal-1", "normal-2", "low"}, order)
}

func TestJobQueue_PopEmpty(t *testing.T) {
	q := newJobQueue()
	assert.Nil(t, q.pop())
	assert.Equal(t, 0, q.len())
}

func TestJobQueue_Remove(t *testing.T) {
	q := newJobQueue()
	q.push(queuedJob("a", core.PriorityNormal))
	q.push(queuedJob("b", core.PriorityNormal))
	q.push(queuedJob("c", core.PriorityNormal))

	assert.True(t, q.remove("b"))
	assert.False(t, q.remove("b"), "already removed")
	assert.False(t, q.remove("missing"))

	assert.Equal(t, "a", q.pop().ID)
	assert.Equal(t, "c", q.pop().ID)
	assert.Equal(t, 0, q.len())
}

func TestJobQueue_RemoveKeepsHeapOrder(t *testing.T) {
	q := newJobQueue()
	for i := 0; i < 20; i++ {
		q.push(queuedJob(fmt.Sprintf("n%02d", i), core.Priority(i%4)))
	}
	require.True(t, q.remove("n07"))
	require.True(t, q.remove("n00"))

	last := core.PriorityUrgent
	lastSeqByTier := map[core.Priority]string{}
	for q.len() > 0 {
		j := q.pop()
		assert.LessOrEqual(t, j.Priority, last, "priorities never increase")
		if prev, ok := lastSeqByTier[j.Priority]; ok {
			assert.Less(t, prev, j.ID, "FIFO within a tier")
		}
		lastSeqByTier[j.Priority] = j.ID
		last = j.Priority
	}
}
