package hub

import (
	"container/heap"

	"github.com/nqba/qih/pkg/core"
)

// jobQueue is a stable priority queue: higher priority first, FIFO within a
// tier. Entries can be removed by job id (cancellation). Not safe for
// concurrent use; the hub guards it with its mutex.
type jobQueue struct {
	entries entryHeap
	byID    map[string]*queueEntry
	nextSeq uint64
}

type queueEntry struct {
	job   *core.QuantumJob
	seq   uint64
	index int
}

func newJobQueue() *jobQueue {
	return &jobQueue{byID: make(map[string]*queueEntry)}
}

func (q *jobQueue) push(job *core.QuantumJob) {
	e := &queueEntry{job: job, seq: q.nextSeq}
	q.nextSeq++
	q.byID[job.ID] = e
	heap.Push(&q.entries, e)
}

// pop returns the highest-priority queued job, or nil when empty.
func (q *jobQueue) pop() *core.QuantumJob {
	if len(q.entries) == 0 {
		return nil
	}
	e := heap.Pop(&q.entries).(*queueEntry)
	delete(q.byID, e.job.ID)
	return e.job
}

// remove drops the queued job with the given id, reporting whether it was
// present.
func (q *jobQueue) remove(jobID string) bool {
	e, ok := q.byID[jobID]
	if !ok {
		return false
	}
	heap.Remove(&q.entries, e.index)
	delete(q.byID, jobID)
	return true
}

func (q *jobQueue) len() int {
	return len(q.entries)
}

type entryHeap []*queueEntry

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool {
	if h[i].job.Priority != h[j].job.Priority {
		return h[i].job.Priority > h[j].job.Priority
	}
	return h[i].seq < h[j].seq
}

func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *entryHeap) Push(x any) {
	e := x.(*queueEntry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}
