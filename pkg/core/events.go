package core

import "time"

// Event is the interface for all scheduler events.
type Event interface {
	eventMarker()
}

// JobQueued is emitted when a job is accepted into the queue.
type JobQueued struct {
	Job       *QuantumJob
	Timestamp time.Time
}

func (*JobQueued) eventMarker() {}

// JobStarted is emitted when a worker claims a job.
type JobStarted struct {
	Job       *QuantumJob
	Timestamp time.Time
}

func (*JobStarted) eventMarker() {}

// JobCompleted is emitted when a job completes successfully.
type JobCompleted struct {
	Job       *QuantumJob
	Duration  time.Duration
	Timestamp time.Time
}

func (*JobCompleted) eventMarker() {}

// JobFailed is emitted when a job fails permanently.
type JobFailed struct {
	Job       *QuantumJob
	Error     error
	Timestamp time.Time
}

func (*JobFailed) eventMarker() {}

// JobRetrying is emitted when a failed job is recycled back into the queue.
type JobRetrying struct {
	Job       *QuantumJob
	Attempt   int
	Error     error
	NextRunAt time.Time
	Timestamp time.Time
}

func (*JobRetrying) eventMarker() {}

// JobArchived is emitted when the retention sweep archives a terminal job.
type JobArchived struct {
	Job       *QuantumJob
	Timestamp time.Time
}

func (*JobArchived) eventMarker() {}
