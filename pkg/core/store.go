package core

import (
	"context"
)

// JobStore defines the persistence layer for job records. The scheduler
// writes through on every state transition; reads return snapshots the
// caller may mutate freely.
type JobStore interface {
	// Migrate creates any backing tables.
	Migrate(ctx context.Context) error

	// Create inserts a new job record.
	Create(ctx context.Context, job *QuantumJob) error

	// Update replaces the stored record for job.ID.
	Update(ctx context.Context, job *QuantumJob) error

	// Get returns the job with the given id, or (nil, nil) when unknown.
	Get(ctx context.Context, jobID string) (*QuantumJob, error)

	// GetByIdempotencyKey returns the user's job submitted with the given
	// idempotency key, or (nil, nil) when none exists.
	GetByIdempotencyKey(ctx context.Context, userID, key string) (*QuantumJob, error)

	// ListByUser returns the user's jobs, newest first. With no statuses,
	// all non-archived jobs are returned.
	ListByUser(ctx context.Context, userID string, statuses ...JobStatus) ([]*QuantumJob, error)

	// ListByStatus returns up to limit jobs in any of the given statuses,
	// oldest first. limit <= 0 means no limit.
	ListByStatus(ctx context.Context, statuses []JobStatus, limit int) ([]*QuantumJob, error)
}
