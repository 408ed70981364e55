// Package storage provides JobStore implementations for the qih package.
package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/nqba/qih/pkg/core"
)

// MemoryStore is the default in-process JobStore. All reads return deep
// copies so callers never observe scheduler mutation.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]*core.QuantumJob
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*core.QuantumJob)}
}

// Migrate is a no-op for the in-memory store.
func (s *MemoryStore) Migrate(ctx context.Context) error {
	return nil
}

// Create inserts a new job record.
func (s *MemoryStore) Create(ctx context.Context, job *core.QuantumJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job.Clone()
	return nil
}

// Update replaces the stored record for job.ID.
func (s *MemoryStore) Update(ctx context.Context, job *core.QuantumJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job.Clone()
	return nil
}

// Get returns the job with the given id, or (nil, nil) when unknown.
func (s *MemoryStore) Get(ctx context.Context, jobID string) (*core.QuantumJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if j, ok := s.jobs[jobID]; ok {
		return j.Clone(), nil
	}
	return nil, nil
}

// GetByIdempotencyKey returns the user's job with the given idempotency key,
// or (nil, nil) when none exists.
func (s *MemoryStore) GetByIdempotencyKey(ctx context.Context, userID, key string) (*core.QuantumJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, j := range s.jobs {
		if j.UserID == userID && j.IdempotencyKey == key {
			return j.Clone(), nil
		}
	}
	return nil, nil
}

// ListByUser returns the user's jobs, newest first. With no statuses,
// archived jobs are excluded.
func (s *MemoryStore) ListByUser(ctx context.Context, userID string, statuses ...core.JobStatus) ([]*core.QuantumJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*core.QuantumJob
	for _, j := range s.jobs {
		if j.UserID != userID {
			continue
		}
		if !statusMatches(j.Status, statuses) {
			continue
		}
		out = append(out, j.Clone())
	}
	sort.Slice(out, func(i, k int) bool {
		return out[i].CreatedAt.After(out[k].CreatedAt)
	})
	return out, nil
}

// ListByStatus returns up to limit jobs in any of the given statuses, oldest
// first.
func (s *MemoryStore) ListByStatus(ctx context.Context, statuses []core.JobStatus, limit int) ([]*core.QuantumJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*core.QuantumJob
	for _, j := range s.jobs {
		for _, st := range statuses {
			if j.Status == st {
				out = append(out, j.Clone())
				break
			}
		}
	}
	sort.Slice(out, func(i, k int) bool {
		return out[i].CreatedAt.Before(out[k].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func statusMatches(status core.JobStatus, filter []core.JobStatus) bool {
	if len(filter) == 0 {
		return status != core.StatusArchived
	}
	for _, st := range filter {
		if status == st {
			return true
		}
	}
	return false
}
