package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/nqba/qih/pkg/core"
)

// GormStore implements core.JobStore on a GORM-managed database. Request,
// result, and metrics payloads are stored as JSON columns so the schema
// stays stable across operation kinds.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a GORM-backed store.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// DB exposes the underlying handle for callers that layer extra tables on
// the same database.
func (s *GormStore) DB() *gorm.DB {
	return s.db
}

// jobRecord is the persisted shape of a core.QuantumJob.
type jobRecord struct {
	ID             string         `gorm:"primaryKey;size:36"`
	UserID         string         `gorm:"index;index:idx_jobs_user_idem,priority:1;size:255;not null"`
	Operation      string         `gorm:"index;size:255;not null"`
	Request        []byte         `gorm:"type:bytes"`
	Status         core.JobStatus `gorm:"index;size:20;not null"`
	Priority       int            `gorm:"index;default:1"`
	CreatedAt      time.Time      `gorm:"index"`
	StartedAt      *time.Time
	CompletedAt    *time.Time `gorm:"index"`
	Result         []byte     `gorm:"type:bytes"`
	Error          string     `gorm:"type:text"`
	Metrics        []byte     `gorm:"type:bytes"`
	RetryCount     int        `gorm:"default:0"`
	MaxRetries     int        `gorm:"default:3"`
	IdempotencyKey string     `gorm:"index:idx_jobs_user_idem,priority:2;size:255"`
	TTLDays        int        `gorm:"default:90"`
}

func (jobRecord) TableName() string { return "quantum_jobs" }

// Migrate creates the job table.
func (s *GormStore) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&jobRecord{})
}

// Create inserts a new job record.
func (s *GormStore) Create(ctx context.Context, job *core.QuantumJob) error {
	rec, err := toRecord(job)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Create(rec).Error
}

// Update replaces the stored record for job.ID.
func (s *GormStore) Update(ctx context.Context, job *core.QuantumJob) error {
	rec, err := toRecord(job)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Save(rec).Error
}

// Get returns the job with the given id, or (nil, nil) when unknown.
func (s *GormStore) Get(ctx context.Context, jobID string) (*core.QuantumJob, error) {
	var rec jobRecord
	err := s.db.WithContext(ctx).First(&rec, "id = ?", jobID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return fromRecord(&rec)
}

// GetByIdempotencyKey returns the user's job with the given idempotency key,
// or (nil, nil) when none exists.
func (s *GormStore) GetByIdempotencyKey(ctx context.Context, userID, key string) (*core.QuantumJob, error) {
	var rec jobRecord
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND idempotency_key = ?", userID, key).
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return fromRecord(&rec)
}

// ListByUser returns the user's jobs, newest first. With no statuses,
// archived jobs are excluded.
func (s *GormStore) ListByUser(ctx context.Context, userID string, statuses ...core.JobStatus) ([]*core.QuantumJob, error) {
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	} else {
		q = q.Where("status <> ?", core.StatusArchived)
	}

	var recs []jobRecord
	if err := q.Order("created_at DESC").Find(&recs).Error; err != nil {
		return nil, err
	}
	return fromRecords(recs)
}

// ListByStatus returns up to limit jobs in any of the given statuses, oldest
// first.
func (s *GormStore) ListByStatus(ctx context.Context, statuses []core.JobStatus, limit int) ([]*core.QuantumJob, error) {
	q := s.db.WithContext(ctx).Where("status IN ?", statuses).Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var recs []jobRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, err
	}
	return fromRecords(recs)
}

func toRecord(job *core.QuantumJob) (*jobRecord, error) {
	reqBytes, err := json.Marshal(job.Request)
	if err != nil {
		return nil, fmt.Errorf("qih: marshal request: %w", err)
	}
	metricsBytes, err := json.Marshal(job.Metrics)
	if err != nil {
		return nil, fmt.Errorf("qih: marshal metrics: %w", err)
	}
	var resultBytes []byte
	if job.Result != nil {
		resultBytes, err = json.Marshal(job.Result)
		if err != nil {
			return nil, fmt.Errorf("qih: marshal result: %w", err)
		}
	}

	return &jobRecord{
		ID:             job.ID,
		UserID:         job.UserID,
		Operation:      job.Request.Operation,
		Request:        reqBytes,
		Status:         job.Status,
		Priority:       int(job.Priority),
		CreatedAt:      job.CreatedAt,
		StartedAt:      job.StartedAt,
		CompletedAt:    job.CompletedAt,
		Result:         resultBytes,
		Error:          job.Error,
		Metrics:        metricsBytes,
		RetryCount:     job.RetryCount,
		MaxRetries:     job.MaxRetries,
		IdempotencyKey: job.IdempotencyKey,
		TTLDays:        job.TTLDays,
	}, nil
}

func fromRecord(rec *jobRecord) (*core.QuantumJob, error) {
	job := &core.QuantumJob{
		ID:             rec.ID,
		UserID:         rec.UserID,
		Status:         rec.Status,
		Priority:       core.Priority(rec.Priority),
		CreatedAt:      rec.CreatedAt,
		StartedAt:      rec.StartedAt,
		CompletedAt:    rec.CompletedAt,
		Error:          rec.Error,
		RetryCount:     rec.RetryCount,
		MaxRetries:     rec.MaxRetries,
		IdempotencyKey: rec.IdempotencyKey,
		TTLDays:        rec.TTLDays,
	}
	if len(rec.Request) > 0 {
		if err := json.Unmarshal(rec.Request, &job.Request); err != nil {
			return nil, fmt.Errorf("qih: unmarshal request for %s: %w", rec.ID, err)
		}
	}
	if len(rec.Metrics) > 0 {
		if err := json.Unmarshal(rec.Metrics, &job.Metrics); err != nil {
			return nil, fmt.Errorf("qih: unmarshal metrics for %s: %w", rec.ID, err)
		}
	}
	if len(rec.Result) > 0 {
		job.Result = &core.Result{}
		if err := json.Unmarshal(rec.Result, job.Result); err != nil {
			return nil, fmt.Errorf("qih: unmarshal result for %s: %w", rec.ID, err)
		}
	}
	return job, nil
}

func fromRecords(recs []jobRecord) ([]*core.QuantumJob, error) {
	out := make([]*core.QuantumJob, 0, len(recs))
	for i := range recs {
		job, err := fromRecord(&recs[i])
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, nil
}
