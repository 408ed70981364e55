package hub

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/nqba/qih/pkg/core"
)

var sweepParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

func parseSweepSpec(spec string) (cron.Schedule, error) {
	sched, err := sweepParser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("qih: invalid sweep schedule %q: %w", spec, err)
	}
	return sched, nil
}

// runSweeper archives expired terminal jobs on the configured schedule.
func (h *Hub) runSweeper(ctx context.Context, sched cron.Schedule) {
	for {
		next := sched.Next(time.Now())
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Until(next)):
		}

		n, err := h.ArchiveExpired(ctx)
		if err != nil {
			h.logger.Error("archival sweep failed", "error", err)
			continue
		}
		if n > 0 {
			h.logger.Info("archived expired jobs", "count", n)
		}
	}
}

// ArchiveExpired transitions COMPLETED and FAILED jobs past their retention
// window to ARCHIVED, returning how many were archived. Archived jobs stay
// in the store for audit but drop out of active listings.
func (h *Hub) ArchiveExpired(ctx context.Context) (int, error) {
	jobs, err := h.store.ListByStatus(ctx, []core.JobStatus{core.StatusCompleted, core.StatusFailed}, 0)
	if err != nil {
		return 0, err
	}

	now := time.Now()
	archived := 0
	for _, job := range jobs {
		if job.CompletedAt == nil || job.ExpiresAt().After(now) {
			continue
		}
		job.Status = core.StatusArchived
		if err := h.store.Update(ctx, job); err != nil {
			return archived, err
		}
		archived++
		h.emit(&core.JobArchived{Job: job, Timestamp: now})
	}
	return archived, nil
}
