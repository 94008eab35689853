package jobs

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/commutrace/tripsync-backend/internal/logger"
	"github.com/commutrace/tripsync-backend/internal/repos"
	"github.com/commutrace/tripsync-backend/internal/services"
	"github.com/commutrace/tripsync-backend/internal/types"
)

const (
	heartbeatEvery   = 15 * time.Second
	staleAfter       = 2 * time.Minute
	exportPurgeEvery = 10 * time.Minute
	exportPurgeBatch = 50
	defaultPollEvery = 2 * time.Second
)

// Worker polls the job table, claims one runnable anonymization job at a
// time and drives it through the Runner. Claims go through a conditional
// update, so multiple workers on the same database never run the same job.
type Worker struct {
	db        *gorm.DB
	log       *logger.Logger
	jobs      repos.AnonymizationJobRepo
	runner    *Runner
	privacy   services.PrivacyService
	notify    services.JobNotifier
	pollEvery time.Duration
}

func NewWorker(db *gorm.DB, baseLog *logger.Logger, jobs repos.AnonymizationJobRepo, runner *Runner, privacy services.PrivacyService, notify services.JobNotifier, pollEvery time.Duration) *Worker {
	if pollEvery <= 0 {
		pollEvery = defaultPollEvery
	}
	return &Worker{
		db:        db,
		log:       baseLog.With("component", "JobWorker"),
		jobs:      jobs,
		runner:    runner,
		privacy:   privacy,
		notify:    notify,
		pollEvery: pollEvery,
	}
}

func (w *Worker) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(w.pollEvery)
		defer ticker.Stop()
		purge := time.NewTicker(exportPurgeEvery)
		defer purge.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-purge.C:
				if n, err := w.privacy.PurgeExpiredExports(ctx, exportPurgeBatch); err != nil {
					w.log.Warn("Export purge failed", "error", err)
				} else if n > 0 {
					w.log.Info("Expired exports purged", "count", n)
				}
			case <-ticker.C:
				if n, err := w.jobs.FailStale(ctx, w.db, staleAfter); err != nil {
					w.log.Warn("FailStale failed", "error", err)
				} else if n > 0 {
					w.log.Warn("Stale jobs failed over", "count", n)
				}
				job, err := w.jobs.ClaimNextRunnable(ctx, w.db)
				if err != nil {
					w.log.Warn("ClaimNextRunnable failed", "error", err)
					continue
				}
				if job == nil {
					continue
				}
				w.runClaimed(ctx, job)
			}
		}
	}()
}

func (w *Worker) runClaimed(ctx context.Context, job *types.AnonymizationJob) {
	w.notify.JobStarted(job)
	w.log.Info("Anonymization job claimed", "job_id", job.ID, "level", job.Level)

	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	defer stopHeartbeat()
	go func() {
		ticker := time.NewTicker(heartbeatEvery)
		defer ticker.Stop()
		for {
			select {
			case <-hbCtx.Done():
				return
			case <-ticker.C:
				if err := w.jobs.Heartbeat(hbCtx, w.db, job.ID); err != nil {
					w.log.Warn("Heartbeat failed", "job_id", job.ID, "error", err)
				}
			}
		}
	}()

	// A panicking run must land in failed, never stay claimed forever.
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				w.log.Error("Job run panic", "job_id", job.ID, "panic", r)
				err = fmt.Errorf("run panic: %v", r)
			}
		}()
		return w.runner.Run(ctx, job)
	}()
	stopHeartbeat()

	if err != nil {
		w.fail(job, err)
		return
	}
	w.notify.JobCompleted(job)
	w.log.Info("Anonymization job completed",
		"job_id", job.ID,
		"records_processed", job.RecordsProcessed,
		"emitted_rows", job.EmittedRows,
		"suppressed_groups", job.SuppressedGroups,
	)
}

func (w *Worker) fail(job *types.AnonymizationJob, runErr error) {
	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status":        types.JobStatusFailed,
		"error_message": runErr.Error(),
		"completed_at":  now,
		"locked_at":     nil,
	}
	// Failure bookkeeping gets its own context: the run context may already
	// be the reason we are here.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := w.jobs.UpdateFields(ctx, w.db, job.ID, updates); err != nil {
		w.log.Error("Failed to mark job failed", "job_id", job.ID, "error", err)
	}
	job.Status = types.JobStatusFailed
	w.notify.JobFailed(job, runErr.Error())
	w.log.Error("Anonymization job failed", "job_id", job.ID, "error", runErr)
}
