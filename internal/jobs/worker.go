package jobs

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	types "github.com/rankforge/rankforge-backend/internal/domain"
	"github.com/rankforge/rankforge-backend/internal/platform/config"
	"github.com/rankforge/rankforge-backend/internal/platform/dbctx"
	"github.com/rankforge/rankforge-backend/internal/platform/logger"
	"github.com/rankforge/rankforge-backend/internal/repos"
)

// Worker polls job_run for claimable rows and dispatches them to registered
// handlers. Claiming uses FOR UPDATE SKIP LOCKED so multiple instances can
// poll the same table safely.
type Worker struct {
	db       *gorm.DB
	log      *logger.Logger
	repo     repos.JobRunRepo
	registry *Registry
	cfg      config.WorkerConfig
}

func NewWorker(db *gorm.DB, baseLog *logger.Logger, repo repos.JobRunRepo, registry *Registry, cfg config.WorkerConfig) *Worker {
	return &Worker{
		db:       db,
		log:      baseLog.With("component", "JobWorker"),
		repo:     repo,
		registry: registry,
		cfg:      cfg,
	}
}

func (w *Worker) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(w.cfg.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.tick(ctx)
			}
		}
	}()
}

func (w *Worker) tick(ctx context.Context) {
	for {
		job, err := w.repo.ClaimNextRunnable(dbctx.Context{Ctx: ctx}, w.cfg.MaxAttempts, w.cfg.RetryDelay, w.cfg.StaleRunning)
		if err != nil {
			w.log.Warn("ClaimNextRunnable failed", "error", err)
			return
		}
		if job == nil {
			return
		}
		w.dispatch(ctx, job)
	}
}

func (w *Worker) dispatch(ctx context.Context, job *types.JobRun) {
	jc := NewContext(ctx, w.db, job, w.repo, w.log)

	h, ok := w.registry.Get(job.JobType)
	if !ok {
		w.log.Warn("No handler registered for job_type", "job_type", job.JobType, "job_id", job.ID)
		jc.Fail("dispatch", fmt.Errorf("no handler registered for job_type=%s", job.JobType))
		return
	}

	w.log.Info("Running job", "job_id", job.ID, "job_type", job.JobType, "attempt", job.Attempts)
	func() {
		defer func() {
			if r := recover(); r != nil {
				w.log.Error("Job handler panic", "job_id", job.ID, "job_type", job.JobType, "panic", r)
				jc.Fail("panic", fmt.Errorf("panic: %v", r))
			}
		}()
		if err := h.Run(jc); err != nil {
			jc.Fail("run", err)
			return
		}
		// Handlers that didn't terminate the row themselves succeeded.
		if jc.Job.Status == types.JobStatusRunning {
			jc.Done(nil)
		}
	}()
}
