package usecase

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/intellego/platform/internal/config"
	"github.com/intellego/platform/internal/dto"
	"github.com/intellego/platform/internal/logger"
	"github.com/intellego/platform/internal/queue"
	"github.com/intellego/platform/internal/repository"
	"github.com/intellego/platform/internal/util"
)

// BatchUsecase starts batch feedback jobs in the background and tracks them
// in a JobStore. Jobs run under the usecase's own context so they outlive the
// request that started them and stop on Shutdown.
type BatchUsecase struct {
	reports *repository.ReportRepository
	queue   *queue.Queue
	jobs    queue.JobStore
	opts    queue.Options
	clock   util.Clock
	log     *logger.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running atomic.Int32
}

func NewBatchUsecase(reports *repository.ReportRepository, feedback *FeedbackUsecase, jobs queue.JobStore, cfg *config.BatchConfig, clock util.Clock, log *logger.Logger) *BatchUsecase {
	process := func(ctx context.Context, id uuid.UUID) (float64, error) {
		f, err := feedback.Generate(ctx, id)
		if err != nil {
			return 0, err
		}
		return f.Cost, nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &BatchUsecase{
		reports: reports,
		queue:   queue.New(process, log.With("component", "batch_queue")),
		jobs:    jobs,
		opts: queue.Options{
			MaxConcurrent:  cfg.MaxConcurrent,
			RetryAttempts:  cfg.RetryAttempts,
			RetryBaseDelay: cfg.RetryBaseDelay,
			RetryMaxDelay:  cfg.RetryMaxDelay,
		},
		clock:  clock,
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start snapshots the pending reports and processes them in the background.
// With nothing pending no job is created.
func (uc *BatchUsecase) Start(ctx context.Context, subject string) (*dto.StartBatchResponse, error) {
	ids, err := uc.reports.ListPendingForFeedback(ctx, subject)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return &dto.StartBatchResponse{JobStarted: false, Subject: subject}, nil
	}

	job := &queue.Job{
		ID:              uuid.NewString(),
		Subject:         subject,
		Status:          queue.JobRunning,
		Total:           len(ids),
		FailedReportIDs: []uuid.UUID{},
		StartedAt:       uc.clock.Now(),
	}
	if err := uc.jobs.Save(ctx, job); err != nil {
		return nil, err
	}

	uc.wg.Add(1)
	uc.running.Add(1)
	go func() {
		defer uc.wg.Done()
		defer uc.running.Add(-1)
		uc.run(job, ids)
	}()

	uc.log.Info("batch feedback started", "job_id", job.ID, "subject", subject, "total_reports", len(ids))
	return &dto.StartBatchResponse{
		JobStarted:   true,
		JobID:        job.ID,
		TotalReports: len(ids),
		Subject:      subject,
		StartedAt:    job.StartedAt,
	}, nil
}

func (uc *BatchUsecase) run(job *queue.Job, ids []uuid.UUID) {
	defer func() {
		if r := recover(); r != nil {
			uc.log.Error("batch job crashed", "job_id", job.ID, "panic", r)
			job.Status = queue.JobFailed
			uc.finish(job)
		}
	}()

	opts := uc.opts
	opts.OnProgress = func(p queue.Progress) {
		job.Processed = p.Processed
		job.Successful = p.Successful
		job.Failed = p.Failed
		job.TotalCost = p.TotalCost
		if err := uc.jobs.Save(uc.ctx, job); err != nil {
			uc.log.Warn("save batch progress failed", "job_id", job.ID, "error", err)
		}
	}

	summary := uc.queue.ProcessReports(uc.ctx, ids, opts)
	job.Successful = summary.Successful
	job.Failed = summary.Failed
	job.Processed = summary.Successful + summary.Failed
	job.TotalCost = summary.TotalCost
	job.TotalTimeMs = summary.TotalTimeMs
	job.FailedReportIDs = summary.FailedReportIDs
	job.Status = queue.JobCompleted
	if err := uc.ctx.Err(); err != nil {
		job.Status = queue.JobFailed
		job.Error = err.Error()
	}
	uc.finish(job)
}

func (uc *BatchUsecase) finish(job *queue.Job) {
	now := uc.clock.Now()
	job.FinishedAt = &now
	// The usecase context may already be canceled at shutdown.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(uc.ctx), 5*time.Second)
	defer cancel()
	if err := uc.jobs.Save(ctx, job); err != nil {
		uc.log.Warn("save batch result failed", "job_id", job.ID, "error", err)
	}
	uc.log.Info("batch feedback finished",
		"job_id", job.ID,
		"status", job.Status,
		"successful", job.Successful,
		"failed", job.Failed,
		"total_cost", job.TotalCost,
	)
}

func (uc *BatchUsecase) Progress(ctx context.Context, jobID string) (*queue.Job, error) {
	return uc.jobs.Get(ctx, jobID)
}

func (uc *BatchUsecase) Pending(ctx context.Context, subject string) (*dto.PendingReportsDTO, error) {
	counts, err := uc.reports.CountPendingBySubject(ctx)
	if err != nil {
		return nil, err
	}
	out := &dto.PendingReportsDTO{Subject: subject}
	if subject != "" {
		out.PendingReports = counts[subject]
		return out, nil
	}
	for _, n := range counts {
		out.PendingReports += n
	}
	out.Breakdown = counts
	return out, nil
}

// RunAuto starts a batch every interval until ctx is done. A tick is skipped
// while another job is still running.
func (uc *BatchUsecase) RunAuto(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if uc.running.Load() > 0 {
				uc.log.Debug("auto feedback skipped, batch already running")
				continue
			}
			if _, err := uc.Start(ctx, ""); err != nil {
				uc.log.Error("auto feedback failed to start", "error", err)
			}
		}
	}
}

// Shutdown cancels running jobs and waits for them to record their state.
func (uc *BatchUsecase) Shutdown(ctx context.Context) error {
	uc.cancel()
	done := make(chan struct{})
	go func() {
		uc.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until every started job has finished.
func (uc *BatchUsecase) Wait() {
	uc.wg.Wait()
}
