package queue

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/intellego/platform/internal/apperror"
	"github.com/intellego/platform/internal/logger"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultMaxConcurrent = 5
	DefaultRetryAttempts = 3
)

// Processor generates feedback for one report and returns the provider cost.
type Processor func(ctx context.Context, reportID uuid.UUID) (float64, error)

type Options struct {
	MaxConcurrent int
	// RetryAttempts is the number of extra attempts after the first failure.
	RetryAttempts  int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	// OnProgress is called after every finished report. Calls are serialized.
	OnProgress func(Progress)
}

type Progress struct {
	Total      int
	Processed  int
	Successful int
	Failed     int
	TotalCost  float64
}

type Summary struct {
	Successful      int                  `json:"successful"`
	Failed          int                  `json:"failed"`
	TotalCost       float64              `json:"total_cost"`
	TotalTimeMs     int64                `json:"total_time_ms"`
	FailedReportIDs []uuid.UUID          `json:"failed_report_ids"`
	Errors          map[uuid.UUID]string `json:"errors,omitempty"`
}

type Queue struct {
	process  Processor
	inflight singleflight.Group
	log      *logger.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

func New(process Processor, log *logger.Logger) *Queue {
	return &Queue{process: process, log: log, sleep: sleepCtx}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o Options) withDefaults() Options {
	if o.MaxConcurrent < 1 {
		o.MaxConcurrent = DefaultMaxConcurrent
	}
	if o.RetryAttempts < 0 {
		o.RetryAttempts = 0
	}
	if o.RetryBaseDelay <= 0 {
		o.RetryBaseDelay = 2 * time.Second
	}
	if o.RetryMaxDelay <= 0 {
		o.RetryMaxDelay = 30 * time.Second
	}
	return o
}

type result struct {
	cost float64
	err  error
}

// ProcessReports runs every id through the processor with at most
// MaxConcurrent in flight. Failures are collected in the summary and never
// returned as an error. Duplicate ids are processed once.
func (q *Queue) ProcessReports(ctx context.Context, reportIDs []uuid.UUID, opts Options) Summary {
	start := time.Now()
	summary := Summary{FailedReportIDs: []uuid.UUID{}}
	ids := dedupe(reportIDs)
	if len(ids) == 0 {
		return summary
	}
	opts = opts.withDefaults()

	var (
		mu       sync.Mutex
		progress = Progress{Total: len(ids)}
	)
	record := func(id uuid.UUID, r result) {
		mu.Lock()
		defer mu.Unlock()
		progress.Processed++
		if r.err != nil {
			progress.Failed++
			summary.Failed++
			summary.FailedReportIDs = append(summary.FailedReportIDs, id)
			if summary.Errors == nil {
				summary.Errors = make(map[uuid.UUID]string)
			}
			summary.Errors[id] = r.err.Error()
		} else {
			progress.Successful++
			progress.TotalCost += r.cost
			summary.Successful++
			summary.TotalCost += r.cost
		}
		if opts.OnProgress != nil {
			opts.OnProgress(progress)
		}
	}

	var g errgroup.Group
	g.SetLimit(opts.MaxConcurrent)
	for _, id := range ids {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					record(id, result{err: fmt.Errorf("panic processing report: %v", r)})
				}
			}()
			if err := ctx.Err(); err != nil {
				record(id, result{err: err})
				return nil
			}
			// Shares the outcome with any other batch already running this id.
			v, _, _ := q.inflight.Do(id.String(), func() (any, error) {
				return q.processWithRetry(ctx, id, opts), nil
			})
			record(id, v.(result))
			return nil
		})
	}
	_ = g.Wait()

	summary.TotalTimeMs = time.Since(start).Milliseconds()
	q.log.Info("batch finished",
		"total", len(ids),
		"successful", summary.Successful,
		"failed", summary.Failed,
		"total_cost", summary.TotalCost,
		"total_time_ms", summary.TotalTimeMs,
	)
	return summary
}

func (q *Queue) processWithRetry(ctx context.Context, id uuid.UUID, opts Options) result {
	var err error
	for attempt := 0; attempt <= opts.RetryAttempts; attempt++ {
		if attempt > 0 {
			delay := retryDelay(opts.RetryBaseDelay, opts.RetryMaxDelay, attempt)
			q.log.Debug("retrying report", "report_id", id, "attempt", attempt, "delay", delay)
			if serr := q.sleep(ctx, delay); serr != nil {
				return result{err: serr}
			}
		}
		var cost float64
		cost, err = q.process(ctx, id)
		if err == nil {
			return result{cost: cost}
		}
		if !apperror.IsTransient(err) {
			break
		}
		q.log.Warn("transient failure", "report_id", id, "attempt", attempt+1, "error", err)
	}
	q.log.Warn("report failed", "report_id", id, "error", err)
	return result{err: err}
}

// retryDelay is base, 2*base, 4*base... capped at max.
func retryDelay(base, max time.Duration, attempt int) time.Duration {
	d := time.Duration(float64(base) * math.Pow(2, float64(attempt-1)))
	if d > max || d <= 0 {
		return max
	}
	return d
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
