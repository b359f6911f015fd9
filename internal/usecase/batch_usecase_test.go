package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/intellego/platform/internal/apperror"
	"github.com/intellego/platform/internal/config"
	"github.com/intellego/platform/internal/model"
	"github.com/intellego/platform/internal/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastBatch() *config.BatchConfig {
	return &config.BatchConfig{
		MaxConcurrent:  2,
		RetryAttempts:  2,
		RetryBaseDelay: time.Millisecond,
		RetryMaxDelay:  time.Millisecond,
	}
}

func TestBatchGeneratesPendingFeedback(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	var reports []*model.WeeklyReport
	for _, name := range []string{"García, Juan", "Pérez, Luis", "Gómez, Eva"} {
		reports = append(reports, e.submit(t, e.student(t, name, "Física"), "Física"))
	}
	e.generator.fail[reports[1].ID] = errPermanent

	uc := e.batch(fastBatch())
	pending, err := uc.Pending(ctx, "")
	require.NoError(t, err)
	assert.EqualValues(t, 3, pending.PendingReports)
	assert.Equal(t, map[string]int64{"Física": 3}, pending.Breakdown)

	started, err := uc.Start(ctx, "Física")
	require.NoError(t, err)
	require.True(t, started.JobStarted)
	assert.Equal(t, 3, started.TotalReports)
	uc.Wait()

	job, err := uc.Progress(ctx, started.JobID)
	require.NoError(t, err)
	assert.Equal(t, queue.JobCompleted, job.Status)
	assert.Equal(t, 2, job.Successful)
	assert.Equal(t, 1, job.Failed)
	assert.Equal(t, 3, job.Processed)
	assert.InDelta(t, 0.02, job.TotalCost, 1e-9)
	assert.Equal(t, []uuid.UUID{reports[1].ID}, job.FailedReportIDs)
	assert.NotNil(t, job.FinishedAt)
	assert.Equal(t, 1, e.generator.calls[reports[1].ID], "permanent errors are not retried")

	pending, err = uc.Pending(ctx, "Física")
	require.NoError(t, err)
	assert.EqualValues(t, 1, pending.PendingReports)
}

func TestBatchAllFailingStillCompletes(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	var ids []uuid.UUID
	for _, name := range []string{"García, Juan", "Pérez, Luis"} {
		r := e.submit(t, e.student(t, name, "Química"), "Química")
		e.generator.fail[r.ID] = transient()
		ids = append(ids, r.ID)
	}

	uc := e.batch(fastBatch())
	started, err := uc.Start(ctx, "")
	require.NoError(t, err)
	uc.Wait()

	job, err := uc.Progress(ctx, started.JobID)
	require.NoError(t, err)
	assert.Equal(t, queue.JobCompleted, job.Status)
	assert.Equal(t, 2, job.Failed)
	assert.Zero(t, job.Successful)
	assert.ElementsMatch(t, ids, job.FailedReportIDs)
	for _, id := range ids {
		assert.Equal(t, 3, e.generator.calls[id])
	}
}

func TestBatchWithNothingPending(t *testing.T) {
	e := newEnv(t)
	uc := e.batch(fastBatch())
	started, err := uc.Start(context.Background(), "Física")
	require.NoError(t, err)
	assert.False(t, started.JobStarted)
	assert.Zero(t, started.TotalReports)

	_, err = uc.Progress(context.Background(), "nope")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestBatchShutdownWaitsForJobs(t *testing.T) {
	e := newEnv(t)
	e.submit(t, e.student(t, "García, Juan", "Física"), "Física")
	uc := e.batch(fastBatch())
	_, err := uc.Start(context.Background(), "")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, uc.Shutdown(ctx))
}
