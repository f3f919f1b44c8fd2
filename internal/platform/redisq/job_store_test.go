package redisq

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskvault/taskvault/internal/domain"
	"github.com/taskvault/taskvault/internal/store"
)

func TestJobStoreSaveAndGet(t *testing.T) {
	t.Parallel()

	rdb, _ := newTestClient(t)
	jobs := NewJobStore(rdb, time.Hour, nil)
	ctx := context.Background()

	job := domain.NewImportJob(uuid.New())
	require.NoError(t, jobs.Save(ctx, job))

	got, err := jobs.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, domain.JobStatusPending, got.Status)
	assert.Equal(t, job.SubmittedByID, got.SubmittedByID)
}

func TestJobStoreGetUnknown(t *testing.T) {
	t.Parallel()

	rdb, _ := newTestClient(t)
	jobs := NewJobStore(rdb, time.Hour, nil)

	_, err := jobs.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestJobStoreExpiry(t *testing.T) {
	t.Parallel()

	rdb, mr := newTestClient(t)
	jobs := NewJobStore(rdb, time.Hour, nil)
	ctx := context.Background()

	job := domain.NewImportJob(uuid.New())
	job.Status = domain.JobStatusSucceeded
	job.Succeeded = 3
	require.NoError(t, jobs.Save(ctx, job))

	mr.FastForward(2 * time.Hour)

	_, err := jobs.Get(ctx, job.ID)
	assert.ErrorIs(t, err, store.ErrJobNotFound)
}

func TestJobStoreRejectsInvalidStatus(t *testing.T) {
	t.Parallel()

	rdb, _ := newTestClient(t)
	jobs := NewJobStore(rdb, time.Hour, nil)

	job := domain.NewImportJob(uuid.New())
	job.Status = domain.JobStatus("EXPLODED")

	assert.ErrorIs(t, jobs.Save(context.Background(), job), domain.ErrInvalidJobStatus)
}

func TestJobStoreRowTracking(t *testing.T) {
	t.Parallel()

	rdb, _ := newTestClient(t)
	jobs := NewJobStore(rdb, time.Hour, nil)
	ctx := context.Background()

	jobID := uuid.New()

	done, err := jobs.RowDone(ctx, jobID, 2)
	require.NoError(t, err)
	assert.False(t, done)

	require.NoError(t, jobs.MarkRowDone(ctx, jobID, 2))

	done, err = jobs.RowDone(ctx, jobID, 2)
	require.NoError(t, err)
	assert.True(t, done)

	done, err = jobs.RowDone(ctx, jobID, 3)
	require.NoError(t, err)
	assert.False(t, done)
}
