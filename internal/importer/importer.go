// Package importer implements the asynchronous CSV bulk import: job
// submission, the worker pool that consumes the broker, and the stuck-job
// janitor.
package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/taskvault/taskvault/internal/domain"
	"github.com/taskvault/taskvault/internal/platform/logger"
	"github.com/taskvault/taskvault/internal/platform/redisq"
)

// JobPayload is the body of a queued import job.
type JobPayload struct {
	SubmittedByID uuid.UUID `json:"submitted_by_id"`
	CSV           string    `json:"csv"`
}

// QueueProducer is the broker surface the submitter needs.
type QueueProducer interface {
	Enqueue(ctx context.Context, id uuid.UUID, payload []byte) error
}

// QueueConsumer is the broker surface the worker pool needs.
type QueueConsumer interface {
	Dequeue(ctx context.Context, timeout time.Duration) (*redisq.QueueMessage, error)
	Ack(ctx context.Context, msg *redisq.QueueMessage) error
	RescueStuck(ctx context.Context, maxAge time.Duration) (int, error)
}

// JobStateStore persists import-job status records and the processed-row set.
// Implemented by redisq.JobStore.
type JobStateStore interface {
	Save(ctx context.Context, job *domain.ImportJob) error
	Get(ctx context.Context, id uuid.UUID) (*domain.ImportJob, error)
	MarkRowDone(ctx context.Context, jobID uuid.UUID, row int) error
	RowDone(ctx context.Context, jobID uuid.UUID, row int) (bool, error)
}

// Service accepts import submissions and answers status queries. The heavy
// lifting happens in the worker pool; Submit only records the job and hands
// the payload to the broker.
type Service struct {
	queue  QueueProducer
	jobs   JobStateStore
	logger *slog.Logger
}

// NewService creates an import submission service.
func NewService(queue QueueProducer, jobs JobStateStore, log *slog.Logger) *Service {
	if queue == nil || jobs == nil {
		panic("importer service dependencies cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}

	return &Service{
		queue:  queue,
		jobs:   jobs,
		logger: log.With(slog.String("component", "import_service")),
	}
}

// Submit records a pending job and enqueues its payload. The returned job is
// in status PENDING; callers poll Status with its ID.
func (s *Service) Submit(ctx context.Context, submittedBy uuid.UUID, csvText string) (*domain.ImportJob, error) {
	job := domain.NewImportJob(submittedBy)

	payload, err := json.Marshal(JobPayload{SubmittedByID: submittedBy, CSV: csvText})
	if err != nil {
		return nil, fmt.Errorf("marshal job payload: %w", err)
	}

	// Record the job before enqueueing so a status poll racing the enqueue
	// never sees an unknown ID.
	if err := s.jobs.Save(ctx, job); err != nil {
		return nil, fmt.Errorf("save import job: %w", err)
	}
	if err := s.queue.Enqueue(ctx, job.ID, payload); err != nil {
		return nil, fmt.Errorf("enqueue import job: %w", err)
	}

	logger.FromContextOrDefault(ctx, s.logger).Info("import job submitted",
		slog.String("job_id", job.ID.String()),
		slog.String("submitted_by", submittedBy.String()))

	return job, nil
}

// Status returns the current job record. Expired and unknown IDs both yield
// store.ErrJobNotFound.
func (s *Service) Status(ctx context.Context, jobID uuid.UUID) (*domain.ImportJob, error) {
	return s.jobs.Get(ctx, jobID)
}
