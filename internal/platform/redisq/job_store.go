package redisq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/taskvault/taskvault/internal/domain"
	"github.com/taskvault/taskvault/internal/platform/logger"
	"github.com/taskvault/taskvault/internal/store"
)

func jobKey(id uuid.UUID) string {
	return "import:job:" + id.String()
}

func jobRowsKey(id uuid.UUID) string {
	return jobKey(id) + ":rows"
}

// JobStore keeps import-job status records in Redis.
//
// Records expire ttl after their last write, so terminal job state stays
// queryable for a bounded window and then returns not-found, the same answer
// an unknown job ID gets.
type JobStore struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewJobStore creates an import-job state store with the given retention.
func NewJobStore(rdb *redis.Client, ttl time.Duration, log *slog.Logger) *JobStore {
	if rdb == nil {
		panic("redis client cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}

	return &JobStore{
		rdb:    rdb,
		ttl:    ttl,
		logger: log.With(slog.String("component", "job_store")),
	}
}

// Save writes the job record and refreshes its retention window.
func (s *JobStore) Save(ctx context.Context, job *domain.ImportJob) error {
	if job == nil {
		return errors.New("job cannot be nil")
	}
	if !domain.ValidJobStatus(job.Status) {
		return domain.ErrInvalidJobStatus
	}

	job.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal import job: %w", err)
	}

	if err := s.rdb.Set(ctx, jobKey(job.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save import job: %w", err)
	}

	logger.FromContextOrDefault(ctx, s.logger).Debug("import job saved",
		slog.String("job_id", job.ID.String()),
		slog.String("status", string(job.Status)))
	return nil
}

// Get returns the job record, or store.ErrJobNotFound if the ID is unknown
// or the record has expired.
func (s *JobStore) Get(ctx context.Context, id uuid.UUID) (*domain.ImportJob, error) {
	data, err := s.rdb.Get(ctx, jobKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, store.ErrJobNotFound
		}
		return nil, fmt.Errorf("get import job: %w", err)
	}

	var job domain.ImportJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("unmarshal import job: %w", err)
	}
	return &job, nil
}

// MarkRowDone records that a CSV row of the job has been fully processed.
// Used with deterministic task IDs to keep redelivered jobs idempotent.
func (s *JobStore) MarkRowDone(ctx context.Context, jobID uuid.UUID, row int) error {
	key := jobRowsKey(jobID)
	if err := s.rdb.SAdd(ctx, key, row).Err(); err != nil {
		return fmt.Errorf("mark row done: %w", err)
	}
	return s.rdb.Expire(ctx, key, s.ttl).Err()
}

// RowDone reports whether the given CSV row was already processed.
func (s *JobStore) RowDone(ctx context.Context, jobID uuid.UUID, row int) (bool, error) {
	done, err := s.rdb.SIsMember(ctx, jobRowsKey(jobID), row).Result()
	if err != nil {
		return false, fmt.Errorf("check row done: %w", err)
	}
	return done, nil
}
