package importer

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/taskvault/taskvault/internal/domain"
	"github.com/taskvault/taskvault/internal/platform/logger"
	"github.com/taskvault/taskvault/internal/platform/redisq"
	"github.com/taskvault/taskvault/internal/service"
	"github.com/taskvault/taskvault/internal/service/auth"
	"github.com/taskvault/taskvault/internal/store"
)

const (
	// transientRetries is how many attempts a row gets against transient
	// storage failures before the row (not the job) fails.
	transientRetries = 3

	// dequeueWait bounds each blocking dequeue so workers notice shutdown.
	dequeueWait = 2 * time.Second
)

// Processor executes one import job: parse the CSV payload, create tasks row
// by row, and drive the job record PENDING -> RUNNING -> SUCCEEDED/FAILED.
//
// Processing is idempotent: task IDs derive from the job ID and row number,
// and finished rows are recorded, so a redelivered job never duplicates work.
type Processor struct {
	jobs   JobStateStore
	tasks  store.TaskStore
	users  store.UserStore
	hasher auth.PasswordHasher
	cache  service.PageCache
	logger *slog.Logger

	// retryBase is the first transient-retry backoff, doubled per attempt.
	// Shortened in tests.
	retryBase time.Duration
}

// NewProcessor creates an import job processor.
func NewProcessor(
	jobs JobStateStore,
	tasks store.TaskStore,
	users store.UserStore,
	hasher auth.PasswordHasher,
	cache service.PageCache,
	log *slog.Logger,
) *Processor {
	if jobs == nil || tasks == nil || users == nil || hasher == nil || cache == nil {
		panic("processor dependencies cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}

	return &Processor{
		jobs:      jobs,
		tasks:     tasks,
		users:     users,
		hasher:    hasher,
		cache:     cache,
		logger:    log.With(slog.String("component", "import_processor")),
		retryBase: 100 * time.Millisecond,
	}
}

// Process runs one claimed job to a terminal state. The returned error is
// informational; job outcome is always persisted in the job record.
func (p *Processor) Process(ctx context.Context, jobID uuid.UUID, payload []byte) error {
	log := logger.FromContextOrDefault(ctx, p.logger).With(slog.String("job_id", jobID.String()))
	ctx = logger.WithLogger(ctx, log)

	job, err := p.jobs.Get(ctx, jobID)
	if err != nil {
		if !errors.Is(err, store.ErrJobNotFound) {
			return fmt.Errorf("load job record: %w", err)
		}
		// The record expired or the submitter crashed between enqueue and
		// save. Rebuild it so the outcome is still queryable.
		job = &domain.ImportJob{ID: jobID, Status: domain.JobStatusPending, CreatedAt: time.Now().UTC()}
	}
	if job.Status.Terminal() {
		log.Info("skipping redelivered finished job", slog.String("status", string(job.Status)))
		return nil
	}

	var pl JobPayload
	if err := pl.unmarshal(payload); err != nil {
		return p.fail(ctx, job, "unreadable job payload")
	}
	if job.SubmittedByID == uuid.Nil {
		job.SubmittedByID = pl.SubmittedByID
	}

	job.Status = domain.JobStatusRunning
	if err := p.jobs.Save(ctx, job); err != nil {
		return fmt.Errorf("mark job running: %w", err)
	}

	reader := csv.NewReader(strings.NewReader(pl.CSV))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return p.fail(ctx, job, "empty or malformed csv")
	}
	index, err := ParseHeader(header)
	if err != nil {
		return p.fail(ctx, job, err.Error())
	}

	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Structural CSV damage is unrecoverable; rows already imported
			// stay (they are individually idempotent).
			return p.fail(ctx, job, fmt.Sprintf("malformed csv at row %d", line+1))
		}
		line++

		done, err := p.jobs.RowDone(ctx, job.ID, line)
		if err == nil && done {
			job.Succeeded++
			continue
		}

		if rowErr := p.processRow(ctx, job, line, record, index); rowErr != nil {
			job.Failed++
			job.RowErrors = append(job.RowErrors, domain.RowError{Row: line, Message: rowErr.Error()})
			log.Warn("import row failed",
				slog.Int("row", line),
				slog.String("error", rowErr.Error()))
			continue
		}

		if err := p.jobs.MarkRowDone(ctx, job.ID, line); err != nil {
			log.Warn("failed to mark row done", slog.Int("row", line), slog.String("error", err.Error()))
		}
		job.Succeeded++
	}

	job.Status = domain.JobStatusSucceeded
	if err := p.jobs.Save(ctx, job); err != nil {
		return fmt.Errorf("save finished job: %w", err)
	}

	if job.Succeeded > 0 {
		if err := p.cache.InvalidatePages(ctx); err != nil {
			log.Warn("cache invalidation failed", slog.String("error", err.Error()))
		}
	}

	log.Info("import job finished",
		slog.Int("succeeded", job.Succeeded),
		slog.Int("failed", job.Failed))
	return nil
}

// processRow imports one CSV row. Any returned error fails the row only.
func (p *Processor) processRow(ctx context.Context, job *domain.ImportJob, line int, record []string, index map[string]int) error {
	row, err := ParseRow(line, record, index)
	if err != nil {
		return err
	}

	assignee := job.SubmittedByID
	if row.AssignedUser != "" {
		user, err := p.resolveUser(ctx, row.AssignedUser)
		if err != nil {
			return err
		}
		assignee = user.ID
	}

	now := time.Now().UTC()
	task := &domain.Task{
		ID:             deterministicID(job.ID, line, "task"),
		LoggerID:       deterministicID(job.ID, line, "logger"),
		Name:           row.Name,
		Description:    row.Description,
		Done:           row.Done,
		Priority:       row.Priority,
		AssignedUserID: &assignee,
		CreatedByID:    job.SubmittedByID,
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      now,
	}

	return p.withRetry(ctx, func() error {
		return p.tasks.Create(ctx, task)
	})
}

// resolveUser gets or creates the assignee named in the CSV. Created users
// get a placeholder email and an unguessable password; they log in only
// after an admin resets their credentials.
func (p *Processor) resolveUser(ctx context.Context, username string) (*domain.User, error) {
	var found *domain.User
	err := p.withRetry(ctx, func() error {
		user, err := p.users.GetByUsername(ctx, username)
		if err == nil {
			found = user
		}
		return err
	})
	if err == nil {
		return found, nil
	}
	if !errors.Is(err, store.ErrUserNotFound) {
		return nil, err
	}

	user, err := domain.NewUser(username, username+"@import.local", uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("cannot create assignee %q: %w", username, err)
	}
	hash, err := p.hasher.Hash(user.Password)
	if err != nil {
		return nil, fmt.Errorf("hash generated password: %w", err)
	}
	user.HashedPassword = hash
	user.Password = ""

	err = p.withRetry(ctx, func() error {
		return p.users.Create(ctx, user)
	})
	if err == nil {
		return user, nil
	}
	if errors.Is(err, store.ErrUsernameExists) || errors.Is(err, store.ErrEmailExists) {
		// Lost a create race with a concurrent worker; the row still wants
		// the winner.
		return p.users.GetByUsername(ctx, username)
	}
	return nil, err
}

// withRetry runs fn, retrying transient storage failures with exponential
// backoff. Non-transient errors return immediately.
func (p *Processor) withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < transientRetries; attempt++ {
		err = fn()
		if err == nil || !errors.Is(err, store.ErrTransient) {
			return err
		}
		if attempt == transientRetries-1 {
			break
		}

		backoff := p.retryBase << attempt
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

// fail drives the job to FAILED with the given reason.
func (p *Processor) fail(ctx context.Context, job *domain.ImportJob, reason string) error {
	job.Status = domain.JobStatusFailed
	job.Error = reason
	if err := p.jobs.Save(ctx, job); err != nil {
		return fmt.Errorf("save failed job: %w", err)
	}
	logger.FromContextOrDefault(ctx, p.logger).Warn("import job failed",
		slog.String("job_id", job.ID.String()),
		slog.String("reason", reason))
	return nil
}

func (pl *JobPayload) unmarshal(data []byte) error {
	return json.Unmarshal(data, pl)
}

// deterministicID derives a stable UUID from the job ID, row number, and
// purpose, so redelivered rows map to the same task.
func deterministicID(jobID uuid.UUID, line int, purpose string) uuid.UUID {
	return uuid.NewSHA1(jobID, []byte(fmt.Sprintf("%s:%d", purpose, line)))
}

// Pool runs the configured number of worker goroutines over the broker plus
// a janitor that requeues messages whose worker died mid-job.
type Pool struct {
	queue     QueueConsumer
	processor *Processor
	count     int
	stuckAge  time.Duration
	logger    *slog.Logger

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewPool creates a worker pool. count is clamped to at least one worker.
func NewPool(queue QueueConsumer, processor *Processor, count int, stuckAge time.Duration, log *slog.Logger) *Pool {
	if queue == nil || processor == nil {
		panic("pool dependencies cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	if count < 1 {
		log.Warn("invalid worker count, using 1", slog.Int("specified", count))
		count = 1
	}

	return &Pool{
		queue:     queue,
		processor: processor,
		count:     count,
		stuckAge:  stuckAge,
		logger:    log.With(slog.String("component", "import_pool")),
	}
}

// Start launches the workers and the janitor. It returns immediately.
func (p *Pool) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	for i := 0; i < p.count; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}

	p.wg.Add(1)
	go p.janitor(ctx)

	p.logger.Info("import worker pool started", slog.Int("workers", p.count))
}

// Stop signals all workers and waits for in-flight jobs to finish.
func (p *Pool) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	p.logger.Info("import worker pool stopped")
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	log := p.logger.With(slog.Int("worker", id))
	for {
		if ctx.Err() != nil {
			return
		}

		msg, err := p.queue.Dequeue(ctx, dequeueWait)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if !errors.Is(err, redisq.ErrNoJob) {
				log.Warn("dequeue failed", slog.String("error", err.Error()))
			}
			continue
		}

		p.runJob(ctx, log, msg)
	}
}

// runJob isolates one job execution: a panicking job is logged and acked,
// never allowed to kill the worker.
func (p *Pool) runJob(ctx context.Context, log *slog.Logger, msg *redisq.QueueMessage) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("import job panicked",
				slog.String("job_id", msg.ID.String()),
				slog.Any("panic", r))
		}
		// Ack regardless of outcome: the job record carries the verdict, and
		// redelivering a terminal job is a no-op anyway.
		if err := p.queue.Ack(ctx, msg); err != nil {
			log.Warn("ack failed", slog.String("job_id", msg.ID.String()), slog.String("error", err.Error()))
		}
	}()

	if err := p.processor.Process(ctx, msg.ID, msg.Payload); err != nil {
		log.Error("import job processing error",
			slog.String("job_id", msg.ID.String()),
			slog.String("error", err.Error()))
	}
}

func (p *Pool) janitor(ctx context.Context) {
	defer p.wg.Done()

	interval := p.stuckAge / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rescued, err := p.queue.RescueStuck(ctx, p.stuckAge)
			if err != nil {
				p.logger.Warn("janitor sweep failed", slog.String("error", err.Error()))
				continue
			}
			if rescued > 0 {
				p.logger.Warn("janitor requeued stuck jobs", slog.Int("count", rescued))
			}
		}
	}
}
