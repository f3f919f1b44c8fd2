package redisq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/taskvault/taskvault/internal/platform/logger"
)

// Import queue keys. Claimed messages sit on the processing list until acked;
// the started hash records when each claim happened so the janitor can spot
// crashed workers.
const (
	keyImportQueue      = "import:queue"
	keyImportProcessing = "import:queue:processing"
	keyImportStarted    = "import:queue:started"
)

// QueueMessage is one import job envelope on the queue.
type QueueMessage struct {
	ID         uuid.UUID       `json:"id"`
	Payload    json.RawMessage `json:"payload"`
	EnqueuedAt time.Time       `json:"enqueued_at"`

	// raw is the exact serialized form on the list, kept so Ack can LREM
	// the same bytes it claimed.
	raw string
}

// ImportQueue is a Redis-list job broker with at-least-once delivery.
//
// Enqueue pushes to the pending list; Dequeue atomically moves a message to
// the processing list; Ack removes it once the worker finished. A message
// whose worker died stays on the processing list until RescueStuck requeues
// it, so consumers must be idempotent.
type ImportQueue struct {
	rdb    *redis.Client
	logger *slog.Logger
}

// NewImportQueue creates an import job broker on the given client.
func NewImportQueue(rdb *redis.Client, log *slog.Logger) *ImportQueue {
	if rdb == nil {
		panic("redis client cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}

	return &ImportQueue{
		rdb:    rdb,
		logger: log.With(slog.String("component", "import_queue")),
	}
}

// Enqueue pushes a job payload onto the pending queue.
func (q *ImportQueue) Enqueue(ctx context.Context, id uuid.UUID, payload []byte) error {
	msg := QueueMessage{
		ID:         id,
		Payload:    payload,
		EnqueuedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal queue message: %w", err)
	}

	if err := q.rdb.LPush(ctx, keyImportQueue, data).Err(); err != nil {
		return fmt.Errorf("lpush import job: %w", err)
	}

	logger.FromContextOrDefault(ctx, q.logger).Info("import job enqueued",
		slog.String("job_id", id.String()))
	return nil
}

// Dequeue blocks until a message is available or timeout elapses, moving the
// claimed message onto the processing list. Returns ErrNoJob on timeout.
func (q *ImportQueue) Dequeue(ctx context.Context, timeout time.Duration) (*QueueMessage, error) {
	raw, err := q.rdb.BRPopLPush(ctx, keyImportQueue, keyImportProcessing, timeout).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoJob
		}
		return nil, fmt.Errorf("brpoplpush import job: %w", err)
	}

	var msg QueueMessage
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		// Poison message; drop it from the processing list so it cannot
		// wedge the janitor.
		q.rdb.LRem(ctx, keyImportProcessing, 1, raw)
		return nil, fmt.Errorf("unmarshal queue message: %w", err)
	}
	msg.raw = raw

	q.rdb.HSet(ctx, keyImportStarted, msg.ID.String(), time.Now().Unix())
	return &msg, nil
}

// ackScript removes a claimed message and its claim record in one step.
var ackScript = redis.NewScript(`
	redis.call('LREM', KEYS[1], 1, ARGV[1])
	redis.call('HDEL', KEYS[2], ARGV[2])
	return 1
`)

// Ack removes a processed message from the processing list.
func (q *ImportQueue) Ack(ctx context.Context, msg *QueueMessage) error {
	if msg == nil || msg.raw == "" {
		return errors.New("message was not dequeued from this queue")
	}

	_, err := ackScript.Run(ctx, q.rdb,
		[]string{keyImportProcessing, keyImportStarted},
		msg.raw, msg.ID.String(),
	).Result()
	if err != nil {
		return fmt.Errorf("ack import job: %w", err)
	}
	return nil
}

// rescueScript requeues a stuck message only if it is still on the processing
// list, so two janitors cannot duplicate it.
var rescueScript = redis.NewScript(`
	local removed = redis.call('LREM', KEYS[1], 1, ARGV[1])
	if removed > 0 then
		redis.call('LPUSH', KEYS[2], ARGV[1])
		redis.call('HDEL', KEYS[3], ARGV[2])
		return 1
	end
	return 0
`)

// RescueStuck requeues processing-list messages claimed more than maxAge ago.
// Returns the number of messages rescued.
func (q *ImportQueue) RescueStuck(ctx context.Context, maxAge time.Duration) (int, error) {
	log := logger.FromContextOrDefault(ctx, q.logger)

	started, err := q.rdb.HGetAll(ctx, keyImportStarted).Result()
	if err != nil {
		return 0, fmt.Errorf("hgetall started: %w", err)
	}

	claimed, err := q.rdb.LRange(ctx, keyImportProcessing, 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("lrange processing: %w", err)
	}
	if len(claimed) == 0 {
		// Orphaned claim records with nothing on the processing list.
		for id := range started {
			q.rdb.HDel(ctx, keyImportStarted, id)
		}
		return 0, nil
	}

	now := time.Now().Unix()
	threshold := int64(maxAge.Seconds())
	rescued := 0

	for _, raw := range claimed {
		var msg QueueMessage
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			continue
		}

		claimedAt := msg.EnqueuedAt.Unix()
		if s, ok := started[msg.ID.String()]; ok {
			if parsed, err := strconv.ParseInt(s, 10, 64); err == nil {
				claimedAt = parsed
			}
		}
		if now-claimedAt <= threshold {
			continue
		}

		result, err := rescueScript.Run(ctx, q.rdb,
			[]string{keyImportProcessing, keyImportQueue, keyImportStarted},
			raw, msg.ID.String(),
		).Int()
		if err != nil {
			log.Warn("rescue failed",
				slog.String("job_id", msg.ID.String()),
				slog.String("error", err.Error()))
			continue
		}
		if result == 1 {
			log.Warn("requeued stuck import job", slog.String("job_id", msg.ID.String()))
			rescued++
		}
	}

	return rescued, nil
}

// Depth returns the current length of the pending queue.
func (q *ImportQueue) Depth(ctx context.Context) (int64, error) {
	depth, err := q.rdb.LLen(ctx, keyImportQueue).Result()
	if err != nil {
		return 0, fmt.Errorf("llen import queue: %w", err)
	}
	return depth, nil
}
