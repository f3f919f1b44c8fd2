package redisq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/taskvault/taskvault/internal/platform/logger"
)

// taskPagePrefix namespaces every cached task-list page so invalidation can
// sweep them with one SCAN pattern.
const taskPagePrefix = "tasks:"

// TaskCache is a read-through cache for serialized task-list pages.
//
// The cache is an availability optimization only: every write path calls
// InvalidatePages, so a page is never older than the last task mutation plus
// the TTL. Errors talking to Redis degrade to a miss rather than failing the
// request.
type TaskCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewTaskCache creates a task-list page cache with the given entry lifetime.
func NewTaskCache(rdb *redis.Client, ttl time.Duration, log *slog.Logger) *TaskCache {
	if rdb == nil {
		panic("redis client cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}

	return &TaskCache{
		rdb:    rdb,
		ttl:    ttl,
		logger: log.With(slog.String("component", "task_cache")),
	}
}

// PageKey builds the cache key for one page of one caller's task list.
// Keys are scoped per requesting user so an admin page and a member page of
// the "same" query never collide.
func PageKey(userID uuid.UUID, date *time.Time, page, perPage int) string {
	day := "any"
	if date != nil {
		day = date.UTC().Format("2006-01-02")
	}
	return fmt.Sprintf("%suser:%s:date:%s:page:%d:per:%d", taskPagePrefix, userID, day, page, perPage)
}

// GetPage returns the cached serialized page for key, or ErrCacheMiss.
func (c *TaskCache) GetPage(ctx context.Context, key string) ([]byte, error) {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		logger.FromContextOrDefault(ctx, c.logger).Warn("cache read failed",
			slog.String("key", key),
			slog.String("error", err.Error()))
		return nil, ErrCacheMiss
	}
	return data, nil
}

// SetPage stores a serialized page under key with the configured TTL.
// Failures are logged and swallowed; the caller already has the data.
func (c *TaskCache) SetPage(ctx context.Context, key string, data []byte) {
	if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
		logger.FromContextOrDefault(ctx, c.logger).Warn("cache write failed",
			slog.String("key", key),
			slog.String("error", err.Error()))
	}
}

// InvalidatePages removes every cached task-list page. Called after any task
// mutation; a stale page must never be served past the mutation.
func (c *TaskCache) InvalidatePages(ctx context.Context) error {
	log := logger.FromContextOrDefault(ctx, c.logger)

	iter := c.rdb.Scan(ctx, 0, taskPagePrefix+"*", 100).Iterator()
	deleted := 0
	for iter.Next(ctx) {
		if err := c.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			log.Warn("cache invalidation delete failed",
				slog.String("key", iter.Val()),
				slog.String("error", err.Error()))
			continue
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		log.Error("cache invalidation scan failed", slog.String("error", err.Error()))
		return fmt.Errorf("scan cached pages: %w", err)
	}

	if deleted > 0 {
		log.Debug("cache invalidated", slog.Int("pages", deleted))
	}
	return nil
}
