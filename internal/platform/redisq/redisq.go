// Package redisq provides the Redis-backed cache, import queue, and
// import-job state store. All three share one client so the process keeps a
// single connection pool.
package redisq

import (
	"errors"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrCacheMiss is returned when a cache key is absent or expired.
	ErrCacheMiss = errors.New("cache miss")

	// ErrNoJob is returned by Dequeue when the wait times out with the
	// queue empty.
	ErrNoJob = errors.New("no job available")
)

// NewClient creates a redis client for the given address and password.
func NewClient(addr, password string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})
}
