package redisq

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageKey(t *testing.T) {
	t.Parallel()

	userID := uuid.MustParse("7f1f2b3c-0000-0000-0000-000000000001")
	date := time.Date(2025, 6, 15, 23, 30, 0, 0, time.UTC)

	assert.Equal(t,
		"tasks:user:7f1f2b3c-0000-0000-0000-000000000001:date:2025-06-15:page:2:per:10",
		PageKey(userID, &date, 2, 10))
	assert.Equal(t,
		"tasks:user:7f1f2b3c-0000-0000-0000-000000000001:date:any:page:1:per:20",
		PageKey(userID, nil, 1, 20))
}

func TestTaskCacheRoundTrip(t *testing.T) {
	t.Parallel()

	rdb, _ := newTestClient(t)
	cache := NewTaskCache(rdb, time.Minute, nil)
	ctx := context.Background()

	key := PageKey(uuid.New(), nil, 1, 20)

	_, err := cache.GetPage(ctx, key)
	assert.ErrorIs(t, err, ErrCacheMiss)

	cache.SetPage(ctx, key, []byte(`{"items":[],"total":0}`))

	data, err := cache.GetPage(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"items":[],"total":0}`), data)
}

func TestTaskCacheExpiry(t *testing.T) {
	t.Parallel()

	rdb, mr := newTestClient(t)
	cache := NewTaskCache(rdb, time.Minute, nil)
	ctx := context.Background()

	key := PageKey(uuid.New(), nil, 1, 20)
	cache.SetPage(ctx, key, []byte(`{}`))

	mr.FastForward(2 * time.Minute)

	_, err := cache.GetPage(ctx, key)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestTaskCacheInvalidatePages(t *testing.T) {
	t.Parallel()

	rdb, mr := newTestClient(t)
	cache := NewTaskCache(rdb, time.Minute, nil)
	ctx := context.Background()

	userA := uuid.New()
	userB := uuid.New()
	cache.SetPage(ctx, PageKey(userA, nil, 1, 20), []byte(`{}`))
	cache.SetPage(ctx, PageKey(userA, nil, 2, 20), []byte(`{}`))
	cache.SetPage(ctx, PageKey(userB, nil, 1, 20), []byte(`{}`))

	// Unrelated keys survive the sweep.
	require.NoError(t, rdb.Set(ctx, "import:job:whatever", "x", 0).Err())

	require.NoError(t, cache.InvalidatePages(ctx))

	for _, key := range []string{
		PageKey(userA, nil, 1, 20),
		PageKey(userA, nil, 2, 20),
		PageKey(userB, nil, 1, 20),
	} {
		_, err := cache.GetPage(ctx, key)
		assert.ErrorIs(t, err, ErrCacheMiss, key)
	}
	assert.True(t, mr.Exists("import:job:whatever"))
}
