package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisQueue(t *testing.T) (*RedisQueue, *RedisDeadLetterQueue) {
	t.Helper()

	mr := miniredis.RunT(t)

	cfg := DefaultConfig("usage")
	cfg.UseRedis = true
	cfg.RedisAddr = mr.Addr()

	q, dlq, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		q.Close()
		dlq.Close()
	})

	return q.(*RedisQueue), dlq.(*RedisDeadLetterQueue)
}

func TestRedisQueue_RoundTrip(t *testing.T) {
	q, _ := setupRedisQueue(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		require.NoError(t, q.Enqueue(ctx, usageLog("t1", i)))
	}

	length, err := q.Length(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, length)

	items, err := q.Dequeue(ctx, 10)
	require.NoError(t, err)
	require.Len(t, items, 4)

	// FIFO order and field fidelity across the JSON hop.
	assert.Equal(t, 0, items[0].PromptTokens)
	assert.Equal(t, 3, items[3].PromptTokens)
	assert.Equal(t, "t1", items[0].TenantID)
	assert.Equal(t, "gpt-4o", items[0].ModelName)
}

func TestRedisQueue_DequeueWithTimeoutEmpty(t *testing.T) {
	q, _ := setupRedisQueue(t)

	items, err := q.DequeueWithTimeout(context.Background(), 10, 50*time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestRedisQueue_DequeueRespectsMaxItems(t *testing.T) {
	q, _ := setupRedisQueue(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, q.Enqueue(ctx, usageLog("t1", i)))
	}

	items, err := q.DequeueWithTimeout(ctx, 3, time.Second)
	require.NoError(t, err)
	assert.Len(t, items, 3)

	length, err := q.Length(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, length)
}

func TestRedisDeadLetterQueue_RoundTrip(t *testing.T) {
	_, dlq := setupRedisQueue(t)
	ctx := context.Background()

	require.NoError(t, dlq.Add(ctx, usageLog("t1", 9), errors.New("batch insert failed")))

	items, err := dlq.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "batch insert failed", items[0].Error)
	assert.Equal(t, 9, items[0].Log.PromptTokens)

	require.NoError(t, dlq.Remove(ctx, items[0].ID))

	items, err = dlq.List(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, items)
}
