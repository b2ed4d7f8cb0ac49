package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"provider_core/internal/models"
)

func usageLog(tenant string, prompt int) *models.LLMUsageLog {
	return &models.LLMUsageLog{
		TenantID:      tenant,
		OperationType: models.OperationTypeLLM,
		ModelName:     "gpt-4o",
		PromptTokens:  prompt,
	}
}

func TestMemoryQueue_EnqueueDequeue(t *testing.T) {
	q := NewMemoryQueue(nil)
	defer q.Close()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, q.Enqueue(ctx, usageLog("t1", i)))
	}

	length, err := q.Length(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, length)

	items, err := q.Dequeue(ctx, 10)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, 0, items[0].PromptTokens)
	assert.Equal(t, 2, items[2].PromptTokens)
}

func TestMemoryQueue_DequeueRespectsMaxItems(t *testing.T) {
	q := NewMemoryQueue(nil)
	defer q.Close()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, q.Enqueue(ctx, usageLog("t1", i)))
	}

	items, err := q.Dequeue(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, items, 2)

	length, err := q.Length(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, length)
}

func TestMemoryQueue_DequeueWithTimeoutEmpty(t *testing.T) {
	q := NewMemoryQueue(nil)
	defer q.Close()

	start := time.Now()
	items, err := q.DequeueWithTimeout(context.Background(), 10, 20*time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestMemoryQueue_DequeueBlocksUntilEnqueue(t *testing.T) {
	q := NewMemoryQueue(nil)
	defer q.Close()
	ctx := context.Background()

	done := make(chan []*models.LLMUsageLog, 1)
	go func() {
		items, err := q.Dequeue(ctx, 1)
		if err == nil {
			done <- items
		}
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, q.Enqueue(ctx, usageLog("t1", 7)))

	select {
	case items := <-done:
		require.Len(t, items, 1)
		assert.Equal(t, 7, items[0].PromptTokens)
	case <-time.After(time.Second):
		t.Fatal("dequeue did not unblock")
	}
}

func TestMemoryQueue_ClosedOperationsFail(t *testing.T) {
	q := NewMemoryQueue(nil)
	require.NoError(t, q.Close())
	require.NoError(t, q.Close()) // idempotent

	ctx := context.Background()
	assert.ErrorIs(t, q.Enqueue(ctx, usageLog("t1", 1)), ErrQueueClosed)

	_, err := q.Length(ctx)
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestMemoryDeadLetterQueue(t *testing.T) {
	dlq := NewMemoryDeadLetterQueue()
	defer dlq.Close()
	ctx := context.Background()

	cause := errors.New("insert failed: connection refused")
	require.NoError(t, dlq.Add(ctx, usageLog("t1", 1), cause))
	require.NoError(t, dlq.Add(ctx, usageLog("t2", 2), cause))

	items, err := dlq.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "insert failed: connection refused", items[0].Error)
	assert.Equal(t, "t1", items[0].Log.TenantID)

	require.NoError(t, dlq.Remove(ctx, items[0].ID))

	items, err = dlq.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, items, 1)

	assert.ErrorIs(t, dlq.Remove(ctx, "missing"), ErrItemNotFound)
}

func TestNewDefaultsToMemoryBackend(t *testing.T) {
	q, dlq, err := New(nil)
	require.NoError(t, err)
	defer q.Close()
	defer dlq.Close()

	assert.IsType(t, &MemoryQueue{}, q)
	assert.IsType(t, &MemoryDeadLetterQueue{}, dlq)
}
