package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"provider_core/internal/models"
	"provider_core/internal/queue"
)

// fakeUsageStore records inserts and can be told to fail.
type fakeUsageStore struct {
	mu         sync.Mutex
	inserted   []*models.LLMUsageLog
	failBatch  bool
	failSingle int // fail this many single inserts before succeeding
}

func (f *fakeUsageStore) InsertUsageLog(ctx context.Context, log *models.LLMUsageLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSingle > 0 {
		f.failSingle--
		return errors.New("insert failed")
	}
	f.inserted = append(f.inserted, log)
	return nil
}

func (f *fakeUsageStore) InsertUsageLogs(ctx context.Context, logs []*models.LLMUsageLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failBatch {
		return errors.New("batch insert failed")
	}
	f.inserted = append(f.inserted, logs...)
	return nil
}

func (f *fakeUsageStore) insertedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.inserted)
}

type fakeArchiver struct {
	mu   sync.Mutex
	recs []*models.LLMUsageLog
}

func (f *fakeArchiver) Enqueue(rec *models.LLMUsageLog) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recs = append(f.recs, rec)
}

func (f *fakeArchiver) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.recs)
}

func workerConfig() *queue.Config {
	cfg := queue.DefaultConfig("usage")
	cfg.BatchTimeout = 20 * time.Millisecond
	cfg.MaxRetries = 1
	cfg.RetryBackoff = time.Millisecond
	return cfg
}

func testUsage(tenant string) *models.LLMUsageLog {
	return &models.LLMUsageLog{
		TenantID:      tenant,
		OperationType: models.OperationTypeLLM,
		ModelName:     "gpt-4o",
		PromptTokens:  10,
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestUsageQueueWorker_BatchInsert(t *testing.T) {
	q := queue.NewMemoryQueue(nil)
	store := &fakeUsageStore{}
	arch := &fakeArchiver{}
	w := NewUsageQueueWorker(q, queue.NewMemoryDeadLetterQueue(), store, arch, workerConfig())

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, w.Enqueue(ctx, testUsage("t1")))
	}

	w.Start(ctx)
	defer w.Stop()

	waitFor(t, func() bool { return store.insertedCount() == 3 })
	waitFor(t, func() bool { return arch.count() == 3 })
}

func TestUsageQueueWorker_FallsBackToSingleInserts(t *testing.T) {
	q := queue.NewMemoryQueue(nil)
	store := &fakeUsageStore{failBatch: true}
	w := NewUsageQueueWorker(q, queue.NewMemoryDeadLetterQueue(), store, nil, workerConfig())

	ctx := context.Background()
	require.NoError(t, w.Enqueue(ctx, testUsage("t1")))
	require.NoError(t, w.Enqueue(ctx, testUsage("t2")))

	w.Start(ctx)
	defer w.Stop()

	waitFor(t, func() bool { return store.insertedCount() == 2 })
}

func TestUsageQueueWorker_DeadLettersAfterRetries(t *testing.T) {
	q := queue.NewMemoryQueue(nil)
	dlq := queue.NewMemoryDeadLetterQueue()
	// Batch fails and both single-insert attempts (initial + 1 retry) fail.
	store := &fakeUsageStore{failBatch: true, failSingle: 2}
	w := NewUsageQueueWorker(q, dlq, store, nil, workerConfig())

	ctx := context.Background()
	require.NoError(t, w.Enqueue(ctx, testUsage("t1")))

	w.Start(ctx)
	defer w.Stop()

	waitFor(t, func() bool {
		items, err := dlq.List(ctx, 0)
		return err == nil && len(items) == 1
	})

	items, err := dlq.List(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, "t1", items[0].Log.TenantID)
	assert.Contains(t, items[0].Error, "insert failed")
	assert.Equal(t, 0, store.insertedCount())
}

func TestUsageQueueWorker_RetryDeadLetterItem(t *testing.T) {
	q := queue.NewMemoryQueue(nil)
	dlq := queue.NewMemoryDeadLetterQueue()
	store := &fakeUsageStore{}
	w := NewUsageQueueWorker(q, dlq, store, nil, workerConfig())

	ctx := context.Background()
	require.NoError(t, dlq.Add(ctx, testUsage("t1"), errors.New("old failure")))

	items, err := w.GetDeadLetterItems(ctx, 0)
	require.NoError(t, err)
	require.Len(t, items, 1)

	require.NoError(t, w.RetryDeadLetterItem(ctx, items[0].ID))

	length, err := w.GetQueueLength(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, length)

	items, err = w.GetDeadLetterItems(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, items)

	assert.ErrorIs(t, w.RetryDeadLetterItem(ctx, "missing"), queue.ErrItemNotFound)
}

func TestUsageQueueWorker_StopIsGraceful(t *testing.T) {
	q := queue.NewMemoryQueue(nil)
	store := &fakeUsageStore{}
	w := NewUsageQueueWorker(q, queue.NewMemoryDeadLetterQueue(), store, nil, workerConfig())

	w.Start(context.Background())

	done := make(chan struct{})
	go func() {
		w.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}
