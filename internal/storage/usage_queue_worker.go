package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"provider_core/internal/logging"
	"provider_core/internal/models"
	"provider_core/internal/queue"
)

// usageStore is the slice of the repository the worker writes through.
type usageStore interface {
	InsertUsageLog(ctx context.Context, log *models.LLMUsageLog) error
	InsertUsageLogs(ctx context.Context, logs []*models.LLMUsageLog) error
}

// usageArchiver receives a copy of every persisted record for cold storage.
type usageArchiver interface {
	Enqueue(rec *models.LLMUsageLog)
}

// UsageQueueWorker drains the usage queue and persists records in batches.
// A failed batch falls back to per-record inserts with exponential backoff;
// records that exhaust their retries move to the dead-letter queue.
type UsageQueueWorker struct {
	queue       queue.UsageQueue
	dlq         queue.DeadLetterQueue
	store       usageStore
	archiver    usageArchiver
	config      *queue.Config
	log         *logrus.Entry
	stopChan    chan struct{}
	stoppedChan chan struct{}
}

// NewUsageQueueWorker creates a new usage queue worker. archiver may be nil.
func NewUsageQueueWorker(q queue.UsageQueue, dlq queue.DeadLetterQueue, store usageStore, archiver usageArchiver, config *queue.Config) *UsageQueueWorker {
	if config == nil {
		config = queue.DefaultConfig("usage")
	}

	return &UsageQueueWorker{
		queue:       q,
		dlq:         dlq,
		store:       store,
		archiver:    archiver,
		config:      config,
		log:         logging.New("usage-worker"),
		stopChan:    make(chan struct{}),
		stoppedChan: make(chan struct{}),
	}
}

// Start starts the worker goroutine.
func (w *UsageQueueWorker) Start(ctx context.Context) {
	go w.run(ctx)
}

// Stop gracefully stops the worker.
func (w *UsageQueueWorker) Stop() error {
	close(w.stopChan)
	<-w.stoppedChan
	return nil
}

// Enqueue adds a usage record to the queue.
func (w *UsageQueueWorker) Enqueue(ctx context.Context, record *models.LLMUsageLog) error {
	return w.queue.Enqueue(ctx, record)
}

// run is the main worker loop.
func (w *UsageQueueWorker) run(ctx context.Context) {
	defer close(w.stoppedChan)

	for {
		select {
		case <-w.stopChan:
			w.log.Info("usage worker stopping")
			return
		case <-ctx.Done():
			w.log.Info("usage worker context cancelled")
			return
		default:
			w.processBatch(ctx)
		}
	}
}

// processBatch drains one batch from the queue and persists it.
func (w *UsageQueueWorker) processBatch(ctx context.Context) {
	records, err := w.queue.DequeueWithTimeout(ctx, w.config.BatchSize, w.config.BatchTimeout)
	if err != nil {
		w.log.WithError(err).Error("failed to dequeue usage records")
		time.Sleep(1 * time.Second) // Back off on error
		return
	}

	if len(records) == 0 {
		return
	}

	w.log.WithField("count", len(records)).Debug("processing usage batch")

	if err := w.store.InsertUsageLogs(ctx, records); err != nil {
		w.log.WithError(err).Error("batch insert failed, falling back to individual inserts")
		for _, record := range records {
			if err := w.processItem(ctx, record); err != nil {
				w.log.WithError(err).Error("failed to process usage record")
			}
		}
		return
	}

	w.archive(records)
}

// processItem persists a single record with retries, dead-lettering on
// exhaustion.
func (w *UsageQueueWorker) processItem(ctx context.Context, record *models.LLMUsageLog) error {
	var lastErr error
	for attempt := 0; attempt <= w.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := w.config.RetryBackoff * time.Duration(1<<uint(attempt-1))
			w.log.WithFields(logrus.Fields{
				"attempt": attempt,
				"backoff": backoff,
			}).Debug("retrying usage record")
			time.Sleep(backoff)
		}

		if err := w.store.InsertUsageLog(ctx, record); err != nil {
			lastErr = err
			continue
		}

		w.archive([]*models.LLMUsageLog{record})
		return nil
	}

	if w.dlq != nil {
		if err := w.dlq.Add(ctx, record, lastErr); err != nil {
			w.log.WithError(err).Error("failed to add to dead letter queue")
		} else {
			w.log.WithError(lastErr).WithField("tenant_id", record.TenantID).
				Warn("usage record moved to DLQ")
		}
	}

	return fmt.Errorf("%w: %v", queue.ErrMaxRetriesExceeded, lastErr)
}

func (w *UsageQueueWorker) archive(records []*models.LLMUsageLog) {
	if w.archiver == nil {
		return
	}
	for _, record := range records {
		w.archiver.Enqueue(record)
	}
}

// GetQueueLength returns the current queue length.
func (w *UsageQueueWorker) GetQueueLength(ctx context.Context) (int, error) {
	return w.queue.Length(ctx)
}

// GetDeadLetterItems returns items from the dead letter queue.
func (w *UsageQueueWorker) GetDeadLetterItems(ctx context.Context, maxItems int) ([]queue.DeadLetterItem, error) {
	if w.dlq == nil {
		return nil, fmt.Errorf("dead letter queue not configured")
	}
	return w.dlq.List(ctx, maxItems)
}

// RetryDeadLetterItem re-enqueues a dead letter by id.
func (w *UsageQueueWorker) RetryDeadLetterItem(ctx context.Context, id string) error {
	if w.dlq == nil {
		return fmt.Errorf("dead letter queue not configured")
	}

	items, err := w.dlq.List(ctx, 0)
	if err != nil {
		return fmt.Errorf("failed to list dead letter items: %w", err)
	}

	for _, dlItem := range items {
		if dlItem.ID != id {
			continue
		}

		if err := w.queue.Enqueue(ctx, dlItem.Log); err != nil {
			return fmt.Errorf("failed to re-enqueue item: %w", err)
		}
		if err := w.dlq.Remove(ctx, id); err != nil {
			return fmt.Errorf("failed to remove from DLQ: %w", err)
		}
		return nil
	}

	return queue.ErrItemNotFound
}
