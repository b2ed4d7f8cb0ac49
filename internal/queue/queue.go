package queue

import (
	"context"
	"time"

	"provider_core/internal/models"
)

// Package queue buffers usage records between the request path and the
// database writer, with two backends:
//
// 1. Memory Queue (in-memory, channel-based):
//    - No persistence, data lost on restart
//    - Zero external dependencies
//    - Suitable for standalone/development deployments
//
// 2. Redis Queue (Redis List-based):
//    - Persistent across restarts
//    - Supports distributed workers
//    - Production-ready for Kubernetes deployments
//
// The request path enqueues one record per completed LLM call; a batch
// worker drains the queue and writes rows in bulk. Records that fail
// every retry land in the dead-letter queue for manual inspection.

// UsageQueue is the buffer between the request path and the batch writer.
type UsageQueue interface {
	// Enqueue adds a usage record to the queue.
	Enqueue(ctx context.Context, log *models.LLMUsageLog) error

	// Dequeue retrieves up to maxItems records, blocking until at least
	// one is available or the context is cancelled.
	Dequeue(ctx context.Context, maxItems int) ([]*models.LLMUsageLog, error)

	// DequeueWithTimeout retrieves records if any arrive before the
	// timeout, otherwise returns an empty slice.
	DequeueWithTimeout(ctx context.Context, maxItems int, timeout time.Duration) ([]*models.LLMUsageLog, error)

	// Length returns the current queue length.
	Length(ctx context.Context) (int, error)

	// Close shuts down the queue gracefully.
	Close() error
}

// DeadLetterQueue holds usage records that exhausted their retries.
type DeadLetterQueue interface {
	// Add records a failed item together with the error that killed it.
	Add(ctx context.Context, log *models.LLMUsageLog, err error) error

	// List retrieves up to maxItems dead letters.
	List(ctx context.Context, maxItems int) ([]DeadLetterItem, error)

	// Remove deletes a dead letter by id.
	Remove(ctx context.Context, id string) error

	// Close shuts down the dead letter queue.
	Close() error
}

// DeadLetterItem is a usage record that could not be persisted.
type DeadLetterItem struct {
	ID        string              `json:"id"`
	Log       *models.LLMUsageLog `json:"log"`
	Error     string              `json:"error"`
	Timestamp time.Time           `json:"timestamp"`
	Retries   int                 `json:"retries"`
}

// Config holds queue configuration.
type Config struct {
	// BatchSize is the maximum number of records per batch insert.
	BatchSize int

	// BatchTimeout is how long the worker waits before flushing a
	// partial batch.
	BatchTimeout time.Duration

	// MaxRetries is the maximum number of retry attempts per batch.
	MaxRetries int

	// RetryBackoff is the initial backoff duration for retries.
	RetryBackoff time.Duration

	// UseRedis selects the Redis backend over the in-memory one.
	UseRedis bool

	// RedisAddr is the Redis server address (if UseRedis is true).
	RedisAddr string

	// RedisPassword is the Redis password (if UseRedis is true).
	RedisPassword string

	// RedisDB is the Redis database number (if UseRedis is true).
	RedisDB int

	// QueueName is the name/key for the queue.
	QueueName string
}

// DefaultConfig returns default queue configuration.
func DefaultConfig(queueName string) *Config {
	return &Config{
		BatchSize:    100,
		BatchTimeout: 5 * time.Second,
		MaxRetries:   3,
		RetryBackoff: 1 * time.Second,
		UseRedis:     false,
		QueueName:    queueName,
	}
}

// New builds the queue and dead-letter queue for the configured backend.
func New(config *Config) (UsageQueue, DeadLetterQueue, error) {
	if config == nil {
		config = DefaultConfig("usage")
	}

	if !config.UseRedis {
		return NewMemoryQueue(config), NewMemoryDeadLetterQueue(), nil
	}

	q, err := NewRedisQueue(config)
	if err != nil {
		return nil, nil, err
	}

	dlq, err := NewRedisDeadLetterQueue(config)
	if err != nil {
		q.Close()
		return nil, nil, err
	}

	return q, dlq, nil
}
