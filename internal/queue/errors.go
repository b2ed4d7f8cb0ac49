package queue

import "errors"

var (
	// ErrQueueClosed is returned when enqueueing or dequeueing on a closed queue.
	ErrQueueClosed = errors.New("usage queue is closed")

	// ErrItemNotFound is returned when a dead-letter id does not exist.
	ErrItemNotFound = errors.New("dead letter item not found")

	// ErrMaxRetriesExceeded marks a record that exhausted its insert retries.
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
)
