package queue

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"csguard/internal/core/ports"
)

var _ ports.WriteQueuePort = (*MemoryQueue[ports.WriteRequest])(nil)

// MemoryQueue is a bounded, non-blocking FIFO. Enqueue never waits: when
// the buffer is full the item is dropped and counted.
type MemoryQueue[T any] struct {
	ch      chan T
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
}

// NewWriteQueue returns the queue feeding the history writer.
func NewWriteQueue(capacity int) *MemoryQueue[ports.WriteRequest] {
	return NewMemoryQueue[ports.WriteRequest](capacity)
}

func NewMemoryQueue[T any](capacity int) *MemoryQueue[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &MemoryQueue[T]{ch: make(chan T, capacity)}
}

func (q *MemoryQueue[T]) Enqueue(item T) ports.EnqueueResult {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.dropped.Add(1)
		return ports.EnqueueDropped
	}
	select {
	case q.ch <- item:
		return ports.EnqueueAccepted
	default:
		q.dropped.Add(1)
		return ports.EnqueueDropped
	}
}

// DequeueBatch waits up to wait for a first item, then drains whatever is
// buffered up to maxItems. A closed, drained queue returns io.EOF, together
// with the final items when there are any.
func (q *MemoryQueue[T]) DequeueBatch(ctx context.Context, maxItems int, wait time.Duration) ([]T, error) {
	if maxItems <= 0 {
		maxItems = 1
	}
	batch := make([]T, 0, maxItems)

	first, err := q.first(ctx, wait)
	if err != nil || first == nil {
		return nil, err
	}
	batch = append(batch, *first)

	for len(batch) < maxItems {
		select {
		case item, ok := <-q.ch:
			if !ok {
				return batch, io.EOF
			}
			batch = append(batch, item)
		default:
			return batch, nil
		}
	}
	return batch, nil
}

func (q *MemoryQueue[T]) first(ctx context.Context, wait time.Duration) (*T, error) {
	if wait <= 0 {
		select {
		case item, ok := <-q.ch:
			if !ok {
				return nil, io.EOF
			}
			return &item, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
			return nil, nil
		}
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case item, ok := <-q.ch:
		if !ok {
			return nil, io.EOF
		}
		return &item, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, nil
	}
}

func (q *MemoryQueue[T]) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	close(q.ch)
	return nil
}

func (q *MemoryQueue[T]) Len() int {
	if q == nil {
		return 0
	}
	return len(q.ch)
}

// Dropped counts items rejected because the queue was full or closed.
func (q *MemoryQueue[T]) Dropped() int64 {
	return q.dropped.Load()
}
