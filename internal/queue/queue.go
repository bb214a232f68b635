package queue

import (
	"context"
	"sync/atomic"
	"time"
)

// Queue is a bounded FIFO queue between one producer and one consumer.
// Push never blocks: when the queue is full the oldest element is dropped.
type Queue[T any] struct {
	items   chan T
	dropped atomic.Uint64
}

// New creates and returns a new Queue that holds at most size elements.
func New[T any](size int) *Queue[T] {
	if size <= 0 {
		size = 1
	}
	return &Queue[T]{items: make(chan T, size)}
}

// Push adds an element to the end of the queue. The boolean is false when
// an older element had to be dropped to make room.
func (q *Queue[T]) Push(item T) bool {
	select {
	case q.items <- item:
		return true
	default:
	}
	for {
		select {
		case <-q.items:
			q.dropped.Add(1)
		default:
		}
		select {
		case q.items <- item:
			return false
		default:
		}
	}
}

// Pop removes and returns the front element, waiting up to timeout for one
// to arrive. The boolean is false on timeout or when ctx is done.
func (q *Queue[T]) Pop(ctx context.Context, timeout time.Duration) (T, bool) {
	select {
	case item := <-q.items:
		return item, true
	default:
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case item := <-q.items:
		return item, true
	case <-timer.C:
	case <-ctx.Done():
	}
	var zero T
	return zero, false
}

// Len returns the number of elements in the queue.
func (q *Queue[T]) Len() int {
	return len(q.items)
}

// Cap returns the queue bound.
func (q *Queue[T]) Cap() int {
	return cap(q.items)
}

// Dropped returns how many elements were discarded by Push.
func (q *Queue[T]) Dropped() uint64 {
	return q.dropped.Load()
}
