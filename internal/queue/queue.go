// Package queue provides the thread-safe FIFO behind the write-behind
// persistence writer and the journal renderer.
package queue

import "sync"

// Queue is a generic thread-safe FIFO. The zero value is ready to use.
type Queue[T any] struct {
	mu    sync.Mutex
	items []T
}

// Push appends items in order.
func (q *Queue[T]) Push(items ...T) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, items...)
}

// Pop removes and returns the oldest item. ok is false when the queue is
// empty.
func (q *Queue[T]) Pop() (item T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return item, false
	}
	item = q.items[0]
	q.items = q.items[1:]
	return item, true
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// GetAndEmpty returns all queued items in order and resets the queue.
// The drain loops use this to flush a whole batch under one lock.
func (q *Queue[T]) GetAndEmpty() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}
