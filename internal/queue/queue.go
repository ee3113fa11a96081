// Package queue provides the buffer between journal producers and the
// background database writer.
package queue

import (
	"sync"
)

// Queue is a FIFO safe for concurrent use. The writer drains it in batches
// and puts a failed batch back at the front.
type Queue[T any] struct {
	mu    sync.Mutex
	items []T
	limit int
	drops int
}

// New creates an unbounded queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{}
}

// NewBounded creates a queue that keeps at most limit items, dropping the
// oldest when full.
func NewBounded[T any](limit int) *Queue[T] {
	return &Queue[T]{limit: limit}
}

// Push appends items.
func (q *Queue[T]) Push(items ...T) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, items...)
	q.trim()
}

// Requeue puts items back in front of anything pushed since they were
// drained, so order is preserved across a failed write.
func (q *Queue[T]) Requeue(items []T) {
	if len(items) == 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(append(make([]T, 0, len(items)+len(q.items)), items...), q.items...)
	q.trim()
}

// trim drops from the front once over the limit. Caller holds mu.
func (q *Queue[T]) trim() {
	if q.limit <= 0 || len(q.items) <= q.limit {
		return
	}
	n := len(q.items) - q.limit
	q.drops += n
	q.items = append(q.items[:0], q.items[n:]...)
}

// Pop removes and returns the first item. ok is false if the queue is empty.
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

// Dropped returns how many items a bounded queue has discarded.
func (q *Queue[T]) Dropped() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.drops
}

// Drain returns all items and empties the queue.
func (q *Queue[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.items
	q.items = nil
	return out
}
