// Package queue provides small FIFO containers for accumulating ordered
// message sequences.
package queue

// FIFO is a slice-backed first-in first-out queue.
//
// It is not synchronized; callers guard access with their own locks.
type FIFO[T any] struct {
	items []T
}

// NewFIFO creates a new FIFO with the given preallocated capacity.
func NewFIFO[T any](prealloc int) *FIFO[T] {
	return &FIFO[T]{items: make([]T, 0, prealloc)}
}

// Enqueue adds an item to the tail of the queue.
func (q *FIFO[T]) Enqueue(item T) {
	q.items = append(q.items, item)
}

// Dequeue removes and returns the item at the head of the queue.
func (q *FIFO[T]) Dequeue() (T, bool) {
	if len(q.items) == 0 {
		var zero T
		return zero, false
	}
	item := q.items[0]
	q.items = q.items[1:]
	return item, true
}

// Peek returns the item at the head of the queue without removing it.
func (q *FIFO[T]) Peek() (T, bool) {
	if len(q.items) == 0 {
		var zero T
		return zero, false
	}
	return q.items[0], true
}

// Reset resets the queue to an empty state.
func (q *FIFO[T]) Reset() {
	q.items = q.items[:0] // Reslice to 0 length to reuse the underlying array
}

// IsEmpty returns true if the queue is empty, false otherwise.
func (q *FIFO[T]) IsEmpty() bool {
	return len(q.items) == 0
}

// Length returns the number of items in the queue.
func (q *FIFO[T]) Length() int {
	return len(q.items)
}

// Snapshot returns a copy of the queued items in order.
func (q *FIFO[T]) Snapshot() []T {
	out := make([]T, len(q.items))
	copy(out, q.items)
	return out
}
