package feed

import "sync"

// Queue is a bounded FIFO for one subscriber. When full, Push drops the
// oldest item: a live feed cares about now, not completeness.
type Queue[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	buf    []T
	head   int // read position
	count  int
	closed bool

	dropped int64
}

// NewQueue creates a queue with the given fixed capacity.
func NewQueue[T any](capacity int) *Queue[T] {
	if capacity < 1 {
		capacity = 1
	}
	q := &Queue[T]{buf: make([]T, capacity)}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push adds an item, evicting the oldest one when the queue is full.
// Returns false if the queue is closed.
func (q *Queue[T]) Push(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	if q.count == len(q.buf) {
		// Overwrite the oldest slot and advance the read position.
		q.head = (q.head + 1) % len(q.buf)
		q.count--
		q.dropped++
	}

	q.buf[(q.head+q.count)%len(q.buf)] = item
	q.count++
	q.cond.Signal()
	return true
}

// Pop blocks until an item is available or the queue is closed. After close,
// remaining items drain first; then Pop returns false.
func (q *Queue[T]) Pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.count == 0 && !q.closed {
		q.cond.Wait()
	}
	if q.count == 0 {
		var zero T
		return zero, false
	}

	item := q.buf[q.head]
	var zero T
	q.buf[q.head] = zero // release the reference
	q.head = (q.head + 1) % len(q.buf)
	q.count--
	return item, true
}

// Close stops accepting items and wakes blocked readers.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Dropped returns how many items were evicted for this subscriber.
func (q *Queue[T]) Dropped() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
