package core

import (
	"errors"
	"sync"
	"time"

	"github.com/eapache/queue"
)

const (
	defaultSignalBuffer = 64
)

var (
	// ErrQueueClosed is returned when enqueueing onto a closed queue.
	ErrQueueClosed = errors.New("queue is closed")
)

// WorkQueue is the continuation queue shared by everything that executes
// work: a strictly FIFO, mutex-protected ring buffer with blocking and
// non-blocking dequeue.
//
// Insertion order is the fairness contract. Every item gets a sequence number
// at enqueue time and items leave in that order, whatever the number of
// producers or consumers. An item is handed to exactly one consumer.
type WorkQueue struct {
	mu      sync.Mutex
	items   *queue.Queue
	nextSeq uint64
	closed  bool
	closeCh chan struct{}

	// signal wakes blocked consumers. Sends are non-blocking: a full buffer
	// already guarantees pending wake-ups.
	signal chan struct{}
}

// NewWorkQueue creates an empty open queue.
func NewWorkQueue() *WorkQueue {
	return NewWorkQueueWithSignalBuffer(defaultSignalBuffer)
}

// NewWorkQueueWithSignalBuffer creates a queue whose wake-up channel has the
// given capacity. A single-consumer queue only needs 1.
func NewWorkQueueWithSignalBuffer(size int) *WorkQueue {
	if size < 1 {
		size = 1
	}
	return &WorkQueue{
		items:   queue.New(),
		closeCh: make(chan struct{}),
		signal:  make(chan struct{}, size),
	}
}

// Enqueue appends item at the tail.
func (q *WorkQueue) Enqueue(item WorkItem) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.nextSeq++
	item.seq = q.nextSeq
	item.enqueuedAt = time.Now()
	q.items.Add(item)
	q.mu.Unlock()

	q.notify()
	return nil
}

// TryDequeue removes the head item without blocking.
func (q *WorkQueue) TryDequeue() (WorkItem, bool) {
	q.mu.Lock()
	if q.items.Length() == 0 {
		q.mu.Unlock()
		return WorkItem{}, false
	}
	item := q.items.Remove().(WorkItem)
	remaining := q.items.Length()
	q.mu.Unlock()

	// Chain the wake-up so other sleeping consumers pick up the rest.
	if remaining > 0 {
		q.notify()
	}
	return item, true
}

// Dequeue blocks until an item is available, stop is closed, or the queue is
// closed and empty. The boolean is false in the latter two cases.
func (q *WorkQueue) Dequeue(stop <-chan struct{}) (WorkItem, bool) {
	for {
		if item, ok := q.TryDequeue(); ok {
			return item, true
		}

		q.mu.Lock()
		closeCh := q.closeCh
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return WorkItem{}, false
		}

		select {
		case <-q.signal:
			continue
		case <-closeCh:
			// Closed: hand out what is left before reporting exhaustion.
			if item, ok := q.TryDequeue(); ok {
				return item, true
			}
			return WorkItem{}, false
		case <-stop:
			return WorkItem{}, false
		}
	}
}

// DequeueUpTo claims at most max items in one lock acquisition, preserving
// their order.
func (q *WorkQueue) DequeueUpTo(max int) []WorkItem {
	if max <= 0 {
		return nil
	}

	q.mu.Lock()
	n := min(q.items.Length(), max)
	if n == 0 {
		q.mu.Unlock()
		return nil
	}
	batch := make([]WorkItem, n)
	for i := range n {
		batch[i] = q.items.Remove().(WorkItem)
	}
	remaining := q.items.Length()
	q.mu.Unlock()

	if remaining > 0 {
		q.notify()
	}
	return batch
}

// Wake returns the channel consumers may select on to learn about new items.
// A receive is a hint only; always follow it with TryDequeue.
func (q *WorkQueue) Wake() <-chan struct{} {
	return q.signal
}

// Len returns the number of queued items.
func (q *WorkQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Length()
}

// IsEmpty reports whether no item is queued.
func (q *WorkQueue) IsEmpty() bool {
	return q.Len() == 0
}

// Close rejects further enqueues and releases blocked consumers once the
// remaining items are gone.
func (q *WorkQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.closeCh)
}

// Open reopens a closed queue. Items left in it are kept.
func (q *WorkQueue) Open() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		return
	}
	q.closed = false
	q.closeCh = make(chan struct{})
}

// IsClosed reports whether Close was called.
func (q *WorkQueue) IsClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Drain removes and returns every queued item in FIFO order.
func (q *WorkQueue) Drain() []WorkItem {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := q.items.Length()
	if n == 0 {
		return nil
	}
	out := make([]WorkItem, n)
	for i := range n {
		out[i] = q.items.Remove().(WorkItem)
	}
	// Start from a fresh ring so a burst does not pin a large buffer.
	q.items = queue.New()
	return out
}

func (q *WorkQueue) notify() {
	select {
	case q.signal <- struct{}{}:
	default:
		// Signal channel full, but the item is already queued.
	}
}
