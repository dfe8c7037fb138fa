package core

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func seqItem(n int, out *[]int) WorkItem {
	return WorkItem{Task: func(ctx context.Context) { *out = append(*out, n) }}
}

// TestWorkQueue_FIFO verifies single-producer ordering
// Given: 1000 items enqueued by one producer, each tagged with its index
// When: They are dequeued with TryDequeue
// Then: Dequeue order equals tag order and sequence numbers are monotonic
func TestWorkQueue_FIFO(t *testing.T) {
	// Arrange
	q := NewWorkQueue()
	var got []int
	const n = 1000

	for i := range n {
		if err := q.Enqueue(seqItem(i, &got)); err != nil {
			t.Fatalf("Enqueue(%d) error = %v", i, err)
		}
	}

	// Act
	var lastSeq uint64
	for {
		item, ok := q.TryDequeue()
		if !ok {
			break
		}
		if item.Seq() <= lastSeq {
			t.Fatalf("Seq() = %d after %d, want increasing", item.Seq(), lastSeq)
		}
		lastSeq = item.Seq()
		item.Task(context.Background())
	}

	// Assert
	if len(got) != n {
		t.Fatalf("dequeued %d items, want %d", len(got), n)
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("got[%d] = %d, want %d", i, v, i)
		}
	}
}

// TestWorkQueue_DequeueUpTo verifies batched dequeue keeps order
// Given: A queue with 5 items
// When: DequeueUpTo(3) is called
// Then: The first 3 items come back in order and 2 remain
func TestWorkQueue_DequeueUpTo(t *testing.T) {
	// Arrange
	q := NewWorkQueue()
	var got []int
	for i := range 5 {
		_ = q.Enqueue(seqItem(i, &got))
	}

	// Act
	batch := q.DequeueUpTo(3)

	// Assert
	if len(batch) != 3 {
		t.Fatalf("len(batch) = %d, want 3", len(batch))
	}
	for _, item := range batch {
		item.Task(context.Background())
	}
	for i, v := range got {
		if v != i {
			t.Errorf("batch[%d] = %d, want %d", i, v, i)
		}
	}
	if q.Len() != 2 {
		t.Errorf("Len() = %d, want 2", q.Len())
	}
	if q.DequeueUpTo(0) != nil {
		t.Error("DequeueUpTo(0) returned items, want nil")
	}
}

// TestWorkQueue_ConcurrentNoLossNoDuplicate verifies exactly-once delivery
// Given: 4 producers enqueueing 2500 items each and 8 blocking consumers
// When: All items are consumed
// Then: Every item is consumed exactly once
func TestWorkQueue_ConcurrentNoLossNoDuplicate(t *testing.T) {
	// Arrange
	const producers = 4
	const perProducer = 2500
	q := NewWorkQueue()

	type tag struct{ producer, n int }
	var (
		mu   sync.Mutex
		seen = make(map[tag]int)
	)

	stop := make(chan struct{})
	var consumers sync.WaitGroup
	var consumed atomic.Int64
	for range 8 {
		consumers.Add(1)
		go func() {
			defer consumers.Done()
			for {
				item, ok := q.Dequeue(stop)
				if !ok {
					return
				}
				item.Task(context.Background())
				consumed.Add(1)
			}
		}()
	}

	// Act
	var wg sync.WaitGroup
	for p := range producers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perProducer {
				tg := tag{p, i}
				_ = q.Enqueue(WorkItem{Task: func(ctx context.Context) {
					mu.Lock()
					seen[tg]++
					mu.Unlock()
				}})
			}
		}()
	}
	wg.Wait()

	deadline := time.Now().Add(5 * time.Second)
	for consumed.Load() < producers*perProducer && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	close(stop)
	consumers.Wait()

	// Assert
	if got := consumed.Load(); got != producers*perProducer {
		t.Fatalf("consumed = %d, want %d", got, producers*perProducer)
	}
	for tg, count := range seen {
		if count != 1 {
			t.Errorf("item %v executed %d times, want 1", tg, count)
		}
	}
	if len(seen) != producers*perProducer {
		t.Errorf("distinct items = %d, want %d", len(seen), producers*perProducer)
	}
}

// TestWorkQueue_PerProducerOrderWithManyConsumers verifies FIFO claim order
// Given: One producer enqueueing 1000 items before consumers start
// When: 4 consumers claim items and record the claim sequence under a lock
// Then: The claim order matches the enqueue order
func TestWorkQueue_PerProducerOrderWithManyConsumers(t *testing.T) {
	// Arrange
	q := NewWorkQueue()
	const n = 1000
	for range n {
		_ = q.Enqueue(WorkItem{Task: func(ctx context.Context) {}, Name: "item"})
	}

	var (
		mu     sync.Mutex
		claims []uint64
	)
	var wg sync.WaitGroup

	// Act
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				mu.Lock()
				item, ok := q.TryDequeue()
				if ok {
					claims = append(claims, item.Seq())
				}
				mu.Unlock()
				if !ok {
					return
				}
			}
		}()
	}
	wg.Wait()

	// Assert
	if len(claims) != n {
		t.Fatalf("claims = %d, want %d", len(claims), n)
	}
	for i := 1; i < len(claims); i++ {
		if claims[i] != claims[i-1]+1 {
			t.Fatalf("claims[%d] = %d after %d, want consecutive", i, claims[i], claims[i-1])
		}
	}
}

// TestWorkQueue_Close verifies closing behaviour
// Given: A queue holding one item
// When: It is closed
// Then: Enqueue fails, the remaining item is still handed out, then Dequeue reports exhaustion
func TestWorkQueue_Close(t *testing.T) {
	// Arrange
	q := NewWorkQueue()
	_ = q.Enqueue(WorkItem{Task: func(ctx context.Context) {}})

	// Act
	q.Close()

	// Assert
	if err := q.Enqueue(WorkItem{Task: func(ctx context.Context) {}}); err != ErrQueueClosed {
		t.Errorf("Enqueue after Close error = %v, want ErrQueueClosed", err)
	}
	if _, ok := q.Dequeue(nil); !ok {
		t.Error("Dequeue() ok = false, want remaining item")
	}
	if _, ok := q.Dequeue(nil); ok {
		t.Error("Dequeue() ok = true on closed empty queue, want false")
	}

	q.Open()
	if q.IsClosed() {
		t.Error("IsClosed() = true after Open, want false")
	}
	if err := q.Enqueue(WorkItem{Task: func(ctx context.Context) {}}); err != nil {
		t.Errorf("Enqueue after Open error = %v, want nil", err)
	}
}

// TestWorkQueue_DequeueBlocksUntilEnqueue verifies the wait/notify path
// Given: A consumer blocked on an empty queue
// When: An item is enqueued from another goroutine
// Then: The consumer wakes up and receives it
func TestWorkQueue_DequeueBlocksUntilEnqueue(t *testing.T) {
	// Arrange
	q := NewWorkQueue()
	got := make(chan string, 1)

	go func() {
		item, ok := q.Dequeue(nil)
		if ok {
			got <- item.Name
		}
	}()

	// Act
	time.Sleep(10 * time.Millisecond)
	_ = q.Enqueue(WorkItem{Task: func(ctx context.Context) {}, Name: "wake"})

	// Assert
	select {
	case name := <-got:
		if name != "wake" {
			t.Errorf("Name = %q, want %q", name, "wake")
		}
	case <-time.After(time.Second):
		t.Fatal("Dequeue did not wake up")
	}
}

// TestWorkQueue_DequeueStop verifies the stop channel releases a consumer
func TestWorkQueue_DequeueStop(t *testing.T) {
	q := NewWorkQueue()
	stop := make(chan struct{})
	close(stop)

	if _, ok := q.Dequeue(stop); ok {
		t.Error("Dequeue() ok = true with closed stop, want false")
	}
}

// TestWorkQueue_Drain verifies Drain empties the queue in order
func TestWorkQueue_Drain(t *testing.T) {
	q := NewWorkQueue()
	var got []int
	for i := range 3 {
		_ = q.Enqueue(seqItem(i, &got))
	}

	items := q.Drain()
	for _, item := range items {
		item.Task(context.Background())
	}

	if len(got) != 3 || got[0] != 0 || got[2] != 2 {
		t.Errorf("drained order = %v, want [0 1 2]", got)
	}
	if !q.IsEmpty() {
		t.Errorf("Len() = %d after Drain, want 0", q.Len())
	}
	if q.Drain() != nil {
		t.Error("Drain() on empty queue returned items, want nil")
	}
}
