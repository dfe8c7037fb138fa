package core

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/Swind/go-task-bridge/future"
)

// delayedTask is a callback scheduled for a point in time.
type delayedTask struct {
	runAt time.Time
	fire  func()
	index int // for heap interface
}

// delayedTaskHeap implements heap.Interface ordered by runAt.
type delayedTaskHeap []*delayedTask

func (h delayedTaskHeap) Len() int           { return len(h) }
func (h delayedTaskHeap) Less(i, j int) bool { return h[i].runAt.Before(h[j].runAt) }
func (h delayedTaskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *delayedTaskHeap) Push(x any) {
	item := x.(*delayedTask)
	item.index = len(*h)
	*h = append(*h, item)
}

func (h *delayedTaskHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[:n-1]
	return item
}

func (h delayedTaskHeap) peek() *delayedTask {
	if len(h) == 0 {
		return nil
	}
	return h[0]
}

// DelayManager fires scheduled callbacks from a single timer goroutine.
// Callbacks must be short: they complete futures or post to a router.
type DelayManager struct {
	mu     sync.Mutex
	pq     delayedTaskHeap
	wakeup chan struct{}
	stop   chan struct{}
	once   sync.Once
}

// NewDelayManager starts a manager with an empty schedule.
func NewDelayManager() *DelayManager {
	dm := &DelayManager{
		wakeup: make(chan struct{}, 1),
		stop:   make(chan struct{}),
	}
	go dm.loop()
	return dm
}

// schedule registers fire to run after delay and returns a cancel function
// reporting whether the entry was removed before firing.
func (dm *DelayManager) schedule(delay time.Duration, fire func()) func() bool {
	item := &delayedTask{runAt: time.Now().Add(delay), fire: fire}

	dm.mu.Lock()
	heap.Push(&dm.pq, item)
	first := item.index == 0
	dm.mu.Unlock()

	if first {
		select {
		case dm.wakeup <- struct{}{}:
		default:
		}
	}

	return func() bool {
		dm.mu.Lock()
		defer dm.mu.Unlock()
		if item.index < 0 {
			return false
		}
		heap.Remove(&dm.pq, item.index)
		return true
	}
}

func (dm *DelayManager) loop() {
	timer := time.NewTimer(time.Hour)
	timer.Stop()

	for {
		if next, ok := dm.nextRun(); ok {
			timer.Reset(next)
		}

		select {
		case <-dm.stop:
			timer.Stop()
			return
		case <-timer.C:
			dm.fireExpired()
		case <-dm.wakeup:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}
	}
}

// nextRun reports how long to wait for the earliest entry.
func (dm *DelayManager) nextRun() (time.Duration, bool) {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	item := dm.pq.peek()
	if item == nil {
		return 0, false
	}
	return max(time.Until(item.runAt), 0), true
}

// fireExpired pops every due entry and fires them outside the lock.
func (dm *DelayManager) fireExpired() {
	dm.mu.Lock()
	now := time.Now()
	var expired []*delayedTask
	for dm.pq.Len() > 0 {
		if dm.pq.peek().runAt.After(now) {
			break
		}
		expired = append(expired, heap.Pop(&dm.pq).(*delayedTask))
	}
	dm.mu.Unlock()

	for _, item := range expired {
		item.fire()
	}
}

// Stop ends the timer goroutine and drops every pending entry.
func (dm *DelayManager) Stop() {
	dm.once.Do(func() {
		close(dm.stop)
		dm.mu.Lock()
		dm.pq = nil
		dm.mu.Unlock()
	})
}

// TaskCount returns the number of pending entries.
func (dm *DelayManager) TaskCount() int {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	return len(dm.pq)
}

// Delay returns a future that succeeds after d, or is canceled if ctx ends
// first. Continuations chained on it resume wherever ctx routes them.
func (dm *DelayManager) Delay(ctx context.Context, d time.Duration) *future.Future[future.Void] {
	if ctx == nil {
		ctx = context.Background()
	}
	p := future.NewPromise[future.Void]()
	if err := ctx.Err(); err != nil {
		p.Cancel(err)
		return p.Future()
	}

	cancel := dm.schedule(d, func() { p.Resolve(future.Void{}) })
	if ctx.Done() != nil {
		stop := context.AfterFunc(ctx, func() {
			if cancel() {
				p.Cancel(ctx.Err())
			}
		})
		p.Future().OnComplete(func() { stop() })
	}
	return p.Future()
}

// PostDelayed posts task through the router carried by ctx once d elapsed.
func (dm *DelayManager) PostDelayed(ctx context.Context, d time.Duration, task Task) {
	if task == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	dm.schedule(d, func() { Post(ctx, task) })
}

var (
	delayManagerOnce sync.Once
	delayManagerInst *DelayManager
)

func sharedDelayManager() *DelayManager {
	delayManagerOnce.Do(func() {
		delayManagerInst = NewDelayManager()
	})
	return delayManagerInst
}

// Delay is DelayManager.Delay on the process-wide manager.
func Delay(ctx context.Context, d time.Duration) *future.Future[future.Void] {
	return sharedDelayManager().Delay(ctx, d)
}

// PostDelayed is DelayManager.PostDelayed on the process-wide manager.
func PostDelayed(ctx context.Context, d time.Duration, task Task) {
	sharedDelayManager().PostDelayed(ctx, d, task)
}
