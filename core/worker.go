package core

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/Swind/go-task-bridge/future"
)

// WorkerState is the lifecycle state of one pool worker.
type WorkerState int32

const (
	WorkerStarting WorkerState = iota
	WorkerIdle
	WorkerRunning
	WorkerDraining
	WorkerTerminated
)

func (s WorkerState) String() string {
	switch s {
	case WorkerStarting:
		return "starting"
	case WorkerIdle:
		return "idle"
	case WorkerRunning:
		return "running"
	case WorkerDraining:
		return "draining"
	case WorkerTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("worker_state(%d)", int32(s))
	}
}

// worker is one goroutine bound to its pool's WorkQueue. Nothing outside the
// pool holds a reference to it, except the marker placed in the context of
// the item it is executing.
type worker struct {
	id   int
	pool *WorkerPool

	state     atomic.Int32
	gid       atomic.Uint64
	idleSince atomic.Int64

	// quit is closed to retire the worker; it exits once its current item
	// is done.
	quit     chan struct{}
	retiring bool // guarded by pool.mu
	done     chan struct{}
}

func newWorker(p *WorkerPool, id int) *worker {
	return &worker{
		id:   id,
		pool: p,
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
}

type workerKeyType struct{}

var workerKey workerKeyType

func withWorker(ctx context.Context, w *worker) context.Context {
	return context.WithValue(ctx, workerKey, w)
}

func workerFromContext(ctx context.Context) *worker {
	if ctx == nil {
		return nil
	}
	w, _ := ctx.Value(workerKey).(*worker)
	return w
}

func (w *worker) isCurrent() bool {
	return w.gid.Load() == goroutineID()
}

// setState moves the worker to s and keeps the pool's idle and running
// counters in step.
func (w *worker) setState(s WorkerState) {
	old := WorkerState(w.state.Swap(int32(s)))
	if old == s {
		return
	}
	ps := &w.pool.state
	switch old {
	case WorkerIdle:
		ps.idle.Add(-1)
	case WorkerRunning:
		ps.running.Add(-1)
	}
	switch s {
	case WorkerIdle:
		w.idleSince.Store(time.Now().UnixNano())
		ps.idle.Add(1)
	case WorkerRunning:
		ps.running.Add(1)
	}
}

func (w *worker) State() WorkerState {
	return WorkerState(w.state.Load())
}

func (w *worker) idleFor(now time.Time) time.Duration {
	if w.State() != WorkerIdle {
		return 0
	}
	return now.Sub(time.Unix(0, w.idleSince.Load()))
}

func (w *worker) markBlocked() {
	w.pool.state.blocked.Add(1)
	w.pool.kick()
}

func (w *worker) markUnblocked() {
	w.pool.state.blocked.Add(-1)
}

// retireLocked asks the worker to exit. The caller holds pool.mu.
func (w *worker) retireLocked() {
	if w.retiring {
		return
	}
	w.retiring = true
	close(w.quit)
}

// run is the worker control loop: dequeue, execute, repeat. A panic escaping
// execute (from a handler rather than the task) ends only this worker.
func (w *worker) run() {
	p := w.pool
	faulted := false

	defer func() {
		if r := recover(); r != nil {
			faulted = true
			p.cfg.logger.Error("worker control loop failed",
				F("pool", p.id),
				F("worker", w.id),
				F("panic", r),
				F("stack", string(debug.Stack())),
			)
		}
		w.setState(WorkerTerminated)
		p.workerExited(w, faulted)
	}()

	w.gid.Store(goroutineID())
	w.setState(WorkerIdle)

	for {
		item, ok := p.queue.Dequeue(w.quit)
		if !ok {
			w.setState(WorkerDraining)
			return
		}
		w.setState(WorkerRunning)
		w.execute(item)
		w.setState(WorkerIdle)
	}
}

func (w *worker) execute(item WorkItem) {
	p := w.pool
	defer p.state.pending.Add(-1)

	ctx := WithRouter(withWorker(item.context(), w), p)

	startedAt := time.Now()
	panicInfo, stack, panicked := w.runTask(ctx, item)
	finishedAt := time.Now()

	p.state.completed.Add(1)
	p.history.Add(TaskExecutionRecord{
		Seq:        item.seq,
		Name:       resolveTaskName(item.Task, item.Name),
		PoolName:   p.id,
		WorkerID:   w.id,
		EnqueuedAt: item.enqueuedAt,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
		Wait:       startedAt.Sub(item.enqueuedAt),
		Duration:   finishedAt.Sub(startedAt),
		Panicked:   panicked,
	})

	p.cfg.metrics.RecordTaskWait(p.id, startedAt.Sub(item.enqueuedAt))
	p.cfg.metrics.RecordTaskDuration(p.id, finishedAt.Sub(startedAt))

	if panicked {
		// The slot is completed even if a handler below panics.
		defer item.fault(&future.PanicError{Value: panicInfo, Stack: stack})
		p.state.panicked.Add(1)
		p.cfg.metrics.RecordTaskPanic(p.id, panicInfo)
		p.cfg.panicHandler.HandlePanic(ctx, p.id, w.id, panicInfo, stack)
	}
}

func (w *worker) runTask(ctx context.Context, item WorkItem) (panicInfo any, stack []byte, panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			panicInfo = r
			stack = debug.Stack()
			panicked = true
		}
	}()
	item.Task(ctx)
	return nil, nil, false
}
