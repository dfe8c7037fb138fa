package core

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/Swind/go-task-bridge/future"
)

// pumpWorkerID is reported to PanicHandler for panics raised on a pump.
const pumpWorkerID = -1

// PumpContext routes continuations back to the goroutine that called RunSync.
//
// It owns a private WorkQueue that only the owner goroutine drains. Any
// goroutine may Post to it; Post never runs the continuation inline.
type PumpContext struct {
	owner  uint64
	name   string
	queue  *WorkQueue
	active atomic.Bool
}

// activePumps maps owner goroutine IDs to their active pump, so reentrancy
// is detected even when the nested call was handed a context without the
// pump's routing.
var activePumps sync.Map // uint64 -> *PumpContext

func newPumpContext(owner uint64) *PumpContext {
	p := &PumpContext{
		owner: owner,
		name:  fmt.Sprintf("pump-%d", owner),
		queue: NewWorkQueueWithSignalBuffer(1),
	}
	p.active.Store(true)
	activePumps.Store(owner, p)
	return p
}

// Kind implements Router.
func (p *PumpContext) Kind() RouteKind {
	return RoutePump
}

// Post implements Router. Continuations posted after the pump returned are
// reported as rejected and run on a fresh goroutine.
func (p *PumpContext) Post(ctx context.Context, task Task) {
	if task == nil {
		return
	}
	if err := p.queue.Enqueue(WorkItem{Task: task, Ctx: ctx}); err != nil {
		p.reject(ctx, task)
	}
}

// Active reports whether the owner is still pumping.
func (p *PumpContext) Active() bool {
	return p.active.Load()
}

// Owner returns the goroutine ID of the pumping goroutine.
func (p *PumpContext) Owner() uint64 {
	return p.owner
}

// Pending returns the number of continuations waiting to be pumped.
func (p *PumpContext) Pending() int {
	return p.queue.Len()
}

func (p *PumpContext) ownedByCaller() bool {
	return p.active.Load() && p.owner == goroutineID()
}

func (p *PumpContext) reject(ctx context.Context, task Task) {
	defaultRejectedHandler().HandleRejectedTask(p.name, "pump finished")
	runDetached(ctx, task)
}

// runUntil executes continuations on the calling goroutine until done is
// closed. It blocks only when the queue is empty.
func (p *PumpContext) runUntil(done <-chan struct{}) {
	for {
		if item, ok := p.queue.TryDequeue(); ok {
			p.execute(item)
			continue
		}

		select {
		case <-done:
			return
		default:
		}

		select {
		case <-p.queue.Wake():
		case <-done:
			return
		}
	}
}

// drainReady runs everything already queued, including continuations those
// items post while running.
func (p *PumpContext) drainReady() {
	for {
		item, ok := p.queue.TryDequeue()
		if !ok {
			return
		}
		p.execute(item)
	}
}

// deactivate closes the private queue. Items that slipped in between the
// final drain and the close are handed off to fresh goroutines.
func (p *PumpContext) deactivate() {
	p.active.Store(false)
	activePumps.CompareAndDelete(p.owner, p)
	p.queue.Close()
	for _, item := range p.queue.Drain() {
		p.reject(item.context(), item.Task)
	}
}

func (p *PumpContext) execute(item WorkItem) {
	ctx := item.context()
	if RouterFromContext(ctx) != Router(p) {
		ctx = WithRouter(ctx, p)
	}

	defer func() {
		if r := recover(); r != nil {
			stack := debug.Stack()
			item.fault(&future.PanicError{Value: r, Stack: stack})
			defaultPanicHandler().HandlePanic(ctx, p.name, pumpWorkerID, r, stack)
		}
	}()
	item.Task(ctx)
}

// activePumpFor returns the active pump owned by the calling goroutine, if
// any, preferring the one carried by ctx.
func activePumpFor(ctx context.Context) *PumpContext {
	if p, ok := RouterFromContext(ctx).(*PumpContext); ok && p.ownedByCaller() {
		return p
	}
	if v, ok := activePumps.Load(goroutineID()); ok {
		p := v.(*PumpContext)
		if p.Active() {
			return p
		}
	}
	return nil
}

// RunSync runs the operation started by factory to completion on the calling
// goroutine and returns its result.
//
// Every continuation the operation routes through the context handed to the
// factory executes on the calling goroutine, in posting order, before RunSync
// returns. A RunSync nested inside another one on the same goroutine reuses
// the outer pump instead of starting a second one.
//
// A panicking factory yields a *future.PanicError without pumping; a nil
// future yields ErrNilFuture. Faults and cancellations of the operation are
// returned as the future reports them.
//
// ctx supplies values and cancellation to the operation. It does not bound
// the wait: continuations already posted are never abandoned.
func RunSync[T any](ctx context.Context, factory func(ctx context.Context) *future.Future[T]) (T, error) {
	var zero T
	if ctx == nil {
		ctx = context.Background()
	}
	if factory == nil {
		return zero, ErrNilFuture
	}

	if p := activePumpFor(ctx); p != nil {
		f, err := invokeFactory(WithRouter(ctx, p), factory)
		if err != nil {
			return zero, err
		}
		p.runUntil(f.Done())
		return f.Result()
	}

	p := newPumpContext(goroutineID())
	defer p.deactivate()

	f, err := invokeFactory(WithRouter(ctx, p), factory)
	if err != nil {
		return zero, err
	}

	p.runUntil(f.Done())
	p.drainReady()
	return f.Result()
}

// RunTaskSync is RunSync for operations without a result.
func RunTaskSync(ctx context.Context, factory func(ctx context.Context) *future.Future[future.Void]) error {
	_, err := RunSync(ctx, factory)
	return err
}

func invokeFactory[T any](ctx context.Context, factory func(ctx context.Context) *future.Future[T]) (f *future.Future[T], err error) {
	defer func() {
		if r := recover(); r != nil {
			f = nil
			err = &future.PanicError{Value: r, Stack: debug.Stack()}
		}
	}()

	f = factory(ctx)
	if f == nil {
		return nil, ErrNilFuture
	}
	return f, nil
}

func defaultPanicHandler() PanicHandler {
	return &DefaultPanicHandler{Logger: defaultLogger()}
}

func defaultRejectedHandler() RejectedTaskHandler {
	return &DefaultRejectedTaskHandler{Logger: defaultLogger()}
}
