package core

import (
	"context"

	"github.com/Swind/go-task-bridge/future"
)

// StartNew runs work on pool and returns a future for its outcome.
//
// work executes with the pool installed as routing, so continuations it
// registers through its ctx resume on the same queue. If ctx is already done
// when the item is dequeued, work does not run and the future is canceled.
// A rejected submission faults the future; an item abandoned by Stop is
// canceled with ErrPoolClosed as cause. The future may be discarded.
func StartNew[T any](ctx context.Context, pool *WorkerPool, work func(ctx context.Context) (T, error)) *future.Future[T] {
	p := future.NewPromise[T]()
	if work == nil {
		p.Reject(ErrNilTask)
		return p.Future()
	}

	submit(ctx, pool, p, func(ctx context.Context) {
		v, err := work(ctx)
		p.Complete(v, err)
	})
	return p.Future()
}

// StartNewAsync runs an operation-starting work on pool and returns a future
// that follows the operation it starts.
func StartNewAsync[T any](ctx context.Context, pool *WorkerPool, work func(ctx context.Context) *future.Future[T]) *future.Future[T] {
	p := future.NewPromise[T]()
	if work == nil {
		p.Reject(ErrNilTask)
		return p.Future()
	}

	submit(ctx, pool, p, func(ctx context.Context) {
		inner := work(ctx)
		if inner == nil {
			p.Reject(ErrNilFuture)
			return
		}
		inner.OnComplete(func() {
			settleFrom(p, inner)
		})
	})
	return p.Future()
}

func submit[T any](ctx context.Context, pool *WorkerPool, p *future.Promise[T], body Task) {
	if ctx == nil {
		ctx = context.Background()
	}
	if pool == nil {
		p.Reject(ErrPoolNotRunning)
		return
	}
	pool.trackOperation(p.Future())

	item := WorkItem{
		Ctx: ctx,
		Task: func(ctx context.Context) {
			if err := ctx.Err(); err != nil {
				p.Cancel(err)
				return
			}
			body(ctx)
		},
		Abandon: func(err error) {
			p.Cancel(err)
		},
		Fault: func(err error) {
			p.Reject(err)
		},
	}
	if err := pool.Submit(item); err != nil {
		p.Reject(err)
	}
}
