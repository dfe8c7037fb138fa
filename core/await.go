package core

import (
	"context"
	"runtime/debug"

	"github.com/Swind/go-task-bridge/future"
)

// ContinueWith registers fn to run after f completes, whatever the outcome.
//
// fn is posted through the router carried by ctx: onto the caller's pump,
// onto the pool queue, or onto a new goroutine when ctx carries no routing.
// It never runs inline on the goroutine that completed f. A panic in fn
// faults the returned future with a *future.PanicError.
func ContinueWith[T, U any](ctx context.Context, f *future.Future[T], fn func(ctx context.Context, v T, err error) (U, error)) *future.Future[U] {
	p := future.NewPromise[U]()
	if f == nil {
		p.Reject(ErrNilFuture)
		return p.Future()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	f.OnComplete(func() {
		Post(ctx, func(ctx context.Context) {
			v, err := f.Result()
			u, err := callContinuation(ctx, v, err, fn)
			p.Complete(u, err)
		})
	})
	return p.Future()
}

// Then runs fn with the value of f once it succeeds. Faults and
// cancellations of f propagate to the returned future without running fn.
func Then[T, U any](ctx context.Context, f *future.Future[T], fn func(ctx context.Context, v T) (U, error)) *future.Future[U] {
	p := future.NewPromise[U]()
	if f == nil {
		p.Reject(ErrNilFuture)
		return p.Future()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	f.OnComplete(func() {
		Post(ctx, func(ctx context.Context) {
			v, err := f.Result()
			if err != nil {
				propagate(p, f.State(), err)
				return
			}
			u, err := callContinuation(ctx, v, nil, func(ctx context.Context, v T, _ error) (U, error) {
				return fn(ctx, v)
			})
			p.Complete(u, err)
		})
	})
	return p.Future()
}

// ThenAsync chains an operation that itself returns a future: once f
// succeeds, fn starts the next operation and the returned future follows it.
func ThenAsync[T, U any](ctx context.Context, f *future.Future[T], fn func(ctx context.Context, v T) *future.Future[U]) *future.Future[U] {
	p := future.NewPromise[U]()
	if f == nil {
		p.Reject(ErrNilFuture)
		return p.Future()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	f.OnComplete(func() {
		Post(ctx, func(ctx context.Context) {
			v, err := f.Result()
			if err != nil {
				propagate(p, f.State(), err)
				return
			}
			inner, err := invokeFactory(ctx, func(ctx context.Context) *future.Future[U] {
				return fn(ctx, v)
			})
			if err != nil {
				p.Reject(err)
				return
			}
			inner.OnComplete(func() {
				settleFrom(p, inner)
			})
		})
	})
	return p.Future()
}

// Await blocks until f completes and returns its outcome.
//
// On a pump owned by the caller, Await keeps pumping so continuations
// routed to this goroutine still run. On a pool worker the worker is
// reported as blocked, which lets the scaling controller add capacity.
// Otherwise it waits for f or for ctx to end.
func Await[T any](ctx context.Context, f *future.Future[T]) (T, error) {
	var zero T
	if f == nil {
		return zero, ErrNilFuture
	}
	if f.IsDone() {
		return f.Result()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if p := activePumpFor(ctx); p != nil {
		p.runUntil(f.Done())
		return f.Result()
	}

	if w := workerFromContext(ctx); w != nil && w.isCurrent() {
		w.markBlocked()
		defer w.markUnblocked()
	}
	return f.Get(ctx)
}

// Run invokes factory with ctx and returns its future. It differs from
// calling factory directly only in that a panic or a nil future is turned
// into a faulted future, and ctx routing always reaches the factory.
func Run[T any](ctx context.Context, factory func(ctx context.Context) *future.Future[T]) *future.Future[T] {
	if ctx == nil {
		ctx = context.Background()
	}
	if factory == nil {
		return future.Rejected[T](ErrNilFuture)
	}
	f, err := invokeFactory(ctx, factory)
	if err != nil {
		return future.Rejected[T](err)
	}
	return f
}

// RunTask is Run for operations without a result.
func RunTask(ctx context.Context, factory func(ctx context.Context) *future.Future[future.Void]) *future.Future[future.Void] {
	return Run(ctx, factory)
}

func callContinuation[T, U any](ctx context.Context, v T, err error, fn func(ctx context.Context, v T, err error) (U, error)) (u U, outErr error) {
	defer func() {
		if r := recover(); r != nil {
			var zero U
			u = zero
			outErr = &future.PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return fn(ctx, v, err)
}

// propagate copies a terminal failure onto p, keeping cancellation distinct
// from faults.
func propagate[U any](p *future.Promise[U], state future.State, err error) {
	if state == future.Canceled {
		p.Cancel(err)
		return
	}
	p.Reject(err)
}

// settleFrom completes p with the outcome of f.
func settleFrom[T any](p *future.Promise[T], f *future.Future[T]) {
	v, err := f.Result()
	if err != nil {
		propagate(p, f.State(), err)
		return
	}
	p.Resolve(v)
}
