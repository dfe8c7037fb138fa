package future

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
)

// Void is the result type of futures that carry no value.
type Void = struct{}

// State represents the lifecycle state of a Future.
// A future starts Pending and transitions exactly once to one of the
// terminal states. Transitions are irreversible.
type State int32

const (
	// Pending indicates the operation has not completed yet.
	Pending State = iota

	// Succeeded indicates the operation completed with a value.
	Succeeded

	// Faulted indicates the operation completed with an error.
	Faulted

	// Canceled indicates the operation observed a cancellation request.
	Canceled
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Succeeded:
		return "succeeded"
	case Faulted:
		return "faulted"
	case Canceled:
		return "canceled"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

var (
	// ErrPending is returned by Result while the future has not completed.
	ErrPending = errors.New("future: operation still pending")

	// ErrCanceled matches every error produced by a canceled future.
	ErrCanceled = errors.New("future: operation canceled")
)

// CanceledError is the error carried by a future in the Canceled state.
type CanceledError struct {
	Cause error
}

func (e *CanceledError) Error() string {
	if e.Cause == nil {
		return ErrCanceled.Error()
	}
	return fmt.Sprintf("%s: %v", ErrCanceled.Error(), e.Cause)
}

// Is reports ErrCanceled as a match so callers can use errors.Is.
func (e *CanceledError) Is(target error) bool {
	return target == ErrCanceled
}

func (e *CanceledError) Unwrap() error {
	return e.Cause
}

// IsCanceled reports whether err represents a cancellation rather than a fault.
func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled)
}

// isCancellation decides whether a completion error is classified as a
// cancellation. Context cancellation and deadline expiry both count.
func isCancellation(err error) bool {
	return errors.Is(err, ErrCanceled) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// PanicError wraps a value recovered from a panicking operation.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("future: operation panicked: %v", e.Value)
}

// Unwrap exposes the panic value when it is itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// NewPanicError captures the current stack for a recovered panic value.
func NewPanicError(v any) *PanicError {
	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)
	return &PanicError{Value: v, Stack: buf[:n]}
}

// Future is the read side of an asynchronous operation.
//
// Observers either block (Get, Done) or register a completion callback
// (OnComplete). Callbacks run inline on whichever goroutine completes the
// future; routing them somewhere else is the caller's business.
type Future[T any] struct {
	mu        sync.Mutex
	state     State
	value     T
	err       error
	done      chan struct{}
	callbacks []func()
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// State returns the current state.
func (f *Future[T]) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// IsDone reports whether the future reached a terminal state.
func (f *Future[T]) IsDone() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Done returns a channel closed once the future completes.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Result returns the outcome without blocking.
// ErrPending is returned while the future is still pending.
func (f *Future[T]) Result() (T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == Pending {
		var zero T
		return zero, ErrPending
	}
	return f.value, f.err
}

// Err returns the completion error, nil on success or while pending.
func (f *Future[T]) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Get blocks until the future completes or ctx is done.
// A ctx that ends first yields a CanceledError wrapping ctx.Err(); the
// operation itself keeps running.
func (f *Future[T]) Get(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.Result()
	default:
	}

	select {
	case <-f.done:
		return f.Result()
	case <-ctx.Done():
		var zero T
		return zero, &CanceledError{Cause: ctx.Err()}
	}
}

// OnComplete registers fn to run exactly once after completion. If the
// future already completed, fn runs immediately on the calling goroutine.
func (f *Future[T]) OnComplete(fn func()) {
	if fn == nil {
		return
	}

	f.mu.Lock()
	if f.state == Pending {
		f.callbacks = append(f.callbacks, fn)
		f.mu.Unlock()
		return
	}
	f.mu.Unlock()

	fn()
}

func (f *Future[T]) complete(state State, v T, err error) bool {
	f.mu.Lock()
	if f.state != Pending {
		f.mu.Unlock()
		return false
	}

	f.state = state
	f.value = v
	f.err = err
	callbacks := f.callbacks
	f.callbacks = nil
	close(f.done)
	f.mu.Unlock()

	// Callbacks run outside the lock; they may register further callbacks
	// or complete other futures.
	for _, cb := range callbacks {
		cb()
	}
	return true
}

// Promise is the producer side (completion slot) of a Future.
type Promise[T any] struct {
	f *Future[T]
}

// NewPromise creates a pending promise and its future.
func NewPromise[T any]() *Promise[T] {
	return &Promise[T]{f: newFuture[T]()}
}

// Future returns the read side.
func (p *Promise[T]) Future() *Future[T] {
	return p.f
}

// Resolve completes the future successfully.
// It returns false when the future was already completed.
func (p *Promise[T]) Resolve(v T) bool {
	return p.f.complete(Succeeded, v, nil)
}

// Reject completes the future with a fault. Cancellation errors passed here
// are still recorded as faults; use Cancel or Complete to classify them.
func (p *Promise[T]) Reject(err error) bool {
	if err == nil {
		err = errors.New("future: rejected with nil error")
	}
	var zero T
	return p.f.complete(Faulted, zero, err)
}

// Cancel completes the future in the Canceled state.
func (p *Promise[T]) Cancel(cause error) bool {
	var zero T
	var ce *CanceledError
	if errors.As(cause, &ce) {
		return p.f.complete(Canceled, zero, ce)
	}
	return p.f.complete(Canceled, zero, &CanceledError{Cause: cause})
}

// Complete classifies (v, err) the way operations report them: nil err is
// success, context cancellation or deadline expiry is cancellation, and
// anything else is a fault.
func (p *Promise[T]) Complete(v T, err error) bool {
	switch {
	case err == nil:
		return p.Resolve(v)
	case isCancellation(err):
		return p.Cancel(err)
	default:
		return p.Reject(err)
	}
}

// Resolved returns an already succeeded future.
func Resolved[T any](v T) *Future[T] {
	p := NewPromise[T]()
	p.Resolve(v)
	return p.f
}

// Rejected returns an already faulted future.
func Rejected[T any](err error) *Future[T] {
	p := NewPromise[T]()
	p.Reject(err)
	return p.f
}

// CanceledFuture returns an already canceled future.
func CanceledFuture[T any](cause error) *Future[T] {
	p := NewPromise[T]()
	p.Cancel(cause)
	return p.f
}
