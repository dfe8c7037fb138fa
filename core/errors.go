package core

import "errors"

var (
	// ErrPoolClosed is returned by Submit after Shutdown or Stop, and is the
	// cancellation cause of work abandoned by Stop.
	ErrPoolClosed = errors.New("worker pool is closed")

	// ErrPoolNotRunning is returned by Reset on a pool that was never started.
	ErrPoolNotRunning = errors.New("worker pool is not running")

	// ErrShutdownTimeout is returned when Shutdown gives up waiting for the
	// queue to drain.
	ErrShutdownTimeout = errors.New("worker pool shutdown timed out")

	// ErrNilFuture is returned when an operation factory returns no future.
	ErrNilFuture = errors.New("operation factory returned a nil future")

	// ErrNilTask is returned when a work item without a task is submitted.
	ErrNilTask = errors.New("work item has no task")
)
