package taskbridge

import (
	"github.com/Swind/go-task-bridge/core"
	"github.com/Swind/go-task-bridge/future"
)

// Re-export commonly used types from the core and future packages so most
// callers only import taskbridge.

// Task is the unit of work posted to a pump or a pool.
type Task = core.Task

// WorkItem is a Task with its completion slots.
type WorkItem = core.WorkItem

// WorkerPool is the adaptive FIFO worker pool.
type WorkerPool = core.WorkerPool

// PoolOption configures a WorkerPool.
type PoolOption = core.PoolOption

// PoolStats is a point-in-time view of a pool.
type PoolStats = core.PoolStats

// Router decides where posted continuations run.
type Router = core.Router

// Future is the asynchronous-operation primitive.
type Future[T any] = future.Future[T]

// Promise completes a Future.
type Promise[T any] = future.Promise[T]

// Void is the result type of operations that produce no value.
type Void = future.Void

// Pool options.
var (
	WithFloor               = core.WithFloor
	WithSampleInterval      = core.WithSampleInterval
	WithIdleTimeout         = core.WithIdleTimeout
	WithGrowThreshold       = core.WithGrowThreshold
	WithGrowStep            = core.WithGrowStep
	WithMaxWorkers          = core.WithMaxWorkers
	WithHistoryCapacity     = core.WithHistoryCapacity
	WithLogger              = core.WithLogger
	WithMetrics             = core.WithMetrics
	WithPanicHandler        = core.WithPanicHandler
	WithRejectedTaskHandler = core.WithRejectedTaskHandler
	WithScaleLogRate        = core.WithScaleLogRate
)

// NewWorkerPool creates a pool that is not yet started.
func NewWorkerPool(id string, opts ...PoolOption) *WorkerPool {
	return core.NewWorkerPool(id, opts...)
}
