package taskbridge

import (
	"context"
	"sync"
	"time"

	"github.com/Swind/go-task-bridge/core"
	"github.com/Swind/go-task-bridge/future"
)

// =============================================================================
// Global Pool Helper (Singleton)
// =============================================================================

// GlobalPoolID is the id of the process-wide pool.
const GlobalPoolID = "global-pool"

var (
	globalPool *core.WorkerPool
	globalMu   sync.Mutex
)

// InitGlobalPool creates and starts the global pool with opts. It is a no-op
// when the pool already exists.
func InitGlobalPool(opts ...PoolOption) *WorkerPool {
	globalMu.Lock()
	defer globalMu.Unlock()
	return initGlobalPoolLocked(opts)
}

func initGlobalPoolLocked(opts []PoolOption) *WorkerPool {
	if globalPool != nil {
		return globalPool
	}
	globalPool = core.NewWorkerPool(GlobalPoolID, opts...)
	globalPool.Start(context.Background())
	return globalPool
}

// GetGlobalPool returns the global pool, creating it with default options on
// first use.
func GetGlobalPool() *WorkerPool {
	globalMu.Lock()
	defer globalMu.Unlock()
	return initGlobalPoolLocked(nil)
}

// ResetGlobalPool waits for outstanding work on the global pool and returns
// it to its initial state. It does nothing if the pool was never created.
func ResetGlobalPool(ctx context.Context) error {
	globalMu.Lock()
	pool := globalPool
	globalMu.Unlock()

	if pool == nil {
		return nil
	}
	return pool.Reset(ctx)
}

// ShutdownGlobalPool drains and stops the global pool. The next
// GetGlobalPool creates a fresh one.
func ShutdownGlobalPool(timeout time.Duration) error {
	globalMu.Lock()
	pool := globalPool
	globalPool = nil
	globalMu.Unlock()

	if pool == nil {
		return nil
	}
	return pool.Shutdown(timeout)
}

// =============================================================================
// Wrappers
// =============================================================================

// RunSync runs factory and blocks until its future completes, resuming every
// continuation on the calling goroutine.
func RunSync[T any](ctx context.Context, factory func(ctx context.Context) *future.Future[T]) (T, error) {
	return core.RunSync(ctx, factory)
}

// RunTaskSync is RunSync for operations without a result.
func RunTaskSync(ctx context.Context, factory func(ctx context.Context) *future.Future[future.Void]) error {
	return core.RunTaskSync(ctx, factory)
}

// Run invokes factory under the current routing and returns its future.
func Run[T any](ctx context.Context, factory func(ctx context.Context) *future.Future[T]) *future.Future[T] {
	return core.Run(ctx, factory)
}

// RunTask is Run for operations without a result.
func RunTask(ctx context.Context, factory func(ctx context.Context) *future.Future[future.Void]) *future.Future[future.Void] {
	return core.RunTask(ctx, factory)
}

// StartNew schedules work on the global pool.
func StartNew[T any](ctx context.Context, work func(ctx context.Context) (T, error)) *future.Future[T] {
	return core.StartNew(ctx, GetGlobalPool(), work)
}

// StartNewAsync schedules an asynchronous factory on the global pool and
// unwraps the future it returns.
func StartNewAsync[T any](ctx context.Context, work func(ctx context.Context) *future.Future[T]) *future.Future[T] {
	return core.StartNewAsync(ctx, GetGlobalPool(), work)
}

// Post routes task by ctx. With no route it runs on a new goroutine.
func Post(ctx context.Context, task Task) {
	core.Post(ctx, task)
}

// OnGlobalPool returns ctx routed to the global pool, so continuations
// registered with it resume on pool workers.
func OnGlobalPool(ctx context.Context) context.Context {
	return core.WithRouter(ctx, GetGlobalPool())
}
