// Package taskbridge bridges synchronous callers and asynchronous work.
//
// Two execution contexts decide where the continuations of an asynchronous
// operation resume:
//
//   - A pump, installed by RunSync, keeps every continuation on the calling
//     goroutine until the operation completes. Use it from code that must
//     block on asynchronous work without handing its goroutine away.
//   - A worker pool, reached through StartNew, runs items in FIFO order on
//     workers that scale with backlog and shrink back when idle. Continuations
//     registered by pool work resume on the same pool.
//
// Routing is carried by the context.Context passed to every task. Helpers in
// package core (Then, ContinueWith, Await) read it to decide where a
// continuation runs.
//
// # Quick Start
//
//	taskbridge.InitGlobalPool()
//	defer taskbridge.ShutdownGlobalPool(5 * time.Second)
//
//	f := taskbridge.StartNew(ctx, func(ctx context.Context) (int, error) {
//		return compute(), nil
//	})
//
//	v, err := taskbridge.RunSync(ctx, func(ctx context.Context) *future.Future[int] {
//		return core.Then(ctx, f, func(ctx context.Context, v int) (int, error) {
//			return v * 2, nil // runs on the RunSync caller
//		})
//	})
//
// # Scaling
//
// The pool never drops below its floor (the usable processor count by
// default). When items are waiting and no worker is idle it grows in steps,
// faster when every running worker is blocked in Await. Workers idle longer
// than the idle timeout are retired down to the floor.
package taskbridge
