package taskbridge

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Swind/go-task-bridge/core"
	"github.com/Swind/go-task-bridge/future"
)

// TestGlobalPool_LazyInit verifies the singleton is created on first use
// Given: No global pool
// When: GetGlobalPool is called twice
// Then: Both calls return the same running pool
func TestGlobalPool_LazyInit(t *testing.T) {
	// Arrange
	defer ShutdownGlobalPool(time.Second)

	// Act
	p1 := GetGlobalPool()
	p2 := GetGlobalPool()

	// Assert
	if p1 != p2 {
		t.Fatal("GetGlobalPool() returned different instances")
	}
	if !p1.IsRunning() {
		t.Error("global pool is not running")
	}
	if p1.ID() != GlobalPoolID {
		t.Errorf("ID() = %q, want %q", p1.ID(), GlobalPoolID)
	}
}

// TestInitGlobalPool_Idempotent verifies options only apply to the first init
func TestInitGlobalPool_Idempotent(t *testing.T) {
	defer ShutdownGlobalPool(time.Second)

	first := InitGlobalPool(WithFloor(2), WithLogger(core.NewNoOpLogger()))
	second := InitGlobalPool(WithFloor(7))

	if first != second {
		t.Fatal("InitGlobalPool() replaced an existing pool")
	}
	if first.Floor() != 2 {
		t.Errorf("Floor() = %d, want 2", first.Floor())
	}
}

// TestShutdownGlobalPool_Recreates verifies a shut down singleton is rebuilt on demand
func TestShutdownGlobalPool_Recreates(t *testing.T) {
	// Arrange
	old := InitGlobalPool(WithFloor(1), WithLogger(core.NewNoOpLogger()))

	// Act
	if err := ShutdownGlobalPool(time.Second); err != nil {
		t.Fatalf("ShutdownGlobalPool() error = %v", err)
	}
	fresh := GetGlobalPool()
	defer ShutdownGlobalPool(time.Second)

	// Assert
	if old.IsRunning() {
		t.Error("old global pool still running after shutdown")
	}
	if fresh == old {
		t.Error("GetGlobalPool() returned the shut down pool")
	}
	if err := ShutdownGlobalPool(time.Second); err != nil {
		t.Errorf("second ShutdownGlobalPool() error = %v", err)
	}
}

// TestResetGlobalPool verifies reset waits for outstanding work
// Given: A global pool with slow items in flight
// When: ResetGlobalPool is called
// Then: It returns after every item completed and counters are cleared
func TestResetGlobalPool(t *testing.T) {
	// Arrange
	if err := ResetGlobalPool(context.Background()); err != nil {
		t.Fatalf("ResetGlobalPool() without a pool error = %v", err)
	}
	InitGlobalPool(WithFloor(2), WithLogger(core.NewNoOpLogger()))
	defer ShutdownGlobalPool(time.Second)
	var done atomic.Int32
	for range 10 {
		StartNew(context.Background(), func(ctx context.Context) (future.Void, error) {
			time.Sleep(time.Millisecond)
			done.Add(1)
			return future.Void{}, nil
		})
	}

	// Act
	err := ResetGlobalPool(context.Background())

	// Assert
	if err != nil {
		t.Fatalf("ResetGlobalPool() error = %v", err)
	}
	if got := done.Load(); got != 10 {
		t.Errorf("completed %d items before reset returned, want 10", got)
	}
	if stats := GetGlobalPool().Stats(); stats.Submitted != 0 || stats.Queued != 0 {
		t.Errorf("stats after reset = %+v, want cleared", stats)
	}
}

// TestWrappers_StartNewThenRunSync verifies pool work and pump continuations compose
func TestWrappers_StartNewThenRunSync(t *testing.T) {
	// Arrange
	InitGlobalPool(WithFloor(2), WithLogger(core.NewNoOpLogger()))
	defer ShutdownGlobalPool(time.Second)
	caller := core.CurrentGoroutineID()
	var resumedOn uint64

	// Act
	v, err := RunSync(context.Background(), func(ctx context.Context) *Future[int] {
		f := StartNew(ctx, func(ctx context.Context) (int, error) { return 20, nil })
		return core.Then(ctx, f, func(ctx context.Context, v int) (int, error) {
			resumedOn = core.CurrentGoroutineID()
			return v + 1, nil
		})
	})

	// Assert
	if err != nil || v != 21 {
		t.Fatalf("RunSync() = (%d, %v), want (21, nil)", v, err)
	}
	if resumedOn != caller {
		t.Errorf("continuation resumed on %d, want caller %d", resumedOn, caller)
	}
}

// TestWrappers_StartNewAsyncAndRunTask verifies async factories unwrap and faults surface
func TestWrappers_StartNewAsyncAndRunTask(t *testing.T) {
	InitGlobalPool(WithFloor(1), WithLogger(core.NewNoOpLogger()))
	defer ShutdownGlobalPool(time.Second)
	boom := errors.New("boom")

	v, err := StartNewAsync(context.Background(), func(ctx context.Context) *Future[string] {
		return Run(ctx, func(ctx context.Context) *Future[string] { return future.Resolved("ok") })
	}).Get(context.Background())
	if err != nil || v != "ok" {
		t.Errorf("StartNewAsync() = (%q, %v), want (ok, nil)", v, err)
	}

	err = RunTaskSync(context.Background(), func(ctx context.Context) *Future[Void] {
		return RunTask(ctx, func(ctx context.Context) *Future[Void] { return future.Rejected[Void](boom) })
	})
	if !errors.Is(err, boom) {
		t.Errorf("RunTaskSync() error = %v, want boom", err)
	}
}

// TestOnGlobalPool verifies Post through a routed context lands on a pool worker
func TestOnGlobalPool(t *testing.T) {
	InitGlobalPool(WithFloor(1), WithLogger(core.NewNoOpLogger()))
	defer ShutdownGlobalPool(time.Second)
	got := make(chan core.RouteKind, 1)

	Post(OnGlobalPool(context.Background()), func(ctx context.Context) {
		got <- core.RouteKindOf(ctx)
	})

	select {
	case kind := <-got:
		if kind != core.RoutePool {
			t.Errorf("RouteKindOf = %v, want pool", kind)
		}
	case <-time.After(time.Second):
		t.Fatal("posted task never ran")
	}
}
