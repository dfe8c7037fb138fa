package prometheus

import (
	"context"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Swind/go-task-bridge/core"
)

type poolStub struct {
	stats core.PoolStats
}

func (s poolStub) Stats() core.PoolStats { return s.stats }

func TestSnapshotPoller_CollectsPoolStats(t *testing.T) {
	reg := prom.NewRegistry()
	poller, err := NewSnapshotPoller("taskbridge", reg, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("NewSnapshotPoller failed: %v", err)
	}

	poller.AddPool("pool-a", poolStub{stats: core.PoolStats{
		Running:   true,
		Floor:     4,
		Workers:   8,
		Idle:      3,
		Active:    5,
		Blocked:   2,
		Peak:      12,
		Queued:    9,
		Submitted: 100,
		Completed: 91,
	}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	poller.Start(ctx)
	defer poller.Stop()

	assertEventually(t, 2*time.Second, func() bool {
		queued := testutil.ToFloat64(poller.poolQueued.WithLabelValues("pool-a"))
		active := testutil.ToFloat64(poller.poolWorkers.WithLabelValues("pool-a", "active"))
		return queued == 9 && active == 5
	})

	if got := testutil.ToFloat64(poller.poolRunning.WithLabelValues("pool-a")); got != 1 {
		t.Fatalf("pool running gauge = %v, want 1", got)
	}
	if got := testutil.ToFloat64(poller.poolWorkers.WithLabelValues("pool-a", "blocked")); got != 2 {
		t.Fatalf("blocked workers gauge = %v, want 2", got)
	}
	if got := testutil.ToFloat64(poller.poolPeak.WithLabelValues("pool-a")); got != 12 {
		t.Fatalf("peak gauge = %v, want 12", got)
	}
	if got := testutil.ToFloat64(poller.poolCompleted.WithLabelValues("pool-a")); got != 91 {
		t.Fatalf("completed gauge = %v, want 91", got)
	}
}

func TestSnapshotPoller_RemovePool(t *testing.T) {
	reg := prom.NewRegistry()
	poller, err := NewSnapshotPoller("", reg, time.Hour)
	if err != nil {
		t.Fatalf("NewSnapshotPoller failed: %v", err)
	}
	poller.AddPool("pool-a", poolStub{stats: core.PoolStats{Workers: 2}})
	poller.collectOnce()

	poller.RemovePool("pool-a")

	if got := testutil.CollectAndCount(poller.poolWorkers); got != 0 {
		t.Fatalf("worker series after RemovePool = %d, want 0", got)
	}
}

func TestSnapshotPoller_LivePool(t *testing.T) {
	reg := prom.NewRegistry()
	poller, err := NewSnapshotPoller("", reg, 5*time.Millisecond)
	if err != nil {
		t.Fatalf("NewSnapshotPoller failed: %v", err)
	}
	pool := core.NewWorkerPool("live", core.WithFloor(2), core.WithLogger(core.NewNoOpLogger()))
	pool.Start(context.Background())
	defer pool.Stop()

	poller.AddPool(pool.ID(), pool)
	poller.Start(context.Background())
	defer poller.Stop()

	assertEventually(t, 2*time.Second, func() bool {
		return testutil.ToFloat64(poller.poolFloor.WithLabelValues("live")) == 2 &&
			testutil.ToFloat64(poller.poolWorkers.WithLabelValues("live", "live")) == 2
	})
}

func TestSnapshotPoller_StartStop_Idempotent(t *testing.T) {
	reg := prom.NewRegistry()
	poller, err := NewSnapshotPoller("taskbridge", reg, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("NewSnapshotPoller failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	poller.Start(ctx)
	poller.Start(ctx)
	poller.Stop()
	poller.Stop()
}

func assertEventually(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met within timeout")
}
