package core

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// PoolState holds the counters shared by the workers and the scaling
// controller. Workers report their own transitions; the controller reads.
type PoolState struct {
	live    atomic.Int32
	idle    atomic.Int32
	running atomic.Int32
	blocked atomic.Int32
	peak    atomic.Int32

	// pending counts items accepted by Submit and not yet finished.
	pending atomic.Int64

	// operations counts StartNew operations whose future is not complete,
	// including ones suspended outside the queue.
	operations atomic.Int64

	submitted atomic.Int64
	completed atomic.Int64
	panicked  atomic.Int64
	rejected  atomic.Int64
	grown     atomic.Int64
	retired   atomic.Int64
	replaced  atomic.Int64
}

func (s *PoolState) updatePeak(live int32) {
	for {
		peak := s.peak.Load()
		if live <= peak || s.peak.CompareAndSwap(peak, live) {
			return
		}
	}
}

func (s *PoolState) resetCounters() {
	s.peak.Store(s.live.Load())
	s.submitted.Store(0)
	s.completed.Store(0)
	s.panicked.Store(0)
	s.rejected.Store(0)
	s.grown.Store(0)
	s.retired.Store(0)
	s.replaced.Store(0)
}

// WorkerPool is a self-sizing set of worker goroutines draining one shared
// FIFO WorkQueue.
//
// The pool is also the routing token installed for every item it executes:
// continuations posted through it are enqueued behind the work already
// waiting, so every stage of an operation stays inside the pool.
type WorkerPool struct {
	id  string
	cfg poolConfig

	queue   *WorkQueue
	state   PoolState
	history *executionHistory

	mu           sync.Mutex
	workers      map[int]*worker
	nextWorkerID int
	running      atomic.Bool
	closed       atomic.Bool
	wg           sync.WaitGroup

	kickCh      chan struct{}
	stopScaler  chan struct{}
	scalerDone  chan struct{}
	stopWatcher chan struct{}
}

// NewWorkerPool creates a stopped pool. Items may be submitted before Start;
// they wait in the queue until workers exist.
func NewWorkerPool(id string, opts ...PoolOption) *WorkerPool {
	cfg := newPoolConfig(opts)
	return &WorkerPool{
		id:      id,
		cfg:     cfg,
		queue:   NewWorkQueue(),
		history: newExecutionHistory(cfg.historyCapacity),
		workers: make(map[int]*worker),
		kickCh:  make(chan struct{}, 1),
	}
}

// Start spawns the floor workers and the scaling controller. Cancelling ctx
// stops the pool as Stop does. Starting a running pool is a no-op.
func (p *WorkerPool) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running.Load() {
		return
	}

	p.queue.Open()
	p.closed.Store(false)
	p.running.Store(true)
	p.spawnLocked(p.cfg.floor)
	p.state.peak.Store(p.state.live.Load())

	p.stopScaler = make(chan struct{})
	p.scalerDone = make(chan struct{})
	go p.scaleLoop(p.stopScaler, p.scalerDone)

	p.stopWatcher = make(chan struct{})
	go func(stop <-chan struct{}) {
		select {
		case <-ctx.Done():
			p.Stop()
		case <-stop:
		}
	}(p.stopWatcher)

	p.cfg.logger.Info("worker pool started",
		F("pool", p.id),
		F("floor", p.cfg.floor),
		F("max_workers", p.cfg.maxWorkers),
	)
}

// Submit appends item to the queue. It fails with ErrPoolClosed after
// Shutdown or Stop.
func (p *WorkerPool) Submit(item WorkItem) error {
	if item.Task == nil {
		return ErrNilTask
	}

	p.state.pending.Add(1)
	if err := p.queue.Enqueue(item); err != nil {
		p.state.pending.Add(-1)
		p.state.rejected.Add(1)
		p.cfg.metrics.RecordTaskRejected(p.id, "closed")
		p.cfg.rejectedHandler.HandleRejectedTask(p.id, "closed")
		return ErrPoolClosed
	}
	p.state.submitted.Add(1)

	depth := p.queue.Len()
	p.cfg.metrics.RecordQueueDepth(p.id, depth)
	if depth > p.cfg.growThreshold && p.state.idle.Load() == 0 {
		p.kick()
	}
	return nil
}

// Post implements Router. The continuation is queued behind existing work;
// if the pool no longer accepts work it runs on a fresh goroutine instead.
func (p *WorkerPool) Post(ctx context.Context, task Task) {
	if task == nil {
		return
	}
	item := WorkItem{
		Task: task,
		Ctx:  ctx,
		Name: "continuation",
		Abandon: func(error) {
			runDetached(ctx, task)
		},
	}
	if err := p.Submit(item); err != nil {
		runDetached(ctx, task)
	}
}

// Kind implements Router.
func (p *WorkerPool) Kind() RouteKind {
	return RoutePool
}

// Reset waits until every accepted item and every StartNew operation has
// finished, retires all workers above the floor and clears statistics and
// history. It is meant to isolate test runs.
func (p *WorkerPool) Reset(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if !p.running.Load() {
		return ErrPoolNotRunning
	}

	if err := p.waitUntil(ctx, func() bool {
		return p.state.pending.Load() == 0 && p.state.operations.Load() == 0
	}); err != nil {
		return err
	}

	p.mu.Lock()
	if !p.running.Load() {
		p.mu.Unlock()
		return ErrPoolNotRunning
	}
	var exiting []*worker
	kept := 0
	for _, w := range p.workers {
		if w.retiring {
			exiting = append(exiting, w)
			continue
		}
		if kept < p.cfg.floor {
			kept++
			continue
		}
		w.retireLocked()
		exiting = append(exiting, w)
	}
	if kept < p.cfg.floor {
		p.spawnLocked(p.cfg.floor - kept)
	}
	p.mu.Unlock()

	for _, w := range exiting {
		select {
		case <-w.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	p.state.resetCounters()
	p.history.Reset()
	p.cfg.metrics.RecordWorkers(p.id, int(p.state.live.Load()))
	p.cfg.logger.Debug("worker pool reset", F("pool", p.id), F("workers", p.WorkerCount()))
	return nil
}

// Shutdown stops accepting work, lets the workers drain the queue and waits
// for them to exit. When timeout elapses first the pool is stopped and
// ErrShutdownTimeout is returned. A timeout <= 0 waits indefinitely.
func (p *WorkerPool) Shutdown(timeout time.Duration) error {
	p.queue.Close()
	p.closed.Store(true)
	p.haltScaler()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case <-done:
		p.running.Store(false)
		p.cfg.logger.Info("worker pool shut down", F("pool", p.id))
		return nil
	case <-expired:
		p.Stop()
		p.cfg.logger.Warn("worker pool shutdown timed out", F("pool", p.id), F("timeout", timeout.String()))
		return ErrShutdownTimeout
	}
}

// Stop stops the pool immediately. Queued items are abandoned: their Abandon
// slot receives ErrPoolClosed. Items already executing run to completion.
func (p *WorkerPool) Stop() {
	p.queue.Close()
	p.closed.Store(true)
	p.haltScaler()

	abandoned := p.queue.Drain()
	for _, item := range abandoned {
		p.state.pending.Add(-1)
		p.state.rejected.Add(1)
		item.abandon(ErrPoolClosed)
	}
	if len(abandoned) > 0 {
		p.cfg.metrics.RecordTaskRejected(p.id, "stopped")
		p.cfg.logger.Warn("worker pool stopped with queued work",
			F("pool", p.id),
			F("abandoned", len(abandoned)),
		)
	}

	p.mu.Lock()
	for _, w := range p.workers {
		w.retireLocked()
	}
	p.running.Store(false)
	p.mu.Unlock()
}

func (p *WorkerPool) haltScaler() {
	p.mu.Lock()
	stop, done, watcher := p.stopScaler, p.scalerDone, p.stopWatcher
	p.stopScaler, p.scalerDone, p.stopWatcher = nil, nil, nil
	p.mu.Unlock()

	if watcher != nil {
		close(watcher)
	}
	if stop != nil {
		close(stop)
		<-done
	}
}

// spawnLocked starts up to n workers without exceeding MaxWorkers.
func (p *WorkerPool) spawnLocked(n int) int {
	spawned := 0
	for ; spawned < n; spawned++ {
		if p.activeWorkersLocked() >= p.cfg.maxWorkers {
			break
		}
		w := newWorker(p, p.nextWorkerID)
		p.nextWorkerID++
		p.workers[w.id] = w
		p.state.updatePeak(p.state.live.Add(1))
		p.wg.Add(1)
		go w.run()
	}
	return spawned
}

// activeWorkersLocked counts workers not asked to retire.
func (p *WorkerPool) activeWorkersLocked() int {
	n := 0
	for _, w := range p.workers {
		if !w.retiring {
			n++
		}
	}
	return n
}

func (p *WorkerPool) workerExited(w *worker, faulted bool) {
	p.mu.Lock()
	delete(p.workers, w.id)
	p.mu.Unlock()

	p.state.live.Add(-1)
	close(w.done)
	p.wg.Done()

	if faulted {
		p.kick()
	}
}

// trackOperation counts f as in flight until it completes.
func (p *WorkerPool) trackOperation(f interface{ OnComplete(func()) }) {
	p.state.operations.Add(1)
	f.OnComplete(func() {
		p.state.operations.Add(-1)
	})
}

func (p *WorkerPool) kick() {
	select {
	case p.kickCh <- struct{}{}:
	default:
	}
}

func (p *WorkerPool) waitUntil(ctx context.Context, cond func() bool) error {
	if cond() {
		return nil
	}
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if cond() {
				return nil
			}
		}
	}
}

// =============================================================================
// Observability
// =============================================================================

// ID returns the pool's name.
func (p *WorkerPool) ID() string {
	return p.id
}

// Floor returns the minimum worker count.
func (p *WorkerPool) Floor() int {
	return p.cfg.floor
}

// IsRunning reports whether the pool was started and not yet stopped.
func (p *WorkerPool) IsRunning() bool {
	return p.running.Load()
}

// WorkerCount returns the number of live workers.
func (p *WorkerPool) WorkerCount() int {
	return int(p.state.live.Load())
}

// QueuedTaskCount returns the number of items waiting in the queue.
func (p *WorkerPool) QueuedTaskCount() int {
	return p.queue.Len()
}

// ActiveTaskCount returns the number of items being executed.
func (p *WorkerPool) ActiveTaskCount() int {
	return int(p.state.running.Load())
}

// Stats returns a snapshot of the pool's counters.
func (p *WorkerPool) Stats() PoolStats {
	s := &p.state
	return PoolStats{
		ID:        p.id,
		Running:   p.running.Load(),
		Floor:     p.cfg.floor,
		Workers:   int(s.live.Load()),
		Idle:      int(s.idle.Load()),
		Active:    int(s.running.Load()),
		Blocked:   int(s.blocked.Load()),
		Peak:      int(s.peak.Load()),
		Queued:    p.queue.Len(),
		Submitted: s.submitted.Load(),
		Completed: s.completed.Load(),
		Panicked:  s.panicked.Load(),
		Rejected:  s.rejected.Load(),
		Grown:     s.grown.Load(),
		Retired:   s.retired.Load(),
		Replaced:  s.replaced.Load(),
	}
}

// RecentTasks returns up to limit execution records, newest first.
func (p *WorkerPool) RecentTasks(limit int) []TaskExecutionRecord {
	return p.history.Recent(limit)
}

// LastTask returns the most recent execution record.
func (p *WorkerPool) LastTask() (TaskExecutionRecord, bool) {
	return p.history.Last()
}
