package prometheus

import (
	"context"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/Swind/go-task-bridge/core"
)

// PoolSnapshotProvider provides current pool stats snapshots.
type PoolSnapshotProvider interface {
	Stats() core.PoolStats
}

// SnapshotPoller periodically exports pool Stats() snapshots into Prometheus gauges.
type SnapshotPoller struct {
	interval time.Duration

	poolsMu sync.RWMutex
	pools   map[string]PoolSnapshotProvider

	poolRunning   *prom.GaugeVec
	poolFloor     *prom.GaugeVec
	poolWorkers   *prom.GaugeVec
	poolPeak      *prom.GaugeVec
	poolQueued    *prom.GaugeVec
	poolSubmitted *prom.GaugeVec
	poolCompleted *prom.GaugeVec

	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSnapshotPoller creates a snapshot poller and registers its collectors.
func NewSnapshotPoller(namespace string, reg prom.Registerer, interval time.Duration) (*SnapshotPoller, error) {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if interval <= 0 {
		interval = time.Second
	}

	gauge := func(name, help string, labels ...string) *prom.GaugeVec {
		return prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, append([]string{"pool"}, labels...))
	}

	poolRunning := gauge("pool_running", "Pool running state (1=running, 0=stopped).")
	poolFloor := gauge("pool_floor", "Minimum worker count per pool.")
	poolWorkers := gauge("pool_workers", "Workers per pool by state (live, idle, active, blocked).", "state")
	poolPeak := gauge("pool_workers_peak", "Highest live worker count since start or reset.")
	poolQueued := gauge("pool_queued", "Queued work items per pool.")
	poolSubmitted := gauge("pool_submitted", "Work items accepted since start or reset.")
	poolCompleted := gauge("pool_completed", "Work items executed since start or reset.")

	var err error
	if poolRunning, err = registerCollector(reg, poolRunning); err != nil {
		return nil, err
	}
	if poolFloor, err = registerCollector(reg, poolFloor); err != nil {
		return nil, err
	}
	if poolWorkers, err = registerCollector(reg, poolWorkers); err != nil {
		return nil, err
	}
	if poolPeak, err = registerCollector(reg, poolPeak); err != nil {
		return nil, err
	}
	if poolQueued, err = registerCollector(reg, poolQueued); err != nil {
		return nil, err
	}
	if poolSubmitted, err = registerCollector(reg, poolSubmitted); err != nil {
		return nil, err
	}
	if poolCompleted, err = registerCollector(reg, poolCompleted); err != nil {
		return nil, err
	}

	return &SnapshotPoller{
		interval:      interval,
		pools:         make(map[string]PoolSnapshotProvider),
		poolRunning:   poolRunning,
		poolFloor:     poolFloor,
		poolWorkers:   poolWorkers,
		poolPeak:      poolPeak,
		poolQueued:    poolQueued,
		poolSubmitted: poolSubmitted,
		poolCompleted: poolCompleted,
	}, nil
}

// AddPool adds or replaces a pool snapshot provider by name.
func (p *SnapshotPoller) AddPool(name string, provider PoolSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "pool")
	p.poolsMu.Lock()
	p.pools[name] = provider
	p.poolsMu.Unlock()
}

// RemovePool stops exporting name and deletes its series.
func (p *SnapshotPoller) RemovePool(name string) {
	if p == nil {
		return
	}
	name = normalizeLabel(name, "pool")
	p.poolsMu.Lock()
	delete(p.pools, name)
	p.poolsMu.Unlock()

	labels := prom.Labels{"pool": name}
	for _, vec := range []*prom.GaugeVec{p.poolRunning, p.poolFloor, p.poolWorkers, p.poolPeak, p.poolQueued, p.poolSubmitted, p.poolCompleted} {
		vec.DeletePartialMatch(labels)
	}
}

// Start begins periodic polling; repeated calls are no-ops.
func (p *SnapshotPoller) Start(ctx context.Context) {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if p.running {
		p.stateMu.Unlock()
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	p.stateMu.Unlock()

	go p.loop(pollCtx)
}

// Stop stops periodic polling; repeated calls are safe.
func (p *SnapshotPoller) Stop() {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if !p.running {
		p.stateMu.Unlock()
		return
	}
	cancel := p.cancel
	done := p.done
	p.stateMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	p.stateMu.Lock()
	p.running = false
	p.cancel = nil
	p.done = nil
	p.stateMu.Unlock()
}

func (p *SnapshotPoller) loop(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.collectOnce()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.collectOnce()
		}
	}
}

func (p *SnapshotPoller) collectOnce() {
	p.poolsMu.RLock()
	defer p.poolsMu.RUnlock()

	for name, provider := range p.pools {
		stats := provider.Stats()
		if stats.Running {
			p.poolRunning.WithLabelValues(name).Set(1)
		} else {
			p.poolRunning.WithLabelValues(name).Set(0)
		}
		p.poolFloor.WithLabelValues(name).Set(float64(stats.Floor))
		p.poolWorkers.WithLabelValues(name, "live").Set(float64(stats.Workers))
		p.poolWorkers.WithLabelValues(name, "idle").Set(float64(stats.Idle))
		p.poolWorkers.WithLabelValues(name, "active").Set(float64(stats.Active))
		p.poolWorkers.WithLabelValues(name, "blocked").Set(float64(stats.Blocked))
		p.poolPeak.WithLabelValues(name).Set(float64(stats.Peak))
		p.poolQueued.WithLabelValues(name).Set(float64(stats.Queued))
		p.poolSubmitted.WithLabelValues(name).Set(float64(stats.Submitted))
		p.poolCompleted.WithLabelValues(name).Set(float64(stats.Completed))
	}
}
