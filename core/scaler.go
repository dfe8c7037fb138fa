package core

import (
	"sort"
	"time"
)

type scaleAction int

const (
	scaleHold scaleAction = iota
	scaleReplace
	scaleGrow
	scaleShrink
)

func (a scaleAction) String() string {
	switch a {
	case scaleReplace:
		return "replace"
	case scaleGrow:
		return "grow"
	case scaleShrink:
		return "shrink"
	default:
		return "hold"
	}
}

// scaleSample is one instantaneous reading of the pool.
type scaleSample struct {
	Live    int // workers not asked to retire
	Idle    int
	Running int // executing an item, blocked ones included
	Blocked int // executing an item but waiting in Await
	Depth   int
}

// decideScale turns one sample into a decision. It looks only at the
// current counters, never at history, so a burst is answered within one
// sample and a quiet queue never triggers growth.
//
//   - below the floor: replace the missing workers
//   - backlog above the threshold and nobody idle: grow by GrowStep
//   - backlog while every executing worker is blocked: grow by GrowStep
//   - otherwise: let idle workers past IdleTimeout retire
func decideScale(s scaleSample, cfg *poolConfig) (scaleAction, int) {
	if s.Live < cfg.floor {
		return scaleReplace, cfg.floor - s.Live
	}

	if s.Depth > 0 && s.Idle == 0 && s.Live < cfg.maxWorkers {
		starved := s.Running > 0 && s.Blocked >= s.Running
		if s.Depth > cfg.growThreshold || starved {
			return scaleGrow, min(cfg.growStep, cfg.maxWorkers-s.Live)
		}
	}

	if s.Live > cfg.floor && s.Idle > 0 {
		return scaleShrink, s.Live - cfg.floor
	}
	return scaleHold, 0
}

// scaleLoop samples the pool every SampleInterval and whenever kicked.
func (p *WorkerPool) scaleLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.cfg.sampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		case <-p.kickCh:
		}
		p.scaleOnce(time.Now())
	}
}

func (p *WorkerPool) scaleOnce(now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running.Load() || p.closed.Load() {
		return
	}

	sample := scaleSample{
		Live:    p.activeWorkersLocked(),
		Idle:    int(p.state.idle.Load()),
		Running: int(p.state.running.Load()),
		Blocked: int(p.state.blocked.Load()),
		Depth:   p.queue.Len(),
	}

	action, n := decideScale(sample, &p.cfg)
	switch action {
	case scaleReplace:
		n = p.spawnLocked(n)
		p.state.replaced.Add(int64(n))
	case scaleGrow:
		n = p.spawnLocked(n)
		p.state.grown.Add(int64(n))
	case scaleShrink:
		n = p.retireIdleLocked(now, n)
		p.state.retired.Add(int64(n))
	default:
		return
	}
	if n == 0 {
		return
	}

	p.cfg.metrics.RecordScaleEvent(p.id, action.String(), n)
	p.cfg.metrics.RecordWorkers(p.id, p.activeWorkersLocked())
	if p.cfg.logLimiter.Allow() {
		p.cfg.logger.Debug("worker pool scaled",
			F("pool", p.id),
			F("action", action.String()),
			F("delta", n),
			F("live", sample.Live),
			F("idle", sample.Idle),
			F("blocked", sample.Blocked),
			F("depth", sample.Depth),
		)
	}
}

// retireIdleLocked retires at most limit workers that have been idle longer
// than IdleTimeout, longest idle first.
func (p *WorkerPool) retireIdleLocked(now time.Time, limit int) int {
	type candidate struct {
		w    *worker
		idle time.Duration
	}

	var candidates []candidate
	for _, w := range p.workers {
		if w.retiring {
			continue
		}
		if idle := w.idleFor(now); idle > p.cfg.idleTimeout {
			candidates = append(candidates, candidate{w: w, idle: idle})
		}
	}
	if len(candidates) == 0 {
		return 0
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].idle > candidates[j].idle
	})

	retired := 0
	for _, c := range candidates {
		if retired >= limit {
			break
		}
		c.w.retireLocked()
		retired++
	}
	return retired
}
