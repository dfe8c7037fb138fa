package core

import (
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultSampleInterval = 20 * time.Millisecond
	DefaultIdleTimeout    = 5 * time.Second
	DefaultGrowThreshold  = 4
	DefaultGrowStep       = 2

	defaultMaxWorkersPerProc = 32
	defaultMinMaxWorkers     = 64
)

// PoolOption is a functional option for configuring a WorkerPool.
type PoolOption func(*poolConfig)

type poolConfig struct {
	floor           int
	sampleInterval  time.Duration
	idleTimeout     time.Duration
	growThreshold   int
	growStep        int
	maxWorkers      int
	historyCapacity int

	logger          Logger
	metrics         Metrics
	panicHandler    PanicHandler
	rejectedHandler RejectedTaskHandler
	logLimiter      *rate.Limiter
}

func newPoolConfig(opts []PoolOption) poolConfig {
	cfg := poolConfig{
		sampleInterval:  DefaultSampleInterval,
		idleTimeout:     DefaultIdleTimeout,
		growThreshold:   DefaultGrowThreshold,
		growStep:        DefaultGrowStep,
		historyCapacity: defaultTaskHistoryCapacity,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	if cfg.floor <= 0 {
		cfg.floor = ProcessorCount()
	}
	if cfg.maxWorkers <= 0 {
		cfg.maxWorkers = max(cfg.floor*defaultMaxWorkersPerProc, defaultMinMaxWorkers)
	}
	if cfg.maxWorkers < cfg.floor {
		cfg.maxWorkers = cfg.floor
	}
	if cfg.logger == nil {
		cfg.logger = defaultLogger()
	}
	if cfg.metrics == nil {
		cfg.metrics = &NilMetrics{}
	}
	if cfg.panicHandler == nil {
		cfg.panicHandler = &DefaultPanicHandler{Logger: cfg.logger}
	}
	if cfg.rejectedHandler == nil {
		cfg.rejectedHandler = &DefaultRejectedTaskHandler{Logger: cfg.logger}
	}
	if cfg.logLimiter == nil {
		cfg.logLimiter = rate.NewLimiter(rate.Limit(10), 20)
	}
	return cfg
}

// WithFloor overrides the number of always-running workers.
// If not specified, defaults to the number of usable processors.
func WithFloor(n int) PoolOption {
	return func(cfg *poolConfig) {
		if n > 0 {
			cfg.floor = n
		}
	}
}

// WithSampleInterval sets how often the scaling controller samples the pool.
func WithSampleInterval(d time.Duration) PoolOption {
	return func(cfg *poolConfig) {
		if d > 0 {
			cfg.sampleInterval = d
		}
	}
}

// WithIdleTimeout sets how long a worker above the floor may stay idle
// before it is retired.
func WithIdleTimeout(d time.Duration) PoolOption {
	return func(cfg *poolConfig) {
		if d > 0 {
			cfg.idleTimeout = d
		}
	}
}

// WithGrowThreshold sets the queue depth that, with no idle worker, makes the
// controller grow the pool.
func WithGrowThreshold(depth int) PoolOption {
	return func(cfg *poolConfig) {
		if depth >= 0 {
			cfg.growThreshold = depth
		}
	}
}

// WithGrowStep sets how many workers one growth decision adds.
func WithGrowStep(n int) PoolOption {
	return func(cfg *poolConfig) {
		if n > 0 {
			cfg.growStep = n
		}
	}
}

// WithMaxWorkers caps the live worker count.
func WithMaxWorkers(n int) PoolOption {
	return func(cfg *poolConfig) {
		if n > 0 {
			cfg.maxWorkers = n
		}
	}
}

// WithHistoryCapacity sets how many execution records RecentTasks keeps.
func WithHistoryCapacity(n int) PoolOption {
	return func(cfg *poolConfig) {
		if n > 0 {
			cfg.historyCapacity = n
		}
	}
}

// WithLogger sets the logger used by the pool and its handlers.
func WithLogger(logger Logger) PoolOption {
	return func(cfg *poolConfig) {
		cfg.logger = logger
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) PoolOption {
	return func(cfg *poolConfig) {
		cfg.metrics = m
	}
}

// WithPanicHandler sets the handler invoked when a task panics.
func WithPanicHandler(h PanicHandler) PoolOption {
	return func(cfg *poolConfig) {
		cfg.panicHandler = h
	}
}

// WithRejectedTaskHandler sets the handler invoked for rejected work.
func WithRejectedTaskHandler(h RejectedTaskHandler) PoolOption {
	return func(cfg *poolConfig) {
		cfg.rejectedHandler = h
	}
}

// WithScaleLogRate limits how many scaling decisions per second are logged.
//
// Example:
//
//	WithScaleLogRate(5, 10) // at most 5 lines/sec with a burst of 10
func WithScaleLogRate(perSecond float64, burst int) PoolOption {
	return func(cfg *poolConfig) {
		if perSecond > 0 && burst > 0 {
			cfg.logLimiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		}
	}
}
