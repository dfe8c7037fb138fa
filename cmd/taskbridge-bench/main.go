// Command taskbridge-bench drives a burst of CPU-bound items through a
// worker pool and reports how the pool scaled, drained and shrank.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/automaxprocs/maxprocs"
	"golang.org/x/sync/errgroup"

	"github.com/Swind/go-task-bridge/config"
	"github.com/Swind/go-task-bridge/core"
	"github.com/Swind/go-task-bridge/future"
	promexport "github.com/Swind/go-task-bridge/observability/prometheus"
)

type options struct {
	configPath  string
	items       int
	producers   int
	spin        time.Duration
	floor       int
	metricsAddr string
	syncDemo    bool
	ci          bool
}

func parseFlags() options {
	var o options
	flag.StringVar(&o.configPath, "config", "", "YAML or JSON config file")
	flag.IntVar(&o.items, "items", 10000, "work items in the burst")
	flag.IntVar(&o.producers, "producers", 4, "goroutines submitting the burst")
	flag.DurationVar(&o.spin, "spin", 20*time.Microsecond, "CPU time burned per item")
	flag.IntVar(&o.floor, "floor", 0, "override the pool floor (0 keeps the config value)")
	flag.StringVar(&o.metricsAddr, "metrics", "", "serve Prometheus metrics on this address")
	flag.BoolVar(&o.syncDemo, "sync", true, "run the synchronous bridge demonstration")
	flag.BoolVar(&o.ci, "ci", false, "plain output without progress bar")
	flag.Parse()
	return o
}

func main() {
	o := parseFlags()
	if err := run(o); err != nil {
		colorPrintln(red, "error: "+err.Error())
		os.Exit(1)
	}
}

func run(o options) error {
	cfg := config.Default()
	if o.configPath != "" {
		loaded, err := config.LoadFile(o.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if o.floor > 0 {
		cfg.Pool.Floor = o.floor
	}
	if o.items <= 0 || o.producers <= 0 {
		return errors.New("items and producers must be positive")
	}

	logger := cfg.Logger(os.Stderr)
	core.SetDefaultLogger(logger)

	// Floor detection reads GOMAXPROCS, so the cgroup quota is applied first.
	undo, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		logger.Debug(fmt.Sprintf(format, args...))
	}))
	if err != nil {
		logger.Warn("failed to apply GOMAXPROCS from cgroup quota", core.F("error", err))
	}
	defer undo()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts, err := cfg.PoolOptions()
	if err != nil {
		return err
	}

	var poller *promexport.SnapshotPoller
	if o.metricsAddr != "" || cfg.Metrics.Enabled {
		addr := o.metricsAddr
		if addr == "" {
			addr = cfg.Metrics.Listen
		}
		reg := prom.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		exporter, err := promexport.NewMetricsExporter(cfg.Metrics.Namespace, reg, promexport.ExporterOptions{})
		if err != nil {
			return err
		}
		opts = append(opts, core.WithMetrics(exporter))
		if poller, err = promexport.NewSnapshotPoller(cfg.Metrics.Namespace, reg, cfg.PollInterval()); err != nil {
			return err
		}
		srv := serveMetrics(addr, reg, logger)
		defer shutdownServer(srv)
	}

	pool := core.NewWorkerPool(cfg.Pool.ID, opts...)
	pool.Start(ctx)
	defer func() {
		if err := pool.Shutdown(cfg.ShutdownTimeout()); err != nil {
			logger.Warn("pool shutdown", core.F("error", err))
		}
	}()
	if poller != nil {
		poller.AddPool(pool.ID(), pool)
		poller.Start(ctx)
		defer poller.Stop()
	}

	printHeader(pool, o)

	res, err := runBurst(ctx, pool, o)
	if err != nil {
		return err
	}
	res.shrink = waitForShrink(ctx, pool, cfg)
	renderBurst(res, pool)

	if o.syncDemo {
		trace, err := runSyncDemo(ctx, pool)
		if err != nil {
			return err
		}
		renderSyncDemo(trace)
	}
	return nil
}

type burstResult struct {
	items     int
	failed    int
	floor     int
	peak      int
	submitted time.Duration
	drained   time.Duration
	shrink    time.Duration
	shrunk    bool
}

func runBurst(ctx context.Context, pool *core.WorkerPool, o options) (burstResult, error) {
	res := burstResult{items: o.items, floor: pool.Floor()}

	var bar *progressbar.ProgressBar
	if !o.ci {
		bar = progressbar.NewOptions(o.items,
			progressbar.OptionSetDescription("Draining burst"),
			progressbar.OptionSetWidth(50),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionClearOnFinish(),
		)
	}

	futures := make([]*future.Future[future.Void], o.items)
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	per := (o.items + o.producers - 1) / o.producers
	for p := range o.producers {
		lo, hi := p*per, min((p+1)*per, o.items)
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				f := core.StartNew(ctx, pool, func(ctx context.Context) (future.Void, error) {
					spin(o.spin)
					return future.Void{}, nil
				})
				if bar != nil {
					f.OnComplete(func() { _ = bar.Add(1) })
				}
				futures[i] = f
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, fmt.Errorf("submitting burst: %w", err)
	}
	res.submitted = time.Since(start)

	for _, f := range futures {
		if _, err := f.Get(ctx); err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			res.failed++
		}
	}
	res.drained = time.Since(start)
	res.peak = pool.Stats().Peak
	if bar != nil {
		_ = bar.Finish()
	}
	return res, nil
}

func waitForShrink(ctx context.Context, pool *core.WorkerPool, cfg *config.Config) time.Duration {
	idle := core.DefaultIdleTimeout
	if d, err := time.ParseDuration(cfg.Pool.IdleTimeout); err == nil && d > 0 {
		idle = d
	}
	start := time.Now()
	deadline := time.NewTimer(3*idle + time.Second)
	defer deadline.Stop()
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for pool.WorkerCount() > pool.Floor() {
		select {
		case <-ctx.Done():
			return -1
		case <-deadline.C:
			return -1
		case <-ticker.C:
		}
	}
	return time.Since(start)
}

// stageTrace records which goroutine each pipeline stage ran on.
type stageTrace struct {
	caller uint64
	stages []stageRecord
}

type stageRecord struct {
	name  string
	gid   uint64
	route core.RouteKind
}

// runSyncDemo blocks on a three-stage pipeline whose first stage runs on the
// pool; every continuation resumes on the calling goroutine.
func runSyncDemo(ctx context.Context, pool *core.WorkerPool) (stageTrace, error) {
	trace := stageTrace{caller: core.CurrentGoroutineID()}
	mark := func(ctx context.Context, name string) {
		trace.stages = append(trace.stages, stageRecord{name: name, gid: core.CurrentGoroutineID(), route: core.RouteKindOf(ctx)})
	}

	_, err := core.RunSync(ctx, func(ctx context.Context) *future.Future[int] {
		mark(ctx, "factory")
		var poolStage stageRecord
		work := core.StartNew(ctx, pool, func(ctx context.Context) (int, error) {
			poolStage = stageRecord{name: "pool work", gid: core.CurrentGoroutineID(), route: core.RouteKindOf(ctx)}
			return 21, nil
		})
		doubled := core.Then(ctx, work, func(ctx context.Context, v int) (int, error) {
			trace.stages = append(trace.stages, poolStage)
			mark(ctx, "after pool")
			return v * 2, nil
		})
		delayed := core.ThenAsync(ctx, doubled, func(ctx context.Context, v int) *future.Future[int] {
			return core.Then(ctx, core.Delay(ctx, 5*time.Millisecond), func(ctx context.Context, _ future.Void) (int, error) {
				mark(ctx, "after timer")
				return v, nil
			})
		})
		return core.Then(ctx, delayed, func(ctx context.Context, v int) (int, error) {
			mark(ctx, "final")
			return v, nil
		})
	})
	return trace, err
}

func spin(d time.Duration) {
	if d <= 0 {
		return
	}
	end := time.Now().Add(d)
	for time.Now().Before(end) {
	}
}

func serveMetrics(addr string, reg *prom.Registry, logger core.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", core.F("addr", addr), core.F("error", err))
		}
	}()
	logger.Info("serving metrics", core.F("addr", addr))
	return srv
}

func shutdownServer(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}
