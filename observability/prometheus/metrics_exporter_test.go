package prometheus

import (
	"context"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"

	"github.com/Swind/go-task-bridge/core"
)

func TestMetricsExporter_RecordMethods(t *testing.T) {
	reg := prom.NewRegistry()
	exporter, err := NewMetricsExporter("taskbridge", reg, ExporterOptions{})
	if err != nil {
		t.Fatalf("NewMetricsExporter failed: %v", err)
	}

	exporter.RecordTaskDuration("pool-a", 250*time.Millisecond)
	exporter.RecordTaskWait("pool-a", time.Millisecond)
	exporter.RecordTaskPanic("pool-a", "panic")
	exporter.RecordQueueDepth("pool-a", 7)
	exporter.RecordTaskRejected("pool-a", "closed")
	exporter.RecordWorkers("pool-a", 6)
	exporter.RecordScaleEvent("pool-a", "grow", 2)
	exporter.RecordScaleEvent("pool-a", "grow", 2)
	exporter.RecordScaleEvent("pool-a", "shrink", 0)

	if got := testutil.ToFloat64(exporter.taskPanicTotal.WithLabelValues("pool-a")); got != 1 {
		t.Fatalf("panic total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(exporter.queueDepth.WithLabelValues("pool-a")); got != 7 {
		t.Fatalf("queue depth = %v, want 7", got)
	}
	if got := testutil.ToFloat64(exporter.taskRejectedTotal.WithLabelValues("pool-a", "closed")); got != 1 {
		t.Fatalf("rejected total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(exporter.workers.WithLabelValues("pool-a")); got != 6 {
		t.Fatalf("workers = %v, want 6", got)
	}
	if got := testutil.ToFloat64(exporter.scaleEventsTotal.WithLabelValues("pool-a", "grow")); got != 4 {
		t.Fatalf("grow events = %v, want 4", got)
	}
	if got := testutil.CollectAndCount(exporter.scaleEventsTotal); got != 1 {
		t.Fatalf("scale series = %d, want 1 (zero delta is not recorded)", got)
	}

	for name, vec := range map[string]*prom.HistogramVec{"duration": exporter.taskDurationSeconds, "wait": exporter.taskWaitSeconds} {
		count, err := histogramSampleCount(vec.WithLabelValues("pool-a"))
		if err != nil {
			t.Fatalf("histogramSampleCount(%s) failed: %v", name, err)
		}
		if count != 1 {
			t.Fatalf("%s sample count = %d, want 1", name, count)
		}
	}
}

func TestMetricsExporter_AlreadyRegisteredReuse(t *testing.T) {
	reg := prom.NewRegistry()
	first, err := NewMetricsExporter("taskbridge", reg, ExporterOptions{})
	if err != nil {
		t.Fatalf("first NewMetricsExporter failed: %v", err)
	}
	second, err := NewMetricsExporter("taskbridge", reg, ExporterOptions{})
	if err != nil {
		t.Fatalf("second NewMetricsExporter failed: %v", err)
	}

	first.RecordTaskPanic("pool-a", nil)
	second.RecordTaskPanic("pool-a", nil)

	got := testutil.ToFloat64(first.taskPanicTotal.WithLabelValues("pool-a"))
	if got != 2 {
		t.Fatalf("shared panic counter = %v, want 2", got)
	}
}

func TestMetricsExporter_NilSafe(t *testing.T) {
	var exporter *MetricsExporter
	exporter.RecordTaskDuration("pool-a", time.Second)
	exporter.RecordScaleEvent("pool-a", "grow", 1)
}

// TestMetricsExporter_WiredIntoPool verifies a live pool reports through the exporter
// Given: A pool using the exporter as its metrics sink
// When: Items run and one panics
// Then: Duration samples and the panic counter reflect them
func TestMetricsExporter_WiredIntoPool(t *testing.T) {
	// Arrange
	reg := prom.NewRegistry()
	exporter, err := NewMetricsExporter("", reg, ExporterOptions{})
	if err != nil {
		t.Fatalf("NewMetricsExporter failed: %v", err)
	}
	pool := core.NewWorkerPool("wired", core.WithFloor(1), core.WithMetrics(exporter), core.WithLogger(core.NewNoOpLogger()), core.WithPanicHandler(&core.DefaultPanicHandler{Logger: core.NewNoOpLogger()}))
	pool.Start(context.Background())

	// Act
	for range 5 {
		_ = pool.Submit(core.WorkItem{Task: func(ctx context.Context) {}})
	}
	_ = pool.Submit(core.WorkItem{Task: func(ctx context.Context) { panic("exported") }})
	if err := pool.Shutdown(time.Second); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	// Assert
	count, err := histogramSampleCount(exporter.taskDurationSeconds.WithLabelValues("wired"))
	if err != nil {
		t.Fatalf("histogramSampleCount failed: %v", err)
	}
	if count != 6 {
		t.Errorf("duration samples = %d, want 6", count)
	}
	if got := testutil.ToFloat64(exporter.taskPanicTotal.WithLabelValues("wired")); got != 1 {
		t.Errorf("panic total = %v, want 1", got)
	}
}

func histogramSampleCount(observer prom.Observer) (uint64, error) {
	collector, ok := observer.(prom.Collector)
	if !ok {
		return 0, nil
	}

	metricCh := make(chan prom.Metric, 1)
	collector.Collect(metricCh)
	close(metricCh)
	for metric := range metricCh {
		msg := &dto.Metric{}
		if err := metric.Write(msg); err != nil {
			return 0, err
		}
		if msg.Histogram != nil {
			return msg.Histogram.GetSampleCount(), nil
		}
	}
	return 0, nil
}
