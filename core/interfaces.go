package core

import (
	"context"
	"time"
)

// =============================================================================
// PanicHandler: Interface for handling task panics
// =============================================================================

// PanicHandler is called when a task panics during execution.
// This allows custom panic handling, logging, and recovery strategies.
//
// Implementations should be thread-safe as they may be called concurrently.
type PanicHandler interface {
	// HandlePanic is called when a task panics.
	//
	// Parameters:
	// - ctx: The context from the panicked task
	// - poolName: The name of the pool or pump where the panic occurred
	// - workerID: The ID of the worker (-1 for the synchronous pump)
	// - panicInfo: The panic value recovered from the task
	// - stackTrace: The stack trace at the time of panic
	HandlePanic(ctx context.Context, poolName string, workerID int, panicInfo any, stackTrace []byte)
}

// DefaultPanicHandler reports panics through a Logger.
type DefaultPanicHandler struct {
	Logger Logger
}

// HandlePanic logs panic information at error level.
func (h *DefaultPanicHandler) HandlePanic(ctx context.Context, poolName string, workerID int, panicInfo any, stackTrace []byte) {
	logger := h.Logger
	if logger == nil {
		logger = defaultLogger()
	}
	logger.Error("task panicked",
		F("pool", poolName),
		F("worker", workerID),
		F("panic", panicInfo),
		F("stack", string(stackTrace)),
	)
}

// =============================================================================
// Metrics: Interface for observability and monitoring
// =============================================================================

// Metrics defines the interface for collecting pool and pump metrics.
// Implementations can send metrics to monitoring systems (Prometheus, StatsD, etc.).
//
// Methods should be non-blocking and fast to avoid impacting task execution performance.
type Metrics interface {
	// RecordTaskDuration records how long a work item took to execute.
	RecordTaskDuration(poolName string, duration time.Duration)

	// RecordTaskWait records how long a work item waited in the queue.
	RecordTaskWait(poolName string, wait time.Duration)

	// RecordTaskPanic records that a task panicked during execution.
	RecordTaskPanic(poolName string, panicInfo any)

	// RecordQueueDepth records the current queue depth.
	RecordQueueDepth(poolName string, depth int)

	// RecordTaskRejected records that a task was rejected (e.g., during shutdown).
	RecordTaskRejected(poolName string, reason string)

	// RecordWorkers records the live worker count after a scaling decision.
	RecordWorkers(poolName string, live int)

	// RecordScaleEvent records one grow, shrink or replace decision.
	RecordScaleEvent(poolName string, direction string, delta int)
}

// NilMetrics provides a no-op metrics implementation that does nothing.
// This is the default when no metrics interface is provided.
type NilMetrics struct{}

func (m *NilMetrics) RecordTaskDuration(poolName string, duration time.Duration)     {}
func (m *NilMetrics) RecordTaskWait(poolName string, wait time.Duration)             {}
func (m *NilMetrics) RecordTaskPanic(poolName string, panicInfo any)                 {}
func (m *NilMetrics) RecordQueueDepth(poolName string, depth int)                    {}
func (m *NilMetrics) RecordTaskRejected(poolName string, reason string)              {}
func (m *NilMetrics) RecordWorkers(poolName string, live int)                        {}
func (m *NilMetrics) RecordScaleEvent(poolName string, direction string, delta int) {}

// =============================================================================
// RejectedTaskHandler: Interface for handling rejected tasks
// =============================================================================

// RejectedTaskHandler is called when a task is rejected.
// This can happen when:
// - The pool is shutting down or stopped
// - A continuation is posted to a pump that already returned
//
// Implementations should be thread-safe as they may be called concurrently.
type RejectedTaskHandler interface {
	// HandleRejectedTask is called when a task is rejected.
	//
	// Parameters:
	// - poolName: The name of the pool or pump
	// - reason: Why the task was rejected (e.g., "shutdown", "pump finished")
	HandleRejectedTask(poolName string, reason string)
}

// DefaultRejectedTaskHandler logs rejected tasks at warn level.
type DefaultRejectedTaskHandler struct {
	Logger Logger
}

// HandleRejectedTask logs the rejected task.
func (h *DefaultRejectedTaskHandler) HandleRejectedTask(poolName string, reason string) {
	logger := h.Logger
	if logger == nil {
		logger = defaultLogger()
	}
	logger.Warn("task rejected", F("pool", poolName), F("reason", reason))
}
