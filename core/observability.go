package core

import "time"

// TaskExecutionRecord captures a completed work item execution event.
type TaskExecutionRecord struct {
	Seq        uint64
	Name       string
	PoolName   string
	WorkerID   int
	EnqueuedAt time.Time
	StartedAt  time.Time
	FinishedAt time.Time
	Wait       time.Duration
	Duration   time.Duration
	Panicked   bool
}

// PoolStats represents runtime observability state for a worker pool.
type PoolStats struct {
	ID      string
	Running bool
	Floor   int

	// Workers is the live worker count; Idle, Active and Blocked partition it
	// together with workers still starting or draining.
	Workers int
	Idle    int
	Active  int
	Blocked int
	Peak    int
	Queued  int

	Submitted int64
	Completed int64
	Panicked  int64
	Rejected  int64
	Grown     int64
	Retired   int64
	Replaced  int64
}
