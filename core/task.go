package core

import (
	"context"
	"time"
)

// Task is the unit of work (Closure)
type Task func(ctx context.Context)

// WorkItem is a Task queued for execution together with the context it was
// submitted under and its completion slot.
//
// A WorkItem is consumed exactly once: either a worker (or pump) executes
// Task, or the item is abandoned during a forced stop and Abandon is called.
type WorkItem struct {
	// Task is the closure to execute.
	Task Task

	// Ctx carries cancellation and values of the submitter. The executor
	// installs its own routing on top of it before running Task.
	Ctx context.Context

	// Abandon, when set, is invoked instead of Task if the item can never
	// run (queue drained by a forced stop). It completes the item's
	// completion slot so no outcome is lost.
	Abandon func(err error)

	// Fault, when set, receives the *future.PanicError of a Task that
	// panicked, so the item's completion slot observes the fault.
	Fault func(err error)

	// Name is an optional label used by history and logs.
	Name string

	seq        uint64
	enqueuedAt time.Time
}

// Seq returns the sequence number assigned when the item was enqueued.
func (w WorkItem) Seq() uint64 {
	return w.seq
}

// EnqueuedAt returns when the item entered its queue.
func (w WorkItem) EnqueuedAt() time.Time {
	return w.enqueuedAt
}

func (w WorkItem) context() context.Context {
	if w.Ctx == nil {
		return context.Background()
	}
	return w.Ctx
}

func (w WorkItem) abandon(err error) {
	if w.Abandon != nil {
		w.Abandon(err)
	}
}

func (w WorkItem) fault(err error) {
	if w.Fault != nil {
		w.Fault(err)
	}
}
