package core

import (
	"context"
	"strings"
	"testing"
)

// TestExecutionHistory_RingOrder verifies the ring keeps the newest records first
// Given: A history with capacity 3
// When: 5 records are added
// Then: Recent returns the last 3, newest first, and Last returns the newest
func TestExecutionHistory_RingOrder(t *testing.T) {
	// Arrange
	h := newExecutionHistory(3)

	// Act
	for i := 1; i <= 5; i++ {
		h.Add(TaskExecutionRecord{Seq: uint64(i)})
	}

	// Assert
	recent := h.Recent(0)
	if len(recent) != 3 {
		t.Fatalf("len(Recent) = %d, want 3", len(recent))
	}
	for i, want := range []uint64{5, 4, 3} {
		if recent[i].Seq != want {
			t.Errorf("recent[%d].Seq = %d, want %d", i, recent[i].Seq, want)
		}
	}
	if got := h.Recent(1); len(got) != 1 || got[0].Seq != 5 {
		t.Errorf("Recent(1) = %+v, want seq 5", got)
	}
	last, ok := h.Last()
	if !ok || last.Seq != 5 {
		t.Errorf("Last() = (%+v, %v), want seq 5", last, ok)
	}

	h.Reset()
	if h.Recent(0) != nil {
		t.Error("Recent after Reset returned records")
	}
	if _, ok := h.Last(); ok {
		t.Error("Last after Reset ok = true")
	}
}

// TestResolveTaskName verifies explicit names win and closures fall back to their symbol
func TestResolveTaskName(t *testing.T) {
	task := func(ctx context.Context) {}

	if got := resolveTaskName(task, "named"); got != "named" {
		t.Errorf("explicit name = %q, want named", got)
	}
	if got := resolveTaskName(task, ""); !strings.Contains(got, "TestResolveTaskName") {
		t.Errorf("fallback name = %q, want the enclosing function", got)
	}
	if got := resolveTaskName(nil, ""); got != "anonymous" {
		t.Errorf("nil task name = %q, want anonymous", got)
	}
}
