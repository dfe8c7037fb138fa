package future

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromise_Resolve(t *testing.T) {
	p := NewPromise[int]()
	f := p.Future()

	_, err := f.Result()
	require.ErrorIs(t, err, ErrPending)
	assert.Equal(t, Pending, f.State())
	assert.False(t, f.IsDone())

	assert.True(t, p.Resolve(7))
	assert.False(t, p.Resolve(8), "second completion must lose")
	assert.False(t, p.Reject(errors.New("late")))

	v, err := f.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.Equal(t, Succeeded, f.State())
	assert.True(t, f.IsDone())
}

func TestPromise_Reject(t *testing.T) {
	boom := errors.New("boom")
	f := Rejected[string](boom)

	_, err := f.Result()
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, Faulted, f.State())
	assert.False(t, IsCanceled(err))
}

func TestPromise_RejectNilError(t *testing.T) {
	p := NewPromise[int]()
	p.Reject(nil)

	assert.Error(t, p.Future().Err())
	assert.Equal(t, Faulted, p.Future().State())
}

func TestPromise_Cancel(t *testing.T) {
	f := CanceledFuture[int](context.Canceled)

	_, err := f.Result()
	assert.Equal(t, Canceled, f.State())
	assert.True(t, IsCanceled(err))
	assert.ErrorIs(t, err, context.Canceled)

	var ce *CanceledError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, context.Canceled, ce.Cause)
}

func TestPromise_CancelKeepsExistingCanceledError(t *testing.T) {
	orig := &CanceledError{Cause: context.DeadlineExceeded}
	f := CanceledFuture[int](orig)

	assert.Same(t, orig, f.Err())
}

func TestPromise_CompleteClassifies(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		state State
	}{
		{"success", nil, Succeeded},
		{"fault", errors.New("boom"), Faulted},
		{"context canceled", context.Canceled, Canceled},
		{"deadline", context.DeadlineExceeded, Canceled},
		{"wrapped cancel", &CanceledError{Cause: errors.New("stop")}, Canceled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPromise[int]()
			p.Complete(1, tt.err)
			assert.Equal(t, tt.state, p.Future().State())
		})
	}
}

func TestFuture_GetContextEnds(t *testing.T) {
	f := NewPromise[int]().Future()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	_, err := f.Get(ctx)

	assert.True(t, IsCanceled(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, Pending, f.State(), "waiting must not cancel the operation")
}

func TestFuture_OnCompleteExactlyOnce(t *testing.T) {
	p := NewPromise[int]()
	var calls atomic.Int32
	for range 5 {
		p.Future().OnComplete(func() { calls.Add(1) })
	}

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Resolve(i)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(5), calls.Load())

	ran := false
	p.Future().OnComplete(func() { ran = true })
	assert.True(t, ran, "callback on a completed future runs immediately")
}

func TestFuture_CallbackMayRegisterMore(t *testing.T) {
	p := NewPromise[int]()
	f := p.Future()
	var order []string
	f.OnComplete(func() {
		order = append(order, "outer")
		f.OnComplete(func() { order = append(order, "inner") })
	})

	p.Resolve(1)

	assert.Equal(t, []string{"outer", "inner"}, order)
}

func TestPanicError(t *testing.T) {
	inner := errors.New("inner")
	pe := NewPanicError(inner)

	assert.ErrorIs(t, pe, inner)
	assert.NotEmpty(t, pe.Stack)
	assert.Contains(t, pe.Error(), "inner")
	assert.Nil(t, (&PanicError{Value: "text"}).Unwrap())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "pending", Pending.String())
	assert.Equal(t, "succeeded", Succeeded.String())
	assert.Equal(t, "faulted", Faulted.String())
	assert.Equal(t, "canceled", Canceled.String())
	assert.Equal(t, "state(9)", State(9).String())
}
