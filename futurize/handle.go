package futurize

import (
	"context"
	"fmt"
	"sync/atomic"
)

// cancelFlag is shared between a controller and the handle of its worker.
// Only the controller side raises it.
type cancelFlag struct {
	requested atomic.Bool
	ctx       context.Context
	cancel    context.CancelFunc
}

func newCancelFlag(parent context.Context) *cancelFlag {
	ctx, cancel := context.WithCancel(parent)
	return &cancelFlag{ctx: ctx, cancel: cancel}
}

// raise sets the flag and reports whether this call was the first.
func (f *cancelFlag) raise() bool {
	first := f.requested.CompareAndSwap(false, true)
	f.cancel()
	return first
}

func (f *cancelFlag) isSet() bool {
	return f.requested.Load() || f.ctx.Err() != nil
}

// TaskHandle is handed to a payload. It is the payload's only link to the
// controller: it reads cancellation requests and publishes progress.
type TaskHandle[P, D any] struct {
	flag *cancelFlag
	slot *slot[P, D]
}

// IsCanceled reports whether cancellation was requested. Payloads should
// check it before and after every blocking step and return h.Cancelled()
// when it is true. Cancellation is advisory: nothing stops a payload that
// never looks.
func (h *TaskHandle[P, D]) IsCanceled() bool {
	return h.flag.isSet()
}

// Context returns a context that is cancelled together with the flag. Pass
// it to blocking calls (HTTP requests, rate limiters) so they unwind when
// the controller cancels.
func (h *TaskHandle[P, D]) Context() context.Context {
	return h.flag.ctx
}

// Report publishes an intermediate value, replacing any value the
// controller has not polled yet. It reports false once the task is canceled
// or its terminal value is already written.
func (h *TaskHandle[P, D]) Report(p P) bool {
	if h.IsCanceled() {
		return false
	}
	return h.slot.store(Current[D](p))
}

// Complete returns the success value for d.
func (h *TaskHandle[P, D]) Complete(d D) Progress[P, D] {
	return Completed[P](d)
}

// Fail returns the failure value for err.
func (h *TaskHandle[P, D]) Fail(err error) Progress[P, D] {
	return Error[P, D](err)
}

// Failf returns a failure value with a formatted error.
func (h *TaskHandle[P, D]) Failf(format string, args ...any) Progress[P, D] {
	return Error[P, D](fmt.Errorf(format, args...))
}

// Cancelled returns the cancellation value.
func (h *TaskHandle[P, D]) Cancelled() Progress[P, D] {
	return Canceled[P, D]()
}
