package futurize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Payload is the work a controller runs on its worker. It must return a
// terminal value (h.Complete, h.Fail, h.Cancelled); anything else is
// reported as an ErrNoOutcome failure.
type Payload[P, D any] func(h *TaskHandle[P, D]) Progress[P, D]

// Controller is the caller-side handle of one unit of background work.
// Every method returns immediately; the caller drives it from its own loop:
//
//	c := futurize.Task(0, load)
//	c.TryDo()
//	// each frame:
//	c.TryResolve(func(p futurize.Progress[int, Image], c *futurize.Controller[int, Image]) { ... })
//	if c.IsDone() {
//		c = nil
//	}
type Controller[P, D any] struct {
	id     int
	token  uuid.UUID
	fn     Payload[P, D]
	cfg    taskConfig
	logger *slog.Logger

	state *StateMachine
	slot  *slot[P, D]
	flag  *cancelFlag

	started atomic.Bool
	closed  atomic.Bool
	seen    atomic.Uint64
	updated atomic.Bool
}

// Task builds a controller for fn tagged with id. The worker does not start
// until TryDo is called. id names the kind of work and is not unique; use
// Token to tell instances apart.
func Task[P, D any](id int, fn Payload[P, D], opts ...Option) *Controller[P, D] {
	cfg := defaultTaskConfig()
	for _, o := range opts {
		o(&cfg)
	}

	c := &Controller[P, D]{
		id:    id,
		token: uuid.New(),
		fn:    fn,
		cfg:   cfg,
		state: NewStateMachine(),
		slot:  newSlot[P, D](),
		flag:  newCancelFlag(cfg.ctx),
	}

	logger := cfg.logger
	if logger == nil {
		logger = Logger()
	}
	c.logger = logger.With("task_id", id, "task_token", c.token.String())
	if cfg.name != "" {
		c.logger = c.logger.With("task_name", cfg.name)
	}

	// A controller dropped without Close still asks its worker to stop.
	runtime.AddCleanup(c, func(f *cancelFlag) { f.raise() }, c.flag)

	c.publish(EventCreated, nil)
	return c
}

// ID returns the kind tag given to Task.
func (c *Controller[P, D]) ID() int { return c.id }

// Token returns the identifier unique to this controller.
func (c *Controller[P, D]) Token() uuid.UUID { return c.token }

// State returns the lifecycle state.
func (c *Controller[P, D]) State() State { return c.state.Current() }

// History returns the lifecycle transitions recorded so far.
func (c *Controller[P, D]) History() []StateTransition { return c.state.History() }

// IsDone reports whether the terminal value was delivered by a poll.
func (c *Controller[P, D]) IsDone() bool { return c.state.Current() == StateDone }

// IsCanceled reports whether Cancel or Close requested cancellation.
func (c *Controller[P, D]) IsCanceled() bool { return c.flag.requested.Load() }

// Done is closed once the worker has written its terminal value. The value
// is still delivered by the next poll; Done only lets callers that are not
// a polling loop wait without spinning.
func (c *Controller[P, D]) Done() <-chan struct{} { return c.slot.done }

// Updated reports whether the last poll saw a value the previous poll did
// not.
func (c *Controller[P, D]) Updated() bool { return c.updated.Load() }

// TryDo dispatches the worker. Only the first call on a controller has an
// effect; calls after Close are ignored.
func (c *Controller[P, D]) TryDo() {
	if c.closed.Load() || !c.started.CompareAndSwap(false, true) {
		return
	}
	_ = c.state.TransitionTo(StateRunning, time.Now())

	h := &TaskHandle[P, D]{flag: c.flag, slot: c.slot}
	fn, logger := c.fn, c.logger
	job := func() { work(fn, h, logger) }

	err := ErrNilExecutor
	if c.cfg.executor != nil {
		err = c.cfg.executor.TryExecute(job)
	}
	if err != nil {
		logger.Warn("executor refused task", "error", err)
		c.slot.store(Error[P, D](fmt.Errorf("futurize: schedule task %d: %w", c.id, err)))
	}

	logger.Debug("task dispatched")
	c.publish(EventStarted, nil)
}

// TryGet returns the latest value without blocking. Intermediate values may
// be returned any number of times. A terminal value is returned by exactly
// one call, which also moves the controller to StateDone; later calls
// return a KindConsumed value. Before TryDo it returns a KindPending value.
func (c *Controller[P, D]) TryGet() Progress[P, D] {
	p, version := c.slot.take()
	fresh := c.seen.Swap(version) != version
	c.updated.Store(fresh)

	switch {
	case p.IsTerminal():
		c.finish(p)
	case fresh && p.kind == KindCurrent:
		c.publish(EventProgress, nil)
	}
	return p
}

// TryResolve polls once and hands the value to fn on the calling
// goroutine. fn is not called once the terminal value was consumed.
func (c *Controller[P, D]) TryResolve(fn func(Progress[P, D], *Controller[P, D])) {
	p := c.TryGet()
	if p.kind == KindConsumed || fn == nil {
		return
	}
	fn(p, c)
}

// Cancel asks the payload to stop. It has no effect on a done controller or
// when called again.
func (c *Controller[P, D]) Cancel() {
	if c.IsDone() {
		return
	}
	if c.flag.raise() {
		c.logger.Debug("cancel requested", "state", c.state.Current().String())
		c.publish(EventCancelRequested, nil)
	}
}

// Close releases the controller without waiting for its worker: a worker
// that is still running gets a cancellation request and is left to finish
// on its own. TryDo is a no-op after Close.
func (c *Controller[P, D]) Close() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	if c.IsDone() {
		c.flag.cancel()
		return
	}
	c.flag.raise()
	if c.started.Load() {
		c.logger.Debug("task detached")
		c.publish(EventDetached, nil)
	}
}

func (c *Controller[P, D]) finish(p Progress[P, D]) {
	now := time.Now()
	if err := c.state.TransitionTo(StateDone, now); err != nil {
		return
	}
	c.flag.cancel()

	out := OutcomeData{Err: p.err}
	if started := c.state.enteredAt(StateRunning); !started.IsZero() {
		out.Elapsed = now.Sub(started)
	}

	switch p.kind {
	case KindCompleted:
		c.logger.Debug("task completed", "elapsed", out.Elapsed)
		c.publish(EventCompleted, out)
	case KindError:
		c.logger.Debug("task failed", "elapsed", out.Elapsed, "error", p.err)
		c.publish(EventFailed, out)
	case KindCanceled:
		c.logger.Debug("task canceled", "elapsed", out.Elapsed)
		c.publish(EventCanceled, out)
	}
}

func (c *Controller[P, D]) publish(t EventType, data any) {
	if c.cfg.eventBus == nil {
		return
	}
	c.cfg.eventBus.Publish(Event{
		Type:      t,
		TaskID:    c.id,
		Token:     c.token,
		Timestamp: time.Now(),
		Data:      data,
	})
}

// work runs on the worker. It never references the controller so that an
// abandoned controller can be collected while its payload is still busy.
func work[P, D any](fn Payload[P, D], h *TaskHandle[P, D], logger *slog.Logger) {
	var out Progress[P, D]
	defer func() {
		if r := recover(); r != nil {
			logger.Error("payload panicked", "panic", r)
			out = Error[P, D](&PanicError{Value: r, Stack: debug.Stack()})
		}
		h.slot.store(settle(out, h))
	}()

	if h.IsCanceled() {
		out = Canceled[P, D]()
		return
	}
	if fn == nil {
		out = Error[P, D](fmt.Errorf("%w: nil payload", ErrNoOutcome))
		return
	}
	out = fn(h)
}

// settle turns whatever the payload produced into a terminal value.
func settle[P, D any](out Progress[P, D], h *TaskHandle[P, D]) Progress[P, D] {
	switch {
	case !out.IsTerminal():
		return Error[P, D](fmt.Errorf("%w: got %s", ErrNoOutcome, out.kind))
	case out.kind == KindError && h.flag.requested.Load() && errors.Is(out.err, context.Canceled):
		// The payload stopped because its context was cancelled on request.
		return Canceled[P, D]()
	default:
		return out
	}
}
