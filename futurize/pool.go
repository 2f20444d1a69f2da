package futurize

import (
	"sync"
	"sync/atomic"
)

// Pool is a bounded worker-pool executor. It caps how many payloads run at
// once, which matters when a caller spawns a whole gallery of loads in one
// frame.
type Pool struct {
	jobs chan func()

	closed atomic.Bool
	active atomic.Int32
	wg     sync.WaitGroup
}

// NewPool creates a pool with the given number of workers and queue capacity.
//
// - workers <= 0 will be treated as 1.
// - queueCapacity < 0 will be treated as 0.
func NewPool(workers int, queueCapacity int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueCapacity < 0 {
		queueCapacity = 0
	}

	p := &Pool{jobs: make(chan func(), queueCapacity)}

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for fn := range p.jobs {
		if fn == nil {
			continue
		}
		p.active.Add(1)
		fn()
		p.active.Add(-1)
	}
}

// TryExecute attempts to enqueue work without blocking.
func (p *Pool) TryExecute(fn func()) (err error) {
	if p == nil {
		return ErrNilExecutor
	}
	if fn == nil {
		return nil
	}
	if p.closed.Load() {
		return ErrExecutorClosed
	}

	// Close may race with the send below.
	defer func() {
		if recover() != nil {
			err = ErrExecutorClosed
		}
	}()

	select {
	case p.jobs <- fn:
		return nil
	default:
		return ErrQueueFull
	}
}

// Active returns the number of jobs currently executing.
func (p *Pool) Active() int { return int(p.active.Load()) }

// Queued returns the number of jobs waiting for a worker.
func (p *Pool) Queued() int { return len(p.jobs) }

// Close stops accepting new work and waits until every queued and running
// job has returned, so no accepted controller is left without an outcome.
// Cancel the controllers first to keep the wait short.
//
// Close is idempotent.
func (p *Pool) Close() {
	if p == nil {
		return
	}
	if p.closed.Swap(true) {
		return
	}

	close(p.jobs)
	p.wg.Wait()
}
