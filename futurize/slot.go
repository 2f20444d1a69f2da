package futurize

import "sync"

// slot holds the latest progress value of one task. The worker is the only
// writer and the controller the only reader. Once a terminal value is
// stored the slot is sealed and ignores further writes.
type slot[P, D any] struct {
	mu       sync.Mutex
	value    Progress[P, D]
	version  uint64
	sealed   bool
	consumed bool

	// done is closed when the slot is sealed.
	done chan struct{}
}

func newSlot[P, D any]() *slot[P, D] {
	return &slot[P, D]{value: pending[P, D](), done: make(chan struct{})}
}

// store overwrites the current value. It reports false when the slot was
// already sealed.
func (s *slot[P, D]) store(p Progress[P, D]) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sealed {
		return false
	}
	s.value = p
	s.version++
	if p.IsTerminal() {
		s.sealed = true
		close(s.done)
	}
	return true
}

// take returns the current value and its version. A terminal value is
// handed out once; afterwards take returns KindConsumed.
func (s *slot[P, D]) take() (Progress[P, D], uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.consumed {
		return consumed[P, D](), s.version
	}
	v := s.value
	if v.IsTerminal() {
		s.consumed = true
		s.value = consumed[P, D]()
	}
	return v, s.version
}
