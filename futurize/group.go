package futurize

import "sync"

// Group keeps many controllers of the same value types in one indexed
// collection, one record per item, so a single handler can serve all of
// them and branch on ID.
type Group[P, D any] struct {
	mu      sync.Mutex
	entries []*Controller[P, D]
}

// NewGroup creates an empty group with room for n records.
func NewGroup[P, D any](n int) *Group[P, D] {
	return &Group[P, D]{entries: make([]*Controller[P, D], n)}
}

// Len returns the number of records, including empty ones.
func (g *Group[P, D]) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.entries)
}

// Resize grows or shrinks the group to n records. Controllers in dropped
// records are closed.
func (g *Group[P, D]) Resize(n int) {
	if n < 0 {
		n = 0
	}
	g.mu.Lock()
	var dropped []*Controller[P, D]
	if n < len(g.entries) {
		dropped = append(dropped, g.entries[n:]...)
		g.entries = g.entries[:n:n]
	} else {
		g.entries = append(g.entries, make([]*Controller[P, D], n-len(g.entries))...)
	}
	g.mu.Unlock()

	closeAll(dropped)
}

// Add appends c in a new record and returns its index.
func (g *Group[P, D]) Add(c *Controller[P, D]) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.entries = append(g.entries, c)
	return len(g.entries) - 1
}

// Set stores c at index i, closing the controller it replaces. It panics
// if i is out of range, like a slice index.
func (g *Group[P, D]) Set(i int, c *Controller[P, D]) {
	g.mu.Lock()
	old := g.entries[i]
	g.entries[i] = c
	g.mu.Unlock()

	if old != nil && old != c {
		old.Close()
	}
}

// Get returns the controller at index i, or nil for an empty record.
func (g *Group[P, D]) Get(i int) *Controller[P, D] {
	g.mu.Lock()
	defer g.mu.Unlock()
	if i < 0 || i >= len(g.entries) {
		return nil
	}
	return g.entries[i]
}

// Active returns the number of records holding a controller.
func (g *Group[P, D]) Active() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, c := range g.entries {
		if c != nil {
			n++
		}
	}
	return n
}

// TryDoAll triggers every controller in the group.
func (g *Group[P, D]) TryDoAll() {
	for _, c := range g.snapshot() {
		if c != nil {
			c.TryDo()
		}
	}
}

// PollAll polls every controller once and passes each value to fn together
// with the record index. Records whose controller reached StateDone are
// emptied after fn returns. fn runs on the calling goroutine and may call
// Set on the group.
func (g *Group[P, D]) PollAll(fn func(i int, c *Controller[P, D], p Progress[P, D])) {
	for i, c := range g.snapshot() {
		if c == nil {
			continue
		}
		c.TryResolve(func(p Progress[P, D], c *Controller[P, D]) {
			if fn != nil {
				fn(i, c, p)
			}
		})
		if c.IsDone() {
			g.clear(i, c)
		}
	}
}

// CancelAll requests cancellation of every controller in the group.
func (g *Group[P, D]) CancelAll() {
	for _, c := range g.snapshot() {
		if c != nil {
			c.Cancel()
		}
	}
}

// Close closes every controller and empties all records.
func (g *Group[P, D]) Close() {
	g.mu.Lock()
	entries := g.entries
	g.entries = make([]*Controller[P, D], len(entries))
	g.mu.Unlock()

	closeAll(entries)
}

func (g *Group[P, D]) snapshot() []*Controller[P, D] {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*Controller[P, D], len(g.entries))
	copy(out, g.entries)
	return out
}

// clear empties record i if it still holds c.
func (g *Group[P, D]) clear(i int, c *Controller[P, D]) {
	g.mu.Lock()
	if i < len(g.entries) && g.entries[i] == c {
		g.entries[i] = nil
	}
	g.mu.Unlock()
	c.Close()
}

func closeAll[P, D any](cs []*Controller[P, D]) {
	for _, c := range cs {
		if c != nil {
			c.Close()
		}
	}
}
