package futurize

import "fmt"

// Kind identifies which variant a Progress value holds.
type Kind uint8

const (
	// KindPending is the sentinel observed before the worker wrote anything.
	KindPending Kind = iota
	// KindCurrent carries an intermediate progress payload.
	KindCurrent
	// KindCompleted carries the terminal success payload.
	KindCompleted
	// KindError carries the terminal failure.
	KindError
	// KindCanceled is the terminal value of a task that honoured Cancel.
	KindCanceled
	// KindConsumed is returned by polls after the terminal value was delivered.
	KindConsumed
)

// String returns a human-readable representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindPending:
		return "pending"
	case KindCurrent:
		return "current"
	case KindCompleted:
		return "completed"
	case KindError:
		return "error"
	case KindCanceled:
		return "canceled"
	case KindConsumed:
		return "consumed"
	default:
		return fmt.Sprintf("unknown(%d)", k)
	}
}

// IsTerminal reports whether the kind ends a task.
func (k Kind) IsTerminal() bool {
	return k == KindCompleted || k == KindError || k == KindCanceled
}

// Progress is the state of a task at one point in time: an intermediate
// value of type P, a terminal result of type D, a terminal error, or a
// terminal cancellation.
type Progress[P, D any] struct {
	kind    Kind
	current P
	data    D
	err     error
}

// Current returns an intermediate progress value.
func Current[D, P any](p P) Progress[P, D] {
	return Progress[P, D]{kind: KindCurrent, current: p}
}

// Completed returns a terminal success value.
func Completed[P, D any](d D) Progress[P, D] {
	return Progress[P, D]{kind: KindCompleted, data: d}
}

// Error returns a terminal failure value. A nil err is replaced with
// ErrNoOutcome so the variant always carries a cause.
func Error[P, D any](err error) Progress[P, D] {
	if err == nil {
		err = ErrNoOutcome
	}
	return Progress[P, D]{kind: KindError, err: err}
}

// Canceled returns the terminal cancellation value.
func Canceled[P, D any]() Progress[P, D] {
	return Progress[P, D]{kind: KindCanceled}
}

func pending[P, D any]() Progress[P, D] { return Progress[P, D]{kind: KindPending} }

func consumed[P, D any]() Progress[P, D] { return Progress[P, D]{kind: KindConsumed} }

// Kind returns the variant held by p.
func (p Progress[P, D]) Kind() Kind { return p.kind }

// IsTerminal reports whether p ends the task.
func (p Progress[P, D]) IsTerminal() bool { return p.kind.IsTerminal() }

// Current returns the intermediate payload; ok is false for other variants.
func (p Progress[P, D]) Current() (v P, ok bool) {
	return p.current, p.kind == KindCurrent
}

// Completed returns the success payload; ok is false for other variants.
func (p Progress[P, D]) Completed() (v D, ok bool) {
	return p.data, p.kind == KindCompleted
}

// Err returns the failure carried by a KindError value, nil otherwise.
func (p Progress[P, D]) Err() error {
	if p.kind != KindError {
		return nil
	}
	return p.err
}

// String implements fmt.Stringer.
func (p Progress[P, D]) String() string {
	switch p.kind {
	case KindCurrent:
		return fmt.Sprintf("current(%v)", p.current)
	case KindCompleted:
		return fmt.Sprintf("completed(%v)", p.data)
	case KindError:
		return fmt.Sprintf("error(%v)", p.err)
	default:
		return p.kind.String()
	}
}
