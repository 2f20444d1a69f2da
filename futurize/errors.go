package futurize

import (
	"errors"
	"fmt"
)

var (
	// ErrNoOutcome indicates a payload returned without a terminal value.
	ErrNoOutcome = errors.New("futurize: payload returned no terminal progress")

	// ErrExecutorClosed indicates the executor is closed and won't accept new work.
	ErrExecutorClosed = errors.New("futurize: executor closed")

	// ErrQueueFull indicates the executor queue is full and cannot accept new work.
	ErrQueueFull = errors.New("futurize: executor queue full")

	// ErrNilExecutor is returned when scheduling on a nil executor.
	ErrNilExecutor = errors.New("futurize: nil executor")
)

// PanicError wraps a panic raised by a payload, with the stack of the
// worker goroutine at the time of the panic.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("futurize: panic: %v", e.Value)
}

// Unwrap exposes the panic value when it was itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
