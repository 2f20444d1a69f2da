package futurize

// Executor decides where a controller's worker runs. TryExecute must not
// block: a full or closed executor reports the refusal as an error and the
// controller turns it into a terminal Error value.
type Executor interface {
	TryExecute(fn func()) error
}

// GoExecutor runs every worker on its own goroutine.
type GoExecutor struct{}

// TryExecute implements Executor.
func (GoExecutor) TryExecute(fn func()) error {
	go fn()
	return nil
}
