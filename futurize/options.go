package futurize

import (
	"context"
	"log/slog"
)

type taskConfig struct {
	ctx      context.Context
	executor Executor
	logger   *slog.Logger
	eventBus *EventBus
	name     string
}

// Option configures a controller built by Task.
type Option func(*taskConfig)

// WithContext sets the parent of the handle context. Cancelling parent makes
// IsCanceled true and cancels the handle context, but is not a cancel
// request: a payload that returns the resulting context.Canceled error ends
// as KindError, not KindCanceled.
func WithContext(parent context.Context) Option {
	return func(c *taskConfig) {
		if parent != nil {
			c.ctx = parent
		}
	}
}

// WithExecutor dispatches the worker through e instead of a bare goroutine.
func WithExecutor(e Executor) Option {
	return func(c *taskConfig) {
		c.executor = e
	}
}

// WithLogger sets the controller logger. Defaults to Logger().
func WithLogger(l *slog.Logger) Option {
	return func(c *taskConfig) {
		c.logger = l
	}
}

// WithEventBus publishes lifecycle events of the controller on eb.
func WithEventBus(eb *EventBus) Option {
	return func(c *taskConfig) {
		c.eventBus = eb
	}
}

// WithName attaches a human-readable name used in log records.
func WithName(name string) Option {
	return func(c *taskConfig) {
		c.name = name
	}
}

func defaultTaskConfig() taskConfig {
	return taskConfig{
		ctx:      context.Background(),
		executor: GoExecutor{},
	}
}
