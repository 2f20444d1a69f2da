// Package retry re-runs failed work. The futurize core never retries on its
// own; callers that want another attempt wrap their payload with Payload or
// call Retrier.Do inside it.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"github.com/caihong2050-art/futurize/futurize"
)

// Strategy defines a retry strategy.
type Strategy interface {
	// NextDelay returns the delay before retry number attempt (0-based) and
	// whether another attempt is allowed.
	NextDelay(attempt int) (time.Duration, bool)
	// MaxAttempts returns the maximum number of attempts, the first included.
	MaxAttempts() int
}

// FixedStrategy retries with a fixed delay.
type FixedStrategy struct {
	Delay    time.Duration
	Attempts int
}

// NextDelay implements Strategy.
func (s *FixedStrategy) NextDelay(attempt int) (time.Duration, bool) {
	if attempt >= s.Attempts {
		return 0, false
	}
	return s.Delay, true
}

// MaxAttempts implements Strategy.
func (s *FixedStrategy) MaxAttempts() int {
	return s.Attempts
}

// ExponentialStrategy retries with exponential backoff.
type ExponentialStrategy struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Attempts     int
	Jitter       bool // add up to 25% random jitter
}

// NextDelay implements Strategy.
func (s *ExponentialStrategy) NextDelay(attempt int) (time.Duration, bool) {
	if attempt >= s.Attempts {
		return 0, false
	}

	delay := float64(s.InitialDelay) * math.Pow(s.Multiplier, float64(attempt))
	if delay > float64(s.MaxDelay) {
		delay = float64(s.MaxDelay)
	}
	if s.Jitter {
		delay += delay * 0.25 * rand.Float64()
	}
	return time.Duration(delay), true
}

// MaxAttempts implements Strategy.
func (s *ExponentialStrategy) MaxAttempts() int {
	return s.Attempts
}

// LinearStrategy retries with linearly increasing delays.
type LinearStrategy struct {
	InitialDelay time.Duration
	Increment    time.Duration
	MaxDelay     time.Duration
	Attempts     int
}

// NextDelay implements Strategy.
func (s *LinearStrategy) NextDelay(attempt int) (time.Duration, bool) {
	if attempt >= s.Attempts {
		return 0, false
	}
	delay := s.InitialDelay + time.Duration(attempt)*s.Increment
	if delay > s.MaxDelay {
		delay = s.MaxDelay
	}
	return delay, true
}

// MaxAttempts implements Strategy.
func (s *LinearStrategy) MaxAttempts() int {
	return s.Attempts
}

// DefaultStrategy returns three attempts with jittered exponential backoff.
func DefaultStrategy() Strategy {
	return &ExponentialStrategy{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		Attempts:     3,
		Jitter:       true,
	}
}

// NoRetry returns a strategy that never retries.
func NoRetry() Strategy {
	return &FixedStrategy{Attempts: 1}
}

// ExhaustedError is returned when every attempt failed.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retry: %d attempts exhausted: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// Retrier executes a function with retries.
type Retrier struct {
	Strategy    Strategy
	ShouldRetry func(err error) bool
	OnRetry     func(attempt int, err error, delay time.Duration)
	Logger      *slog.Logger
}

// NewRetrier creates a new Retrier with the given strategy.
func NewRetrier(strategy Strategy) *Retrier {
	return &Retrier{
		Strategy:    strategy,
		ShouldRetry: DefaultShouldRetry,
	}
}

// DefaultShouldRetry retries every error except context cancellation and
// recovered panics.
func DefaultShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var pe *futurize.PanicError
	return !errors.As(err, &pe)
}

// Do executes fn until it succeeds, the strategy runs out of attempts,
// ShouldRetry rejects the error, or ctx is done.
func (r *Retrier) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	strategy := r.Strategy
	if strategy == nil {
		strategy = NoRetry()
	}
	shouldRetry := r.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = DefaultShouldRetry
	}
	maxAttempts := max(strategy.MaxAttempts(), 1)

	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !shouldRetry(err) {
			return err
		}
		if attempt >= maxAttempts {
			return &ExhaustedError{Attempts: attempt, Last: err}
		}

		delay, ok := strategy.NextDelay(attempt - 1)
		if !ok {
			return &ExhaustedError{Attempts: attempt, Last: err}
		}
		if r.OnRetry != nil {
			r.OnRetry(attempt, err, delay)
		}
		if r.Logger != nil {
			r.Logger.Debug("retrying", "attempt", attempt, "delay", delay, "error", err)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// DoWithResult executes a function that returns a result with retries.
func DoWithResult[T any](ctx context.Context, r *Retrier, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := r.Do(ctx, func(ctx context.Context) error {
		var e error
		result, e = fn(ctx)
		return e
	})
	return result, err
}

// Payload wraps fn so that Error outcomes accepted by r run fn again on the
// same worker. The wait between attempts ends early when the controller
// cancels, and the wrapped payload then returns a cancellation.
func Payload[P, D any](r *Retrier, fn futurize.Payload[P, D]) futurize.Payload[P, D] {
	return func(h *futurize.TaskHandle[P, D]) futurize.Progress[P, D] {
		var out futurize.Progress[P, D]
		err := r.Do(h.Context(), func(context.Context) error {
			if h.IsCanceled() {
				out = h.Cancelled()
				return nil
			}
			out = fn(h)
			return out.Err()
		})
		switch {
		case err == nil:
			return out
		case h.IsCanceled():
			return h.Cancelled()
		default:
			return h.Fail(err)
		}
	}
}

// RetryableError marks an error as retryable.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// IsRetryable checks if an error is retryable. It can be used as
// Retrier.ShouldRetry to retry only marked errors.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// MarkRetryable wraps an error to mark it as retryable.
func MarkRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}
