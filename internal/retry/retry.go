package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Kind classifies an error for retry decisions
type Kind int

const (
	// KindTransient errors may succeed on a later attempt (network, 429, 5xx)
	KindTransient Kind = iota
	// KindTerminal errors will fail the same way every time (400, 401, bad input)
	KindTerminal
)

// String returns the kind name used in logs
func (k Kind) String() string {
	switch k {
	case KindTerminal:
		return "terminal"
	default:
		return "transient"
	}
}

// Default policy values
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 2 * time.Second
)

type kindError struct {
	kind Kind
	err  error
}

func (e *kindError) Error() string { return e.err.Error() }
func (e *kindError) Unwrap() error { return e.err }

// Terminal marks err as not worth retrying
func Terminal(err error) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: KindTerminal, err: err}
}

// Transient marks err as retryable
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: KindTransient, err: err}
}

// KindOf reports the kind of err. Unclassified errors are transient,
// context cancellation is terminal.
func KindOf(err error) Kind {
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.kind
	}
	if errors.Is(err, context.Canceled) {
		return KindTerminal
	}
	return KindTransient
}

// IsTerminal is shorthand for KindOf(err) == KindTerminal
func IsTerminal(err error) bool {
	return KindOf(err) == KindTerminal
}

// Policy describes how an operation is retried
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration

	// OnRetry is called before waiting for the next attempt
	OnRetry func(attempt int, delay time.Duration, err error)
}

// DefaultPolicy returns 3 attempts with a 2s base delay
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: DefaultMaxAttempts, BaseDelay: DefaultBaseDelay}
}

// Delay returns the wait after the given failed attempt (1-based)
func (p Policy) Delay(attempt int) time.Duration {
	return time.Duration(attempt) * p.BaseDelay
}

// Budget returns the longest a Do call can take when each attempt is
// bounded by attemptTimeout, backoff included
func (p Policy) Budget(attemptTimeout time.Duration) time.Duration {
	n := p.attempts()
	total := time.Duration(n) * attemptTimeout
	for attempt := 1; attempt < n; attempt++ {
		total += p.Delay(attempt)
	}
	return total
}

func (p Policy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// Do runs op until it succeeds, returns a terminal error, the context is done,
// or MaxAttempts is exhausted. The last error is returned wrapped.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	_, err := DoValue(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// DoValue is Do for operations that produce a value
func DoValue[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	maxAttempts := p.attempts()

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return zero, fmt.Errorf("aborted after %d attempts: %w", attempt-1, lastErr)
			}
			return zero, Terminal(err)
		}

		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err

		if IsTerminal(err) {
			return zero, err
		}
		if attempt == maxAttempts {
			break
		}

		delay := p.Delay(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, delay, err)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, fmt.Errorf("aborted after %d attempts: %w", attempt, lastErr)
		case <-timer.C:
		}
	}

	return zero, fmt.Errorf("failed after %d attempts: %w", maxAttempts, lastErr)
}

// ForStatus classifies err by the HTTP status that produced it.
// 408, 429 and 5xx are transient, every other 4xx is terminal, and
// anything else (no response, 3xx) is left transient.
func ForStatus(status int, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case status == 408 || status == 429:
		return Transient(err)
	case status >= 400 && status < 500:
		return Terminal(err)
	default:
		return Transient(err)
	}
}
