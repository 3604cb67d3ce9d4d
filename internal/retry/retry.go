// Package retry runs provider calls under the exponential backoff policy shared
// by extraction and reconstruction: delay doubles per attempt from a fixed base.
package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy bounds a retried operation.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// ErrExhausted is returned, wrapping the last failure, when every attempt failed transiently.
var ErrExhausted = errors.New("retries exhausted")

// StatusError is returned by HTTP providers for non-2xx responses.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.StatusCode, e.Body)
}

// Transient marks err as retryable regardless of its type.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

type transientError struct{ err error }

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// Retryable classifies an error: network failures, per-attempt deadlines,
// HTTP 429 and 5xx are transient; everything else is permanent.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	var te *transientError
	if errors.As(err, &te) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode == http.StatusTooManyRequests || se.StatusCode >= 500
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne)
}

// Do calls op until it succeeds, fails permanently, ctx ends, or MaxAttempts is reached.
// Exhausted transient failures come back wrapped in ErrExhausted; permanent failures and
// context errors are returned as-is.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error, notify func(err error, next time.Duration)) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.BaseDelay
	eb.Multiplier = 2
	eb.RandomizationFactor = 0
	eb.MaxInterval = p.BaseDelay << 10
	eb.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(attempts-1)), ctx)

	var lastErr error
	permanent := false
	err := backoff.RetryNotify(func() error {
		opErr := op(ctx)
		if opErr == nil {
			return nil
		}
		lastErr = opErr
		if ctx.Err() != nil {
			permanent = true
			return backoff.Permanent(ctx.Err())
		}
		if !Retryable(opErr) {
			permanent = true
			return backoff.Permanent(opErr)
		}
		return opErr
	}, b, notify)
	if err == nil {
		return nil
	}
	if permanent {
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempts, lastErr)
}
