package engine

import (
	"errors"
	"fmt"
)

// ValidationError reports a malformed report submission. Not retryable.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid report: %s", e.Reason)
}

// UnauthorizedError reports a reporter that could not be resolved to a
// current trust rating. Not retryable.
type UnauthorizedError struct {
	ReporterID string
}

func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("unknown reporter %q", e.ReporterID)
}

// ConcurrencyTimeoutError reports a per-target lock that could not be
// acquired within the configured timeout. Retryable with backoff.
type ConcurrencyTimeoutError struct {
	Key string
}

func (e *ConcurrencyTimeoutError) Error() string {
	return fmt.Sprintf("timed out waiting for lock %q", e.Key)
}

// RateLimitError reports a reporter exceeding the submission rate limit.
// Retryable after backoff.
type RateLimitError struct {
	ReporterID string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("reporter %q exceeded submission rate limit", e.ReporterID)
}

// NotFoundError reports a moderator action on an unknown or already-terminal
// target. No state change occurred.
type NotFoundError struct {
	TargetID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("target %q not found or already resolved", e.TargetID)
}

// TrustUpdateError reports a trust feedback failure for one reporter. It is
// logged and skipped; it never rolls back the state transition that caused it.
type TrustUpdateError struct {
	ReporterID string
	Err        error
}

func (e *TrustUpdateError) Error() string {
	return fmt.Sprintf("trust update for reporter %q: %v", e.ReporterID, e.Err)
}

func (e *TrustUpdateError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the caller may retry the operation with backoff.
func Retryable(err error) bool {
	var timeout *ConcurrencyTimeoutError
	var rate *RateLimitError
	return errors.As(err, &timeout) || errors.As(err, &rate)
}
