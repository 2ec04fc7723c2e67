package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrValidation signals invalid caller input.
	ErrValidation = errors.New("validation failed")
	// ErrDimensionMismatch signals a vector dimension mismatch against the index.
	ErrDimensionMismatch = errors.New("index dimension mismatch")

	// ErrProviderAuth signals an invalid or missing API key. Never retried.
	ErrProviderAuth = errors.New("provider authentication failed")
	// ErrProviderBusy signals a rate limit or overloaded provider. Retryable.
	ErrProviderBusy = errors.New("provider busy or rate limited")
	// ErrProviderTimeout signals a timed-out provider call. Retryable.
	ErrProviderTimeout = errors.New("provider timeout")
	// ErrProviderNetwork signals a transport-level failure. Never retried.
	ErrProviderNetwork = errors.New("provider network error")
	// ErrUnsupportedProvider signals an unknown vendor name. Caller-input error.
	ErrUnsupportedProvider = errors.New("unsupported provider")

	// ErrPipeline is the catch-all for non-recoverable pipeline failures.
	ErrPipeline = errors.New("internal pipeline error")
)

// ProviderError is the terminal error surfaced once retries are exhausted or a
// fatal provider condition is hit. It names the vendor and carries a
// remediation hint for the caller.
type ProviderError struct {
	Vendor string
	Hint   string
	Err    error
}

func (e *ProviderError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("provider %s: %v (%s)", e.Vendor, e.Err, e.Hint)
	}
	return fmt.Sprintf("provider %s: %v", e.Vendor, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// NewProviderError wraps err with the vendor name and a remediation hint.
func NewProviderError(vendor string, err error, hint string) error {
	return &ProviderError{Vendor: vendor, Hint: hint, Err: err}
}

// Retryable reports whether err is a transient provider condition worth retrying.
func Retryable(err error) bool {
	return errors.Is(err, ErrProviderBusy) || errors.Is(err, ErrProviderTimeout)
}
