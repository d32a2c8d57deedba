/*
errors.go - Error taxonomy for reminder runs

PURPOSE:
  Central error types shared by the evaluator, dispatch, and the runner.

CATEGORIES:
  1. Configuration errors - fatal to an entire run (bad kind requested)
  2. Relay rejections     - permanent per-recipient failures, never retried
  3. Transport failures   - network-level per-recipient failures, retryable

  Data-shape defects are deliberately NOT errors: a malformed sub-object
  resolves to a default in the record accessors and evaluation continues.

USAGE:
  if engine.IsRunFatal(err) { abort the pass }
  if engine.IsRetryable(err) { caller may retry this recipient }
*/
package engine

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrUnknownReminderKind is returned when a run is requested for a kind
	// the evaluator does not know. Fatal to the run, not per-record.
	ErrUnknownReminderKind = errors.New("unknown reminder kind")

	// ErrRelayRejected is the relay-level permanent rejection (invalid or
	// expired token, unknown recipient). Retrying without a token refresh
	// cannot succeed.
	ErrRelayRejected = errors.New("relay rejected message")

	// ErrTransportFailure is a network/HTTP-level failure reaching the
	// relay. The message may never have arrived; callers wanting
	// at-least-once retry around this error only.
	ErrTransportFailure = errors.New("relay transport failure")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// RelayError carries the relay's per-ticket rejection reason, e.g.
// "DeviceNotRegistered".
type RelayError struct {
	Reason string
}

func (e *RelayError) Error() string {
	return fmt.Sprintf("relay rejected message: %s", e.Reason)
}

func (e *RelayError) Unwrap() error { return ErrRelayRejected }

// TransportError wraps the underlying network or HTTP error.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("relay transport failure: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return ErrTransportFailure }

// =============================================================================
// CLASSIFICATION HELPERS
// =============================================================================

// IsRetryable reports whether a failed dispatch might succeed on retry.
// Only transport failures qualify; relay rejections are permanent.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransportFailure)
}

// IsRunFatal reports whether the error must abort the whole pass rather
// than one recipient.
func IsRunFatal(err error) bool {
	return errors.Is(err, ErrUnknownReminderKind)
}
