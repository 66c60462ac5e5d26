package command

import (
	"fmt"

	"go.uber.org/multierr"
)

// FailureType enumerates the originating cause of a RuntimeFailure, per
// spec.md §7.
type FailureType int

const (
	CommandException FailureType = iota
	Timeout
	Shortcircuit
	RejectedThreadExecution
	RejectedSemaphoreExecution
	RejectedSemaphoreFallback
)

func (f FailureType) String() string {
	switch f {
	case CommandException:
		return "CommandException"
	case Timeout:
		return "Timeout"
	case Shortcircuit:
		return "Shortcircuit"
	case RejectedThreadExecution:
		return "RejectedThreadExecution"
	case RejectedSemaphoreExecution:
		return "RejectedSemaphoreExecution"
	case RejectedSemaphoreFallback:
		return "RejectedSemaphoreFallback"
	default:
		return "Unknown"
	}
}

// BadRequestError wraps a user-signalled invalid-input error. It bypasses
// all metrics (except the request log), the breaker, and fallback, and
// propagates unchanged to the caller — spec.md §7.
type BadRequestError struct {
	Cause error
}

// BadRequest wraps cause as a BadRequestError.
func BadRequest(cause error) error {
	return &BadRequestError{Cause: cause}
}

func (e *BadRequestError) Error() string { return e.Cause.Error() }
func (e *BadRequestError) Unwrap() error { return e.Cause }

// RuntimeFailureError is the error kind surfaced to callers when a command
// (and, if attempted, its fallback) both fail to produce a value. FailureType
// identifies which gate produced it; Cause is the originating error;
// FallbackCause, if non-nil, is the error the fallback itself raised.
type RuntimeFailureError struct {
	FailureType   FailureType
	Cause         error
	FallbackCause error
}

func (e *RuntimeFailureError) Error() string {
	if e.FallbackCause != nil {
		return fmt.Sprintf("command: runtime failure (%s): %v (fallback: %v)", e.FailureType, e.Cause, e.FallbackCause)
	}
	return fmt.Sprintf("command: runtime failure (%s): %v", e.FailureType, e.Cause)
}

// Unwrap exposes Cause alone when no fallback was attempted, or both Cause
// and FallbackCause (via multierr, so errors.Is/errors.As fan out across
// both) when the fallback itself failed.
func (e *RuntimeFailureError) Unwrap() error {
	if e.FallbackCause == nil {
		return e.Cause
	}
	return multierr.Append(e.Cause, e.FallbackCause)
}

// RuntimeFailure constructs a RuntimeFailureError.
func RuntimeFailure(failureType FailureType, cause, fallbackCause error) error {
	return &RuntimeFailureError{FailureType: failureType, Cause: cause, FallbackCause: fallbackCause}
}

// IllegalStateError signals a command usage error: a second execution of a
// single-shot command instance, or a missing request context when cache
// keys are in play.
type IllegalStateError struct {
	Message string
}

func (e *IllegalStateError) Error() string { return "command: illegal state: " + e.Message }

// IllegalState constructs an IllegalStateError.
func IllegalState(message string) error {
	return &IllegalStateError{Message: message}
}
