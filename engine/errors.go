/*
errors.go - Typed errors for the engine

PURPOSE:
  Every error the Service returns carries a Kind from a closed set so the
  API layer (or any other caller) can map it to a stable outward code
  without parsing strings.

USAGE:
  if errors.Is(err, engine.ErrAlreadyProcessed) { ... }
  switch engine.KindOf(err) { case engine.KindForbidden: ... }

SEE ALSO:
  - api/handlers.go: Kind to HTTP status mapping
  - pricing/errors.go: ErrBelowMinimum, mapped to KindBelowMinimum
*/
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/warp/match-engine/pricing"
)

// =============================================================================
// KINDS
// =============================================================================

type Kind string

const (
	KindNotFound          Kind = "NOT_FOUND"
	KindForbidden         Kind = "FORBIDDEN"
	KindAlreadyProcessed  Kind = "ALREADY_PROCESSED"
	KindInvalidTransition Kind = "INVALID_TRANSITION"
	KindBelowMinimum      Kind = "BELOW_MINIMUM"
	KindTimeout           Kind = "TIMEOUT"
	KindDependencyFailure Kind = "DEPENDENCY_FAILURE"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("acting provider is not the assigned provider")
	ErrAlreadyProcessed  = errors.New("assignment already processed")
	ErrInvalidTransition = errors.New("invalid assignment transition")
	ErrBelowMinimum      = errors.New("below minimum hours")
	ErrTimeout           = errors.New("timed out")
	ErrDependencyFailure = errors.New("dependency failure")
)

var sentinels = map[Kind]error{
	KindNotFound:          ErrNotFound,
	KindForbidden:         ErrForbidden,
	KindAlreadyProcessed:  ErrAlreadyProcessed,
	KindInvalidTransition: ErrInvalidTransition,
	KindBelowMinimum:      ErrBelowMinimum,
	KindTimeout:           ErrTimeout,
	KindDependencyFailure: ErrDependencyFailure,
}

// =============================================================================
// STRUCTURED ERROR
// =============================================================================

// Error is the only error type the Service returns.
type Error struct {
	Kind    Kind
	Op      string // e.g. "approve", "reject"
	Message string
	Err     error // underlying cause, may be nil
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = sentinels[e.Kind].Error()
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel of the same Kind.
func (e *Error) Is(target error) bool {
	return sentinels[e.Kind] == target
}

func newError(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the Kind of err. Errors from outside the engine are
// classified as timeouts, pricing violations or dependency failures.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, pricing.ErrBelowMinimum):
		return KindBelowMinimum
	default:
		return KindDependencyFailure
	}
}

// wrapStore turns a RecordStore error into TIMEOUT or DEPENDENCY_FAILURE.
func wrapStore(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Op: op, Message: "record store call exceeded deadline", Err: err}
	}
	return &Error{Kind: KindDependencyFailure, Op: op, Message: "record store call failed", Err: err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the same call might succeed later.
func IsRetryable(err error) bool {
	k := KindOf(err)
	return k == KindTimeout || k == KindDependencyFailure
}

// IsClientError returns true if the caller asked for something impossible.
func IsClientError(err error) bool {
	switch KindOf(err) {
	case KindNotFound, KindForbidden, KindAlreadyProcessed, KindInvalidTransition, KindBelowMinimum:
		return true
	}
	return false
}
