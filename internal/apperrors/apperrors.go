// Package apperrors defines the error taxonomy shared by the domain and
// transport layers. Domain packages declare sentinel *Error values; callers
// match on identity with errors.Is or on classification with KindOf.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind classifies an error for propagation policy and transport mapping.
type Kind uint8

const (
	KindUnknown Kind = iota
	// KindValidation marks malformed input. Never retried.
	KindValidation
	// KindNotFound marks an unknown auction, bid or subscription.
	KindNotFound
	// KindState marks an action attempted in the wrong lifecycle stage.
	KindState
	// KindConflict marks a rejection against committed state (bid too low,
	// bidding against oneself, resource already present).
	KindConflict
	// KindConcurrency marks an exhausted retry budget under contention.
	// Callers may retry at a higher level.
	KindConcurrency
	// KindUnauthorized marks a caller lacking rights for an admin action.
	KindUnauthorized
	// KindUnavailable marks storage or broker unavailability. Fatal, never
	// swallowed.
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindState:
		return "state"
	case KindConflict:
		return "conflict"
	case KindConcurrency:
		return "concurrency"
	case KindUnauthorized:
		return "unauthorized"
	case KindUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Error carries a kind, a stable machine-readable code and an optional cause.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a sentinel error with the given kind and code.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Wrap attaches a cause to a copy of the sentinel, preserving identity for
// errors.Is against the original.
func Wrap(sentinel *Error, cause error) *Error {
	return &Error{
		Kind:    sentinel.Kind,
		Code:    sentinel.Code,
		Message: sentinel.Message,
		Cause:   cause,
	}
}

// Is makes a wrapped copy match its sentinel by code and kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind && e.Code == t.Code
}

// KindOf extracts the Kind from err, or KindUnknown for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// CodeOf extracts the stable code from err, or "" for foreign errors.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
