package ir

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind categorizes failures that abort an operation.
// Expected verification failures are never errors; they are returned as
// structured results with OK=false.
type ErrorKind string

const (
	// KindInputShape: malformed YAML/JSON, missing fields, unsupported keys.
	KindInputShape ErrorKind = "INPUT_SHAPE"

	// KindContract: invalid ref keys, invalid event config, conflicting options.
	KindContract ErrorKind = "CONTRACT"

	// KindValidation: compiler IR failed its own invariant checker.
	KindValidation ErrorKind = "VALIDATION"

	// KindTrust: signature mismatch, missing required signature, unsafe key.
	KindTrust ErrorKind = "TRUST"
)

// Error is the single error type returned by the compiler core.
type Error struct {
	Kind ErrorKind

	// Message is a human-readable description.
	Message string

	// Subject identifies the offending file, key, ref or event.
	Subject string

	// Details carries aggregated messages (e.g. every validation error).
	Details []string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if e.Subject != "" {
		fmt.Fprintf(&b, " (%s)", e.Subject)
	}
	if len(e.Details) > 0 {
		b.WriteString(": ")
		b.WriteString(strings.Join(e.Details, "; "))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err (or anything it wraps) is an *Error of kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// NewInputShapeError creates a KindInputShape error.
func NewInputShapeError(subject, format string, args ...any) *Error {
	return &Error{Kind: KindInputShape, Subject: subject, Message: fmt.Sprintf(format, args...)}
}

// NewContractError creates a KindContract error.
func NewContractError(subject, format string, args ...any) *Error {
	return &Error{Kind: KindContract, Subject: subject, Message: fmt.Sprintf(format, args...)}
}

// NewTrustError creates a KindTrust error.
func NewTrustError(subject, format string, args ...any) *Error {
	return &Error{Kind: KindTrust, Subject: subject, Message: fmt.Sprintf(format, args...)}
}

// NewValidationError aggregates IR validation messages.
func NewValidationError(details []string) *Error {
	return &Error{
		Kind:    KindValidation,
		Message: "compiler IR validation failed",
		Details: details,
	}
}
