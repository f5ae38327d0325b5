// Package apperr gives every error raised in this backend one of a small,
// fixed set of kinds, so the HTTP layer can map errors to status codes in
// exactly one place (spec §7).
package apperr

import (
	"errors"
	"fmt"
)

// Kind is one of the error kinds enumerated in spec §7.
type Kind string

const (
	NotFound           Kind = "not_found"
	PreconditionFailed Kind = "precondition_failed"
	UpstreamFailure    Kind = "upstream_failure"
	Timeout            Kind = "timeout"
	InputValidation    Kind = "input_validation"
	FeatureDisabled    Kind = "feature_disabled"
	Unauthorised       Kind = "unauthorised"
	Internal           Kind = "internal"
)

// Error wraps an underlying error with a Kind and a user-facing detail
// message. The detail is what ends up in the HTTP response body's "detail"
// field; it must never leak internal specifics for Unauthorised errors.
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Detail, e.Err)
	}
	return e.Detail
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error with no wrapped cause.
func New(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

// Wrap builds an Error around an existing error.
func Wrap(kind Kind, detail string, err error) *Error {
	return &Error{Kind: kind, Detail: detail, Err: err}
}

// KindOf extracts the Kind from err if it (or something it wraps) is an
// *Error; otherwise it returns Internal.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return Internal
}

// DetailOf extracts the user-facing detail string, falling back to the
// error's own message.
func DetailOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Detail
	}
	return err.Error()
}
