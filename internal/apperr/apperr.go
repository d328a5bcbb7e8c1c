// Package apperr holds the error kinds every component reports through.
//
// Domain packages declare their own named errors built with New, so callers
// can match either the specific error or its kind:
//
//	errors.Is(err, booking.ErrSlotTaken)   // specific
//	errors.Is(err, apperr.ErrConflict)     // kind
package apperr

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrForbidden        = errors.New("forbidden")
	ErrInvalidState     = errors.New("invalid state")
	ErrSignatureInvalid = errors.New("signature invalid")
	ErrUpstream         = errors.New("upstream failure")
	ErrValidation       = errors.New("validation error")
)

type Error struct {
	Kind    error
	Code    string
	Message string
	Details any
	cause   error
}

func New(kind error, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() []error {
	if e.cause != nil {
		return []error{e.Kind, e.cause}
	}
	return []error{e.Kind}
}

// Is lets a derived error (WithCause, WithDetails) still match the
// sentinel it was derived from.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Code == e.Code
}

// WithCause returns a copy of e that also wraps cause.
func (e *Error) WithCause(cause error) *Error {
	cp := *e
	cp.cause = cause
	return &cp
}

// WithDetails returns a copy of e carrying details for the caller.
func (e *Error) WithDetails(details any) *Error {
	cp := *e
	cp.Details = details
	return &cp
}

// Validation builds an ad-hoc validation error.
func Validation(message string, details any) *Error {
	return &Error{Kind: ErrValidation, Code: "VALIDATION_ERROR", Message: message, Details: details}
}

// Upstream wraps a failed call to an external collaborator.
func Upstream(code string, cause error) *Error {
	return &Error{Kind: ErrUpstream, Code: code, Message: "upstream call failed", cause: cause}
}

// KindOf reports which kind err belongs to, or nil for unclassified errors.
func KindOf(err error) error {
	for _, k := range []error{ErrNotFound, ErrConflict, ErrForbidden, ErrInvalidState, ErrSignatureInvalid, ErrUpstream, ErrValidation} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
