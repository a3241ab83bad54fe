package apperror

import "errors"

// Kind describes a stable error category that can be mapped to HTTP status codes.
type Kind string

const (
	KindNotFound    Kind = "not_found"
	KindValidation  Kind = "validation"
	KindConflict    Kind = "conflict"
	KindPersistence Kind = "persistence"
)

// Code is a machine-readable error identifier returned to clients next to the message.
type Code string

const (
	CodeMissingCode       Code = "MISSING_CODE"
	CodeInvalidCoupon     Code = "INVALID_COUPON"
	CodeMissingField      Code = "MISSING_FIELD"
	CodeMalformedInput    Code = "MALFORMED_INPUT"
	CodeOrderNotFound     Code = "ORDER_NOT_FOUND"
	CodeCouponNotFound    Code = "COUPON_NOT_FOUND"
	CodeCouponExists      Code = "COUPON_EXISTS"
	CodeInvalidTransition Code = "INVALID_TRANSITION"
	CodePersistence       Code = "PERSISTENCE"
)

// Error is a typed error with a stable Kind and a human-readable message.
// Msg should be safe to return to clients for Validation/NotFound/Conflict.
type Error struct {
	Kind Kind
	Code Code
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// WithCode builds an error carrying both a kind and a client-facing code.
func WithCode(kind Kind, code Code, msg string, err error) error {
	return &Error{Kind: kind, Code: code, Msg: msg, Err: err}
}

// Persistence wraps a storage failure with the generic persistence code.
func Persistence(msg string, err error) error {
	return WithCode(KindPersistence, CodePersistence, msg, err)
}

func Is(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code Code) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Code == code
}

// CodeOf returns the code attached to err, or an empty Code.
func CodeOf(err error) Code {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.Code
}
