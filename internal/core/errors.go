package core

import (
	"errors"
	"fmt"
)

// Error kinds. Every error produced by the rules engine wraps exactly one of
// these so transports can map it with errors.Is.
var (
	ErrValidation  = errors.New("validation error")
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrPersistence = errors.New("persistence error")
)

var (
	ErrInvalidDate      = &Error{kind: ErrValidation, msg: "Invalid date format. Use YYYY-MM-DD."}
	ErrInvalidAmount    = &Error{kind: ErrValidation, msg: "Invalid amount format."}
	ErrAmountOutOfRange = &Error{kind: ErrValidation, msg: "Amount is out of range."}
)

// Error carries a client-facing message and the kind it belongs to.
type Error struct {
	kind error
	msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

// Message is the text safe to return to clients.
func (e *Error) Message() string {
	return e.msg
}

// Kind returns the sentinel kind of the error.
func (e *Error) Kind() error {
	return e.kind
}

func (e *Error) Is(target error) bool {
	return target == e.kind
}

func (e *Error) Unwrap() error {
	return e.err
}

// Validationf builds a validation error.
func Validationf(format string, args ...any) error {
	return &Error{kind: ErrValidation, msg: fmt.Sprintf(format, args...)}
}

// NotFoundf builds a not-found error.
func NotFoundf(format string, args ...any) error {
	return &Error{kind: ErrNotFound, msg: fmt.Sprintf(format, args...)}
}

// Conflictf builds a conflict error.
func Conflictf(format string, args ...any) error {
	return &Error{kind: ErrConflict, msg: fmt.Sprintf(format, args...)}
}

// Persistence wraps a storage failure. msg is shown to clients, err is only logged.
func Persistence(msg string, err error) error {
	return &Error{kind: ErrPersistence, msg: msg, err: err}
}

// WithMessage keeps the kind of err but replaces its client message.
// Errors that carry no kind are returned unchanged.
func WithMessage(err error, msg string) error {
	var e *Error
	if errors.As(err, &e) {
		return &Error{kind: e.kind, msg: msg, err: e.err}
	}
	return err
}

// PublicMessage returns the client message of err and whether it had one.
func PublicMessage(err error) (string, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.msg, true
	}
	return "", false
}
