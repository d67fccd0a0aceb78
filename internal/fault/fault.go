// Package fault defines the error taxonomy shared by the runtime control core.
//
// Every error that crosses the dispatcher boundary is a *Error carrying a Code.
// Transports translate the code into their own representation (HTTP status,
// WebSocket error frame); the engine itself never deals in protocol codes.
package fault

import (
	"errors"
	"fmt"
)

// Code categorizes a fault.
type Code string

const (
	// CodeValidation marks a malformed or missing payload. Rejected before any
	// engine state is touched.
	CodeValidation Code = "VALIDATION"

	// CodeNavigation marks a selector that does not resolve, or a next/previous
	// request with no target. Engine state is unchanged.
	CodeNavigation Code = "NAVIGATION"

	// CodeRange marks a numeric input outside an accepted bound.
	CodeRange Code = "RANGE"

	// CodeInternal marks a broken invariant. Fatal to the command only.
	CodeInternal Code = "INTERNAL"
)

// Error is a coded, caller-visible failure.
type Error struct {
	Code    Code
	Message string
	Details map[string]string
	Err     error
}

// Error returns the bare message so transports can relay it verbatim.
func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validation creates a CodeValidation fault.
func Validation(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// Navigation creates a CodeNavigation fault.
func Navigation(format string, args ...any) *Error {
	return &Error{Code: CodeNavigation, Message: fmt.Sprintf(format, args...)}
}

// Range creates a CodeRange fault.
func Range(format string, args ...any) *Error {
	return &Error{Code: CodeRange, Message: fmt.Sprintf(format, args...)}
}

// Internal wraps err as a CodeInternal fault.
func Internal(err error) *Error {
	return &Error{Code: CodeInternal, Message: fmt.Sprintf("internal error: %v", err), Err: err}
}

// CodeOf returns the code of the first *Error in err's chain, or CodeInternal
// when err is not a fault at all.
func CodeOf(err error) Code {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return CodeInternal
}

// IsValidation reports whether err is a validation fault.
func IsValidation(err error) bool { return is(err, CodeValidation) }

// IsNavigation reports whether err is a navigation fault.
func IsNavigation(err error) bool { return is(err, CodeNavigation) }

// IsRange reports whether err is a range fault.
func IsRange(err error) bool { return is(err, CodeRange) }

// IsInternal reports whether err is an internal fault.
func IsInternal(err error) bool { return is(err, CodeInternal) }

func is(err error, code Code) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code == code
	}
	return false
}
