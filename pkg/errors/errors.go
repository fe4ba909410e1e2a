// Package errors defines the coded errors pageshot returns.
//
// Every failure that reaches a user carries a [Code]. The core codes name the
// failure kinds of capture and export (INVALID_GEOMETRY, INVALID_PAGE_SIZE,
// INVALID_PAGE_CONTENT, EMPTY_DOCUMENT, UNSUPPORTED_FORMAT, ENCODING_FAILURE);
// the rest cover input validation, the capture store and internal faults.
// The HTTP service maps codes to status codes and the CLI prints
// [UserMessage].
//
// Errors are terminal. Nothing in the core retries a failed request.
//
//	err := errors.New(errors.ErrCodeInvalidGeometry, "client height must be positive, got %d", h)
//	if errors.Is(err, errors.ErrCodeInvalidGeometry) {
//	    ...
//	}
package errors

import (
	stderrors "errors"
	"fmt"
)

// Code is a machine-readable failure kind.
type Code string

const (
	// capture and export
	ErrCodeInvalidGeometry    Code = "INVALID_GEOMETRY"
	ErrCodeInvalidPageSize    Code = "INVALID_PAGE_SIZE"
	ErrCodeInvalidPageContent Code = "INVALID_PAGE_CONTENT"
	ErrCodeEmptyDocument      Code = "EMPTY_DOCUMENT"
	ErrCodeUnsupportedFormat  Code = "UNSUPPORTED_FORMAT"
	ErrCodeEncodingFailure    Code = "ENCODING_FAILURE"
	ErrCodeCaptureFailed      Code = "CAPTURE_FAILED"

	// input
	ErrCodeInvalidInput Code = "INVALID_INPUT"
	ErrCodeInvalidImage Code = "INVALID_IMAGE"
	ErrCodeInvalidPath  Code = "INVALID_PATH"

	// capture store
	ErrCodeNotFound       Code = "NOT_FOUND"
	ErrCodeCaptureExpired Code = "CAPTURE_EXPIRED"
	ErrCodeStorage        Code = "STORAGE_ERROR"

	ErrCodeInternal Code = "INTERNAL_ERROR"
)

// Error is a coded error. Message is shown to users; Cause, when set, is
// kept for errors.Is and errors.As.
type Error struct {
	Code    Code
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

// New returns an Error with a formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap returns an Error with cause attached.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether the first *Error in err's chain has code.
func Is(err error, code Code) bool {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode returns the code of the first *Error in err's chain, or "".
func GetCode(err error) Code {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns the message of the first *Error in err's chain
// without its code, or err.Error() for uncoded errors.
func UserMessage(err error) string {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
