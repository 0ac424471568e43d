// Package domain defines the closed error taxonomy shared by every layer of
// the service, plus the envelope shape returned at HTTP boundaries.
package domain

import (
	"context"
	"errors"
	"os"

	"github.com/google/uuid"
)

// ErrorCode discriminates the closed set of domain error kinds.
type ErrorCode string

// Error codes. The set is closed: new kinds require a new constant here and a
// mapping decision at the HTTP boundary.
const (
	CodeAuthFailed        ErrorCode = "AUTH_FAILED"
	CodeValidationFailed  ErrorCode = "VALIDATION_FAILED"
	CodeNotFound          ErrorCode = "NOT_FOUND"
	CodeSessionEnded      ErrorCode = "SESSION_ENDED"
	CodeConfiguration     ErrorCode = "CONFIGURATION_ERROR"
	CodeUpstreamTransient ErrorCode = "UPSTREAM_TRANSIENT"
	CodeRateLimited       ErrorCode = "RATE_LIMITED"
	CodeTimeout           ErrorCode = "TIMEOUT"
)

// Error is a tagged domain error. Retryable marks kinds that callers may
// safely retry (transient upstream conditions); everything else is terminal.
type Error struct {
	Code      ErrorCode
	Message   string
	Retryable bool
	Err       error // optional cause
}

// Error returns the user-facing message.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewAuthFailed builds an authentication error.
func NewAuthFailed(message string) *Error {
	if message == "" {
		message = "인증에 실패했어요."
	}
	return &Error{Code: CodeAuthFailed, Message: message}
}

// NewValidation builds a validation error.
func NewValidation(message string) *Error {
	if message == "" {
		message = "검증에 실패했어요."
	}
	return &Error{Code: CodeValidationFailed, Message: message}
}

// NewNotFound builds a not-found error.
func NewNotFound(message string) *Error {
	if message == "" {
		message = "대상을 찾지 못했어요."
	}
	return &Error{Code: CodeNotFound, Message: message}
}

// NewSessionEnded builds an ended-session conflict error.
func NewSessionEnded(message string) *Error {
	if message == "" {
		message = "종료된 세션에는 요청할 수 없어요."
	}
	return &Error{Code: CodeSessionEnded, Message: message}
}

// NewConfiguration builds a configuration error.
func NewConfiguration(message string) *Error {
	if message == "" {
		message = "설정이 올바르지 않아요."
	}
	return &Error{Code: CodeConfiguration, Message: message}
}

// NewUpstreamTransient builds a retryable upstream error.
func NewUpstreamTransient(message string) *Error {
	if message == "" {
		message = "외부 시스템에 일시적인 문제가 발생했어요."
	}
	return &Error{Code: CodeUpstreamTransient, Message: message, Retryable: true}
}

// NewRateLimited builds a retryable rate-limit error.
func NewRateLimited(message string) *Error {
	if message == "" {
		message = "요청 제한을 초과했어요."
	}
	return &Error{Code: CodeRateLimited, Message: message, Retryable: true}
}

// NewTimeout builds a retryable timeout error.
func NewTimeout(message string) *Error {
	if message == "" {
		message = "작업 시간이 초과됐어요."
	}
	return &Error{Code: CodeTimeout, Message: message, Retryable: true}
}

// WithCause attaches an underlying cause and returns the error for chaining.
func (e *Error) WithCause(err error) *Error {
	e.Err = err
	return e
}

// AsError extracts a domain error from an error chain.
func AsError(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// IsCode reports whether err is a domain error with the given code.
func IsCode(err error, code ErrorCode) bool {
	de, ok := AsError(err)
	return ok && de.Code == code
}

// IsTimeout reports whether err is a deadline or transport timeout. HTTP
// callers use it to decide between the timeout and network-error kinds.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
		return true
	}
	var timeoutErr interface{ Timeout() bool }
	return errors.As(err, &timeoutErr) && timeoutErr.Timeout()
}

// ErrorEnvelope is the JSON error body returned by HTTP handlers.
type ErrorEnvelope struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
	TraceID   string `json:"trace_id"`
	Retryable bool   `json:"retryable"`
}

// BuildEnvelope mints an envelope with a fresh trace id.
func BuildEnvelope(code ErrorCode, message string, retryable bool) ErrorEnvelope {
	return ErrorEnvelope{
		ErrorCode: string(code),
		Message:   message,
		TraceID:   uuid.NewString(),
		Retryable: retryable,
	}
}
