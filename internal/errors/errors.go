// Package errors defines the service error type shared by services and HTTP
// handlers. Each error carries the wire code written to clients, so handlers
// never have to translate between layers.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode is the machine readable identifier written in the "error" field.
type ErrorCode string

const (
	CodeUnauthorized       ErrorCode = "unauthorized"
	CodeForbidden          ErrorCode = "forbidden"
	CodeNotFound           ErrorCode = "not_found"
	CodeMissingFields      ErrorCode = "missing_fields"
	CodeInvalidToken       ErrorCode = "invalid_token"
	CodeRateLimitExceeded  ErrorCode = "rate_limit_exceeded"
	CodeInternal           ErrorCode = "internal_error"
	CodeServiceUnavailable ErrorCode = "service_unavailable"
)

// ServiceError is an error with an HTTP mapping.
type ServiceError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Details    map[string]interface{}
	Err        error
}

func (e *ServiceError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ServiceError) Unwrap() error { return e.Err }

// WithDetails returns a copy of e with an extra detail entry.
func (e *ServiceError) WithDetails(key string, value interface{}) *ServiceError {
	cp := *e
	cp.Details = make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		cp.Details[k] = v
	}
	cp.Details[key] = value
	return &cp
}

// New builds a ServiceError.
func New(status int, code ErrorCode, message string) *ServiceError {
	return &ServiceError{Code: code, Message: message, HTTPStatus: status}
}

// Wrap builds a ServiceError around a cause.
func Wrap(err error, status int, code ErrorCode, message string) *ServiceError {
	return &ServiceError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

func BadRequest(code ErrorCode, message string) *ServiceError {
	return New(http.StatusBadRequest, code, message)
}

func Unauthorized(message string) *ServiceError {
	return New(http.StatusUnauthorized, CodeUnauthorized, message)
}

func InvalidToken(err error) *ServiceError {
	return Wrap(err, http.StatusUnauthorized, CodeUnauthorized, "")
}

func Forbidden(code ErrorCode, message string) *ServiceError {
	if code == "" {
		code = CodeForbidden
	}
	return New(http.StatusForbidden, code, message)
}

func NotFound(code ErrorCode) *ServiceError {
	if code == "" {
		code = CodeNotFound
	}
	return New(http.StatusNotFound, code, "")
}

func Conflict(code ErrorCode) *ServiceError {
	return New(http.StatusConflict, code, "")
}

func TooLarge(code ErrorCode, message string) *ServiceError {
	return New(http.StatusRequestEntityTooLarge, code, message)
}

func Unavailable(code ErrorCode, message string) *ServiceError {
	if code == "" {
		code = CodeServiceUnavailable
	}
	return New(http.StatusServiceUnavailable, code, message)
}

func RateLimitExceeded(limit int, window string) *ServiceError {
	return New(http.StatusTooManyRequests, CodeRateLimitExceeded, "Too many requests").
		WithDetails("limit", limit).
		WithDetails("window", window)
}

// Internal wraps an unexpected failure under the given wire code.
func Internal(code ErrorCode, err error) *ServiceError {
	if code == "" {
		code = CodeInternal
	}
	return Wrap(err, http.StatusInternalServerError, code, "")
}

// GetServiceError returns the first ServiceError in err's chain, or nil.
func GetServiceError(err error) *ServiceError {
	var se *ServiceError
	if stderrors.As(err, &se) {
		return se
	}
	return nil
}

// HasCode reports whether err carries the given wire code.
func HasCode(err error, code ErrorCode) bool {
	se := GetServiceError(err)
	return se != nil && se.Code == code
}

// StatusOf returns the HTTP status carried by err, or 500.
func StatusOf(err error) int {
	if se := GetServiceError(err); se != nil {
		return se.HTTPStatus
	}
	return http.StatusInternalServerError
}
