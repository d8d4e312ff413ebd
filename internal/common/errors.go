package common

import (
	"errors"
	"net/http"
)

// Error codes shared by the HTTP handlers.
const (
	CodeBadRequest      = "BAD_REQUEST"
	CodeValidation      = "VALIDATION"
	CodeNotFound        = "NOT_FOUND"
	CodeMalformedRecord = "MALFORMED_RECORD"
	CodeUpstream        = "UPSTREAM"
	CodeUpstreamTimeout = "UPSTREAM_TIMEOUT"
	CodeCircuitOpen     = "CIRCUIT_OPEN"
	CodeInternal        = "INTERNAL"
	CodeUnauthorized    = "UNAUTHORIZED"
)

// AppError carries the status and code an error is rendered with. Err, when
// set, provides the message and is visible to errors.Is and errors.As.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
	Details    any
}

func (e *AppError) Error() string {
	switch {
	case e == nil:
		return ""
	case e.Err != nil:
		return e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// WithDetails sets the "details" member of the rendered error.
func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// BadRequest is a 400 for bodies that cannot be decoded.
func BadRequest(message string, err error) *AppError {
	return NewAppError(CodeBadRequest, message, http.StatusBadRequest, err)
}

// Validation is a 400 for well-formed input that breaks a field rule.
func Validation(message string, err error) *AppError {
	return NewAppError(CodeValidation, message, http.StatusBadRequest, err)
}

// NotFound is a 404.
func NotFound(message string, err error) *AppError {
	return NewAppError(CodeNotFound, message, http.StatusNotFound, err)
}

// AsAppError returns the first AppError in err's chain.
func AsAppError(err error) (*AppError, bool) {
	var target *AppError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}
