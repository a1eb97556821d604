package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes shared across services and handlers.
const (
	CodeValidation            = "validation_error"
	CodeInvalidCredentials    = "invalid_credentials"
	CodeInvalidToken          = "invalid_token"
	CodeExpiredToken          = "expired_token"
	CodeUnauthorized          = "unauthorized"
	CodeNotFound              = "not_found"
	CodeUpstreamConfigMissing = "upstream_config_missing"
	CodeRemoteCallFailed      = "remote_call_failed"
	CodePersistenceFailed     = "persistence_failed"
	CodeInternal              = "internal_error"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func Validation(msg string) *Error {
	return New(http.StatusBadRequest, CodeValidation, errors.New(msg))
}

func Unauthorized(code, msg string) *Error {
	return New(http.StatusUnauthorized, code, errors.New(msg))
}

func NotFound(msg string) *Error {
	return New(http.StatusNotFound, CodeNotFound, errors.New(msg))
}

func Internal(code string, err error) *Error {
	return New(http.StatusInternalServerError, code, err)
}

// From unwraps err into an *Error, or wraps it as a generic 500.
func From(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return Internal(CodeInternal, err)
}

// Is reports whether err carries the given code.
func Is(err error, code string) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Code == code
}
