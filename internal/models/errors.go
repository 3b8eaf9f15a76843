package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies pipeline failures so callers can decide whether to
// retry, park, or surface them
type ErrorKind string

const (
	ErrTransport       ErrorKind = "transport"         // DNS, TLS, connection reset, timeout
	ErrHTTPClient      ErrorKind = "http_client_error" // 4xx other than 429
	ErrHTTPServer      ErrorKind = "http_server_error" // 5xx
	ErrRateLimited     ErrorKind = "rate_limited"      // 429
	ErrRobotsDenied    ErrorKind = "robots_denied"
	ErrRenderTimeout   ErrorKind = "render_timeout"
	ErrParse           ErrorKind = "parse_error"
	ErrSchemaViolation ErrorKind = "schema_violation"
	ErrDuplicate       ErrorKind = "duplicate"
	ErrNotFound        ErrorKind = "not_found"
	ErrInvalidArgument ErrorKind = "invalid_argument"
	ErrConflict        ErrorKind = "conflict"
	ErrCancelled       ErrorKind = "cancelled"
	ErrInternal        ErrorKind = "internal"
)

// PipelineError attaches a kind and optional HTTP status to an underlying
// error
type PipelineError struct {
	Kind   ErrorKind
	Status int // HTTP status when the failure came from a response
	Err    error
}

func (e *PipelineError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	if e.Status > 0 {
		return fmt.Sprintf("%s (status %d): %v", e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// NewError wraps err with a kind
func NewError(kind ErrorKind, err error) *PipelineError {
	return &PipelineError{Kind: kind, Err: err}
}

// Errorf builds a classified error from a format string
func Errorf(kind ErrorKind, format string, args ...interface{}) *PipelineError {
	return &PipelineError{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// HTTPError classifies a response status code
func HTTPError(status int, err error) *PipelineError {
	kind := ErrInternal
	switch {
	case status == 429:
		kind = ErrRateLimited
	case status == 404 || status == 410:
		kind = ErrNotFound
	case status >= 400 && status < 500:
		kind = ErrHTTPClient
	case status >= 500:
		kind = ErrHTTPServer
	}
	return &PipelineError{Kind: kind, Status: status, Err: err}
}

// KindOf returns the classification of err, or ErrInternal for untyped
// errors
func KindOf(err error) ErrorKind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ErrInternal
}

// StatusOf returns the HTTP status carried by err, or 0
func StatusOf(err error) int {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Status
	}
	return 0
}

// IsRetryable reports whether a fetch failure is worth retrying.
// Transport faults, 5xx, 429, and render timeouts are transient; 4xx and
// robots denials are not.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case ErrTransport, ErrHTTPServer, ErrRateLimited, ErrRenderTimeout:
		return true
	}
	return false
}

// IsNotFound reports whether err represents a missing record or a 404
// response
func IsNotFound(err error) bool {
	return KindOf(err) == ErrNotFound
}
