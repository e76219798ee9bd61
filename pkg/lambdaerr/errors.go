// Package lambdaerr provides a uniform error taxonomy for the controller,
// with a default HTTP status per kind.
package lambdaerr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind categorizes a controller error for HTTP mapping and retry eligibility.
type Kind string

const (
	KindBadRequest  Kind = "bad-request"
	KindNotFound    Kind = "not-found"
	KindSession     Kind = "session"
	KindRuntime     Kind = "runtime"
	KindCompilation Kind = "compilation"
	KindStore       Kind = "store"
	KindCache       Kind = "cache"
	KindConfig      Kind = "config"
	KindInternal    Kind = "internal"
)

// HTTPStatus returns the default HTTP status code for the kind.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindBadRequest, KindSession:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindRuntime, KindCompilation, KindStore, KindCache, KindConfig, KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Error is the controller's single error type. It wraps an optional cause
// and always carries a Kind for HTTP mapping and retry classification.
type Error struct {
	Kind    Kind
	Message string
	Cause   error

	// Retryable marks a KindRuntime error as eligible for the resilience
	// layer's retry loop. Only transport/timeout failures and worker 5xx
	// responses set this; a worker-reported 4xx is KindRuntime but never
	// retryable.
	Retryable bool
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

func newErr(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

func BadRequest(msg string, cause error) *Error  { return newErr(KindBadRequest, msg, cause) }
func NotFound(msg string, cause error) *Error    { return newErr(KindNotFound, msg, cause) }
func Session(msg string, cause error) *Error     { return newErr(KindSession, msg, cause) }
func Compilation(msg string, cause error) *Error { return newErr(KindCompilation, msg, cause) }
func Store(msg string, cause error) *Error       { return newErr(KindStore, msg, cause) }
func Cache(msg string, cause error) *Error       { return newErr(KindCache, msg, cause) }
func Config(msg string, cause error) *Error      { return newErr(KindConfig, msg, cause) }
func Internal(msg string, cause error) *Error    { return newErr(KindInternal, msg, cause) }

// Runtime builds a non-retryable runtime error: a worker 4xx, a malformed
// response, or any other failure the caller has decided not to retry.
func Runtime(msg string, cause error) *Error {
	return newErr(KindRuntime, msg, cause)
}

// RuntimeTransport builds a retryable runtime error: a connection failure
// or timeout at the transport layer, or a worker 5xx, eligible for the
// resilience retry loop.
func RuntimeTransport(msg string, cause error) *Error {
	e := newErr(KindRuntime, msg, cause)
	e.Retryable = true
	return e
}

// KindOf extracts the Kind from err, defaulting to KindInternal if err is
// nil, not an *Error, or doesn't wrap one.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsRetryable reports whether the resilience layer should retry a call that
// failed with err. Only transport-level and timeout failures are eligible;
// a worker-reported bad-request is never retried (spec open question 1).
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == KindRuntime && e.Retryable
	}
	return false
}
