package client

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a fetch failure. It is the only failure vocabulary
// crossing component boundaries; no layer above the fetch pipeline inspects
// raw transport status codes.
type ErrorKind string

const (
	// KindNetwork covers timeouts, connection failures, and DNS errors.
	// Plausibly transient; retried.
	KindNetwork ErrorKind = "network"

	// KindBadRequest covers malformed requests. Permanent; not retried.
	KindBadRequest ErrorKind = "bad_request"

	// KindAccessForbidden covers rejected credentials or insufficient
	// privileges. Permanent until human intervention; writes the global
	// suppression marker.
	KindAccessForbidden ErrorKind = "access_forbidden"

	// KindQuotaExceeded covers rate, thread, and volume limits. Transient,
	// bounded by an external reset; never retried locally.
	KindQuotaExceeded ErrorKind = "quota_exceeded"

	// KindServiceUnavailable covers server-side outages. Plausibly
	// transient; retried.
	KindServiceUnavailable ErrorKind = "service_unavailable"

	// KindNotFound means the resource is absent. Permanent for this input.
	KindNotFound ErrorKind = "not_found"

	// KindMalformed means the response body was empty, undecodable, or
	// structurally invalid. Permanent for this input.
	KindMalformed ErrorKind = "malformed"

	// KindUnknown is the unclassified fallback.
	KindUnknown ErrorKind = "unknown"
)

// Error is a classified fetch failure.
type Error struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("scrape %s error (status %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("scrape %s error: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("scrape %s error: %s", e.Kind, e.Message)
}

// Unwrap supports errors.Is/As chains.
func (e *Error) Unwrap() error {
	return e.Err
}

// newError builds a classified error without an underlying cause.
func newError(kind ErrorKind, status int, message string) *Error {
	return &Error{Kind: kind, StatusCode: status, Message: message}
}

// wrapError builds a classified error around an underlying cause.
func wrapError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the taxonomy kind from an error chain. Unclassified
// errors report KindUnknown; a nil error reports the empty kind.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given taxonomy kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// shouldRetry reports whether a failure kind is retried locally inside the
// fetch pipeline. Quota and forbidden failures are surfaced instead so the
// suppression markers and the orchestrator can act on them.
func shouldRetry(kind ErrorKind) bool {
	switch kind {
	case KindNetwork, KindServiceUnavailable:
		return true
	default:
		return false
	}
}
