// Package errs defines the error kinds used across audiencelens components,
// following the sentinel-plus-wrapped-kind idiom the rest of the module uses
// for fmt.Errorf("...: %w", ...) chains.
package errs

import "errors"

// Kind identifies one of the error categories named in the retrieval error
// handling design. Handling policy (HTTP status, logging, retry) is decided
// at the edge by inspecting Kind, never by string-matching messages.
type Kind string

const (
	KindInvalidQuery        Kind = "invalid_query"
	KindInvalidSessionState Kind = "invalid_session_state"
	KindNotFound            Kind = "not_found"
	KindTimeout             Kind = "timeout"
	KindServiceUnavailable  Kind = "service_unavailable"
	KindDegradedResult      Kind = "degraded_result"
	KindCatalogLoadError    Kind = "catalog_load_error"
	KindUpstreamFailure     Kind = "upstream_failure"
)

// Error is a typed error carrying a Kind alongside the usual message/wrapped
// cause. Callers compare kinds with Is(err, Kind) or KindOf; errors.Is
// against one of the sentinels below matches only that sentinel value
// itself, not other errors of the same Kind.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// New creates an *Error of the given kind with a message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an *Error of the given kind, wrapping cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Is reports whether err is an *Error of the given kind, unwrapping chains.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the Kind from err, or "" if err is not a typed *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

var (
	ErrInvalidQuery        = New(KindInvalidQuery, "invalid query")
	ErrInvalidSessionState = New(KindInvalidSessionState, "invalid session state")
	ErrNotFound            = New(KindNotFound, "not found")
	ErrTimeout             = New(KindTimeout, "operation timed out")
	ErrServiceUnavailable  = New(KindServiceUnavailable, "service unavailable")
	ErrCatalogLoadError    = New(KindCatalogLoadError, "catalog load failed")
)
