package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrNotFound is returned when a crate, path, or item is not found.
var ErrNotFound = errors.New("not found")

// Kind classifies an error for transport mapping.
type Kind string

const (
	// KindNotFound indicates a key, path, or category could not be resolved.
	KindNotFound Kind = "not_found"
	// KindBadPath indicates an input path violates shape rules.
	KindBadPath Kind = "bad_path"
	// KindInvalidQuery indicates a malformed query (bad regex, empty query).
	KindInvalidQuery Kind = "invalid_query"
	// KindUpstream indicates a network failure, non-404 upstream status, or timeout.
	KindUpstream Kind = "upstream"
	// KindMalformedArchive indicates a gzip/tar decoding failure or unsafe entry path.
	KindMalformedArchive Kind = "malformed_archive"
	// KindOversize indicates the decompressed archive exceeds the configured cap.
	KindOversize Kind = "oversize"
	// KindCancelled indicates the caller cancelled before completion.
	KindCancelled Kind = "cancelled"
	// KindInternal indicates a bug or unexpected failure.
	KindInternal Kind = "internal"
)

// Error carries a Kind alongside the message and wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	if e.Kind == KindNotFound {
		return ErrNotFound
	}
	return e.Err
}

// statusClientClosedRequest is the nginx convention for a cancelled request.
const statusClientClosedRequest = 499

// HTTPStatus returns the status code the HTTP boundary maps this error to.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindBadPath, KindInvalidQuery:
		return http.StatusBadRequest
	case KindUpstream, KindMalformedArchive:
		return http.StatusBadGateway
	case KindOversize:
		return http.StatusRequestEntityTooLarge
	case KindCancelled:
		return statusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}

// NotFoundf builds a KindNotFound error.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// BadPath builds a KindBadPath error for the given input path.
func BadPath(path, reason string) *Error {
	return &Error{Kind: KindBadPath, Message: fmt.Sprintf("path %q: %s", path, reason)}
}

// InvalidQuery builds a KindInvalidQuery error.
func InvalidQuery(msg string, err error) *Error {
	return &Error{Kind: KindInvalidQuery, Message: msg, Err: err}
}

// Upstream builds a KindUpstream error.
func Upstream(msg string, err error) *Error {
	return &Error{Kind: KindUpstream, Message: msg, Err: err}
}

// MalformedArchive builds a KindMalformedArchive error.
func MalformedArchive(msg string, err error) *Error {
	return &Error{Kind: KindMalformedArchive, Message: msg, Err: err}
}

// Oversize builds a KindOversize error.
func Oversize(msg string) *Error {
	return &Error{Kind: KindOversize, Message: msg}
}

// Cancelled builds a KindCancelled error.
func Cancelled(err error) *Error {
	return &Error{Kind: KindCancelled, Message: "request cancelled", Err: err}
}

// Internal wraps an unexpected failure. The cause is kept for logs but never
// rendered to clients.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: "internal error", Err: err}
}

// KindOf extracts the Kind from an error chain. Context cancellation and
// deadline expiry are classified even when they were never wrapped: a timeout
// counts as an upstream failure, a caller cancel as Cancelled.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.Canceled) {
		return KindCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindUpstream
	}
	if errors.Is(err, ErrNotFound) {
		return KindNotFound
	}
	return KindInternal
}

// HTTPStatusOf maps any error to the status code of its Kind.
func HTTPStatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.HTTPStatus()
	}
	return (&Error{Kind: KindOf(err)}).HTTPStatus()
}
