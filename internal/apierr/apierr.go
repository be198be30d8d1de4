// Package apierr defines the error taxonomy shared by the HTTP and gRPC
// APIs (§7 of the spec): Validation, NotFound, Conflict, Internal. Handlers
// map a Kind to a transport-specific status; nothing below this package
// layer should construct an http.Status or a grpc codes.Code directly.
package apierr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the purposes of transport mapping.
type Kind string

const (
	// Validation covers malformed ids, unsupported content types, and
	// malformed request bodies.
	Validation Kind = "validation"
	// NotFound covers a missing trace or span.
	NotFound Kind = "not_found"
	// Conflict covers a duplicate span insert. The ingestor absorbs this
	// internally (§4.3) — it should never reach an API boundary, but the
	// kind exists so the store can report it distinctly from Internal.
	Conflict Kind = "conflict"
	// Internal covers store I/O errors, serialization failures, and
	// anything else that is not the caller's fault.
	Internal Kind = "internal"
)

// Error is a typed error carrying a Kind and a caller-facing message. The
// message must never leak internal details for Kind == Internal; wrap the
// underlying cause instead and let the caller log it separately.
//
// Code is a stable, machine-readable identifier (e.g. "invalidTraceId")
// matching the original's `#[serde(rename_all = "camelCase")]` error enums.
// API layers prefer Code over Message in the response body when it's set,
// since Message is meant for logs and may change wording over time.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// New constructs an *Error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an *Error carrying cause for logging, while keeping
// message as the only caller-facing text.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// Coded constructs an *Error with a stable Code for the response body,
// alongside a human-readable message for logs. cause may be nil.
func Coded(kind Kind, code, message string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, cause: cause}
}

// Internalf wraps cause as an Internal error with a generic caller-facing
// message, so store/driver details never reach the API response body.
func Internalf(cause error, format string, args ...any) *Error {
	return &Error{Kind: Internal, Message: "internal error", cause: fmt.Errorf(format+": %w", append(args, cause)...)}
}

// KindOf extracts the Kind from err, defaulting to Internal if err is not
// (or does not wrap) an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Is reports whether err is (or wraps) an *Error of the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// CodeOrMessage returns err's stable Code if it has one, falling back to
// its Message. Use this at API boundaries that serialize the error body;
// Message alone is not a stable contract for callers to match against.
func CodeOrMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Code != "" {
			return e.Code
		}
		return e.Message
	}
	return err.Error()
}
