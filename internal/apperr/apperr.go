// Package apperr defines the client-facing error taxonomy of the relay.
package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies a failure reported to the caller.
type Kind int

const (
	ProcessingFailed Kind = iota
	MissingInput
	UnsupportedMediaType
	PayloadTooLarge
	InvalidImage
)

const (
	// RetryHint is attached to provider-side failures.
	RetryHint = "Please ensure you are uploading a valid JPEG, PNG, or WebP image file."
	// UnexpectedHint is attached to upload rejections raised while the form is read.
	UnexpectedHint = "An unexpected error occurred while processing your request."
)

func (k Kind) String() string {
	switch k {
	case MissingInput:
		return "missing_input"
	case UnsupportedMediaType:
		return "unsupported_media_type"
	case PayloadTooLarge:
		return "payload_too_large"
	case InvalidImage:
		return "invalid_image"
	default:
		return "processing_failed"
	}
}

// Status maps the kind to its HTTP status code.
func (k Kind) Status() int {
	if k == MissingInput {
		return http.StatusBadRequest
	}
	// upload rejections other than a missing file share the processing
	// failure status; clients tell them apart by message
	return http.StatusInternalServerError
}

// Error is a terminal, caller-visible failure. Message and Detail are safe to
// return to clients; Err holds the server-side cause.
type Error struct {
	Kind    Kind
	Message string
	Detail  string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Kind.String() + ": " + e.Message + ": " + e.Err.Error()
	}
	return e.Kind.String() + ": " + e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates an error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WithDetail returns a copy carrying a human readable detail.
func (e *Error) WithDetail(detail string) *Error {
	cp := *e
	cp.Detail = detail
	return &cp
}

// Wrap attaches a cause to a copy of e.
func (e *Error) Wrap(err error) *Error {
	cp := *e
	cp.Err = err
	return &cp
}

// Processing builds the uniform provider failure returned to callers.
func Processing(err error) *Error {
	return &Error{
		Kind:    ProcessingFailed,
		Message: "Image processing failed",
		Detail:  RetryHint,
		Err:     err,
	}
}

// From normalizes any error into the taxonomy. Unknown errors become
// ProcessingFailed.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Processing(err)
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Kind == kind
}
