// Package errors provides error types, sentinels, and classification for
// transfer operations.
//
// Errors fall into two groups: contextual errors (Error, RequestError) that
// carry operation context for debugging, and sentinel errors checked with
// errors.Is. Classification helpers decide whether a failure is worth
// retrying.
package errors

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
)

// Stage identifies which phase of a transfer an error surfaced from.
type Stage string

// Transfer stages.
const (
	// StagePlanning covers chunk planning and source/destination capability
	// checks, before any network activity
	StagePlanning Stage = "planning"

	// StageInFlight covers chunk transfer and the commit step
	StageInFlight Stage = "in-flight"

	// StageValidating covers post-transfer digest verification
	StageValidating Stage = "validating"
)

// Error represents a transfer operation error with context about the
// operation and stage that failed.
type Error struct {
	// Op is the operation that failed (e.g. "upload", "download")
	Op string

	// Stage is the transfer stage the error surfaced from
	Stage Stage

	// ChunksCompleted is how many chunks succeeded before the failure,
	// for diagnostics
	ChunksCompleted int

	// Err is the underlying error
	Err error
}

// Error implements the error interface by providing a formatted error message.
func (e *Error) Error() string {
	if e.Stage != "" && e.ChunksCompleted > 0 {
		return fmt.Sprintf("transfer.%s %s (%d chunks completed): %v", e.Op, e.Stage, e.ChunksCompleted, e.Err)
	}
	if e.Stage != "" {
		return fmt.Sprintf("transfer.%s %s: %v", e.Op, e.Stage, e.Err)
	}
	return fmt.Sprintf("transfer.%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error chaining support.
func (e *Error) Unwrap() error {
	return e.Err
}

// WithStage adds stage context to an existing error.
func (e *Error) WithStage(stage Stage) *Error {
	e.Stage = stage
	return e
}

// WithChunksCompleted records how many chunks succeeded before the failure.
func (e *Error) WithChunksCompleted(n int) *Error {
	e.ChunksCompleted = n
	return e
}

// WithMessage wraps the underlying error with a custom message.
func (e *Error) WithMessage(message string) *Error {
	e.Err = fmt.Errorf("%s: %w", message, e.Err)
	return e
}

// NewError creates a new Error with the given operation and underlying error.
func NewError(op string, err error) *Error {
	return &Error{
		Op:  op,
		Err: err,
	}
}

// RequestError represents a single failed service request. Transports
// construct it from the response status so the engine can classify the
// failure without knowing the wire protocol.
type RequestError struct {
	// Op is the request that failed (e.g. "putChunk", "getRange")
	Op string

	// StatusCode is the HTTP-style status code, zero when the request
	// never produced a response
	StatusCode int

	// Err is the matching sentinel or underlying error
	Err error
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transfer.%s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("transfer.%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error chaining support.
func (e *RequestError) Unwrap() error {
	return e.Err
}

// NewRequestError creates a RequestError from a response status code,
// attaching the sentinel that matches the status class.
func NewRequestError(op string, statusCode int) *RequestError {
	return &RequestError{
		Op:         op,
		StatusCode: statusCode,
		Err:        sentinelForStatus(statusCode),
	}
}

func sentinelForStatus(code int) error {
	switch {
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return ErrAuth
	case code == http.StatusTooManyRequests:
		return ErrThrottled
	case code == http.StatusRequestTimeout:
		return ErrTransient
	case code >= 500:
		return ErrTransient
	default:
		return ErrInvalidInput
	}
}

// Sentinel errors for transfer failures.
// These can be used with errors.Is() for error checking.
var (
	// ErrInvalidSize indicates a negative or unknown payload size where
	// chunking is mandatory
	ErrInvalidSize = errors.New("transfer: invalid payload size")

	// ErrNotSeekable indicates a source that cannot be repositioned but
	// must be, because the payload exceeds the single-shot threshold
	ErrNotSeekable = errors.New("transfer: source is not seekable")

	// ErrInvalidInput indicates that the provided input is invalid
	ErrInvalidInput = errors.New("transfer: invalid input")

	// ErrTransient marks a failure worth retrying. Transports can wrap
	// custom errors with it to opt them into retries.
	ErrTransient = errors.New("transfer: transient transport failure")

	// ErrThrottled indicates the service asked the client to back off
	ErrThrottled = errors.New("transfer: request throttled")

	// ErrAuth indicates an authorization or signing failure
	ErrAuth = errors.New("transfer: authorization failed")

	// ErrNotFound indicates the remote object does not exist
	ErrNotFound = errors.New("transfer: object not found")

	// ErrIntegrity indicates a post-transfer content digest mismatch
	ErrIntegrity = errors.New("transfer: content digest mismatch")

	// ErrIncompleteRange indicates the digest accumulator was finalized
	// with missing chunks; it signals a bug, not a service failure
	ErrIncompleteRange = errors.New("transfer: incomplete chunk range")

	// ErrCancelled indicates the operation observed cooperative cancellation
	ErrCancelled = errors.New("transfer: operation cancelled")
)

// IsCancelled reports whether an error stems from cancellation, either the
// engine's own sentinel or a context error.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// IsThrottled reports whether the service signalled throttling.
func IsThrottled(err error) bool {
	return errors.Is(err, ErrThrottled)
}

// IsTransient reports whether an error is worth retrying. Cancellation is
// never transient. Server-side failures (5xx), throttling, request timeouts,
// network timeouts, and truncated bodies are; everything else is fatal.
func IsTransient(err error) bool {
	if err == nil || IsCancelled(err) {
		return false
	}
	if errors.Is(err, ErrTransient) || errors.Is(err, ErrThrottled) {
		return true
	}
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		code := reqErr.StatusCode
		if code >= 500 || code == http.StatusTooManyRequests || code == http.StatusRequestTimeout {
			return true
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF)
}

// IsIntegrity reports whether an error is a content digest mismatch.
func IsIntegrity(err error) bool {
	return errors.Is(err, ErrIntegrity)
}
