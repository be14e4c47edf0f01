// Package apierr defines the error-kind taxonomy shared across every
// handler: domain code returns an *Error, and the HTTP layer maps it to a
// status code and structured JSON envelope in one place.
package apierr

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/rankforge/rankforge/internal/httpserver"
)

// Kind classifies an error by how the HTTP layer should respond to it.
type Kind string

const (
	KindBadRequest          Kind = "bad_request"
	KindUnauthenticated     Kind = "unauthenticated"
	KindForbidden           Kind = "forbidden"
	KindNotFound            Kind = "not_found"
	KindConflict            Kind = "conflict"
	KindQuotaExceeded       Kind = "quota_exceeded"
	KindRateLimited         Kind = "rate_limited"
	KindUpstreamUnavailable Kind = "upstream_unavailable"
	KindInternal            Kind = "internal"
)

var statusByKind = map[Kind]int{
	KindBadRequest:          http.StatusBadRequest,
	KindUnauthenticated:     http.StatusUnauthorized,
	KindForbidden:           http.StatusForbidden,
	KindNotFound:            http.StatusNotFound,
	KindConflict:            http.StatusConflict,
	KindQuotaExceeded:       http.StatusTooManyRequests,
	KindRateLimited:         http.StatusTooManyRequests,
	KindUpstreamUnavailable: http.StatusServiceUnavailable,
	KindInternal:            http.StatusInternalServerError,
}

// Error is the error type domain code returns when it wants to control the
// HTTP response. Errors that aren't *Error are treated as KindInternal.
type Error struct {
	Kind    Kind
	Message string
	Details any
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// New builds an *Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an *Error of the given kind, retaining cause for %w/errors.Is chains.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// WithDetails attaches structured detail data (e.g. field validation errors).
func (e *Error) WithDetails(details any) *Error {
	e.Details = details
	return e
}

func BadRequest(message string) *Error          { return New(KindBadRequest, message) }
func Unauthenticated(message string) *Error      { return New(KindUnauthenticated, message) }
func Forbidden(message string) *Error            { return New(KindForbidden, message) }
func NotFound(message string) *Error             { return New(KindNotFound, message) }
func Conflict(message string) *Error             { return New(KindConflict, message) }
func QuotaExceeded(message string) *Error        { return New(KindQuotaExceeded, message) }
func RateLimited(message string) *Error          { return New(KindRateLimited, message) }
func UpstreamUnavailable(message string) *Error  { return New(KindUpstreamUnavailable, message) }
func Internal(message string, cause error) *Error {
	return Wrap(KindInternal, message, cause)
}

// envelope is the standard error response body:
// {error:{code,message,details?},timestamp,requestId}.
type envelope struct {
	Error     envelopeError `json:"error"`
	Timestamp string        `json:"timestamp"`
	RequestID string        `json:"requestId"`
}

type envelopeError struct {
	Code    Kind   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Write renders err as the structured JSON error envelope and writes it with
// the status code its Kind maps to. Any error that isn't *Error is logged
// and rendered as an opaque internal error, so causes never leak to clients.
func Write(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		logger.Error("unhandled internal error", "error", err, "request_id", httpserver.RequestIDFromContext(r.Context()))
		apiErr = New(KindInternal, "an internal error occurred")
	} else if apiErr.Kind == KindInternal {
		logger.Error("internal error", "error", apiErr.Error(), "request_id", httpserver.RequestIDFromContext(r.Context()))
	}

	status, ok := statusByKind[apiErr.Kind]
	if !ok {
		status = http.StatusInternalServerError
	}

	resp := envelope{
		Error: envelopeError{
			Code:    apiErr.Kind,
			Message: apiErr.Message,
			Details: apiErr.Details,
		},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		RequestID: httpserver.RequestIDFromContext(r.Context()),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if encErr := json.NewEncoder(w).Encode(resp); encErr != nil {
		logger.Error("encoding error response", "error", encErr)
	}
}
