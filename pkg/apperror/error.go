package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is an application error carrying the HTTP status and a stable code.
type Error struct {
	HTTPStatus int
	Code       string
	Message    string
	Internal   error
	Details    map[string]any
}

func (e *Error) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Internal)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Internal
}

// Body renders the error the way the HTTP handler writes it.
func (e *Error) Body() map[string]any {
	body := map[string]any{
		"code":    e.Code,
		"message": e.Message,
	}
	if len(e.Details) > 0 {
		body["details"] = e.Details
	}
	return map[string]any{"error": body}
}

// WithInternal returns a copy with the underlying cause attached.
func (e *Error) WithInternal(err error) *Error {
	cp := *e
	cp.Internal = err
	return &cp
}

// WithMessage returns a copy with a custom message.
func (e *Error) WithMessage(message string) *Error {
	cp := *e
	cp.Message = message
	return &cp
}

// WithDetails returns a copy with details attached.
func (e *Error) WithDetails(details map[string]any) *Error {
	cp := *e
	cp.Details = details
	return &cp
}

func New(status int, code, message string) *Error {
	return &Error{
		HTTPStatus: status,
		Code:       code,
		Message:    message,
	}
}

var (
	ErrUnauthorized = New(http.StatusUnauthorized, "unauthorized", "Authentication required")
	ErrMissingToken = New(http.StatusUnauthorized, "missing_token", "Missing authorization token")
	ErrInvalidToken = New(http.StatusUnauthorized, "invalid_token", "Invalid or expired token")

	ErrForbidden = New(http.StatusForbidden, "forbidden", "Access denied")

	ErrNotFound = New(http.StatusNotFound, "not_found", "Resource not found")
	ErrConflict = New(http.StatusConflict, "conflict", "Resource already exists")

	ErrBadRequest  = New(http.StatusBadRequest, "bad_request", "Invalid request")
	ErrRateLimited = New(http.StatusTooManyRequests, "rate_limited", "Too many requests")

	ErrUpstream     = New(http.StatusBadGateway, "upstream_error", "Upstream service failed")
	ErrInternal     = New(http.StatusInternalServerError, "internal_error", "An internal error occurred")
	ErrDatabase     = New(http.StatusInternalServerError, "database_error", "Database operation failed")
	ErrNotAvailable = New(http.StatusServiceUnavailable, "not_available", "Feature is not configured")
)

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// ToHTTPError converts any error to a status and response body.
func ToHTTPError(err error) (int, map[string]any) {
	if appErr, ok := As(err); ok {
		return appErr.HTTPStatus, appErr.Body()
	}
	return http.StatusInternalServerError, ErrInternal.Body()
}

func NewBadRequest(message string) *Error {
	return ErrBadRequest.WithMessage(message)
}

func NewNotFound(resourceType, id string) *Error {
	return ErrNotFound.WithMessage(fmt.Sprintf("%s '%s' not found", resourceType, id))
}

func NewConflict(message string) *Error {
	return ErrConflict.WithMessage(message)
}

func NewForbidden(message string) *Error {
	return ErrForbidden.WithMessage(message)
}

func NewInternal(message string, err error) *Error {
	return ErrInternal.WithMessage(message).WithInternal(err)
}

// NewUpstream wraps a failure of an external service (model provider,
// GitLab, Jira, automation runner) with its status and message.
func NewUpstream(service string, status int, message string, err error) *Error {
	return ErrUpstream.
		WithMessage(fmt.Sprintf("%s: %s", service, message)).
		WithDetails(map[string]any{"service": service, "status": status}).
		WithInternal(err)
}
