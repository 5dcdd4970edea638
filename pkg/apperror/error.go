package apperror

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
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

// Is matches on code so that errors.Is(err, ErrGraphNotFound) holds for copies.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// ToEchoError converts the error into an echo.HTTPError with the standard body.
func (e *Error) ToEchoError() *echo.HTTPError {
	return echo.NewHTTPError(e.HTTPStatus, map[string]any{"error": e.body()})
}

func (e *Error) body() map[string]any {
	b := map[string]any{
		"code":    e.Code,
		"message": e.Message,
	}
	if len(e.Details) > 0 {
		b["details"] = e.Details
	}
	return b
}

// WithInternal returns a copy with the cause attached.
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
	// Resource errors
	ErrNotFound      = New(http.StatusNotFound, "not_found", "Resource not found")
	ErrNodeNotFound  = New(http.StatusNotFound, "node_not_found", "Node not found")
	ErrEdgeNotFound  = New(http.StatusNotFound, "edge_not_found", "Edge not found")
	ErrGraphNotFound = New(http.StatusNotFound, "graph_not_found", "Graph not found")
	ErrConflict      = New(http.StatusConflict, "conflict", "Resource already exists")
	ErrGraphExists   = New(http.StatusConflict, "graph_exists", "Graph with this name already exists")

	// Validation errors
	ErrBadRequest       = New(http.StatusBadRequest, "bad_request", "Invalid request")
	ErrInvalidGraphName = New(http.StatusBadRequest, "invalid_graph_name", "Graph name must not be numeric")
	ErrValidation       = New(http.StatusUnprocessableEntity, "validation_error", "Validation failed")

	// Server errors
	ErrInternal = New(http.StatusInternalServerError, "internal_error", "An internal error occurred")
	ErrDatabase = New(http.StatusInternalServerError, "database_error", "Database operation failed")
)

// ToHTTPError maps any error to a status and response body.
func ToHTTPError(err error) (int, map[string]any) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.HTTPStatus, map[string]any{"error": appErr.body()}
	}
	return http.StatusInternalServerError, map[string]any{
		"error": ErrInternal.body(),
	}
}

func NewBadRequest(message string) *Error {
	return ErrBadRequest.WithMessage(message)
}

// NewNotFound creates a not found error for a resource type and ID
func NewNotFound(resourceType, id string) *Error {
	return ErrNotFound.WithMessage(fmt.Sprintf("%s '%s' not found", resourceType, id))
}

func NewInternal(message string, err error) *Error {
	return ErrInternal.WithMessage(message).WithInternal(err)
}

// Database wraps a storage failure.
func Database(err error) *Error {
	return ErrDatabase.WithInternal(err)
}
