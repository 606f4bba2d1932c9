package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jonathan/painting-generator/internal/orchestrator"
)

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// ErrNotFound indicates the resource does not exist or belongs to another user
type ErrNotFound struct {
	Resource string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found", e.Resource)
}

// ErrConflict indicates the request collides with existing state
type ErrConflict struct {
	Message string
}

func (e *ErrConflict) Error() string {
	return e.Message
}

// ErrInvalidCredentials indicates invalid login credentials
type ErrInvalidCredentials struct{}

func (e *ErrInvalidCredentials) Error() string {
	return "invalid username or password"
}

// ErrUnauthorized indicates a missing or invalid identity
type ErrUnauthorized struct{}

func (e *ErrUnauthorized) Error() string {
	return "Unauthorized"
}

// ErrForbidden indicates an authenticated user acting on someone else's data
type ErrForbidden struct {
	Message string
}

func (e *ErrForbidden) Error() string {
	if e.Message == "" {
		return "Forbidden"
	}
	return e.Message
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var (
		validation *ErrValidation
		notFound   *ErrNotFound
		conflict   *ErrConflict
		creds      *ErrInvalidCredentials
		unauth     *ErrUnauthorized
		forbidden  *ErrForbidden
	)
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &validation), errors.Is(err, orchestrator.ErrInvalidQuantity):
		return http.StatusBadRequest
	case errors.As(err, &creds), errors.As(err, &unauth):
		return http.StatusUnauthorized
	case errors.As(err, &forbidden):
		return http.StatusForbidden
	case errors.As(err, &notFound), errors.Is(err, orchestrator.ErrTitleNotFound):
		return http.StatusNotFound
	case errors.As(err, &conflict), errors.Is(err, orchestrator.ErrJobActive):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
