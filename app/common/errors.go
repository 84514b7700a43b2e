package common

import (
	"errors"
	"fmt"
	"net/http"
)

type UserVisibleError struct {
	HttpCode int
	Message  string
}

func (e *UserVisibleError) Error() string {
	return fmt.Sprintf("Error %d: %s", e.HttpCode, e.Message)
}

func NewUserVisibleError(httpCode int, message string) *UserVisibleError {
	return &UserVisibleError{
		HttpCode: httpCode,
		Message:  message,
	}
}

func WrapErrorForResponse(err error, message string) error {
	if e, ok := err.(*UserVisibleError); ok {
		return &UserVisibleError{
			HttpCode: e.HttpCode,
			Message:  fmt.Sprintf("%s: %s", message, e.Message),
		}
	}
	return err
}

// ContextEvaluationError is returned when a context expression references a
// metadata field that the dimension type does not have.
type ContextEvaluationError struct {
	DimensionType string
	Field         string
}

func (e *ContextEvaluationError) Error() string {
	return fmt.Sprintf("cannot evaluate context: unknown field %q for dimension type %q", e.Field, e.DimensionType)
}

// ContextNotFoundError means a hash did not resolve to stored context content.
// Usually a stale or mistyped link.
type ContextNotFoundError struct {
	Hash string
}

func (e *ContextNotFoundError) Error() string {
	return fmt.Sprintf("context %q not found", e.Hash)
}

// ConfigurationError reports a malformed filter, dimension or plot spec.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Message
}

func NewConfigurationError(format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Message: fmt.Sprintf(format, args...)}
}

// ResolutionFailure wraps the failure of one sub-request of a plot resolution.
// The whole resolution fails with it.
type ResolutionFailure struct {
	Request string
	Err     error
}

func (e *ResolutionFailure) Error() string {
	return fmt.Sprintf("failed to resolve %s: %v", e.Request, e.Err)
}

func (e *ResolutionFailure) Unwrap() error {
	return e.Err
}

// HTTPStatus maps the error taxonomy onto a status code. Errors outside the
// taxonomy are internal errors.
func HTTPStatus(err error) int {
	var uve *UserVisibleError
	var cee *ContextEvaluationError
	var cnf *ContextNotFoundError
	var ce *ConfigurationError
	var rf *ResolutionFailure

	switch {
	case errors.As(err, &uve):
		return uve.HttpCode
	case errors.As(err, &cee):
		return http.StatusUnprocessableEntity
	case errors.As(err, &cnf):
		return http.StatusNotFound
	case errors.As(err, &ce):
		return http.StatusBadRequest
	case errors.As(err, &rf):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
