// Package apperr defines the error kinds shared by the domain services and
// their transport mappings.
package apperr

import (
	"errors"
	"net/http"
	"sort"
	"strings"
)

var (
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrValidation         = errors.New("validation failed")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// FieldError is a validation failure with per-field reasons.
type FieldError struct {
	Fields map[string]string
}

func (e *FieldError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func (e *FieldError) Is(target error) bool { return target == ErrValidation }

// Validation returns a *FieldError, or nil when fields is empty.
func Validation(fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	return &FieldError{Fields: fields}
}

// Invalid is shorthand for a single-field validation error.
func Invalid(field, reason string) error {
	return &FieldError{Fields: map[string]string{field: reason}}
}

// Details extracts field reasons from err, if any.
func Details(err error) map[string]string {
	var fe *FieldError
	if errors.As(err, &fe) {
		return fe.Fields
	}
	return nil
}

// HTTPStatus maps err to a status code and a snake_case error code.
func HTTPStatus(err error) (int, string) {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, ErrConflict):
		return http.StatusBadRequest, "conflict"
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest, "validation_failed"
	case errors.Is(err, ErrInvalidCredentials):
		return http.StatusBadRequest, "invalid_credentials"
	}
	return http.StatusInternalServerError, "internal_error"
}

// IsInternal reports whether err is none of the known kinds.
func IsInternal(err error) bool {
	code, _ := HTTPStatus(err)
	return code == http.StatusInternalServerError
}
