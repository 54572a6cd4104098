// Package common defines the error taxonomy shared by the token, user and
// router packages. Callers match with errors.Is.
package common

import (
	"errors"
	"net/http"
	"sort"
)

var (
	// Caller input.
	ErrValidationFailed = errors.New("validation failed")

	// Domain outcomes.
	ErrConflict           = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrNotFound           = errors.New("not found")
	ErrUnauthenticated    = errors.New("not authorized")

	// Anything not attributable to the caller.
	ErrInternal = errors.New("internal server error")
)

// ValidationError carries per-field messages for a rejected request.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return ErrValidationFailed.Error()
}

func (e *ValidationError) Unwrap() error { return ErrValidationFailed }

// Messages returns the field messages in a stable order.
func (e *ValidationError) Messages() []string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+": "+e.Fields[k])
	}
	return out
}

// HTTPStatus maps an error from the core to the status code the routing
// layer answers with.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidationFailed):
		return http.StatusBadRequest
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, ErrInvalidToken):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// IsDomain reports whether err belongs to the caller-facing taxonomy, i.e.
// everything except internal faults.
func IsDomain(err error) bool {
	return HTTPStatus(err) != http.StatusInternalServerError
}
