package common

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"validation", &ValidationError{Fields: map[string]string{"email": "required"}}, http.StatusBadRequest},
		{"conflict", ErrConflict, http.StatusConflict},
		{"wrapped conflict", fmt.Errorf("register: %w", ErrConflict), http.StatusConflict},
		{"credentials", ErrInvalidCredentials, http.StatusUnauthorized},
		{"token", ErrInvalidToken, http.StatusBadRequest},
		{"unauthenticated", ErrUnauthenticated, http.StatusUnauthorized},
		{"not found", ErrNotFound, http.StatusNotFound},
		{"internal", ErrInternal, http.StatusInternalServerError},
		{"unknown", errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestValidationError(t *testing.T) {
	err := &ValidationError{Fields: map[string]string{"password": "too short", "email": "required"}}

	assert.ErrorIs(t, err, ErrValidationFailed)
	assert.Equal(t, []string{"email: required", "password: too short"}, err.Messages())
	assert.True(t, IsDomain(err))
	assert.False(t, IsDomain(errors.New("boom")))
}
