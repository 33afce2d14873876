package envelope

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"taskbot/internal/auth"
	"taskbot/internal/service"
	"taskbot/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"validation", &service.ValidationError{Field: "name", Message: "name is required"}, http.StatusBadRequest, "name is required"},
		{"nothing to update", service.ErrNothingToUpdate, http.StatusBadRequest, "nothing to update"},
		{"store invalid", fmt.Errorf("%w: name_required", store.ErrInvalid), http.StatusBadRequest, "invalid input"},
		{"no token", auth.ErrUnauthenticated, http.StatusUnauthorized, "token required"},
		{"bad password", auth.ErrInvalidPassword, http.StatusUnauthorized, "incorrect password"},
		{"bad token keeps reason private", fmt.Errorf("%w: token is expired", auth.ErrInvalidToken), http.StatusForbidden, "invalid token"},
		{"user gone", auth.ErrUserNotFound, http.StatusNotFound, "user not found"},
		{"task missing", &service.NotFoundError{Resource: "task"}, http.StatusNotFound, "task not found"},
		{"raw not found", store.ErrNotFound, http.StatusNotFound, "not found"},
		{"account exists", service.ErrAccountExists, http.StatusConflict, service.ErrAccountExists.Error()},
		{"raw conflict", store.ErrConflict, http.StatusConflict, "conflict"},
		{"transient", errors.New("dial tcp: connection refused"), http.StatusInternalServerError, "internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := FromError(tt.err)
			assert.Equal(t, tt.status, status)
			assert.False(t, env.Success)
			assert.Equal(t, tt.message, env.Message)
			assert.Nil(t, env.Data)
		})
	}
}

func TestEncode(t *testing.T) {
	b, err := Encode(List("Tasks retrieved", []int(nil)))
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"success\": true,\n  \"message\": \"Tasks retrieved\",\n  \"data\": [],\n  \"count\": 0\n}", string(b))

	b, err = Encode(Fail("token required"))
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"success\": false,\n  \"message\": \"token required\",\n  \"data\": null\n}", string(b))
}
