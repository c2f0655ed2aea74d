package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/phrazzld/taskflow-api/internal/api/shared"
	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/ratelimit"
	"github.com/phrazzld/taskflow-api/internal/service"
	"github.com/phrazzld/taskflow-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapErrorToStatusCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"task not found", service.ErrTaskNotFound, http.StatusNotFound, "Task not found"},
		{"store not found", store.ErrTaskNotFound, http.StatusNotFound, "Task not found"},
		{"duplicate", store.ErrDuplicate, http.StatusConflict, "Task already exists"},
		{"empty title", domain.ErrEmptyTitle, http.StatusBadRequest, "Title cannot be empty"},
		{"invalid status", fmt.Errorf("decode: %w", domain.ErrInvalidTaskStatus), http.StatusBadRequest, "Invalid task status"},
		{"invalid priority", domain.ErrInvalidTaskPriority, http.StatusBadRequest, "Invalid task priority"},
		{"generic validation", domain.ErrValidation, http.StatusBadRequest, "Validation error"},
		{"invalid entity", store.ErrInvalidEntity, http.StatusBadRequest, "Validation error"},
		{"rate limited", &ratelimit.LimitError{RetryAfter: 3}, http.StatusTooManyRequests, "Too many requests"},
		{"dependency down", domain.ErrDependencyUnavailable, http.StatusServiceUnavailable, "Service temporarily unavailable"},
		{
			"wrapped service error",
			&service.TaskServiceError{Operation: "stats", Message: "failed", Err: errors.New("password=hunter22")},
			http.StatusInternalServerError,
			"An unexpected error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.status, MapErrorToStatusCode(tt.err))
			assert.Equal(t, tt.message, GetSafeErrorMessage(tt.err))
		})
	}

	assert.Equal(t, "An unexpected error occurred", GetSafeErrorMessage(nil))
}

func TestSanitizeValidationError(t *testing.T) {
	t.Parallel()

	err := shared.Validate.Struct(CreateTaskRequest{Title: "t"})
	require.Error(t, err)
	assert.Equal(t, "Invalid userID: required field", SanitizeValidationError(err))
	assert.Equal(t, "Invalid userID: required field", GetSafeErrorMessage(fmt.Errorf("%w: %w", domain.ErrValidation, err)))

	assert.Equal(t, "Validation error", SanitizeValidationError(errors.New("plain")))
}

func TestHandleAPIError(t *testing.T) {
	t.Parallel()

	t.Run("uses the default message for server errors", func(t *testing.T) {
		w := httptest.NewRecorder()
		HandleAPIError(w, httptest.NewRequest(http.MethodGet, "/tasks", nil), errors.New("boom"), "Failed to list tasks")

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		var body shared.ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "Failed to list tasks", body.Error)
	})

	t.Run("keeps the specific message for client errors", func(t *testing.T) {
		w := httptest.NewRecorder()
		HandleAPIError(w, httptest.NewRequest(http.MethodGet, "/tasks/x", nil), service.ErrTaskNotFound, "Failed")

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.JSONEq(t, `{"error":"Task not found"}`, w.Body.String())
	})
}
