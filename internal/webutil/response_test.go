// internal/webutil/response_test.go
package webutil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IlyaZolotarev/wordcard/internal/model"
)

func TestMapErrorToStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", model.ErrNotFound, http.StatusNotFound},
		{"invalid input", model.ErrInvalidInput, http.StatusBadRequest},
		{"conflict", model.ErrConflict, http.StatusConflict},
		{"forbidden", model.ErrForbidden, http.StatusForbidden},
		{"unknown error", errors.New("boom"), http.StatusInternalServerError},
		{
			"wrapped app error",
			model.NewAppError("DUPLICATE_EMAIL", "already registered", "email", model.ErrConflict),
			http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MapErrorToStatusCode(tt.err))
		})
	}
}

func TestHandleError(t *testing.T) {
	t.Run("app error carries its detail", func(t *testing.T) {
		rec := httptest.NewRecorder()
		err := model.NewAppError("NOT_ENOUGH_CARDS", "The category needs at least two cards for training.", "category_id", model.ErrInvalidInput)

		HandleError(rec, nil, err)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var resp model.APIErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "NOT_ENOUGH_CARDS", resp.Error.Code)
	})

	t.Run("unexpected errors are masked", func(t *testing.T) {
		rec := httptest.NewRecorder()

		HandleError(rec, nil, errors.New("pq: connection reset"))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)

		var resp model.APIErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "INTERNAL_SERVER_ERROR", resp.Error.Code)
		assert.NotContains(t, resp.Error.Message, "pq:")
	})
}
