package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()

	err := WriteJSON(w, http.StatusOK, map[string]string{"message": "success"})

	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "success")
}

func TestErrorWriters(t *testing.T) {
	tests := []struct {
		name    string
		write   func(w http.ResponseWriter)
		status  int
		message string
	}{
		{"bad request", func(w http.ResponseWriter) { WriteBadRequest(w, "Invalid role") }, http.StatusBadRequest, "Invalid role"},
		{"unauthorized", func(w http.ResponseWriter) { WriteUnauthorized(w, "Unauthorized") }, http.StatusUnauthorized, "Unauthorized"},
		{"forbidden", func(w http.ResponseWriter) { WriteForbidden(w, "Forbidden") }, http.StatusForbidden, "Forbidden"},
		{"not found", func(w http.ResponseWriter) { WriteNotFound(w, "Member not found") }, http.StatusNotFound, "Member not found"},
		{"conflict", func(w http.ResponseWriter) { WriteConflict(w, "Organization must keep at least one owner") }, http.StatusConflict, "Organization must keep at least one owner"},
		{"internal", WriteInternalError, http.StatusInternalServerError, "Internal server error"},
		{"custom", func(w http.ResponseWriter) { WriteErrorMessage(w, http.StatusTooManyRequests, "Rate limit exceeded") }, http.StatusTooManyRequests, "Rate limit exceeded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.write(w)

			assert.Equal(t, tt.status, w.Code)
			var body ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.message, body.Error)
			assert.Empty(t, body.Details)
		})
	}
}

func TestWriteValidationErrors(t *testing.T) {
	w := httptest.NewRecorder()
	WriteValidationErrors(w, "Invalid input data", []FieldError{{Field: "slug", Message: "Slug may only contain lowercase letters, numbers, and dashes"}})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Invalid input data", body.Error)
	require.Len(t, body.Details, 1)
	assert.Equal(t, "slug", body.Details[0].Field)
}

func TestWriteSuccess(t *testing.T) {
	w := httptest.NewRecorder()
	require.NoError(t, WriteSuccess(w, map[string]interface{}{"members": []string{}}))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"members": []}`, w.Body.String())
}
