package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/halal-finder/internal/apperror"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantKind    string
		wantMessage string
	}{
		{"validation", apperror.ValidationFailed("name", "name is required"), http.StatusBadRequest, "validation_error", "name is required"},
		{"not authenticated", apperror.NotAuthenticated("add a review"), http.StatusUnauthorized, "unauthorized", "you must be signed in to add a review"},
		{"invalid credentials", apperror.InvalidCredentials(), http.StatusUnauthorized, "unauthorized", "invalid email or password"},
		{"not found", apperror.NotFound("restaurant", "x"), http.StatusNotFound, "not_found", "restaurant not found with id x"},
		{"conflict", apperror.Conflict("user", "a@b.c"), http.StatusConflict, "conflict", "user conflict with id a@b.c"},
		{"in flight", apperror.InFlight("add restaurant"), http.StatusConflict, "in_flight", "add restaurant is already in progress"},
		{"timeout", apperror.Timeout("insert review"), http.StatusGatewayTimeout, "timeout", "insert review timed out"},
		{"wrapped app error", fmt.Errorf("creating: %w", apperror.NotFound("restaurant", "y")), http.StatusNotFound, "not_found", "restaurant not found with id y"},
		{"store error hides cause", apperror.StoreFailed("insert", errors.New("disk I/O error at /var/db")), http.StatusInternalServerError, "internal_error", "An internal error occurred"},
		{"plain error", errors.New("sql: connection reset"), http.StatusInternalServerError, "internal_error", "An internal error occurred"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			var body ErrorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, tt.wantKind, body.Error)
			assert.Equal(t, tt.wantMessage, body.Message)
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid", `{"name":"x"}`, false},
		{"empty", ``, true},
		{"malformed", `{"name":`, true},
		{"unknown field", `{"name":"x","extra":1}`, true},
		{"too large", `{"name":"` + strings.Repeat("a", maxBodyBytes) + `"}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var p payload
			err := decodeJSON(rec, req, &p)
			if tt.wantErr {
				assert.ErrorIs(t, err, apperror.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "x", p.Name)
		})
	}
}
