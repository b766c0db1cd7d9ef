package render

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	tests := []struct {
		name       string
		render     func(w http.ResponseWriter)
		wantStatus int
		wantBody   string
	}{
		{
			name:       "callback state",
			render:     func(w http.ResponseWriter) { JSON(w, map[string]any{"state": "authenticated", "attempt": 1}) },
			wantStatus: http.StatusOK,
			wantBody:   `{"state":"authenticated","attempt":1}`,
		},
		{
			name:       "repeated callback",
			render:     func(w http.ResponseWriter) { ServiceError(w, "Callback already handled", http.StatusGone) },
			wantStatus: http.StatusGone,
			wantBody:   `{"error":"service_error","message":"Callback already handled"}`,
		},
		{
			name:       "message omitted when empty",
			render:     func(w http.ResponseWriter) { ServiceError(w, "", http.StatusBadRequest) },
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"error":"service_error"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()

			tt.render(rec)

			require.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
			assert.JSONEq(t, tt.wantBody, rec.Body.String())
		})
	}
}

func TestRender_UnencodableData(t *testing.T) {
	rec := httptest.NewRecorder()

	JSON(rec, map[string]any{"done": make(chan struct{})})

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotEqual(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
}
