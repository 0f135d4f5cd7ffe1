package errors

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantStatus int
		wantLevel  string
		wantLog    string
	}{
		{
			name: "success",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			},
			wantStatus: http.StatusNoContent,
			wantLevel:  `"level":"INFO"`,
			wantLog:    `"status":204`,
		},
		{
			name: "client error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnprocessableEntity)
			},
			wantStatus: http.StatusUnprocessableEntity,
			wantLevel:  `"level":"WARN"`,
			wantLog:    `"status":422`,
		},
		{
			name: "panic is recovered",
			handler: func(w http.ResponseWriter, r *http.Request) {
				panic("index out of range")
			},
			wantStatus: http.StatusInternalServerError,
			wantLevel:  `"level":"ERROR"`,
			wantLog:    "panic recovered",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, logs := newTestLogger()
			mw := NewErrorMiddleware(NewErrorHandler(logger, false), logger)
			rec := httptest.NewRecorder()

			mw.Handler(tt.handler).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/tabulate", nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, logs.String(), tt.wantLog)
			if tt.wantLevel != "" {
				assert.Contains(t, logs.String(), tt.wantLevel)
				assert.Contains(t, logs.String(), `"path":"/api/v1/tabulate"`)
			}
		})
	}
}
