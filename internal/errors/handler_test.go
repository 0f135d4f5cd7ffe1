package errors

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func TestNewErrorHandler(t *testing.T) {
	tests := []struct {
		name         string
		includeStack bool
	}{
		{name: "with stack traces", includeStack: true},
		{name: "without stack traces", includeStack: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, _ := newTestLogger()
			handler := NewErrorHandler(logger, tt.includeStack)

			assert.NotNil(t, handler)
			assert.Equal(t, tt.includeStack, handler.includeStack)
			assert.NotNil(t, handler.logger)
		})
	}

	assert.NotNil(t, NewErrorHandler(nil, false).logger)
}

func TestErrorHandler_HandleError(t *testing.T) {
	var mixed Issues
	mixed.Add(`recode "Senior"`, ErrTypeParse, "unexpected end of formula")
	mixed.Add(`tab "t1"`, ErrTypeValidation, "unknown row variable %q", "Agee")

	var parseOnly Issues
	parseOnly.Add(`filter "Men"`, ErrTypeParse, "unbalanced bracket")

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
		wantTitle  string
		check      func(*testing.T, map[string]interface{})
	}{
		{
			name:       "nil error",
			err:        nil,
			wantStatus: http.StatusOK,
		},
		{
			name:       "context deadline exceeded",
			err:        context.DeadlineExceeded,
			wantStatus: http.StatusGatewayTimeout,
			wantType:   TypeTimeout,
			wantTitle:  "Request Timeout",
		},
		{
			name:       "wrapped cancellation",
			err:        fmt.Errorf("run: %w", context.Canceled),
			wantStatus: http.StatusGatewayTimeout,
			wantType:   TypeTimeout,
		},
		{
			name:       "invalid request",
			err:        ErrInvalidRequest,
			wantStatus: http.StatusBadRequest,
			wantType:   TypeValidation,
			wantTitle:  "Bad Request",
			check: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "INVALID_REQUEST", body["error_code"])
			},
		},
		{
			name:       "validation errors carry details",
			err:        NewValidationErrors([]ValidationError{{Field: "data.columns", Message: "data.columns is required"}}),
			wantStatus: http.StatusBadRequest,
			wantType:   TypeValidation,
			check: func(t *testing.T, body map[string]interface{}) {
				details := body["details"].(map[string]interface{})
				errs := details["errors"].([]interface{})
				require.Len(t, errs, 1)
				assert.Equal(t, "data.columns", errs[0].(map[string]interface{})["field"])
			},
		},
		{
			name:       "rate limit",
			err:        ErrRateLimitExceeded,
			wantStatus: http.StatusTooManyRequests,
			wantType:   TypeRateLimit,
		},
		{
			name:       "payload too large",
			err:        ErrPayloadTooLarge,
			wantStatus: http.StatusRequestEntityTooLarge,
			wantType:   TypePayloadTooLarge,
		},
		{
			name:       "not found api error",
			err:        ErrNotFound,
			wantStatus: http.StatusNotFound,
			wantType:   TypeNotFound,
		},
		{
			name:       "issues",
			err:        mixed,
			wantStatus: http.StatusUnprocessableEntity,
			wantType:   TypePipelineRejected,
			wantTitle:  "Project Rejected",
			check: func(t *testing.T, body map[string]interface{}) {
				issues := body["issues"].([]interface{})
				require.Len(t, issues, 2)
				first := issues[0].(map[string]interface{})
				assert.Equal(t, `recode "Senior"`, first["entity"])
				assert.Equal(t, "PARSE", first["kind"])
			},
		},
		{
			name:       "parse issues only",
			err:        parseOnly,
			wantStatus: http.StatusUnprocessableEntity,
			wantType:   TypeFormulaParse,
		},
		{
			name:       "app parse error",
			err:        NewParseError("duplicate column \"Age\"", nil),
			wantStatus: http.StatusBadRequest,
			wantType:   TypeValidation,
			wantTitle:  "Invalid Project",
		},
		{
			name:       "app not found",
			err:        NewNotFoundError("plan \"main\""),
			wantStatus: http.StatusNotFound,
			wantType:   TypeNotFound,
		},
		{
			name:       "wrapped computation error",
			err:        fmt.Errorf("tab t1: %w", NewAppError(ErrTypeComputation, "weights sum to zero", nil)),
			wantStatus: http.StatusUnprocessableEntity,
			wantType:   TypeComputation,
		},
		{
			name:       "storage error stays internal",
			err:        NewStorageError("write workbook", fmt.Errorf("disk full")),
			wantStatus: http.StatusInternalServerError,
			wantType:   TypeInternal,
			check: func(t *testing.T, body map[string]interface{}) {
				assert.NotContains(t, body["detail"], "disk full")
			},
		},
		{
			name:       "unknown error",
			err:        fmt.Errorf("boom"),
			wantStatus: http.StatusInternalServerError,
			wantType:   TypeInternal,
			wantTitle:  "Internal Server Error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, logs := newTestLogger()
			handler := NewErrorHandler(logger, false)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/tabulate", nil)
			req = req.WithContext(context.WithValue(req.Context(), middleware.RequestIDKey, "req-42"))
			rec := httptest.NewRecorder()

			handler.HandleError(rec, req, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.err == nil {
				assert.Empty(t, rec.Body.String())
				assert.Empty(t, logs.String())
				return
			}

			body := decodeProblem(t, rec)
			assert.Equal(t, tt.wantType, body["type"])
			assert.Equal(t, float64(tt.wantStatus), body["status"])
			assert.Equal(t, "/api/v1/tabulate", body["instance"])
			assert.Equal(t, "req-42", body["trace_id"])
			assert.NotContains(t, body, "stack")
			if tt.wantTitle != "" {
				assert.Equal(t, tt.wantTitle, body["title"])
			}
			if tt.check != nil {
				tt.check(t, body)
			}
			assert.Contains(t, logs.String(), "request failed")
		})
	}
}

func TestErrorHandler_IncludeStack(t *testing.T) {
	handler := NewErrorHandler(nil, true)
	rec := httptest.NewRecorder()
	handler.HandleError(rec, httptest.NewRequest(http.MethodGet, "/", nil), fmt.Errorf("boom"))

	body := decodeProblem(t, rec)
	assert.Contains(t, body["stack"], "goroutine")
}

func TestErrorHandler_HandlePanic(t *testing.T) {
	tests := []struct {
		name         string
		includeStack bool
	}{
		{name: "hides panic value", includeStack: false},
		{name: "shows panic value", includeStack: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, logs := newTestLogger()
			handler := NewErrorHandler(logger, tt.includeStack)
			rec := httptest.NewRecorder()

			handler.HandlePanic(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil), "nil map")

			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			body := decodeProblem(t, rec)
			assert.Equal(t, TypeInternal, body["type"])
			if tt.includeStack {
				assert.Equal(t, "nil map", body["panic"])
			} else {
				assert.NotContains(t, body, "panic")
			}
			assert.Contains(t, logs.String(), "panic recovered")
		})
	}
}

func TestErrorHandler_NotFoundAndMethodNotAllowed(t *testing.T) {
	handler := NewErrorHandler(nil, false)

	rec := httptest.NewRecorder()
	handler.NotFound(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, TypeNotFound, decodeProblem(t, rec)["type"])

	rec = httptest.NewRecorder()
	handler.MethodNotAllowed(rec, httptest.NewRequest(http.MethodDelete, "/healthz", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	body := decodeProblem(t, rec)
	assert.Equal(t, TypeMethod, body["type"])
	assert.Contains(t, body["detail"], "DELETE")
}

func TestAPIError_ProblemType(t *testing.T) {
	tests := []struct {
		err  *APIError
		want string
	}{
		{ErrInvalidRequest, TypeValidation},
		{New(http.StatusBadRequest, CodeInvalidJSON, "bad"), TypeValidation},
		{ErrNotFound, TypeNotFound},
		{ErrRateLimitExceeded, TypeRateLimit},
		{New(http.StatusNotFound, CodeMetricsUnavailable, "off"), TypeNotFound},
		{ErrInternalServer, TypeInternal},
		{New(http.StatusTeapot, "SOMETHING_ELSE", "?"), TypeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.err.ErrorCode, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.ProblemType())
		})
	}

	t.Run("with details copies", func(t *testing.T) {
		err := ErrInvalidRequest.WithDetails("unexpected EOF")
		assert.Equal(t, "unexpected EOF", err.Details)
		assert.Nil(t, ErrInvalidRequest.Details)
	})
}
