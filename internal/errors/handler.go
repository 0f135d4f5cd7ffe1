package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"runtime/debug"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

// Problem type URIs
const (
	TypeValidation      = "/errors/validation"
	TypeNotFound        = "/errors/not-found"
	TypeRateLimit       = "/errors/rate-limit"
	TypeInternal        = "/errors/internal"
	TypeTimeout         = "/errors/timeout"
	TypePayloadTooLarge = "/errors/payload-too-large"
	TypeMethod          = "/errors/method-not-allowed"

	TypeFormulaParse     = "/errors/formula/parse"
	TypePipelineRejected = "/errors/pipeline/rejected"
	TypeComputation      = "/errors/pipeline/computation"
)

// ErrorHandler turns errors into problem responses and logs them
type ErrorHandler struct {
	logger       *slog.Logger
	includeStack bool
}

// NewErrorHandler creates an error handler. With includeStack the responses
// carry the goroutine stack; use it in debug setups only.
func NewErrorHandler(logger *slog.Logger, includeStack bool) *ErrorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ErrorHandler{
		logger:       logger.With(slog.String("component", "error_handler")),
		includeStack: includeStack,
	}
}

// HandleError logs err and answers it as a problem document
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	problem := h.ErrorToProblem(err, r)

	attrs := []slog.Attr{
		slog.String("error", err.Error()),
		slog.Int("status", problem.Status),
		slog.String("request_id", problem.TraceID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		attrs = append(attrs, appErr.LogAttrs()...)
	}
	level := slog.LevelWarn
	if problem.Status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.LogAttrs(r.Context(), level, "request failed", attrs...)

	if h.includeStack {
		problem.Stack = getStackTrace()
	}
	_ = render.Render(w, r, problem)
}

// ErrorToProblem maps err onto a problem document for r. Issue lists become
// 422 with the issues attached; AppErrors map by type; anything unknown is a
// 500 that does not leak the message.
func (h *ErrorHandler) ErrorToProblem(err error, r *http.Request) *ProblemDetails {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewProblemDetails(http.StatusGatewayTimeout, TypeTimeout, "Request Timeout",
			"The request took too long to process and was cancelled").At(r)
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		problem := NewProblemDetails(apiErr.StatusCode, apiErr.ProblemType(),
			http.StatusText(apiErr.StatusCode), apiErr.Message).At(r)
		problem.ErrorCode = apiErr.ErrorCode
		problem.Details = apiErr.Details
		return problem
	}

	var issues Issues
	if errors.As(err, &issues) {
		problemType := TypePipelineRejected
		if len(issues.ByKind(ErrTypeParse)) == len(issues) {
			problemType = TypeFormulaParse
		}
		problem := NewProblemDetails(http.StatusUnprocessableEntity, problemType, "Project Rejected",
			fmt.Sprintf("project has %d issue(s)", len(issues))).At(r)
		problem.Issues = issues
		return problem
	}

	switch TypeOf(err) {
	case ErrTypeParse, ErrTypeValidation, ErrTypeConfig:
		return NewProblemDetails(http.StatusBadRequest, TypeValidation, "Invalid Project", err.Error()).At(r)
	case ErrTypeNotFound:
		return NewProblemDetails(http.StatusNotFound, TypeNotFound, "Resource Not Found", err.Error()).At(r)
	case ErrTypeComputation:
		return NewProblemDetails(http.StatusUnprocessableEntity, TypeComputation, "Computation Failed", err.Error()).At(r)
	}

	return NewProblemDetails(http.StatusInternalServerError, TypeInternal, "Internal Server Error",
		"An unexpected error occurred while processing your request").At(r)
}

// HandlePanic answers a recovered panic with a 500 problem
func (h *ErrorHandler) HandlePanic(w http.ResponseWriter, r *http.Request, recovered interface{}) {
	h.logger.ErrorContext(r.Context(), "panic recovered",
		slog.Any("panic", recovered),
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("stack", string(debug.Stack())),
	)

	problem := NewProblemDetails(http.StatusInternalServerError, TypeInternal,
		"Internal Server Error", "An unexpected error occurred").At(r)
	if h.includeStack {
		problem.Panic = fmt.Sprintf("%v", recovered)
		problem.Stack = getStackTrace()
	}
	_ = render.Render(w, r, problem)
}

// NotFound answers unknown routes
func (h *ErrorHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	_ = render.Render(w, r, NewProblemDetails(http.StatusNotFound, TypeNotFound,
		"Not Found", "The requested resource was not found").At(r))
}

// MethodNotAllowed answers known routes called with the wrong method
func (h *ErrorHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	_ = render.Render(w, r, NewProblemDetails(http.StatusMethodNotAllowed, TypeMethod,
		"Method Not Allowed", fmt.Sprintf("Method %s is not allowed for this endpoint", r.Method)).At(r))
}

func getStackTrace() string {
	buf := make([]byte, 8<<10)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}
