package infrastructure

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

type contextKey string

const (
	// TraceIDContextKey carries the request or trace id
	TraceIDContextKey contextKey = "trace_id"
	// RunIDContextKey carries the pipeline run id
	RunIDContextKey contextKey = "run_id"
)

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDContextKey, traceID)
}

func GetTraceID(ctx context.Context) string {
	traceID, _ := ctx.Value(TraceIDContextKey).(string)
	return traceID
}

// EnsureTraceID returns ctx with a trace id, generating one if ctx has none.
// CLI runs get their ids this way; HTTP requests get theirs from the
// RequestID middleware.
func EnsureTraceID(ctx context.Context) context.Context {
	if GetTraceID(ctx) != "" {
		return ctx
	}
	return WithTraceID(ctx, uuid.New().String())
}

func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, RunIDContextKey, runID)
}

func GetRunID(ctx context.Context) string {
	runID, _ := ctx.Value(RunIDContextKey).(string)
	return runID
}

// NewRunID returns a fresh pipeline run id and a context carrying it
func NewRunID(ctx context.Context) (context.Context, string) {
	id := uuid.New().String()
	return WithRunID(ctx, id), id
}

// WithComponent returns logger tagged with component. A nil logger falls back
// to the global one.
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = GetLogger()
	}
	return logger.With(slog.String("component", component))
}

// WithError returns logger tagged with err, or logger itself for a nil err
func WithError(logger *slog.Logger, err error) *slog.Logger {
	if err == nil {
		return logger
	}
	return logger.With(slog.String("error", err.Error()))
}
