package services

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"staats/internal/infrastructure"
)

// HealthService reports liveness and runtime statistics
type HealthService struct {
	version   string
	buildID   string
	startTime time.Time
	logger    *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                      `json:"status"`
	Timestamp time.Time                   `json:"timestamp"`
	Version   string                      `json:"version"`
	BuildID   string                      `json:"build_id,omitempty"`
	GoVersion string                      `json:"go_version"`
	Runtime   infrastructure.RuntimeStats `json:"runtime"`
}

// NewHealthService creates a new health service
func NewHealthService(version, buildID string, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("HealthService initialized",
		slog.String("version", version),
		slog.String("build_id", buildID))

	return &HealthService{
		version:   version,
		buildID:   buildID,
		startTime: time.Now(),
		logger:    logger,
	}
}

// HealthCheck returns overall health status
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   hs.version,
		BuildID:   hs.buildID,
		GoVersion: runtime.Version(),
		Runtime:   infrastructure.CollectRuntimeStats(hs.startTime),
	}

	hs.logger.DebugContext(ctx, "HealthCheck: completed",
		slog.String("status", status.Status),
		slog.Duration("uptime", hs.Uptime()),
		slog.Int("goroutines", status.Runtime.Goroutines))

	return status
}

// Uptime returns the time since the service was created
func (hs *HealthService) Uptime() time.Duration {
	return time.Since(hs.startTime)
}
