package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"staats/internal/services"
)

// HealthServiceInterface is the part of services.HealthService the handler uses
type HealthServiceInterface interface {
	HealthCheck(ctx context.Context) services.HealthStatus
}

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	service HealthServiceInterface
	logger  *slog.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(service HealthServiceInterface, logger *slog.Logger) *HealthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthHandler{
		service: service,
		logger:  logger.With(slog.String("handler", "health")),
	}
}

// HealthCheck handles GET /healthz
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.service.HealthCheck(r.Context()))
}
