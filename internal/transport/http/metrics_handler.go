package http

import (
	"net/http"

	apierrors "staats/internal/errors"
)

// MetricsHandler serves the Prometheus exposition of the OpenTelemetry meter
type MetricsHandler struct {
	exposition   http.Handler
	errorHandler *apierrors.ErrorHandler
}

// NewMetricsHandler creates a metrics handler. A nil exposition handler means
// metrics are disabled and the endpoint answers 404.
func NewMetricsHandler(exposition http.Handler, errorHandler *apierrors.ErrorHandler) *MetricsHandler {
	return &MetricsHandler{exposition: exposition, errorHandler: errorHandler}
}

// GetMetrics handles GET /metrics
func (h *MetricsHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	if h.exposition == nil {
		h.errorHandler.HandleError(w, r, apierrors.NewWithDetails(
			http.StatusNotFound,
			apierrors.CodeMetricsUnavailable,
			"Metrics are disabled",
			map[string]interface{}{"setting": "STAATS_TELEMETRY_ENABLE_METRICS"},
		))
		return
	}
	h.exposition.ServeHTTP(w, r)
}
