package middleware

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/cors"
)

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           int
	Logger           *slog.Logger
}

// DefaultCORSConfig allows the API methods from origins. Browsers may read
// the request id and the export filename.
func DefaultCORSConfig(origins []string) CORSConfig {
	return CORSConfig{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{
			"Accept",
			"Content-Type",
			RequestIDHeader,
			"X-Requested-With",
		},
		ExposedHeaders: []string{
			RequestIDHeader,
			"Content-Disposition",
		},
		MaxAge: 300,
	}
}

// CORS returns the go-chi/cors handler for cfg
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	if cfg.Logger != nil {
		cfg.Logger.Info("CORS enabled",
			slog.Any("allowed_origins", cfg.AllowedOrigins),
			slog.Bool("allow_credentials", cfg.AllowCredentials))
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   cfg.AllowedMethods,
		AllowedHeaders:   cfg.AllowedHeaders,
		ExposedHeaders:   cfg.ExposedHeaders,
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           cfg.MaxAge,
	})
}
