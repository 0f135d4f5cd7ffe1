package app

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"staats/internal/config"
	apperrors "staats/internal/errors"
	"staats/internal/infrastructure"
	customMiddleware "staats/internal/middleware"
	"staats/internal/services"
	handlers "staats/internal/transport/http"
)

var (
	// BuildTime is set at compile time
	BuildTime = time.Now().Format(time.RFC3339)
	// BuildID is a unique identifier for this build
	BuildID = generateBuildID()
)

func generateBuildID() string {
	h := sha256.New()
	h.Write([]byte(config.AppVersion))
	h.Write([]byte(time.Now().Format("2006-01-02")))
	return fmt.Sprintf("%x", h.Sum(nil))[:12]
}

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Router        *chi.Mux
	Server        *http.Server
	Logger        *slog.Logger
	Services      *ServiceContainer
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.PipelineMetrics
	ErrorHandler  *apperrors.ErrorHandler

	listener net.Listener
	started  time.Time
}

// ServiceContainer holds all application services
type ServiceContainer struct {
	Analysis *services.AnalysisService
	Health   *services.HealthService
}

// NewApplication wires the services, router and server for cfg. A nil cfg
// selects config.Default(); a nil logger the global one.
func NewApplication(cfg *config.Config, logger *slog.Logger) (*Application, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = infrastructure.GetLogger()
	}

	logger.Info("Application starting",
		slog.String("name", config.AppName),
		slog.String("version", config.AppVersion),
		slog.String("build_id", BuildID))

	otelProviders, err := infrastructure.InitializeOTel(infrastructure.OTelConfigFrom(cfg.Telemetry), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	metrics, err := infrastructure.NewPipelineMetrics(otelProviders.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline metrics: %w", err)
	}

	started := time.Now()
	if err := infrastructure.RegisterRuntimeMetrics(otelProviders.Meter, started); err != nil {
		return nil, fmt.Errorf("failed to register runtime metrics: %w", err)
	}

	app := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: otelProviders,
		Metrics:       metrics,
		ErrorHandler:  apperrors.NewErrorHandler(logger, cfg.Logging.Level == "debug"),
		started:       started,
	}

	app.initializeServices()
	app.setupRouter()
	app.createServer()

	return app, nil
}

// initializeServices creates the services behind the handlers
func (a *Application) initializeServices() {
	a.Services = &ServiceContainer{
		Analysis: services.NewAnalysisService(a.Config.Analysis, a.Metrics, a.OTelProviders.Tracer, a.Logger),
		Health:   services.NewHealthService(config.AppVersion, BuildID, a.Logger),
	}
	a.Logger.Info("Services initialized",
		slog.Float64("alpha", a.Config.Analysis.Alpha),
		slog.Float64("min_base", a.Config.Analysis.MinBase),
		slog.Int("workers", a.Config.Analysis.Workers))
}

// setupRouter builds the middleware chain and routes. Order:
// RequestID → RealIP → OTel → error/recover/log → security headers → CORS.
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)
	r.Use(customMiddleware.NewOTelMiddleware(a.OTelProviders, a.Metrics).Handler)
	r.Use(apperrors.NewErrorMiddleware(a.ErrorHandler, a.Logger).Handler)
	r.Use(customMiddleware.SecurityHeaders)
	if a.Config.Security.EnableCORS {
		corsConfig := customMiddleware.DefaultCORSConfig(a.Config.Security.AllowedOrigins)
		corsConfig.Logger = a.Logger
		r.Use(customMiddleware.CORS(corsConfig))
	}

	r.NotFound(a.ErrorHandler.NotFound)
	r.MethodNotAllowed(a.ErrorHandler.MethodNotAllowed)

	health := handlers.NewHealthHandler(a.Services.Health, a.Logger)
	r.Get(config.HealthEndpoint, health.HealthCheck)

	metrics := handlers.NewMetricsHandler(a.OTelProviders.PrometheusHTTP, a.ErrorHandler)
	r.Get(config.MetricsEndpoint, metrics.GetMetrics)

	a.setupAPIRoutes(r)

	a.Router = r
}

// setupAPIRoutes configures API endpoints
func (a *Application) setupAPIRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Use(customMiddleware.Timeout(a.Config.Server.WriteTimeout))

		if a.Config.Security.RateLimit.Enabled {
			r.Use(customMiddleware.NewRateLimiter(
				a.Config.Security.RateLimit.RPS,
				a.Config.Security.RateLimit.Burst,
				a.Logger,
			).Handler)
		}

		validation := customMiddleware.NewValidationMiddleware(a.Logger, a.ErrorHandler, a.Config.Server.MaxBodyBytes)
		analysis := handlers.NewAnalysisHandler(a.Services.Analysis, validation, a.ErrorHandler, a.Logger)
		r.Mount(config.APIBasePath, analysis.Routes())
	})
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      a.Router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
		IdleTimeout:  a.Config.Server.IdleTimeout,
	}
}

// Addr returns the address the server listens on once started
func (a *Application) Addr() string {
	if a.listener != nil {
		return a.listener.Addr().String()
	}
	return a.Server.Addr
}

// Start binds the server address and serves in the background. A serve
// failure calls cancel.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	ln, err := net.Listen("tcp", a.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.Server.Addr, err)
	}
	a.listener = ln

	a.Logger.InfoContext(ctx, "Starting application",
		slog.String("name", config.AppName),
		slog.String("version", config.AppVersion),
		slog.String("address", ln.Addr().String()),
		slog.String("level", a.Config.Logging.Level),
		slog.Bool("rate_limit", a.Config.Security.RateLimit.Enabled))

	go func() {
		if err := a.Server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	return nil
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application",
		slog.Duration("uptime", time.Since(a.started)))

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return nil
}

// Run runs the application until interrupted or until the server fails
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	select {
	case sig := <-sigChan:
		a.Logger.InfoContext(ctx, "Received interrupt signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
		a.Logger.WarnContext(ctx, "Server stopped unexpectedly")
	}

	// the run context may already be cancelled; shutdown gets its own
	return a.Stop(context.Background())
}
