// Package app wires the staats HTTP server: configuration, logging,
// OpenTelemetry, services, middleware and routes.
//
// # Initialization Flow
//
//  1. The caller loads configuration and initializes the logger
//  2. NewApplication sets up OpenTelemetry and the pipeline metrics
//  3. Services are created with their dependencies
//  4. The chi router gets its middleware chain and routes
//  5. The http.Server is configured from the server settings
//
// # Usage
//
//	cfg, err := config.Load(path)
//	...
//	logger, err := infrastructure.InitializeLogger(cfg.Logging)
//	...
//	application, err := app.NewApplication(cfg, logger)
//	...
//	if err := application.Run(); err != nil {
//	    ...
//	}
//
// # Graceful Shutdown
//
// Run blocks until SIGINT, SIGTERM or a server failure. Stop lets active
// requests finish within the shutdown timeout and then flushes the
// OpenTelemetry providers.
//
// # Error Handling
//
// Initialization errors are returned to the caller. The package never calls
// os.Exit.
package app
