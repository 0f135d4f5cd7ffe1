// Package services implements the business logic behind the HTTP API.
// Handlers decode requests and render responses; services turn request
// payloads into pipeline runs and health reports.
//
// # Services
//
//	AnalysisService  preflight and tabulation of a project over inline data
//	HealthService    liveness and Go runtime statistics
//
// Services take their dependencies through the constructor, accept a
// context on every operation and log through an injected *slog.Logger.
package services
