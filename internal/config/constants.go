package config

// Application constants
const (
	AppName    = "staats"
	AppVersion = "1.0.0"

	// EnvPrefix namespaces environment variables, e.g. STAATS_ANALYSIS_ALPHA
	EnvPrefix = "STAATS"

	// Analysis defaults
	DefaultAlpha        = 0.05
	DefaultMinBase      = 30
	DefaultWorkers      = 4
	DefaultMaxRowIssues = 20

	// Log settings
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
	DefaultLogFile   = "logs/staats.log"

	// HTTP
	DefaultMaxBodyBytes = 32 << 20
	APIBasePath         = "/api/v1"
	HealthEndpoint      = "/healthz"
	MetricsEndpoint     = "/metrics"
)
