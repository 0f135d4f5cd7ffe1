// Package config loads the application configuration for the staats tools.
//
// # Configuration Sources
//
// Configuration is assembled from the following sources in order of precedence:
//
//  1. Environment variables (highest priority)
//  2. An optional YAML file passed to Load
//  3. Default values (lowest priority)
//
// # Environment Variables
//
// Environment variables use the STAATS prefix and the nested struct names:
//
//	STAATS_ANALYSIS_ALPHA=0.01
//	STAATS_ANALYSIS_MIN_BASE=50
//	STAATS_ANALYSIS_WORKERS=8
//	STAATS_LOGGING_LEVEL=debug
//	STAATS_SERVER_PORT=9090
//	STAATS_TELEMETRY_TRACE_EXPORTER=stdout
//
// # YAML File
//
//	analysis:
//	  alpha: 0.05
//	  min_base: 30
//	logging:
//	  level: info
//	  output: both
//	  file_path: logs/staats.log
//
// # Usage
//
//	cfg, err := config.Load("staats.yaml")
//	if err != nil {
//	    return err
//	}
//	settings := tabulation.Settings{Alpha: cfg.Analysis.Alpha, MinBase: cfg.Analysis.MinBase}
package config
