// Package config assembles the component configurations the CLI hands
// to the parsers, the engine, the reporter and the HTTP server.
package config

import (
	"ar-reconciliation-engine/internal/engine"
	"ar-reconciliation-engine/internal/parsers"
	"ar-reconciliation-engine/internal/reporter"
	"ar-reconciliation-engine/internal/server"
	"ar-reconciliation-engine/pkg/logger"
)

// CreateEngineConfig creates the matching configuration. The relaxed
// profile lowers the acceptance thresholds for exploratory runs against
// messy staging data.
func CreateEngineConfig(relaxed bool) *engine.Config {
	if relaxed {
		return engine.RelaxedConfig()
	}
	return engine.DefaultConfig()
}

// CreateReportConfig creates a report configuration for the specified
// output format.
func CreateReportConfig(format string) *reporter.ReportConfig {
	config := reporter.DefaultReportConfig()

	switch format {
	case "json":
		config.Format = reporter.FormatJSON
	case "csv":
		config.Format = reporter.FormatCSV
		config.CSVHeaders = true
		config.CSVDelimiter = ','
	default:
		config.Format = reporter.FormatConsole
	}

	return config
}

// CreateServerConfig creates the HTTP server configuration.
func CreateServerConfig(addr, apiKey string, maxBatchSize int) *server.Config {
	config := server.DefaultConfig()

	if addr != "" {
		config.Addr = addr
	}
	config.APIKey = apiKey
	if maxBatchSize > 0 {
		config.MaxBatchSize = maxBatchSize
	}

	return config
}

// CreatePaymentsFileConfig creates the payments CSV layout.
func CreatePaymentsFileConfig() *parsers.PaymentsFileConfig {
	return parsers.DefaultPaymentsFileConfig()
}

// CreateOpenItemsFileConfig creates the open items CSV layout.
func CreateOpenItemsFileConfig() *parsers.OpenItemsFileConfig {
	return parsers.DefaultOpenItemsFileConfig()
}

// CreateLoggerConfig creates the logging configuration for CLI runs.
// Verbose runs log debug detail; normal runs keep stderr quiet so
// console reports stay readable.
func CreateLoggerConfig(verbose bool) *logger.Config {
	if verbose {
		return logger.DebugConfig()
	}

	config := logger.DefaultConfig()
	config.Level = logger.WarnLevel
	return config
}
