// Package logging provides structured logging using uber/zap.
//
// This package offers production-ready logging with two modes:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Every subsystem gets a named child logger (constellation, content, sandbox,
// hangmonitor, compositor, resources) so records can be filtered by component.
//
// Example Usage:
//
//	logger := logging.FromSettings(cfg.Logging.Level, cfg.Logging.Development)
//	c, err := constellation.New(constellation.Options{Logger: logger.Component("constellation")})
//	logger.Info("Server starting", zap.String("port", "8000"))
package logging
