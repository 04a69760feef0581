// Package logging provides structured logging using uber/zap.
//
// This package offers two modes:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Failures raised by extension code are logged through a child logger
// created with ForExtension, so every line carries an extension_id field.
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	logger.Info("Server starting", zap.String("port", "8000"))
//
//	extLog := logger.ForExtension("clock")
//	extLog.Warn("activate failed", zap.Error(err))
package logging
