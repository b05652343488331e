// Package logging provides structured logging utilities for kubeterm components.
//
// It wraps the standard library slog package with project defaults: JSON output
// to stderr, environment-based level configuration (LOG_LEVEL), module and
// version context on every record, and source location tracking for debug logs.
//
// Setting the default logger (recommended):
//
//	func main() {
//	    logging.SetDefaultStructuredLogger("kubetermd", "v1.0.0")
//
//	    slog.Info("processing request", "id", "req-123")
//	    slog.Error("operation failed", "error", err)
//	}
package logging
