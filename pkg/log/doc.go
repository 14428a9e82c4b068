// Package log provides structured protocol logging for the device hub.
//
// This package defines the Logger interface and Event types for capturing
// line traffic, session lifecycle, macro execution, and error events. It
// is separate from operational logging (slog) - protocol capture provides
// a complete machine-readable event trace for debugging and analysis.
//
// # Basic Usage
//
// Applications configure logging by providing a Logger implementation:
//
//	// For development: log to console via slog
//	logger := log.NewSlogAdapter(slog.Default())
//
//	// For production: write to a binary file
//	logger, _ := log.NewFileLogger("/var/log/devicehub/device.plog")
//
//	// Both: use MultiLogger
//	logger := log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    fileLogger,
//	)
//
// # Event Types
//
// Events are categorized as line traffic (LineEvent), session/connection
// lifecycle (StateEvent), macro step execution (MacroStepEvent), or errors
// (ErrorEvent).
//
// # File Format
//
// Log files use CBOR encoding. The device-log command uses Reader
// and Filter to stream a log file back out for offline inspection.
package log
