// Package logger provides the structured logging interface used across clipvault.
//
// It wraps zerolog with a small Logger interface that supports child loggers
// carrying fields, coloured console output on stderr and optional rotated file
// output through lumberjack.
//
//	err := logger.Initialize(&cfg.Logging, logger.Options{NoColor: true})
//	log := logger.GetLogger().WithField("component", "coordinator")
//	log.InfoWithFields("Batch reconciled", map[string]interface{}{"probed": 100})
//
// Tests use NewTestLogger to capture messages or NewNopLogger to discard them.
package logger
