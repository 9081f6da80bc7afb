// Package logging provides structured logging configuration for the
// mock server.
//
// This package wraps log/slog to provide consistent operational logging
// across all components. It supports configurable log levels and output
// formats. It is distinct from the request log, which is user-facing
// server state, not a log sink.
//
// # Usage
//
// Create a logger with desired configuration:
//
//	logger := logging.New(logging.Config{
//	    Level:  logging.LevelInfo,
//	    Format: logging.FormatText,
//	})
//
//	logger.Info("server started", "addr", addr)
//
// # Integration
//
// Components accept a *slog.Logger in their constructor or via an
// option. If no logger is provided, they fall back to logging.Nop().
package logging
