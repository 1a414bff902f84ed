// Package logger provides a small, thread-safe logging facade over log/slog.
//
// The logger supports four levels: Debug, Info, Warn, and Error.
// Each entry is written by a slog text handler and carries the level, an
// optional component attribute (a pool name or "worker-<id>"), and the message.
//
// # Basic Usage
//
// Using the default logger:
//
//	logger.Info("", "Application started")
//	logger.Info("worker-1", "Processing item")
//	logger.Error("worker-1", "Failed: %v", err)
//
// Creating a custom logger:
//
//	l := logger.New(os.Stderr, logger.LevelDebug)
//	l.Debug("pool", "Debug message")
//
// # Log Levels
//
// Messages below the configured level are filtered:
//   - LevelDebug: all messages
//   - LevelInfo: Info, Warn, Error
//   - LevelWarn: Warn, Error
//   - LevelError: Error only
//
// The level can be changed at runtime with SetLevel, and parsed from
// configuration strings with ParseLevel.
package logger
