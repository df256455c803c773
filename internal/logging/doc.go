// Package logging provides structured logging for the compound worker subsystem.
//
// This package wraps Go's log/slog to provide JSON-formatted logs with
// context propagation. Provisioning, launch, and dispatch all fan out across
// many members at once, so every entry carries the composition, worker,
// role, and member it concerns, and the log can be filtered after the fact.
//
// # Thread Safety
//
// All types in this package are safe for concurrent use. Child loggers
// created via With* methods share the underlying writer safely.
//
// # Basic Usage
//
//	logger, err := logging.NewLogger("/var/log/compound", "INFO")
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	logger.Info("compound worker provisioned", "members", 4)
//
// # Context Propagation
//
//	workerLogger := logger.WithComposition("web").WithWorker("Dynamic-compound-7")
//	workerLogger.WithRole("db").WithMember("db-2").Warn("connect failed")
//
// Output:
//
//	{"time":"...","level":"WARN","msg":"connect failed","composition":"web","worker":"Dynamic-compound-7","role":"db","member":"db-2"}
//
// # Log Rotation
//
// File output is rotated by size using lumberjack:
//
//	logger, err := logging.NewLoggerWithRotation(dir, "INFO", logging.RotationConfig{
//	    MaxSizeMB:  10,
//	    MaxBackups: 3,
//	    Compress:   true,
//	})
//
// # Testing
//
// Use [NopLogger] to discard output, or [NewWriterLogger] with a
// bytes.Buffer to assert on what was logged.
package logging
