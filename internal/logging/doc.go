// Package logging provides structured logging for the debate arena.
//
// This package wraps Go's log/slog to provide JSON-formatted logs with
// persistent context attributes (session ID, turn, provider, phase) so that
// the interleaved output of many concurrent debate sessions can be filtered
// after the fact.
//
// # Basic Usage
//
//	logger, err := logging.New(logging.Options{Level: "info", File: "/var/log/arena/arena.log"})
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	sessionLogger := logger.WithSession("5b1c...").WithPhase("engine")
//	sessionLogger.Info("turn completed", "turn", 3, "tokens", 412)
//
// Output:
//
//	{"time":"...","level":"INFO","msg":"turn completed","session_id":"5b1c...","phase":"engine","turn":3,"tokens":412}
//
// # Log Rotation
//
// When a file is configured, output goes through a [RotatingWriter] that
// renames the file to arena.log.1 once it exceeds MaxSizeMB, shifting older
// backups up and dropping anything beyond MaxBackups.
//
// # Levels
//
// The level can be changed at runtime with [Logger.SetLevel]; all child
// loggers share the parent's level.
//
// # Testing
//
// Use [NopLogger] to discard all output.
package logging
