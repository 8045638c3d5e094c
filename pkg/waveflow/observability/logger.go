// Package observability provides structured logging, metrics, and tracing
// for waveflow sessions: slog for logs, OpenTelemetry for metrics and spans.
// Everything is injected; there is no package-level mutable state, and every
// helper tolerates a nil logger.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds session context to a logger.
func EnrichLogger(logger *slog.Logger, sessionID, nodeID string, wave int) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("session_id", sessionID),
		slog.String("node_id", nodeID),
		slog.Int("wave", wave),
	)
}

// LogSessionStart logs the start of a fresh session run.
func LogSessionStart(logger *slog.Logger, sessionID string) {
	if logger == nil {
		return
	}
	logger.Info("session starting", slog.String("session_id", sessionID))
}

// LogSessionResumed logs a session restored from a checkpoint.
func LogSessionResumed(logger *slog.Logger, sessionID string, pass, completed int) {
	if logger == nil {
		return
	}
	logger.Info("session resumed from checkpoint",
		slog.String("session_id", sessionID),
		slog.Int("pass", pass),
		slog.Int("nodes_completed", completed),
	)
}

// LogSessionComplete logs successful completion.
func LogSessionComplete(logger *slog.Logger, sessionID string, durationMs float64, waves, nodes int) {
	if logger == nil {
		return
	}
	logger.Info("session completed",
		slog.String("session_id", sessionID),
		slog.Float64("duration_ms", durationMs),
		slog.Int("waves", waves),
		slog.Int("nodes_executed", nodes),
	)
}

// LogSessionError logs session failure.
func LogSessionError(logger *slog.Logger, sessionID string, err error, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Error("session failed",
		slog.String("session_id", sessionID),
		slog.String("error", err.Error()),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogWaveStart logs the nodes about to run together.
func LogWaveStart(logger *slog.Logger, wave int, nodes []string) {
	if logger == nil {
		return
	}
	logger.Debug("wave starting",
		slog.Int("wave", wave),
		slog.Any("nodes", nodes),
	)
}

// LogNodeStart logs node execution start.
func LogNodeStart(logger *slog.Logger, nodeID string) {
	if logger == nil {
		return
	}
	logger.Debug("node starting", slog.String("node_id", nodeID))
}

// LogNodeComplete logs successful node completion.
func LogNodeComplete(logger *slog.Logger, nodeID string, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("node completed",
		slog.String("node_id", nodeID),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogNodeError logs node execution failure.
func LogNodeError(logger *slog.Logger, nodeID string, err error) {
	if logger == nil {
		return
	}
	logger.Error("node failed",
		slog.String("node_id", nodeID),
		slog.String("error", err.Error()),
	)
}

// LogCeilingForced logs the executor overriding a decision label because the
// iteration ceiling was reached.
func LogCeilingForced(logger *slog.Logger, nodeID, label string, iteration int) {
	if logger == nil {
		return
	}
	logger.Warn("iteration ceiling reached, forcing terminal route",
		slog.String("node_id", nodeID),
		slog.String("label", label),
		slog.Int("iteration", iteration),
	)
}

// LogCheckpoint logs a snapshot save.
func LogCheckpoint(logger *slog.Logger, sessionID string, wave, sizeBytes int) {
	if logger == nil {
		return
	}
	logger.Debug("checkpoint saved",
		slog.String("session_id", sessionID),
		slog.Int("wave", wave),
		slog.Int("size_bytes", sizeBytes),
	)
}

// LogCheckpointError logs a checkpoint failure (non-fatal by default).
func LogCheckpointError(logger *slog.Logger, sessionID, op string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("checkpoint failed",
		slog.String("session_id", sessionID),
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
}

// TimedOperation measures an operation. The returned function yields the
// elapsed milliseconds.
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Milliseconds())
	}
}
