// Package observability provides structured logging, metrics and tracing
// for flowdeck.
//
// Logging uses slog. Metrics and tracing use OpenTelemetry and read the
// global providers. Each has a no-op implementation for when it is disabled.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds flow and user context to a logger.
//
// Example:
//
//	log := EnrichLogger(logger, flow.ID, user.ID)
//	log.Info("running flow")
func EnrichLogger(logger *slog.Logger, flowID, userID string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("flow_id", flowID),
		slog.String("user_id", userID),
	)
}

// LogDispatchStart logs the start of a flow run. The dispatch helpers expect
// a logger from EnrichLogger, which carries the flow and user ids.
func LogDispatchStart(logger *slog.Logger, nodeCount int) {
	if logger == nil {
		return
	}
	logger.Info("dispatch starting",
		slog.Int("nodes", nodeCount),
	)
}

// LogDispatchComplete logs a run that reached a collaborator and returned.
func LogDispatchComplete(logger *slog.Logger, rule string, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Info("dispatch completed",
		slog.String("rule", rule),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogDispatchError logs a failed run.
func LogDispatchError(logger *slog.Logger, rule string, err error, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Error("dispatch failed",
		slog.String("rule", rule),
		slog.String("error", err.Error()),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogFlowSaved logs a stored flow.
func LogFlowSaved(logger *slog.Logger, flowID, name string, nodeCount int) {
	if logger == nil {
		return
	}
	logger.Info("flow saved",
		slog.String("flow_id", flowID),
		slog.String("name", name),
		slog.Int("nodes", nodeCount),
	)
}

// LogRateLimited logs a rejected rate-limit check.
func LogRateLimited(logger *slog.Logger, kind, key string, reset time.Time) {
	if logger == nil {
		return
	}
	logger.Warn("rate limit exceeded",
		slog.String("kind", kind),
		slog.String("key", key),
		slog.Time("reset", reset),
	)
}

// LogVoiceTransition logs a voice session state change.
func LogVoiceTransition(logger *slog.Logger, callID, from, to string) {
	if logger == nil {
		return
	}
	logger.Debug("voice session transition",
		slog.String("call_id", callID),
		slog.String("from", from),
		slog.String("to", to),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Microseconds()) / 1000
	}
}
