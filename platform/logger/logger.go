// Package logger provides structured logging infrastructure for the application.
// This is part of the platform layer and contains no business logic.
package logger

import (
	"log/slog"
	"os"
	"strings"
)

// Logger wraps slog.Logger for structured logging
type Logger struct {
	*slog.Logger
}

// New creates a new logger based on environment
func New(env string) *Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if strings.EqualFold(env, "development") {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// HTTPRequest logs an HTTP request
func (l *Logger) HTTPRequest(method, path string, status int, latencyMs float64, clientIP string) {
	l.Info("http_request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Float64("latency_ms", latencyMs),
		slog.String("client_ip", clientIP),
	)
}

// ExternalCall logs the outcome of a call to an integrated system
// (CRM, field service, calendar). Failed calls log at warn level because
// most integration failures are absorbed rather than propagated.
func (l *Logger) ExternalCall(system, operation string, err error) {
	if err != nil {
		l.Warn("external_call",
			slog.String("system", system),
			slog.String("operation", operation),
			slog.String("error", err.Error()),
		)
		return
	}
	l.Debug("external_call",
		slog.String("system", system),
		slog.String("operation", operation),
	)
}

// ReconcileWarning logs a non-fatal reconciliation problem for a deal.
func (l *Logger) ReconcileWarning(dealID, category, message string) {
	l.Warn("reconcile_warning",
		slog.String("deal_id", dealID),
		slog.String("category", category),
		slog.String("message", message),
	)
}

// RateLimitExceeded logs rate limit events
func (l *Logger) RateLimitExceeded(clientIP, path string) {
	l.Warn("rate_limit_exceeded",
		slog.String("client_ip", clientIP),
		slog.String("path", path),
	)
}
