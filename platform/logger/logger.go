// Package logger provides structured logging infrastructure for the application.
// This is part of the platform layer and contains no business logic.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// Context key types for storing values in context
type contextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"
	// LeadIDKey is the context key for the lead being processed
	LeadIDKey contextKey = "lead_id"
	// TraceIDKey is the context key for trace ID
	TraceIDKey contextKey = "trace_id"
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

// WithContext returns a logger with context values extracted.
// Supports request_id, lead_id, and trace_id from context.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}

	newLogger := l

	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		newLogger = &Logger{Logger: newLogger.With(slog.String("request_id", requestID))}
	}

	if leadID, ok := ctx.Value(LeadIDKey).(string); ok && leadID != "" {
		newLogger = newLogger.WithLeadID(leadID)
	}

	if traceID, ok := ctx.Value(TraceIDKey).(string); ok && traceID != "" {
		newLogger = &Logger{Logger: newLogger.With(slog.String("trace_id", traceID))}
	}

	return newLogger
}

// WithLeadID returns a logger scoped to a lead.
func (l *Logger) WithLeadID(leadID string) *Logger {
	return &Logger{
		Logger: l.With(slog.String("lead_id", leadID)),
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

// DecisionEvent logs a routing decision made for a lead.
func (l *Logger) DecisionEvent(leadID, action, reasoning string) {
	l.Info("agent_decision",
		slog.String("lead_id", leadID),
		slog.String("action", action),
		slog.String("reasoning", reasoning),
	)
}

// DispatchEvent logs an outbound message dispatch.
func (l *Logger) DispatchEvent(leadID, channel string, stage int, scripted bool) {
	l.Info("message_dispatched",
		slog.String("lead_id", leadID),
		slog.String("channel", channel),
		slog.Int("stage", stage),
		slog.Bool("scripted", scripted),
	)
}

// BreakerEvent logs a circuit breaker state change.
func (l *Logger) BreakerEvent(name, from, to string) {
	l.Warn("breaker_transition",
		slog.String("breaker", name),
		slog.String("from", from),
		slog.String("to", to),
	)
}

// DeliveryEvent logs the outcome of one handover destination attempt.
func (l *Logger) DeliveryEvent(leadID, destination string, success bool, errMsg string) {
	if success {
		l.Info("handover_delivery",
			slog.String("lead_id", leadID),
			slog.String("destination", destination),
			slog.Bool("success", true),
		)
		return
	}
	l.Warn("handover_delivery",
		slog.String("lead_id", leadID),
		slog.String("destination", destination),
		slog.Bool("success", false),
		slog.String("error", errMsg),
	)
}

// DatabaseError logs database errors
func (l *Logger) DatabaseError(operation string, err error) {
	l.Error("database_error",
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}
