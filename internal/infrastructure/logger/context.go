package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type contextKey string

const (
	loggerKey  contextKey = "logger"
	eventIDKey contextKey = "event_id"
	batchIDKey contextKey = "batch_id"
)

// WithContext returns a new context with the logger attached
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext retrieves the logger from context, or a no-op logger
func FromContext(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
		return logger
	}
	return zap.NewNop()
}

// WithEventID tags the context with an inventory event ID and returns the
// logger L builds from it
func WithEventID(ctx context.Context, logger *zap.Logger, eventID string) (context.Context, *zap.Logger) {
	ctx = WithContext(context.WithValue(ctx, eventIDKey, eventID), logger)
	return ctx, L(ctx)
}

// WithBatchID tags the context with an ingestion batch ID and returns the
// logger L builds from it
func WithBatchID(ctx context.Context, logger *zap.Logger, batchID string) (context.Context, *zap.Logger) {
	ctx = WithContext(context.WithValue(ctx, batchIDKey, batchID), logger)
	return ctx, L(ctx)
}

// GetEventID retrieves the event ID from context
func GetEventID(ctx context.Context) string {
	id, _ := ctx.Value(eventIDKey).(string)
	return id
}

// GetBatchID retrieves the batch ID from context
func GetBatchID(ctx context.Context) string {
	id, _ := ctx.Value(batchIDKey).(string)
	return id
}

// WithTrace returns logger enriched with the trace and span IDs of the
// span in ctx, if any.
func WithTrace(ctx context.Context, logger *zap.Logger) *zap.Logger {
	spanCtx := trace.SpanFromContext(ctx).SpanContext()
	if !spanCtx.IsValid() {
		return logger
	}
	return logger.With(
		zap.String("trace_id", spanCtx.TraceID().String()),
		zap.String("span_id", spanCtx.SpanID().String()),
	)
}

// L returns the context's logger with trace, event and batch fields added.
// Usage: logger.L(ctx).Info("message", zap.String("key", "value"))
func L(ctx context.Context) *zap.Logger {
	l := WithTrace(ctx, FromContext(ctx))
	if id := GetEventID(ctx); id != "" {
		l = l.With(zap.String("event_id", id))
	}
	if id := GetBatchID(ctx); id != "" {
		l = l.With(zap.String("batch_id", id))
	}
	return l
}
