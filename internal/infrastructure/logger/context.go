package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type contextKey string

const (
	loggerKey contextKey = "logger"
	runIDKey  contextKey = "run_id"
)

// WithContext returns a new context carrying the logger
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext returns the context logger, or a no-op logger when none is attached
func FromContext(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
		return l
	}
	return zap.NewNop()
}

// WithRun tags the context with a pipeline run and returns the enriched logger.
// Every log line written through the returned context carries run_id and pass.
func WithRun(ctx context.Context, logger *zap.Logger, runID, pass string) (context.Context, *zap.Logger) {
	ctx = context.WithValue(ctx, runIDKey, runID)
	enriched := logger.With(zap.String("run_id", runID), zap.String("pass", pass))
	return WithContext(ctx, enriched), enriched
}

// RunID returns the run id stored in ctx, if any
func RunID(ctx context.Context) string {
	if id, ok := ctx.Value(runIDKey).(string); ok {
		return id
	}
	return ""
}

// Stage returns the context logger enriched with the stage name and the
// active trace id, for log lines that must be replayable by an operator.
func Stage(ctx context.Context, stage string) *zap.Logger {
	l := FromContext(ctx).With(zap.String("stage", stage))
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		l = l.With(zap.String("trace_id", sc.TraceID().String()))
	}
	return l
}
