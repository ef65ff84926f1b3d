package ordersync

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ordersync/backend/internal/domain/integration"
	"github.com/ordersync/backend/internal/infrastructure/logger"
)

var tracer = otel.Tracer("github.com/ordersync/backend/internal/application/ordersync")

func startStage(ctx context.Context, stage string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, "ordersync."+stage, trace.WithAttributes(attrs...))
}

func endStage(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// runStage runs one pipeline stage inside its own span. A failure is logged
// with the stage name and returned wrapped with pass and stage.
func runStage(ctx context.Context, pass integration.SyncPass, name string, fn func(ctx context.Context) error) error {
	ctx, span := startStage(ctx, name, attribute.String("pass", pass.String()))
	err := fn(ctx)
	endStage(span, err)
	if err != nil {
		logger.Stage(ctx, name).Error("stage failed", zap.Error(err))
		return fmt.Errorf("%s %s: %w", pass, name, err)
	}
	return nil
}
