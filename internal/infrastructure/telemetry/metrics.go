package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.uber.org/zap"
)

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled           bool
	CollectorEndpoint string
	ExportInterval    time.Duration // Default: 60s
	ServiceName       string
	Insecure          bool
}

// MeterProvider wraps the OpenTelemetry MeterProvider with lifecycle management.
type MeterProvider struct {
	provider *sdkmetric.MeterProvider
	logger   *zap.Logger
	config   MetricsConfig
}

// NewMeterProvider creates and configures a new MeterProvider.
// If metrics are disabled, it returns a provider that wraps the no-op global meter.
func NewMeterProvider(ctx context.Context, cfg MetricsConfig, logger *zap.Logger) (*MeterProvider, error) {
	mp := &MeterProvider{logger: logger, config: cfg}
	if !cfg.Enabled {
		logger.Info("Metrics disabled, using no-op meter provider")
		return mp, nil
	}

	exportInterval := cfg.ExportInterval
	if exportInterval == 0 {
		exportInterval = 60 * time.Second
	}

	exporterOpts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(cfg.CollectorEndpoint),
	}
	if cfg.Insecure {
		exporterOpts = append(exporterOpts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, exporterOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP metrics exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	mp.provider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(exportInterval)),
		),
	)
	otel.SetMeterProvider(mp.provider)

	logger.Info("OpenTelemetry MeterProvider initialized",
		zap.String("collector_endpoint", cfg.CollectorEndpoint),
		zap.Duration("export_interval", exportInterval),
	)
	return mp, nil
}

// Shutdown flushes pending metrics and stops the provider
func (mp *MeterProvider) Shutdown(ctx context.Context) error {
	if mp.provider == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := mp.provider.Shutdown(shutdownCtx); err != nil {
		mp.logger.Error("Error shutting down meter provider", zap.Error(err))
		return fmt.Errorf("failed to shutdown meter provider: %w", err)
	}
	return nil
}

// Meter returns a named meter from the provider.
func (mp *MeterProvider) Meter(name string, opts ...metric.MeterOption) metric.Meter {
	if mp.provider == nil {
		return otel.GetMeterProvider().Meter(name, opts...)
	}
	return mp.provider.Meter(name, opts...)
}

// IsEnabled returns whether metrics are enabled.
func (mp *MeterProvider) IsEnabled() bool {
	return mp.config.Enabled && mp.provider != nil
}

// Attribute keys shared by the pass metrics
var (
	AttrPass    = attribute.Key("ordersync.pass")
	AttrOutcome = attribute.Key("ordersync.outcome")
	AttrKind    = attribute.Key("ordersync.kind")
)

// PassDurationBuckets are bucket boundaries for pass duration (seconds).
var PassDurationBuckets = []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800}

// PassMetrics records one data point set per pipeline pass
type PassMetrics struct {
	runs     metric.Int64Counter
	duration metric.Float64Histogram
	orders   metric.Int64Counter
}

// NewPassMetrics registers the pass instruments on meter
func NewPassMetrics(meter metric.Meter) (*PassMetrics, error) {
	runs, err := meter.Int64Counter("ordersync.pass.runs",
		metric.WithDescription("Pipeline pass runs by outcome"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create counter ordersync.pass.runs: %w", err)
	}
	duration, err := meter.Float64Histogram("ordersync.pass.duration",
		metric.WithDescription("Pipeline pass wall time"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(PassDurationBuckets...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create histogram ordersync.pass.duration: %w", err)
	}
	orders, err := meter.Int64Counter("ordersync.orders",
		metric.WithDescription("Orders handled by a pass, by kind"),
		metric.WithUnit("{order}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create counter ordersync.orders: %w", err)
	}
	return &PassMetrics{runs: runs, duration: duration, orders: orders}, nil
}

// RecordPass records the outcome and wall time of one pass
func (m *PassMetrics) RecordPass(ctx context.Context, pass string, d time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	attrs := metric.WithAttributes(AttrPass.String(pass), AttrOutcome.String(outcome))
	m.runs.Add(ctx, 1, attrs)
	m.duration.Record(ctx, d.Seconds(), attrs)
}

// RecordOrders adds n orders of kind (fetched, inserted, closed, ...) for pass
func (m *PassMetrics) RecordOrders(ctx context.Context, pass, kind string, n int) {
	if n <= 0 {
		return
	}
	m.orders.Add(ctx, int64(n), metric.WithAttributes(AttrPass.String(pass), AttrKind.String(kind)))
}
