package main

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/ordersync/backend/internal/application/ordersync"
	"github.com/ordersync/backend/internal/domain/order"
	"github.com/ordersync/backend/internal/infrastructure/config"
	"github.com/ordersync/backend/internal/infrastructure/erp"
	"github.com/ordersync/backend/internal/infrastructure/export"
	"github.com/ordersync/backend/internal/infrastructure/lock"
	"github.com/ordersync/backend/internal/infrastructure/persistence"
	"github.com/ordersync/backend/internal/infrastructure/pricing"
	"github.com/ordersync/backend/internal/infrastructure/ratelimit"
	"github.com/ordersync/backend/internal/infrastructure/storage"
	"github.com/ordersync/backend/internal/infrastructure/storefront"
	"github.com/ordersync/backend/internal/infrastructure/telemetry"
	"github.com/ordersync/backend/internal/interfaces/http/handler"
)

const meterName = "github.com/ordersync/backend"

// app owns every long-lived dependency of one process
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	tracer  *telemetry.TracerProvider
	meter   metric.Meter
	service *ordersync.Service
	runner  *meteredRunner
	checks  map[string]handler.Pinger
	closers []func(context.Context) error
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func newApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (a *app, err error) {
	a = &app{cfg: cfg, log: log, checks: map[string]handler.Pinger{}}
	defer func() {
		if err != nil {
			a.Close(context.Background())
		}
	}()

	a.tracer, err = telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return a, fmt.Errorf("tracer provider: %w", err)
	}
	a.closers = append(a.closers, a.tracer.Shutdown)

	meters, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return a, fmt.Errorf("meter provider: %w", err)
	}
	a.closers = append(a.closers, meters.Shutdown)
	a.meter = meters.Meter(meterName)

	store, err := a.orderStore(ctx)
	if err != nil {
		return a, err
	}
	locker, err := a.locker(ctx)
	if err != nil {
		return a, err
	}

	database, err := erp.NewDatabase(&cfg.Erp, telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		SlowQueryThresh: cfg.Erp.SlowQueryThresh,
		DBSystem:        cfg.Erp.Driver,
	}, log)
	if err != nil {
		return a, fmt.Errorf("erp database: %w", err)
	}
	a.closers = append(a.closers, func(context.Context) error { return database.Close() })
	a.checks["erp"] = pingFunc(func(context.Context) error { return database.Ping() })

	loc := cfg.Sync.Location()
	shop, err := storefront.NewShopifyAdapter(storefront.NewShopifyConfig(cfg.Storefront), nil, log)
	if err != nil {
		return a, fmt.Errorf("storefront: %w", err)
	}

	exporter, err := a.exporter(ctx, loc)
	if err != nil {
		return a, err
	}

	settings := settingsFrom(cfg, loc)
	if err := settings.Validate(); err != nil {
		return a, err
	}

	inbound := ordersync.NewInboundPass(
		store,
		shop,
		pricing.NewClient(cfg.Pricing.URL, cfg.Pricing.Timeout, log),
		exporter,
		ordersync.ExportColumns{
			Reference:  cfg.Export.ReferenceColumns,
			OrderEntry: cfg.Export.OrderEntryColumns,
		},
		settings,
	)
	outbound := ordersync.NewOutboundPass(
		store,
		erp.NewGormSource(database.DB, cfg.Erp.Customer, loc, log),
		shop,
		ratelimit.NewPool(cfg.Storefront.Concurrency, nil),
		settings,
		log,
	)
	migrator := ordersync.NewMigrator(store, ordersync.NewUpsertEngine(store, loc))
	a.service = ordersync.NewService(inbound, outbound, migrator, locker, cfg.App.Account, cfg.Sync.LockTTL, log)

	passMetrics, err := telemetry.NewPassMetrics(a.meter)
	if err != nil {
		return a, fmt.Errorf("pass metrics: %w", err)
	}
	a.runner = &meteredRunner{runner: a.service, metrics: passMetrics}
	return a, nil
}

func (a *app) orderStore(ctx context.Context) (order.Store, error) {
	if a.cfg.App.DryRun {
		a.log.Warn("Dry run: orders are kept in memory and discarded on exit")
		return persistence.NewMemoryOrderStore(), nil
	}
	mongo, err := persistence.NewMongo(ctx, &a.cfg.Mongo, a.log)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, mongo.Close)
	a.checks["order_store"] = mongo

	store := persistence.NewMongoOrderStore(mongo.Database, a.log)
	if err := store.EnsureIndexes(ctx); err != nil {
		return nil, fmt.Errorf("order store indexes: %w", err)
	}
	return store, nil
}

func (a *app) locker(ctx context.Context) (ordersync.Locker, error) {
	if a.cfg.App.DryRun {
		return lock.NewMemoryLocker(), nil
	}
	locker, err := lock.NewRedisLocker(ctx, lock.RedisConfig{
		Addr:     a.cfg.Redis.Addr(),
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("run lock: %w", err)
	}
	a.closers = append(a.closers, func(context.Context) error { return locker.Close() })
	return locker, nil
}

func (a *app) exporter(ctx context.Context, loc *time.Location) (ordersync.ExportWriter, error) {
	var uploader export.Uploader
	if a.cfg.Export.Upload {
		s3, err := storage.NewS3Storage(ctx, &a.cfg.Storage, storage.WithLogger(a.log))
		if err != nil {
			return nil, fmt.Errorf("export storage: %w", err)
		}
		if err := s3.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("export storage: %w", err)
		}
		uploader = s3
	}
	return export.NewExcelWriter(a.cfg.Export.Dir, loc, uploader, a.log), nil
}

// Close releases dependencies in reverse order of acquisition
func (a *app) Close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.log.Warn("Error during shutdown", zap.Error(err))
		}
	}
	a.closers = nil
}

func settingsFrom(cfg *config.Config, loc *time.Location) ordersync.Settings {
	return ordersync.Settings{
		POPrefix:          cfg.Sync.POPrefix,
		FeeMarker:         cfg.Sync.FeeMarker,
		MattressKeywords:  nilIfEmpty(cfg.Sync.MattressKeywords),
		PromoPrefixes:     nilIfEmpty(cfg.Sync.PromoPrefixes),
		PageSize:          cfg.Storefront.PageSize,
		CursorPolicy:      ordersync.CursorFailurePolicy(cfg.Sync.CursorPolicy),
		PendingTTL:        cfg.Sync.PendingTTL,
		Location:          loc,
		TieBreak:          ordersync.TieBreakPolicy(cfg.Sync.TieBreak),
		CancelPattern:     cfg.Sync.CancelPattern,
		OutOfStockPattern: cfg.Sync.OutOfStockPattern,
		NoiseHoldReasons:  nilIfEmpty(cfg.Sync.NoiseHoldReasons),
		ErpLookback:       cfg.Erp.Lookback,
		ErpTagPrefix:      cfg.Sync.ErpTagPrefix,
		TrackingCompany:   cfg.Storefront.TrackingCompany,
		NotifyCustomer:    cfg.Storefront.NotifyCustomer,
		Customer:          cfg.Erp.Customer,
	}
}

// nilIfEmpty lets Settings.Validate apply its defaults to unset lists
func nilIfEmpty(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return s
}
