package main

import (
	"context"
	"time"

	"github.com/ordersync/backend/internal/application/ordersync"
	"github.com/ordersync/backend/internal/domain/integration"
	"github.com/ordersync/backend/internal/infrastructure/scheduler"
	"github.com/ordersync/backend/internal/infrastructure/telemetry"
)

// meteredRunner records pass outcomes and order counts around a runner
type meteredRunner struct {
	runner  scheduler.PassRunner
	metrics *telemetry.PassMetrics
}

var _ scheduler.PassRunner = (*meteredRunner)(nil)

func (r *meteredRunner) RunPass(ctx context.Context, pass integration.SyncPass) (ordersync.PassResult, error) {
	start := time.Now()
	result, err := r.runner.RunPass(ctx, pass)
	r.metrics.RecordPass(ctx, pass.String(), time.Since(start), err)

	name := pass.String()
	switch {
	case result.Inbound != nil:
		r.metrics.RecordOrders(ctx, name, "fetched", result.Inbound.Fetched)
		r.metrics.RecordOrders(ctx, name, "exported", result.Inbound.Rows)
	case result.Outbound != nil:
		r.metrics.RecordOrders(ctx, name, "fulfilled", result.Outbound.Fulfilled)
		r.metrics.RecordOrders(ctx, name, "closed", result.Outbound.Closed)
		r.metrics.RecordOrders(ctx, name, "failed", len(result.Outbound.Failed))
	case result.Sweep != nil:
		r.metrics.RecordOrders(ctx, name, "repaired", result.Sweep.OpenClosed+result.Sweep.PendingLater)
	}
	return result, err
}
