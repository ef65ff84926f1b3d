package ordersync

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/ordersync/backend/internal/domain/integration"
	"github.com/ordersync/backend/internal/domain/order"
	"github.com/ordersync/backend/internal/infrastructure/logger"
)

// OutboundReport summarizes one outbound reconciliation pass
type OutboundReport struct {
	ReleasedSince time.Time
	Rows          int
	Empty         bool
	Reconcile     ReconcileReport
	Applied       order.BulkResult
	Unmatched     int
	Fulfilled     int
	Tagged        int
	Closed        int
	Failed        []string
	RoundTrip     order.BulkResult
	Migration     MigrationResult
}

// OutboundPass merges ERP state into the order store, pushes shipments back
// to the storefront and retires closed orders.
type OutboundPass struct {
	store      order.Store
	erp        integration.ErpSource
	storefront integration.Storefront
	pool       TaskPool
	reconciler *Reconciler
	engine     *UpsertEngine
	migrator   *Migrator
	settings   Settings
	now        func() time.Time
}

// NewOutboundPass wires an outbound pass. Settings must have passed Validate.
func NewOutboundPass(
	store order.Store,
	erp integration.ErpSource,
	storefront integration.Storefront,
	pool TaskPool,
	settings Settings,
	log *zap.Logger,
) *OutboundPass {
	if settings.Location == nil {
		settings.Location = time.UTC
	}
	engine := NewUpsertEngine(store, settings.Location)
	return &OutboundPass{
		store:      store,
		erp:        erp,
		storefront: storefront,
		pool:       pool,
		reconciler: NewReconciler(settings, log),
		engine:     engine,
		migrator:   NewMigrator(store, engine),
		settings:   settings,
		now:        time.Now,
	}
}

// Run executes ERP read, reconcile, apply, storefront round-trip and
// migration in sequence. Zero ERP rows ends the pass successfully.
func (p *OutboundPass) Run(ctx context.Context) (OutboundReport, error) {
	var (
		report  OutboundReport
		rows    []integration.ErpRow
		updates []order.Update
		err     error
	)
	now := p.now()
	report.ReleasedSince = now.Add(-p.settings.ErpLookback)

	if err = p.stage(ctx, "erp", func(ctx context.Context) error {
		rows, err = p.erp.ListOrderRows(ctx, report.ReleasedSince)
		if err != nil {
			return fmt.Errorf("%w: list erp rows: %w", integration.ErrSourceUnavailable, err)
		}
		return nil
	}); err != nil {
		return report, err
	}
	report.Rows = len(rows)
	if len(rows) == 0 {
		report.Empty = true
		logger.Stage(ctx, "erp").Info("no erp rows released since threshold",
			zap.Time("released_since", report.ReleasedSince))
		return report, nil
	}

	if err = p.stage(ctx, "reconcile", func(ctx context.Context) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		updates, report.Reconcile = p.reconciler.ReconcileErpRows(rows)
		return nil
	}); err != nil {
		return report, err
	}

	if err = p.stage(ctx, "apply", func(ctx context.Context) error {
		var unmatched []order.Update
		report.Applied, unmatched, err = p.engine.ApplyUpdates(ctx, updates)
		report.Unmatched = len(unmatched)
		for _, u := range unmatched {
			logger.Stage(ctx, "apply").Debug("erp row has no open order",
				zap.String("po", u.PurchaseOrderNumber))
		}
		return err
	}); err != nil {
		return report, err
	}

	if err = p.stage(ctx, "storefront", func(ctx context.Context) error {
		return p.roundTrip(ctx, updates, &report)
	}); err != nil {
		return report, err
	}

	if err = p.stage(ctx, "migrate", func(ctx context.Context) error {
		report.Migration, err = p.migrator.MigrateClosed(ctx)
		return err
	}); err != nil {
		return report, err
	}
	return report, nil
}

type roundTripResult struct {
	update    order.Update
	fulfilled bool
	tagged    bool
}

// roundTrip pushes fulfillments and ERP tags for every open order touched by
// updates, then reads back storefront state to flag cancelled and closed
// orders. Per-order rejections are logged and retried on the next run; a
// storefront outage aborts the pass.
func (p *OutboundPass) roundTrip(ctx context.Context, updates []order.Update, report *OutboundReport) error {
	if len(updates) == 0 {
		return nil
	}
	pos := make([]string, len(updates))
	for i, u := range updates {
		pos[i] = u.PurchaseOrderNumber
	}
	recs, err := p.store.Find(ctx, order.StageOpen, order.Query{PurchaseOrders: pos})
	if err != nil {
		return fmt.Errorf("%w: load reconciled orders: %w", order.ErrStoreReadFailure, err)
	}
	if len(recs) == 0 {
		return nil
	}

	observed := order.FormatTimestamp(p.now().In(p.settings.Location))
	results := make([]roundTripResult, len(recs))
	errs := p.pool.Run(ctx, len(recs), func(ctx context.Context, i int) error {
		res, err := p.syncOne(ctx, recs[i], observed)
		results[i] = res
		return err
	})

	log := logger.Stage(ctx, "storefront")
	var (
		changed []order.Record
		outage  error
	)
	for i, rec := range recs {
		if err := errs[i]; err != nil {
			report.Failed = append(report.Failed, rec.PurchaseOrderNumber)
			log.Warn("storefront round-trip failed",
				zap.String("order_id", rec.ExternalOrderID),
				zap.String("po", rec.PurchaseOrderNumber),
				zap.Error(err))
			if outage == nil && (errors.Is(err, integration.ErrPlatformUnavailable) || errors.Is(err, context.Canceled)) {
				outage = err
			}
		}
		res := results[i]
		if res.fulfilled {
			report.Fulfilled++
		}
		if res.tagged {
			report.Tagged++
		}
		if res.update.Closed {
			report.Closed++
		}
		if res.update.Posted || res.update.Closed || res.update.Cancelled {
			changed = append(changed, rec.Apply(res.update))
		}
	}

	// Successful pushes are recorded even when another order hit an outage,
	// so the next run does not post the same fulfillment twice.
	if report.RoundTrip, err = p.engine.Upsert(ctx, order.StageOpen, changed); err != nil {
		return err
	}
	if outage != nil {
		return fmt.Errorf("%w: %w", integration.ErrSourceUnavailable, outage)
	}
	return nil
}

func (p *OutboundPass) syncOne(ctx context.Context, rec order.Record, observed string) (roundTripResult, error) {
	res := roundTripResult{update: order.Update{PurchaseOrderNumber: rec.PurchaseOrderNumber, ObservedAt: observed}}
	id, err := strconv.ParseInt(rec.ExternalOrderID, 10, 64)
	if err != nil {
		return res, fmt.Errorf("%w: order id %q", integration.ErrPlatformOrderNotFound, rec.ExternalOrderID)
	}

	if rec.NeedsFulfillmentPost() {
		if _, err := p.storefront.CreateFulfillment(ctx, id, integration.FulfillmentRequest{
			TrackingNumbers: rec.TrackingNumbers,
			TrackingCompany: p.settings.TrackingCompany,
			NotifyCustomer:  p.settings.NotifyCustomer,
		}); err != nil {
			return res, fmt.Errorf("create fulfillment: %w", err)
		}
		res.fulfilled = true
		res.update.Posted = true
	}

	state, err := p.storefront.GetOrderState(ctx, id)
	if err != nil {
		return res, fmt.Errorf("get order state: %w", err)
	}
	if state.CancelledAt != nil {
		res.update.Cancelled = true
		res.update.Closed = true
	}
	if state.ClosedAt != nil {
		res.update.Closed = true
	}

	if rec.ErpOrderNumber != "" && p.settings.ErpTagPrefix != "" {
		tag := p.settings.ErpTagPrefix + rec.ErpOrderNumber
		if !state.HasTag(tag) {
			if err := p.storefront.UpdateOrderTags(ctx, id, append(append([]string{}, state.Tags...), tag)); err != nil {
				return res, fmt.Errorf("update order tags: %w", err)
			}
			res.tagged = true
		}
	}
	return res, nil
}

func (p *OutboundPass) stage(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	return runStage(ctx, integration.SyncPassOutbound, name, fn)
}
