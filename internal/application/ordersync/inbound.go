package ordersync

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ordersync/backend/internal/domain/integration"
	"github.com/ordersync/backend/internal/domain/order"
	"github.com/ordersync/backend/internal/infrastructure/logger"
)

// InboundReport summarizes one inbound pass
type InboundReport struct {
	Cursor  order.Cursor
	Fetched int
	Rules   int
	// Known counts fetched orders the store already held; they are not
	// exported again. SkippedClosed of them were closed and left untouched.
	Known         int
	SkippedClosed int
	Empty         bool
	Open          order.BulkResult
	Pending       order.BulkResult
	Promoted      MigrationResult
	Retired       MigrationResult
	Rows          int
	Exports       []string
}

// ExportColumns configures the two workbooks written by the inbound pass
type ExportColumns struct {
	Reference  []string
	OrderEntry []string
}

// InboundPass pulls new storefront orders into the order store
type InboundPass struct {
	store       order.Store
	storefront  integration.Storefront
	cursor      *CursorResolver
	fetcher     *SourceFetcher
	transformer *Transformer
	engine      *UpsertEngine
	migrator    *Migrator
	exporter    ExportWriter
	columns     ExportColumns
	settings    Settings
	now         func() time.Time
}

// NewInboundPass wires an inbound pass. exporter may be nil to skip exports.
func NewInboundPass(
	store order.Store,
	storefront integration.Storefront,
	discounts integration.DiscountSource,
	exporter ExportWriter,
	columns ExportColumns,
	settings Settings,
) *InboundPass {
	if settings.Location == nil {
		settings.Location = time.UTC
	}
	engine := NewUpsertEngine(store, settings.Location)
	if len(columns.Reference) == 0 {
		columns.Reference = order.AllColumns
	}
	if len(columns.OrderEntry) == 0 {
		columns.OrderEntry = columns.Reference
	}
	return &InboundPass{
		store:       store,
		storefront:  storefront,
		cursor:      NewCursorResolver(store, settings.CursorPolicy),
		fetcher:     NewSourceFetcher(storefront, discounts, settings.PageSize),
		transformer: NewTransformer(settings),
		engine:      engine,
		migrator:    NewMigrator(store, engine),
		exporter:    exporter,
		columns:     columns,
		settings:    settings,
		now:         time.Now,
	}
}

// Run executes cursor resolution, fetch, transform, the check against stored
// orders, upsert and export in strict sequence. Zero new orders is a
// successful, empty run that writes nothing.
func (p *InboundPass) Run(ctx context.Context) (InboundReport, error) {
	var (
		report InboundReport
		orders []integration.StorefrontOrder
		rules  []integration.DiscountRule
		rows   []order.FlatRow
		err    error
	)
	receivedAt := p.now()

	if err = p.stage(ctx, "cursor", func(ctx context.Context) error {
		report.Cursor, err = p.cursor.Resolve(ctx)
		return err
	}); err != nil {
		return report, err
	}

	if err = p.stage(ctx, "fetch", func(ctx context.Context) error {
		orders, rules, err = p.fetcher.FetchAll(ctx, report.Cursor)
		return err
	}); err != nil {
		return report, err
	}
	report.Fetched, report.Rules = len(orders), len(rules)

	var results []TransformResult
	if len(orders) > 0 {
		if err = p.stage(ctx, "transform", func(ctx context.Context) error {
			results, rows, err = p.transformer.TransformBatch(orders, rules, receivedAt)
			return err
		}); err != nil {
			return report, err
		}

		if err = p.stage(ctx, "dedupe", func(ctx context.Context) error {
			known, err := p.knownOrders(ctx, results)
			if err != nil {
				return err
			}
			results, rows = p.dropKnown(ctx, results, known, &report)
			return nil
		}); err != nil {
			return report, err
		}

		open, pending := splitByStage(results)
		if err = p.stage(ctx, "upsert", func(ctx context.Context) error {
			if report.Open, err = p.engine.Upsert(ctx, order.StageOpen, open); err != nil {
				return err
			}
			report.Pending, err = p.engine.Upsert(ctx, order.StagePending, pending)
			return err
		}); err != nil {
			return report, err
		}
	}

	// Parked orders are re-read even when nothing new arrived; with an empty
	// pending partition this stage touches nothing.
	var promoted []order.FlatRow
	if err = p.stage(ctx, "pending", func(ctx context.Context) error {
		promoted, err = p.reviewPending(ctx, rules, receivedAt, results, &report)
		return err
	}); err != nil {
		return report, err
	}
	rows = renumber(append(rows, promoted...))

	if len(rows) == 0 {
		report.Empty = true
		logger.Stage(ctx, "fetch").Info("no new orders since cursor",
			zap.String("cursor", report.Cursor.ExternalOrderID))
		return report, nil
	}
	report.Rows = len(rows)

	if err = p.stage(ctx, "export", func(ctx context.Context) error {
		report.Exports, err = p.export(ctx, rows, receivedAt)
		return err
	}); err != nil {
		return report, err
	}
	return report, nil
}

// knownOrders returns the partition already holding each fetched order
func (p *InboundPass) knownOrders(ctx context.Context, results []TransformResult) (map[string]order.Stage, error) {
	ids := make([]string, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.Record.ExternalOrderID)
	}
	known := make(map[string]order.Stage, len(ids))
	if len(ids) == 0 {
		return known, nil
	}
	// Later partitions overwrite earlier ones so the most advanced copy wins.
	for _, stage := range []order.Stage{order.StagePending, order.StageOpen, order.StageClosed} {
		recs, err := p.store.Find(ctx, stage, order.Query{ExternalIDs: ids})
		if err != nil {
			return nil, fmt.Errorf("%w: match %s orders: %w", order.ErrStoreReadFailure, stage, err)
		}
		for _, r := range recs {
			known[r.ExternalOrderID] = stage
		}
	}
	return known, nil
}

// dropKnown filters a fetched batch against the store. Closed orders are
// dropped. Open orders are refreshed in place but not exported. Parked
// orders are exported only once they route to open.
func (p *InboundPass) dropKnown(ctx context.Context, results []TransformResult, known map[string]order.Stage, report *InboundReport) ([]TransformResult, []order.FlatRow) {
	var (
		kept []TransformResult
		rows []order.FlatRow
	)
	for _, r := range results {
		stage, ok := known[r.Record.ExternalOrderID]
		if !ok {
			kept = append(kept, r)
			rows = append(rows, r.Rows...)
			continue
		}
		report.Known++
		switch stage {
		case order.StageClosed:
			report.SkippedClosed++
			logger.Stage(ctx, "dedupe").Debug("fetched order is already closed",
				zap.String("order_id", r.Record.ExternalOrderID),
				zap.String("po", r.Record.PurchaseOrderNumber))
		case order.StageOpen:
			r.Record.Stage = order.StageOpen
			kept = append(kept, r)
		default:
			kept = append(kept, r)
			if r.Record.Stage == order.StageOpen {
				rows = append(rows, r.Rows...)
			}
		}
	}
	return kept, rows
}

// reviewPending re-reads orders parked in the pending partition. Orders
// fetched by this run are judged on their fresh transform; the rest are
// read back from the storefront. Cancelled orders are retired to closed and
// orders that are now paid and not high-risk are promoted to open. Rows of
// promoted orders that were not part of this run's fetch are returned for
// export.
func (p *InboundPass) reviewPending(ctx context.Context, rules []integration.DiscountRule, receivedAt time.Time, fresh []TransformResult, report *InboundReport) ([]order.FlatRow, error) {
	parked, err := p.store.Find(ctx, order.StagePending, order.Query{})
	if err != nil {
		return nil, fmt.Errorf("%w: list pending orders: %w", order.ErrStoreReadFailure, err)
	}
	if len(parked) == 0 {
		return nil, nil
	}

	log := logger.Stage(ctx, "pending")
	stamp := order.FormatTimestamp(receivedAt.In(p.settings.Location))
	freshByID := make(map[string]TransformResult, len(fresh))
	for _, r := range fresh {
		freshByID[r.Record.ExternalOrderID] = r
	}

	type candidate struct {
		result TransformResult
		export bool
	}
	var (
		candidates []candidate
		stale      []int64
	)
	byID := make(map[string]order.Record, len(parked))
	for _, r := range parked {
		byID[r.ExternalOrderID] = r
		if r.ExpiresAt != "" && r.ExpiresAt < stamp {
			log.Warn("pending order past its review window",
				zap.String("order_id", r.ExternalOrderID),
				zap.String("po", r.PurchaseOrderNumber),
				zap.String("expired_at", r.ExpiresAt))
		}
		if res, ok := freshByID[r.ExternalOrderID]; ok {
			candidates = append(candidates, candidate{result: res})
			continue
		}
		if id, err := strconv.ParseInt(r.ExternalOrderID, 10, 64); err == nil {
			stale = append(stale, id)
		}
	}

	if len(stale) > 0 {
		current, err := p.storefront.GetOrders(ctx, stale)
		if err != nil {
			return nil, fmt.Errorf("%w: re-read pending orders: %w", integration.ErrSourceUnavailable, err)
		}
		for _, o := range current {
			res, _, err := p.transformer.Transform(o, rules, receivedAt, 1)
			if err != nil {
				return nil, err
			}
			candidates = append(candidates, candidate{result: res, export: true})
		}
	}

	var (
		promote, retire []order.Record
		rows            []order.FlatRow
	)
	for _, c := range candidates {
		existing, ok := byID[c.result.Record.ExternalOrderID]
		if !ok {
			continue
		}
		switch {
		case c.result.Record.Flags.Cancelled:
			retire = append(retire, existing.Apply(order.Update{Status: order.StatusCancelled, Cancelled: true, Closed: true, ObservedAt: stamp}))
		case c.result.Record.Stage == order.StageOpen:
			promote = append(promote, order.Merge(existing, c.result.Record))
			if c.export {
				rows = append(rows, c.result.Rows...)
			}
		}
	}

	if report.Promoted, err = p.migrator.Promote(ctx, promote); err != nil {
		return nil, err
	}
	if report.Retired, err = p.migrator.Retire(ctx, retire); err != nil {
		return nil, err
	}
	return rows, nil
}

func (p *InboundPass) export(ctx context.Context, rows []order.FlatRow, at time.Time) ([]string, error) {
	if p.exporter == nil {
		return nil, nil
	}
	stamp := order.FormatTimestamp(at.In(p.settings.Location))

	var entry []order.FlatRow
	for _, r := range rows {
		if r.Order.Stage == order.StageOpen && !r.Order.Flags.Cancelled {
			entry = append(entry, r)
		}
	}

	targets := []struct {
		name    string
		columns []string
		rows    []order.FlatRow
	}{
		{name: "ShopifyAPI_Orders_" + stamp + ".xlsx", columns: p.columns.Reference, rows: rows},
		{name: "OE_NewOrder_" + stamp + "_" + strings.ReplaceAll(p.settings.Customer, ".", "") + ".xlsx", columns: p.columns.OrderEntry, rows: renumber(entry)},
	}

	var out []string
	for _, t := range targets {
		if len(t.rows) == 0 {
			continue
		}
		loc, err := p.exporter.Write(ctx, t.name, t.columns, t.rows)
		if err != nil {
			return out, fmt.Errorf("export %s: %w", t.name, err)
		}
		out = append(out, loc)
	}
	return out, nil
}

func (p *InboundPass) stage(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	return runStage(ctx, integration.SyncPassInbound, name, fn)
}

func splitByStage(results []TransformResult) (open, pending []order.Record) {
	for _, r := range results {
		if r.Record.Stage == order.StagePending {
			pending = append(pending, r.Record)
		} else {
			open = append(open, r.Record)
		}
	}
	return open, pending
}

// renumber assigns consecutive line indices from 1, keeping row order
func renumber(rows []order.FlatRow) []order.FlatRow {
	out := make([]order.FlatRow, len(rows))
	for i, r := range rows {
		r.LineIndex = i + 1
		out[i] = r
	}
	return out
}
