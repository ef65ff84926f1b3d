package ordersync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ordersync/backend/internal/domain/order"
	"github.com/ordersync/backend/internal/infrastructure/logger"
)

// UpsertEngine writes order records into a partition of the order store.
// It does not serialize callers; run-level exclusion is the scheduler's job.
type UpsertEngine struct {
	store order.Store
	now   func() time.Time
	loc   *time.Location
}

// NewUpsertEngine creates an upsert engine
func NewUpsertEngine(store order.Store, loc *time.Location) *UpsertEngine {
	if loc == nil {
		loc = time.UTC
	}
	return &UpsertEngine{store: store, now: time.Now, loc: loc}
}

// Upsert writes records into stage in one bulk operation keyed by external
// order id. New ids are inserted; known ids are merged (see order.Merge).
// Either the whole batch result is returned or the call fails with
// order.ErrStoreWriteFailure.
func (e *UpsertEngine) Upsert(ctx context.Context, stage order.Stage, records []order.Record) (order.BulkResult, error) {
	if len(records) == 0 {
		return order.BulkResult{}, nil
	}
	if !stage.IsValid() {
		return order.BulkResult{}, fmt.Errorf("%w: %q", order.ErrInvalidStage, stage)
	}

	stamp := order.FormatTimestamp(e.now().In(e.loc))
	batch := make([]order.Record, len(records))
	for i, r := range records {
		if r.ExternalOrderID == "" {
			return order.BulkResult{}, fmt.Errorf("%w: record %d of batch", order.ErrMissingExternalID, i)
		}
		if r.Timestamps.ReceivedAt == "" {
			r.Timestamps.ReceivedAt = stamp
		}
		r.Timestamps.LastUpdatedAt = stamp
		r.Stage = stage
		batch[i] = r
	}

	res, err := e.store.BulkUpsert(ctx, stage, batch)
	if err != nil {
		if !errors.Is(err, order.ErrStoreWriteFailure) {
			err = fmt.Errorf("%w: %w", order.ErrStoreWriteFailure, err)
		}
		return order.BulkResult{}, err
	}

	logger.Stage(ctx, "upsert").Info("bulk upsert finished",
		zap.String("partition", stage.String()),
		zap.Int("records", len(batch)),
		zap.Int64("matched", res.Matched),
		zap.Int64("upserted", res.Upserted),
		zap.Int64("modified", res.Modified),
	)
	return res, nil
}

// ApplyUpdates is the bulk update-by-PO path: open records whose purchase
// order number appears in updates are folded with their update and written
// back. Updates naming unknown POs are returned unapplied.
func (e *UpsertEngine) ApplyUpdates(ctx context.Context, updates []order.Update) (order.BulkResult, []order.Update, error) {
	if len(updates) == 0 {
		return order.BulkResult{}, nil, nil
	}

	pos := make([]string, 0, len(updates))
	for _, u := range updates {
		pos = append(pos, u.PurchaseOrderNumber)
	}
	recs, err := e.store.Find(ctx, order.StageOpen, order.Query{PurchaseOrders: pos})
	if err != nil {
		return order.BulkResult{}, nil, fmt.Errorf("%w: load open orders by po: %w", order.ErrStoreReadFailure, err)
	}

	byPO := make(map[string][]order.Record, len(recs))
	for _, r := range recs {
		byPO[r.PurchaseOrderNumber] = append(byPO[r.PurchaseOrderNumber], r)
	}

	var (
		changed   []order.Record
		unmatched []order.Update
	)
	for _, u := range updates {
		matches, ok := byPO[u.PurchaseOrderNumber]
		if !ok {
			unmatched = append(unmatched, u)
			continue
		}
		for _, r := range matches {
			changed = append(changed, r.Apply(u))
		}
	}

	res, err := e.Upsert(ctx, order.StageOpen, changed)
	return res, unmatched, err
}
