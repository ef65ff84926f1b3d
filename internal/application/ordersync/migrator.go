package ordersync

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ordersync/backend/internal/domain/order"
	"github.com/ordersync/backend/internal/infrastructure/logger"
)

// MigrationResult reports one move between partitions. Inserted counts the
// target copies the move wrote, Merged of which were already there from an
// earlier interrupted move.
type MigrationResult struct {
	Inserted int64
	Merged   int64
	Removed  int64
}

// SweepResult reports the duplicates a sweep repaired
type SweepResult struct {
	OpenClosed     int
	PendingLater   int
	RemovedOpen    int64
	RemovedPending int64
}

// Migrator moves records forward between lifecycle partitions. A move is an
// insert into the target followed by a delete from the source, never the
// other way round: an interruption leaves a duplicate for Sweep to repair
// instead of losing the record.
type Migrator struct {
	store  order.Store
	engine *UpsertEngine
}

// NewMigrator creates a lifecycle migrator
func NewMigrator(store order.Store, engine *UpsertEngine) *Migrator {
	return &Migrator{store: store, engine: engine}
}

// MigrateClosed moves every open record flagged closed into the closed
// partition. Re-running it is harmless: the insert is an upsert by id.
func (m *Migrator) MigrateClosed(ctx context.Context) (MigrationResult, error) {
	recs, err := m.store.Find(ctx, order.StageOpen, order.Query{ClosedOnly: true})
	if err != nil {
		return MigrationResult{}, fmt.Errorf("%w: find closed open orders: %w", order.ErrStoreReadFailure, err)
	}
	if len(recs) == 0 {
		return MigrationResult{}, nil
	}
	return m.move(ctx, recs, order.StageOpen, order.StageClosed)
}

// Promote moves pending records into the open partition
func (m *Migrator) Promote(ctx context.Context, recs []order.Record) (MigrationResult, error) {
	return m.move(ctx, recs, order.StagePending, order.StageOpen)
}

// Retire moves pending records straight to the closed partition
func (m *Migrator) Retire(ctx context.Context, recs []order.Record) (MigrationResult, error) {
	return m.move(ctx, recs, order.StagePending, order.StageClosed)
}

func (m *Migrator) move(ctx context.Context, recs []order.Record, from, to order.Stage) (MigrationResult, error) {
	var result MigrationResult
	if len(recs) == 0 {
		return result, nil
	}
	if !from.CanMoveTo(to) {
		return result, fmt.Errorf("%w: %s to %s", order.ErrStageRegression, from, to)
	}

	res, err := m.engine.Upsert(ctx, to, recs)
	if err != nil {
		return result, fmt.Errorf("insert into %s: %w", to, err)
	}
	result.Inserted = res.Upserted + res.Matched
	result.Merged = res.Matched

	ids := externalIDs(recs)
	result.Removed, err = m.store.BulkDelete(ctx, from, ids)
	if err != nil {
		return result, fmt.Errorf("%w: delete %d moved orders from %s: %w", order.ErrStoreWriteFailure, len(ids), from, err)
	}

	logger.Stage(ctx, "migrate").Info("moved orders between partitions",
		zap.String("from", from.String()),
		zap.String("to", to.String()),
		zap.Int64("inserted", result.Inserted),
		zap.Int64("merged", result.Merged),
		zap.Int64("removed", result.Removed),
	)
	return result, nil
}

// Sweep detects ids present in more than one partition and keeps only the
// most advanced copy, merging the earlier copies into it first.
func (m *Migrator) Sweep(ctx context.Context) (SweepResult, error) {
	var result SweepResult

	open, err := m.store.Find(ctx, order.StageOpen, order.Query{})
	if err != nil {
		return result, fmt.Errorf("%w: list open orders: %w", order.ErrStoreReadFailure, err)
	}
	var dupOpen []order.Record
	if len(open) > 0 {
		dupOpen, err = m.store.Find(ctx, order.StageClosed, order.Query{ExternalIDs: externalIDs(open)})
		if err != nil {
			return result, fmt.Errorf("%w: match closed orders: %w", order.ErrStoreReadFailure, err)
		}
	}
	if len(dupOpen) > 0 {
		stale := pick(open, externalIDs(dupOpen))
		for i := range stale {
			stale[i].Flags.Closed = true
		}
		result.OpenClosed = len(stale)
		moved, err := m.move(ctx, stale, order.StageOpen, order.StageClosed)
		result.RemovedOpen = moved.Removed
		if err != nil {
			return result, err
		}
	}

	pending, err := m.store.Find(ctx, order.StagePending, order.Query{})
	if err != nil {
		return result, fmt.Errorf("%w: list pending orders: %w", order.ErrStoreReadFailure, err)
	}
	if len(pending) == 0 {
		return result, nil
	}
	pendingIDs := externalIDs(pending)
	var later []string
	for _, stage := range []order.Stage{order.StageOpen, order.StageClosed} {
		found, err := m.store.Find(ctx, stage, order.Query{ExternalIDs: pendingIDs})
		if err != nil {
			return result, fmt.Errorf("%w: match %s orders: %w", order.ErrStoreReadFailure, stage, err)
		}
		later = append(later, externalIDs(found)...)
	}
	if len(later) > 0 {
		result.PendingLater = len(later)
		result.RemovedPending, err = m.store.BulkDelete(ctx, order.StagePending, later)
		if err != nil {
			return result, fmt.Errorf("%w: delete superseded pending orders: %w", order.ErrStoreWriteFailure, err)
		}
	}
	return result, nil
}

func externalIDs(recs []order.Record) []string {
	ids := make([]string, len(recs))
	for i, r := range recs {
		ids[i] = r.ExternalOrderID
	}
	return ids
}

func pick(recs []order.Record, ids []string) []order.Record {
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	var out []order.Record
	for _, r := range recs {
		if _, ok := want[r.ExternalOrderID]; ok {
			out = append(out, r)
		}
	}
	return out
}
