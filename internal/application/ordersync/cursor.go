package ordersync

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ordersync/backend/internal/domain/order"
	"github.com/ordersync/backend/internal/infrastructure/logger"
)

// ErrCursorUnavailable is returned when the cursor lookup fails under CursorAbort
var ErrCursorUnavailable = errors.New("ordersync: cursor unavailable")

// CursorResolver finds where the last inbound sync left off
type CursorResolver struct {
	store  order.Store
	policy CursorFailurePolicy
}

// NewCursorResolver creates a cursor resolver
func NewCursorResolver(store order.Store, policy CursorFailurePolicy) *CursorResolver {
	if policy == "" {
		policy = CursorDegrade
	}
	return &CursorResolver{store: store, policy: policy}
}

// Resolve returns the most recently received order of the open partition,
// falling back to the closed partition. The zero cursor means both are empty
// (or, under CursorDegrade, that the lookup failed).
func (r *CursorResolver) Resolve(ctx context.Context) (order.Cursor, error) {
	for _, stage := range []order.Stage{order.StageOpen, order.StageClosed} {
		recs, err := r.store.Find(ctx, stage, order.Query{Sort: order.CursorOrdering, Limit: 1})
		if err != nil {
			return r.fail(ctx, stage, err)
		}
		if len(recs) > 0 {
			return order.Cursor{
				ExternalOrderID:     recs[0].ExternalOrderID,
				PurchaseOrderNumber: recs[0].PurchaseOrderNumber,
				Stage:               stage,
			}, nil
		}
	}
	return order.Cursor{}, nil
}

func (r *CursorResolver) fail(ctx context.Context, stage order.Stage, err error) (order.Cursor, error) {
	if r.policy == CursorAbort {
		return order.Cursor{}, fmt.Errorf("%w: %s partition: %w", ErrCursorUnavailable, stage, err)
	}
	logger.Stage(ctx, "cursor").Warn("cursor lookup failed, fetching from the earliest order",
		zap.String("partition", stage.String()),
		zap.Error(err),
	)
	return order.Cursor{}, nil
}
