package ordersync

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ordersync/backend/internal/domain/order"
)

func seed(t *testing.T, store order.Store, stage order.Stage, recs ...order.Record) {
	t.Helper()
	_, err := store.BulkUpsert(context.Background(), stage, recs)
	require.NoError(t, err)
}

func rec(id, po, received string) order.Record {
	return order.Record{
		ExternalOrderID:     id,
		PurchaseOrderNumber: po,
		Status:              order.StatusReceived,
		Timestamps:          order.Timestamps{ReceivedAt: received, OrderedAt: received},
	}
}

func TestCursorResolver_EmptyStore(t *testing.T) {
	r := NewCursorResolver(newFaultyStore(), CursorDegrade)

	c, err := r.Resolve(context.Background())
	require.NoError(t, err)
	assert.True(t, c.IsZero())
}

func TestCursorResolver_PrefersOpen(t *testing.T) {
	store := newFaultyStore()
	seed(t, store, order.StageOpen,
		rec("10", "ZSH10", "20240301_0900"),
		rec("12", "ZSH12", "20240301_1000"),
		rec("11", "ZSH11", "20240301_1000"),
	)
	seed(t, store, order.StageClosed, rec("99", "ZSH99", "20240305_0000"))

	c, err := NewCursorResolver(store, CursorDegrade).Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, order.Cursor{ExternalOrderID: "12", PurchaseOrderNumber: "ZSH12", Stage: order.StageOpen}, c,
		"latest received wins, ties broken by PO descending")
}

func TestCursorResolver_FallsBackToClosed(t *testing.T) {
	store := newFaultyStore()
	seed(t, store, order.StageClosed, rec("7", "ZSH7", "20240201_0900"))

	c, err := NewCursorResolver(store, CursorDegrade).Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "7", c.ExternalOrderID)
	assert.Equal(t, order.StageClosed, c.Stage)
}

func TestCursorResolver_LookupFailure(t *testing.T) {
	store := newFaultyStore()
	seed(t, store, order.StageOpen, rec("10", "ZSH10", "20240301_0900"))
	store.findErr = errors.New("connection refused")

	t.Run("degrade", func(t *testing.T) {
		c, err := NewCursorResolver(store, CursorDegrade).Resolve(context.Background())
		require.NoError(t, err)
		assert.True(t, c.IsZero())
	})

	t.Run("abort", func(t *testing.T) {
		_, err := NewCursorResolver(store, CursorAbort).Resolve(context.Background())
		assert.ErrorIs(t, err, ErrCursorUnavailable)
		assert.ErrorContains(t, err, "connection refused")
	})
}
