package persistence

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ordersync/backend/internal/domain/order"
)

func openRecord(id, po, received string) order.Record {
	return order.Record{
		ExternalOrderID:     id,
		PurchaseOrderNumber: po,
		Stage:               order.StageOpen,
		Status:              order.StatusReceived,
		Timestamps:          order.Timestamps{ReceivedAt: received, OrderedAt: received},
		TotalPrice:          decimal.RequireFromString("10.00"),
		LineItems:           []order.LineItem{{Index: 1, SKU: "PIL-1", Quantity: 1}},
	}
}

func TestMemoryOrderStore_UpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryOrderStore()
	batch := []order.Record{
		openRecord("1", "ZSH1", "20240301_1000"),
		openRecord("2", "ZSH2", "20240301_1000"),
	}

	res, err := store.BulkUpsert(ctx, order.StageOpen, batch)
	require.NoError(t, err)
	assert.Equal(t, order.BulkResult{Upserted: 2}, res)

	res, err = store.BulkUpsert(ctx, order.StageOpen, batch)
	require.NoError(t, err)
	assert.Equal(t, order.BulkResult{Matched: 2}, res)
	assert.Equal(t, 2, store.Count(order.StageOpen))
}

func TestMemoryOrderStore_UpsertMergesIntoStored(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryOrderStore()
	_, err := store.BulkUpsert(ctx, order.StageOpen, []order.Record{openRecord("1", "ZSH1", "20240301_1000")})
	require.NoError(t, err)

	update := order.Record{
		ExternalOrderID: "1",
		Status:          order.StatusFulfilled,
		TrackingNumbers: []string{"1Z1"},
		Flags:           order.Flags{Posted: true},
		Timestamps:      order.Timestamps{ReceivedAt: "20990101_0000"},
	}
	res, err := store.BulkUpsert(ctx, order.StageOpen, []order.Record{update})
	require.NoError(t, err)
	assert.Equal(t, order.BulkResult{Matched: 1, Modified: 1}, res)

	got, err := store.Find(ctx, order.StageOpen, order.Query{ExternalIDs: []string{"1"}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, order.StatusFulfilled, got[0].Status)
	assert.Equal(t, "20240301_1000", got[0].Timestamps.ReceivedAt)
	assert.True(t, got[0].Flags.Posted)
	assert.Len(t, got[0].LineItems, 1)
}

func TestMemoryOrderStore_RejectsBatchWithoutID(t *testing.T) {
	store := NewMemoryOrderStore()
	_, err := store.BulkUpsert(context.Background(), order.StageOpen, []order.Record{
		openRecord("1", "ZSH1", "20240301_1000"),
		{PurchaseOrderNumber: "ZSH2"},
	})
	assert.ErrorIs(t, err, order.ErrStoreWriteFailure)
	assert.ErrorIs(t, err, order.ErrMissingExternalID)
	assert.Zero(t, store.Count(order.StageOpen))
}

func TestMemoryOrderStore_FindSortLimitAndClone(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryOrderStore()
	_, err := store.BulkUpsert(ctx, order.StageOpen, []order.Record{
		openRecord("1", "ZSH1", "20240301_1000"),
		openRecord("2", "ZSH2", "20240302_1000"),
		openRecord("3", "ZSH3", "20240301_1200"),
	})
	require.NoError(t, err)

	got, err := store.Find(ctx, order.StageOpen, order.Query{Sort: order.CursorOrdering, Limit: 2})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "2", got[0].ExternalOrderID)
	assert.Equal(t, "3", got[1].ExternalOrderID)

	got[0].LineItems[0].SKU = "mutated"
	again, err := store.Find(ctx, order.StageOpen, order.Query{ExternalIDs: []string{"2"}})
	require.NoError(t, err)
	assert.Equal(t, "PIL-1", again[0].LineItems[0].SKU)
}

func TestMemoryOrderStore_BulkDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryOrderStore()
	_, err := store.BulkUpsert(ctx, order.StageClosed, []order.Record{
		openRecord("1", "ZSH1", "20240301_1000"),
		openRecord("2", "ZSH2", "20240301_1000"),
	})
	require.NoError(t, err)

	n, err := store.BulkDelete(ctx, order.StageClosed, []string{"2", "missing"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 1, store.Count(order.StageClosed))
}

func TestMemoryOrderStore_InvalidStage(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryOrderStore()

	_, err := store.Find(ctx, order.Stage("archived"), order.Query{})
	assert.ErrorIs(t, err, order.ErrInvalidStage)

	_, err = store.BulkUpsert(ctx, order.Stage("archived"), []order.Record{openRecord("1", "ZSH1", "x")})
	assert.ErrorIs(t, err, order.ErrStoreWriteFailure)
	assert.ErrorIs(t, err, order.ErrInvalidStage)
	assert.NoError(t, store.Ping(ctx))
}
