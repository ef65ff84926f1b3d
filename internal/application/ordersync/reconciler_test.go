package ordersync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ordersync/backend/internal/domain/integration"
	"github.com/ordersync/backend/internal/domain/order"
)

func newTestReconciler(t *testing.T, policy TieBreakPolicy) (*Reconciler, *observer.ObservedLogs) {
	t.Helper()
	s := testSettings()
	s.TieBreak = policy
	require.NoError(t, s.Validate())
	core, logs := observer.New(zapcore.WarnLevel)
	r := NewReconciler(s, zap.New(core))
	r.now = fixedClock(time.Date(2024, 3, 2, 8, 0, 0, 0, time.UTC))
	return r, logs
}

func TestReconciler_Status(t *testing.T) {
	r, _ := newTestReconciler(t, TieBreakLastTracked)

	tests := []struct {
		name   string
		row    integration.ErpRow
		status string
		closed bool
	}{
		{"cancel hold", integration.ErpRow{OnHold: true, HoldReason: "Customer CANCELLED"}, order.StatusCancelled, true},
		{"cancel beats tracking", integration.ErpRow{OnHold: true, HoldReason: "cancel", ShipTrack: "1Z1"}, order.StatusCancelled, true},
		{"out of stock", integration.ErpRow{OnHold: true, HoldReason: "Out of Stock"}, order.OnHold("out of stock"), false},
		{"tracked", integration.ErpRow{ShipTrack: "1Z1, 1Z2"}, order.StatusFulfilled, false},
		{"tracked with noise hold", integration.ErpRow{OnHold: true, HoldReason: "Duplicate", ShipTrack: "1Z1"}, order.StatusFulfilled, false},
		{"tracked with real hold", integration.ErpRow{OnHold: true, HoldReason: "address check", ShipTrack: "1Z1"}, order.OnHold("address check"), false},
		{"hold without tracking", integration.ErpRow{OnHold: true, HoldReason: "address check"}, order.OnHold("address check"), false},
		{"noise hold without tracking", integration.ErpRow{OnHold: true, HoldReason: "duplicate"}, order.StatusImported, false},
		{"reason without hold flag is ignored", integration.ErpRow{HoldReason: "cancel"}, order.StatusImported, false},
		{"plain import", integration.ErpRow{}, order.StatusImported, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.row.PurchaseOrderNumber = "ZSH1"
			updates, _ := r.ReconcileErpRows([]integration.ErpRow{tt.row})
			require.Len(t, updates, 1)
			assert.Equal(t, tt.status, updates[0].Status)
			assert.Equal(t, tt.closed, updates[0].Closed)
			assert.Equal(t, tt.closed, updates[0].Cancelled)
		})
	}
}

func TestReconciler_MapsErpFields(t *testing.T) {
	r, _ := newTestReconciler(t, TieBreakLastTracked)
	updates, report := r.ReconcileErpRows([]integration.ErpRow{{
		PurchaseOrderNumber: " ZSH5 ",
		ErpOrderNumber:      "ORD0005 ",
		WarehouseCode:       "CA1",
		Company:             "ZINUS",
		OrderDate:           time.Date(2024, 2, 28, 0, 0, 0, 0, time.UTC),
		ShipTrack:           "1Z9,,1Z9 ",
	}})

	require.Len(t, updates, 1)
	u := updates[0]
	assert.Equal(t, "ZSH5", u.PurchaseOrderNumber)
	assert.Equal(t, "ORD0005", u.ErpOrderNumber)
	assert.Equal(t, "CA1", u.WarehouseCode)
	assert.Equal(t, "ZINUS", u.Company)
	assert.Equal(t, "20240228_0000", u.ErpOrderedAt)
	assert.Equal(t, []string{"1Z9"}, u.TrackingNumbers)
	assert.Equal(t, "20240302_0800", u.ObservedAt)
	assert.Equal(t, ReconcileReport{Rows: 1, Orders: 1}, report)
}

func TestReconciler_GroupsInFirstAppearanceOrder(t *testing.T) {
	r, _ := newTestReconciler(t, TieBreakLastTracked)
	updates, report := r.ReconcileErpRows([]integration.ErpRow{
		{PurchaseOrderNumber: "ZSH3"},
		{PurchaseOrderNumber: "ZSH1"},
		{PurchaseOrderNumber: ""},
		{PurchaseOrderNumber: "ZSH3 ", ShipTrack: "1Z3"},
	})

	require.Len(t, updates, 2)
	assert.Equal(t, "ZSH3", updates[0].PurchaseOrderNumber)
	assert.Equal(t, order.StatusFulfilled, updates[0].Status)
	assert.Equal(t, "ZSH1", updates[1].PurchaseOrderNumber)
	assert.Equal(t, 4, report.Rows)
	assert.Equal(t, 2, report.Orders)
}

func TestReconciler_TieBreak(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC) }

	t.Run("tracked row supersedes untracked rows either side", func(t *testing.T) {
		rows := []integration.ErpRow{
			{PurchaseOrderNumber: "ZSH1", ErpOrderNumber: "A", OrderDate: day(1)},
			{PurchaseOrderNumber: "ZSH1", ErpOrderNumber: "B", OrderDate: day(2), ShipTrack: "T1"},
			{PurchaseOrderNumber: "ZSH1", ErpOrderNumber: "C", OrderDate: day(3)},
		}
		for _, policy := range []TieBreakPolicy{TieBreakLastTracked, TieBreakFirstTracked} {
			r, logs := newTestReconciler(t, policy)
			updates, report := r.ReconcileErpRows(rows)
			require.Len(t, updates, 1)
			assert.Equal(t, "B", updates[0].ErpOrderNumber, policy)
			assert.Empty(t, report.Ambiguous)
			assert.Zero(t, logs.Len())
		}

		r, _ := newTestReconciler(t, TieBreakLatestOrderDate)
		updates, _ := r.ReconcileErpRows(rows)
		assert.Equal(t, "C", updates[0].ErpOrderNumber)
		assert.Equal(t, order.StatusImported, updates[0].Status)
	})

	t.Run("conflicting tracking is resolved per policy and reported", func(t *testing.T) {
		rows := []integration.ErpRow{
			{PurchaseOrderNumber: "ZSH1", ErpOrderNumber: "A", OrderDate: day(3), ShipTrack: "T1"},
			{PurchaseOrderNumber: "ZSH1", ErpOrderNumber: "B", OrderDate: day(1), ShipTrack: "T2"},
			{PurchaseOrderNumber: "ZSH1", ErpOrderNumber: "C", OrderDate: day(2)},
		}
		want := map[TieBreakPolicy]string{
			TieBreakLastTracked:     "B",
			TieBreakFirstTracked:    "A",
			TieBreakLatestOrderDate: "A",
		}
		for policy, erpOrder := range want {
			r, logs := newTestReconciler(t, policy)
			updates, report := r.ReconcileErpRows(rows)
			require.Len(t, updates, 1)
			assert.Equal(t, erpOrder, updates[0].ErpOrderNumber, policy)
			assert.Equal(t, []string{"ZSH1"}, report.Ambiguous)

			require.Equal(t, 1, logs.Len())
			entry := logs.All()[0]
			assert.Equal(t, "ZSH1", entry.ContextMap()["po"])
			assert.Equal(t, string(policy), entry.ContextMap()["policy"])
		}
	})

	t.Run("same tracking on every row is not ambiguous", func(t *testing.T) {
		r, _ := newTestReconciler(t, TieBreakLastTracked)
		_, report := r.ReconcileErpRows([]integration.ErpRow{
			{PurchaseOrderNumber: "ZSH1", ShipTrack: "T1,T2"},
			{PurchaseOrderNumber: "ZSH1", ShipTrack: "T1, T2"},
		})
		assert.Empty(t, report.Ambiguous)
	})
}
