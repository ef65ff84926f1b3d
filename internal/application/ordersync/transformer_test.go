package ordersync

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ordersync/backend/internal/domain/integration"
	"github.com/ordersync/backend/internal/domain/order"
)

var testReceivedAt = time.Date(2024, 3, 1, 10, 15, 0, 0, time.UTC)

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "want %s, got %s %v", want, got.String(), msgAndArgs)
}

func TestTransform_BuildsRecord(t *testing.T) {
	tr := NewTransformer(testSettings())
	o := storefrontOrder(5001, 1042, pillow("P1", "V1", "49.00"))

	res, next, err := tr.Transform(o, nil, testReceivedAt, 7)
	require.NoError(t, err)

	rec := res.Record
	assert.Equal(t, "5001", rec.ExternalOrderID)
	assert.Equal(t, "ZSH1042", rec.PurchaseOrderNumber)
	assert.Equal(t, "1042", rec.OrderNumber)
	assert.Equal(t, order.StageOpen, rec.Stage)
	assert.Equal(t, order.StatusReceived, rec.Status)
	assert.Equal(t, "20240301_0930", rec.Timestamps.OrderedAt)
	assert.Equal(t, "20240301_1015", rec.Timestamps.ReceivedAt)
	assert.Empty(t, rec.ExpiresAt)
	assert.Equal(t, "Texas", rec.ShippingAddress.Province)

	require.Len(t, res.Rows, 1)
	assert.Equal(t, 7, res.Rows[0].LineIndex)
	assert.Equal(t, 1, res.Rows[0].Item.Index)
	assert.Equal(t, 8, next)
}

func TestTransform_TotalFloor(t *testing.T) {
	tr := NewTransformer(testSettings())

	tests := []struct {
		total string
		want  string
	}{
		{"0", "0.01"},
		{"0.004", "0.01"},
		{"0.01", "0.01"},
		{"12.345", "12.35"},
		{"499", "499.00"},
	}
	for _, tt := range tests {
		t.Run(tt.total, func(t *testing.T) {
			o := storefrontOrder(1, 1)
			o.TotalPrice = dec(tt.total)
			res, _, err := tr.Transform(o, nil, testReceivedAt, 1)
			require.NoError(t, err)
			assertDecimal(t, tt.want, res.Record.TotalPrice)
		})
	}
}

func TestTransform_DistrictOfColumbia(t *testing.T) {
	tr := NewTransformer(testSettings())
	o := storefrontOrder(1, 1)
	o.ShippingAddress.Province = "District of Columbia"

	res, _, err := tr.Transform(o, nil, testReceivedAt, 1)
	require.NoError(t, err)
	assert.Equal(t, "DC", res.Record.ShippingAddress.Province)
}

func TestTransform_RecyclingFee(t *testing.T) {
	tr := NewTransformer(testSettings())

	t.Run("fee split by title multiplier", func(t *testing.T) {
		o := storefrontOrder(1, 1, mattress("P1", "V1", "599.00", 1), pillow("P2", "V2", "49.00"))
		o.ShippingLines = []integration.ShippingLine{
			{Title: "Standard", Price: dec("0"), DiscountedPrice: dec("0")},
			{Title: "RecyclingFee CA 2", Price: dec("10.00"), DiscountedPrice: dec("10.00")},
		}

		res, _, err := tr.Transform(o, nil, testReceivedAt, 1)
		require.NoError(t, err)
		require.Len(t, res.Record.LineItems, 2)
		assertDecimal(t, "5.00", res.Record.LineItems[0].RecyclingFee)
		assertDecimal(t, "0", res.Record.LineItems[1].RecyclingFee, "non-mattress lines carry no fee")
	})

	t.Run("quantity scales the fee and the result is truncated", func(t *testing.T) {
		o := storefrontOrder(1, 1, mattress("P1", "V1", "599.00", 2))
		o.ShippingLines = []integration.ShippingLine{
			{Title: "RecyclingFee 3", Price: dec("10.00"), DiscountedPrice: dec("10.00")},
		}

		res, _, err := tr.Transform(o, nil, testReceivedAt, 1)
		require.NoError(t, err)
		// 10.00 / 3 * 2 = 6.666...
		assertDecimal(t, "6.66", res.Record.LineItems[0].RecyclingFee)
	})

	t.Run("missing multiplier defaults to one", func(t *testing.T) {
		o := storefrontOrder(1, 1, mattress("P1", "V1", "599.00", 1))
		o.ShippingLines = []integration.ShippingLine{
			{Title: "RecyclingFee", Price: dec("10.50"), DiscountedPrice: dec("10.50")},
		}

		res, _, err := tr.Transform(o, nil, testReceivedAt, 1)
		require.NoError(t, err)
		assertDecimal(t, "10.50", res.Record.LineItems[0].RecyclingFee)
	})

	t.Run("no fee line", func(t *testing.T) {
		o := storefrontOrder(1, 1, mattress("P1", "V1", "599.00", 1))

		res, _, err := tr.Transform(o, nil, testReceivedAt, 1)
		require.NoError(t, err)
		assertDecimal(t, "0", res.Record.LineItems[0].RecyclingFee)
	})
}

func TestFeeMultiplier(t *testing.T) {
	assert.Equal(t, int64(2), feeMultiplier("RecyclingFee CA 2"))
	assert.Equal(t, int64(12), feeMultiplier("RecyclingFee x12 "))
	assert.Equal(t, int64(1), feeMultiplier("RecyclingFee"))
	assert.Equal(t, int64(1), feeMultiplier("RecyclingFee 0"))
}

func TestTransform_TaxAggregation(t *testing.T) {
	tr := NewTransformer(testSettings())
	item := pillow("P1", "V1", "49.00")
	item.TaxLines = []integration.TaxLine{
		{Title: "State", Rate: dec("0.0625"), Price: dec("0.337")},
		{Title: "City", Rate: dec("0.02"), Price: dec("0.339")},
	}
	o := storefrontOrder(1, 1, item)

	res, _, err := tr.Transform(o, nil, testReceivedAt, 1)
	require.NoError(t, err)
	li := res.Record.LineItems[0]
	assertDecimal(t, "0.0825", li.TaxRate)
	assertDecimal(t, "0.67", li.TaxAmount, "0.676 truncates, never rounds up")
}

func TestTransform_Discounts(t *testing.T) {
	tr := NewTransformer(testSettings())
	rules := []integration.DiscountRule{
		{Title: "Welcome15", ProductIDs: []string{"P"}, PercentageValue: dec("-15")},
		{Title: "SUMMER10", VariantIDs: []string{"V9"}, PercentageValue: dec("-10")},
	}

	t.Run("promo code matches fuzzily within product scope", func(t *testing.T) {
		o := storefrontOrder(1, 1, mattress("P", "V1", "100.00", 1), pillow("Q", "V2", "40.00"))
		o.DiscountCodes = []string{"ZIN15WELCOME"}

		res, _, err := tr.Transform(o, rules, testReceivedAt, 1)
		require.NoError(t, err)
		assert.Equal(t, "ZIN15WELCOME", res.Record.CouponCode)

		in := res.Record.LineItems[0]
		assertDecimal(t, "0.15", in.DiscountRate)
		assertDecimal(t, "15.00", in.DiscountAmount)
		assertDecimal(t, "85.00", in.DiscountedPrice)

		out := res.Record.LineItems[1]
		assertDecimal(t, "0", out.DiscountRate)
		assertDecimal(t, "40.00", out.DiscountedPrice)
	})

	t.Run("exact code matches by variant", func(t *testing.T) {
		o := storefrontOrder(1, 1, pillow("Q", "V9", "59.99"))
		o.DiscountCodes = []string{"summer10"}

		res, _, err := tr.Transform(o, rules, testReceivedAt, 1)
		require.NoError(t, err)
		li := res.Record.LineItems[0]
		assertDecimal(t, "0.1", li.DiscountRate)
		assertDecimal(t, "6.00", li.DiscountAmount, "5.999 rounds to the cent")
		assertDecimal(t, "53.99", li.DiscountedPrice)
	})

	t.Run("no coupon leaves prices untouched", func(t *testing.T) {
		o := storefrontOrder(1, 1, mattress("P", "V1", "100.00", 1))

		res, _, err := tr.Transform(o, rules, testReceivedAt, 1)
		require.NoError(t, err)
		assert.Empty(t, res.Record.CouponCode)
		assertDecimal(t, "100.00", res.Record.LineItems[0].DiscountedPrice)
	})

	t.Run("discount above the price is rejected", func(t *testing.T) {
		greedy := []integration.DiscountRule{{Title: "FREEBIE", ProductIDs: []string{"P"}, PercentageValue: dec("-150")}}
		o := storefrontOrder(1, 1, mattress("P", "V1", "100.00", 1))
		o.DiscountCodes = []string{"FREEBIE"}

		_, _, err := tr.Transform(o, greedy, testReceivedAt, 1)
		assert.ErrorIs(t, err, order.ErrNegativeAmount)
	})
}

func TestTransform_MissingStructures(t *testing.T) {
	tr := NewTransformer(testSettings())
	o := integration.StorefrontOrder{
		ID:          77,
		OrderNumber: 1500,
		CreatedAt:   time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC),
		TotalPrice:  dec("25.00"),
		LineItems: []integration.StorefrontLineItem{
			{ProductID: "G1", Title: "Gift Card", Quantity: 1, Price: dec("25.00")},
		},
	}

	res, _, err := tr.Transform(o, nil, testReceivedAt, 1)
	require.NoError(t, err)
	assert.Equal(t, order.Address{}, res.Record.ShippingAddress)
	assert.Empty(t, res.Record.CustomerName)
	li := res.Record.LineItems[0]
	assertDecimal(t, "0", li.TaxAmount)
	assertDecimal(t, "0", li.RecyclingFee)
	assertDecimal(t, "25.00", li.DiscountedPrice)
}

func TestTransform_CustomerNameFallsBackToShipTo(t *testing.T) {
	tr := NewTransformer(testSettings())
	o := storefrontOrder(1, 1)
	o.CustomerName = ""

	res, _, err := tr.Transform(o, nil, testReceivedAt, 1)
	require.NoError(t, err)
	assert.Equal(t, "Pat Buyer", res.Record.CustomerName)
}

func TestTransform_PendingRouting(t *testing.T) {
	tr := NewTransformer(testSettings())

	t.Run("unpaid", func(t *testing.T) {
		o := storefrontOrder(1, 1)
		o.FinancialStatus = "pending"
		res, _, err := tr.Transform(o, nil, testReceivedAt, 1)
		require.NoError(t, err)
		assert.Equal(t, order.StagePending, res.Record.Stage)
		assert.Equal(t, "20240304_1015", res.Record.ExpiresAt)
	})

	t.Run("high risk", func(t *testing.T) {
		o := storefrontOrder(1, 1)
		o.RiskLevel = "HIGH"
		res, _, err := tr.Transform(o, nil, testReceivedAt, 1)
		require.NoError(t, err)
		assert.Equal(t, order.StagePending, res.Record.Stage)
	})
}

func TestTransform_CancelledOrderIsFlagged(t *testing.T) {
	tr := NewTransformer(testSettings())
	o := storefrontOrder(1, 1)
	at := testReceivedAt
	o.CancelledAt = &at

	res, _, err := tr.Transform(o, nil, testReceivedAt, 1)
	require.NoError(t, err)
	assert.True(t, res.Record.Flags.Cancelled)
	assert.True(t, res.Record.Flags.Closed)
}

func TestTransform_IsPure(t *testing.T) {
	tr := NewTransformer(testSettings())
	o := storefrontOrder(1, 1, mattress("P", "V1", "100.00", 1))
	o.DiscountCodes = []string{"ZIN15WELCOME"}
	rules := []integration.DiscountRule{{Title: "Welcome15", ProductIDs: []string{"P"}, PercentageValue: dec("-15")}}

	a, _, err := tr.Transform(o, rules, testReceivedAt, 1)
	require.NoError(t, err)
	b, _, err := tr.Transform(o, rules, testReceivedAt, 1)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestTransformBatch_ThreadsLineIndex(t *testing.T) {
	tr := NewTransformer(testSettings())
	orders := []integration.StorefrontOrder{
		storefrontOrder(1, 1, pillow("P1", "V1", "10.00"), pillow("P2", "V2", "10.00")),
		storefrontOrder(2, 2),
		storefrontOrder(3, 3, pillow("P3", "V3", "10.00")),
	}

	results, rows, err := tr.TransformBatch(orders, nil, testReceivedAt)
	require.NoError(t, err)
	require.Len(t, results, 3)
	require.Len(t, rows, 3)
	for i, r := range rows {
		assert.Equal(t, i+1, r.LineIndex)
	}
	assert.Equal(t, "1", rows[1].Order.ExternalOrderID)
	assert.Equal(t, 2, rows[1].Item.Index)
	assert.Equal(t, "3", rows[2].Order.ExternalOrderID)
	assert.Equal(t, 1, rows[2].Item.Index)
}
