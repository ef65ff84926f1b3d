package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSortRecords_CursorOrdering(t *testing.T) {
	records := []Record{
		{ExternalOrderID: "1", PurchaseOrderNumber: "ZSH1", Timestamps: Timestamps{ReceivedAt: "20240101_1000", OrderedAt: "20240101_0900"}},
		{ExternalOrderID: "3", PurchaseOrderNumber: "ZSH3", Timestamps: Timestamps{ReceivedAt: "20240102_1000", OrderedAt: "20240101_0800"}},
		{ExternalOrderID: "2", PurchaseOrderNumber: "ZSH2", Timestamps: Timestamps{ReceivedAt: "20240102_1000", OrderedAt: "20240101_0930"}},
		{ExternalOrderID: "4", PurchaseOrderNumber: "ZSH3", Timestamps: Timestamps{ReceivedAt: "20240102_1000", OrderedAt: "20240101_0930"}},
	}

	SortRecords(records, CursorOrdering)

	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ExternalOrderID
	}
	assert.Equal(t, []string{"4", "3", "2", "1"}, ids)
}

func TestSortRecords_PurchaseOrderIsNumeric(t *testing.T) {
	records := []Record{
		{ExternalOrderID: "6000", PurchaseOrderNumber: "ZSH1000", Timestamps: Timestamps{ReceivedAt: "20240301_1015"}},
		{ExternalOrderID: "5999", PurchaseOrderNumber: "ZSH999", Timestamps: Timestamps{ReceivedAt: "20240301_1015"}},
	}

	SortRecords(records, CursorOrdering)

	assert.Equal(t, "6000", records[0].ExternalOrderID)
}

func TestCompareNatural(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"ZSH999", "ZSH1000", -1},
		{"ZSH1000", "ZSH999", 1},
		{"ZSH12", "ZSH12", 0},
		{"ZSH007", "ZSH7", 0},
		{"ZSH2", "ZSI1", -1},
		{"20240301_0915", "20240301_1015", -1},
		{"ZSH", "ZSH1", -1},
		{"", "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.a+"_"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.want, CompareNatural(tt.a, tt.b))
		})
	}
}

func TestQueryMatches(t *testing.T) {
	r := Record{ExternalOrderID: "7", PurchaseOrderNumber: "ZSH7", Flags: Flags{Closed: true}}

	assert.True(t, Query{}.Matches(r))
	assert.True(t, Query{ExternalIDs: []string{"1", "7"}}.Matches(r))
	assert.False(t, Query{ExternalIDs: []string{"1"}}.Matches(r))
	assert.True(t, Query{PurchaseOrders: []string{"ZSH7"}, ClosedOnly: true}.Matches(r))

	r.Flags.Closed = false
	assert.False(t, Query{ClosedOnly: true}.Matches(r))
}

func TestStage(t *testing.T) {
	assert.True(t, StagePending.CanMoveTo(StageOpen))
	assert.True(t, StageOpen.CanMoveTo(StageClosed))
	assert.True(t, StageOpen.CanMoveTo(StageOpen))
	assert.False(t, StageClosed.CanMoveTo(StageOpen))
	assert.False(t, StageOpen.CanMoveTo(Stage("archived")))
	assert.Equal(t, 0, Stage("bogus").Rank())
}

func TestFlatRowValues(t *testing.T) {
	row := FlatRow{LineIndex: 12, Order: sampleRecord(), Item: sampleRecord().LineItems[0]}

	vals, err := row.Values([]string{ColLineIndex, ColPurchaseOrder, ColSKU, ColUnitPrice})
	require.NoError(t, err)
	assert.Equal(t, []string{"12", "ZSH1001", "MAT-Q", "99.00"}, vals)

	_, err = row.Values([]string{"nope"})
	assert.ErrorIs(t, err, ErrUnknownExportColumn)

	_, err = row.Values(AllColumns)
	assert.NoError(t, err)
}
