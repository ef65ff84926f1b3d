package order

import (
	"cmp"
	"context"
	"slices"
	"strings"
)

// SortField names a sortable record attribute
type SortField string

const (
	SortByReceivedAt    SortField = "received_at"
	SortByPurchaseOrder SortField = "purchase_order"
	SortByOrderedAt     SortField = "ordered_at"
	SortByExternalID    SortField = "external_order_id"
)

// SortKey is one component of a multi-key ordering
type SortKey struct {
	Field SortField
	Desc  bool
}

// CursorOrdering is the ordering used to find the most recently received order
var CursorOrdering = []SortKey{
	{Field: SortByReceivedAt, Desc: true},
	{Field: SortByPurchaseOrder, Desc: true},
	{Field: SortByOrderedAt, Desc: true},
}

// Query selects records within one partition. Empty filters match everything.
type Query struct {
	ExternalIDs    []string
	PurchaseOrders []string
	ClosedOnly     bool
	Sort           []SortKey
	Limit          int
}

// Matches reports whether r satisfies the filters of q
func (q Query) Matches(r Record) bool {
	if len(q.ExternalIDs) > 0 && !slices.Contains(q.ExternalIDs, r.ExternalOrderID) {
		return false
	}
	if len(q.PurchaseOrders) > 0 && !slices.Contains(q.PurchaseOrders, r.PurchaseOrderNumber) {
		return false
	}
	if q.ClosedOnly && !r.Flags.Closed {
		return false
	}
	return true
}

// SortRecords orders records in place by keys; ties keep their input order.
// Digit runs compare by numeric value, so ZSH999 sorts before ZSH1000.
func SortRecords(records []Record, keys []SortKey) {
	if len(keys) == 0 {
		return
	}
	slices.SortStableFunc(records, func(a, b Record) int {
		for _, k := range keys {
			c := CompareNatural(sortValue(a, k.Field), sortValue(b, k.Field))
			if k.Desc {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	})
}

// CompareNatural compares a and b run by run: digit runs by numeric value,
// everything else bytewise. Leading zeros do not count.
func CompareNatural(a, b string) int {
	for a != "" && b != "" {
		ra, rb := leadingRun(a), leadingRun(b)
		var c int
		if isDigit(ra[0]) && isDigit(rb[0]) {
			na, nb := strings.TrimLeft(ra, "0"), strings.TrimLeft(rb, "0")
			if c = cmp.Compare(len(na), len(nb)); c == 0 {
				c = strings.Compare(na, nb)
			}
		} else {
			c = strings.Compare(ra, rb)
		}
		if c != 0 {
			return c
		}
		a, b = a[len(ra):], b[len(rb):]
	}
	return cmp.Compare(len(a), len(b))
}

// leadingRun returns the longest prefix of s made only of digits or only of
// non-digits
func leadingRun(s string) string {
	digit := isDigit(s[0])
	i := 1
	for i < len(s) && isDigit(s[i]) == digit {
		i++
	}
	return s[:i]
}

func isDigit(b byte) bool {
	return '0' <= b && b <= '9'
}

func sortValue(r Record, f SortField) string {
	switch f {
	case SortByReceivedAt:
		return r.Timestamps.ReceivedAt
	case SortByPurchaseOrder:
		return r.PurchaseOrderNumber
	case SortByOrderedAt:
		return r.Timestamps.OrderedAt
	default:
		return r.ExternalOrderID
	}
}

// BulkResult reports the outcome of one bulk upsert
type BulkResult struct {
	Matched  int64
	Upserted int64
	Modified int64
}

// Add accumulates another result into r
func (r *BulkResult) Add(o BulkResult) {
	r.Matched += o.Matched
	r.Upserted += o.Upserted
	r.Modified += o.Modified
}

// Store is the order store port. Each stage is a separate partition.
//
// BulkUpsert keys records by ExternalOrderID and folds each into any stored
// record with Merge; it is the single write path for inserts and
// update-by-key. Implementations either report the whole batch or fail with
// ErrStoreWriteFailure.
type Store interface {
	Find(ctx context.Context, stage Stage, q Query) ([]Record, error)
	BulkUpsert(ctx context.Context, stage Stage, records []Record) (BulkResult, error)
	BulkDelete(ctx context.Context, stage Stage, externalIDs []string) (int64, error)
	Ping(ctx context.Context) error
}

// Cursor is the last synced storefront order; the zero value means none.
type Cursor struct {
	ExternalOrderID     string
	PurchaseOrderNumber string
	Stage               Stage
}

// IsZero reports whether no cursor was found
func (c Cursor) IsZero() bool {
	return c.ExternalOrderID == ""
}
