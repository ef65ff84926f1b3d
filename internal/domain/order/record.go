package order

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Status values written by the pipeline and the ERP reconciler.
// On-hold statuses carry their reason, see OnHold.
const (
	StatusReceived  = "received"
	StatusImported  = "imported"
	StatusFulfilled = "fulfilled"
	StatusCancelled = "cancelled"

	onHoldPrefix = "on-hold: "
)

// OnHold builds the status for an order the ERP holds for reason
func OnHold(reason string) string {
	return onHoldPrefix + strings.TrimSpace(reason)
}

// IsOnHold reports whether status is an on-hold status
func IsOnHold(status string) bool {
	return strings.HasPrefix(status, onHoldPrefix)
}

// statusRank keeps status from sliding backward when an older observation
// arrives after a newer one; on-hold and imported share a rank.
func statusRank(status string) int {
	switch {
	case status == "":
		return 0
	case status == StatusReceived:
		return 1
	case status == StatusImported, IsOnHold(status):
		return 2
	case status == StatusFulfilled:
		return 3
	case status == StatusCancelled:
		return 4
	default:
		return 2
	}
}

// Flags are monotonic: once set they stay set.
type Flags struct {
	Cancelled bool
	Posted    bool
	Closed    bool
}

func (f Flags) or(o Flags) Flags {
	return Flags{
		Cancelled: f.Cancelled || o.Cancelled,
		Posted:    f.Posted || o.Posted,
		Closed:    f.Closed || o.Closed,
	}
}

// Timestamps are stored in TimestampLayout. All are write-once except LastUpdatedAt.
type Timestamps struct {
	OrderedAt     string
	ReceivedAt    string
	ImportedAt    string
	FulfilledAt   string
	PostedAt      string
	LastUpdatedAt string
}

// Address is the ship-to address of an order
type Address struct {
	Name     string
	Address1 string
	Address2 string
	City     string
	Province string
	Zip      string
	Country  string
	Phone    string
}

// LineItem is one positional line of an order. Index is 1-based within the order.
type LineItem struct {
	Index           int
	SKU             string
	Title           string
	ProductID       string
	VariantID       string
	Quantity        int
	UnitPrice       decimal.Decimal
	DiscountRate    decimal.Decimal
	DiscountAmount  decimal.Decimal
	DiscountedPrice decimal.Decimal
	TaxAmount       decimal.Decimal
	TaxRate         decimal.Decimal
	RecyclingFee    decimal.Decimal
}

// Record is one storefront order as kept in the order store
type Record struct {
	ExternalOrderID     string
	PurchaseOrderNumber string
	OrderNumber         string
	Stage               Stage
	Status              string
	Flags               Flags
	Timestamps          Timestamps
	TrackingNumbers     []string

	// Populated by ERP reconciliation only.
	WarehouseCode  string
	Company        string
	ErpOrderNumber string
	ErpOrderedAt   string

	CustomerName    string
	Email           string
	ShippingAddress Address
	TotalPrice      decimal.Decimal
	CouponCode      string
	FinancialStatus string
	RiskLevel       string
	ExpiresAt       string

	LineItems []LineItem
}

// HasTracking reports whether at least one tracking number is known
func (r Record) HasTracking() bool {
	return len(r.TrackingNumbers) > 0
}

// NeedsFulfillmentPost reports whether the storefront still has to be told
// about the shipment of r.
func (r Record) NeedsFulfillmentPost() bool {
	return r.HasTracking() && !r.Flags.Posted && !r.Flags.Cancelled
}

// SplitTracking splits comma-joined tracking fields, trims each entry, drops
// empty ones and removes duplicates while keeping first-seen order.
func SplitTracking(fields ...string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, field := range fields {
		for _, part := range strings.Split(field, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if _, dup := seen[part]; dup {
				continue
			}
			seen[part] = struct{}{}
			out = append(out, part)
		}
	}
	return out
}

func unionTracking(a, b []string) []string {
	if len(b) == 0 {
		return a
	}
	return SplitTracking(append(append([]string{}, a...), b...)...)
}
