package integration

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Storefront order payload
// ---------------------------------------------------------------------------

// StorefrontOrder is an order as reported by the storefront API.
// Nested structures vary by order type (digital-only orders have no shipping
// address or shipping lines); use the accessors instead of touching the
// optional fields directly.
type StorefrontOrder struct {
	ID              int64
	OrderNumber     int
	CreatedAt       time.Time
	CancelledAt     *time.Time
	ClosedAt        *time.Time
	FinancialStatus string
	Email           string
	CustomerName    string
	TotalPrice      decimal.Decimal
	Tags            []string
	RiskLevel       string
	DiscountCodes   []string
	ShippingAddress *ShipTo
	ShippingLines   []ShippingLine
	LineItems       []StorefrontLineItem
}

// ShipTo is the storefront shipping address
type ShipTo struct {
	Name     string
	Address1 string
	Address2 string
	City     string
	Province string
	Zip      string
	Country  string
	Phone    string
}

// ShippingLine is a storefront shipping charge. Recycling fees are billed as
// shipping lines with a recognisable title.
type ShippingLine struct {
	Title           string
	Price           decimal.Decimal
	DiscountedPrice decimal.Decimal
}

// StorefrontLineItem is one line of a storefront order
type StorefrontLineItem struct {
	ID        int64
	ProductID string
	VariantID string
	SKU       string
	Title     string
	Quantity  int
	Price     decimal.Decimal
	TaxLines  []TaxLine
}

// TaxLine is one tax component charged on a line item
type TaxLine struct {
	Title string
	Rate  decimal.Decimal
	Price decimal.Decimal
}

// FirstCouponCode returns the first non-blank discount code, if any
func (o StorefrontOrder) FirstCouponCode() (string, bool) {
	for _, code := range o.DiscountCodes {
		if code = strings.TrimSpace(code); code != "" {
			return code, true
		}
	}
	return "", false
}

// FeeLine returns the first shipping line whose title contains marker
// (case-insensitive), if any.
func (o StorefrontOrder) FeeLine(marker string) (ShippingLine, bool) {
	if marker == "" {
		return ShippingLine{}, false
	}
	marker = strings.ToLower(marker)
	for _, line := range o.ShippingLines {
		if strings.Contains(strings.ToLower(line.Title), marker) {
			return line, true
		}
	}
	return ShippingLine{}, false
}

// ShipToAddress returns the shipping address, if the order has one
func (o StorefrontOrder) ShipToAddress() (ShipTo, bool) {
	if o.ShippingAddress == nil {
		return ShipTo{}, false
	}
	return *o.ShippingAddress, true
}

// IsCancelled reports whether the storefront cancelled the order
func (o StorefrontOrder) IsCancelled() bool {
	return o.CancelledAt != nil
}

// ---------------------------------------------------------------------------
// Outbound round-trip types
// ---------------------------------------------------------------------------

// OrderState is the slice of storefront order state the reconciliation pass
// reads back after pushing updates.
type OrderState struct {
	ID          int64
	Tags        []string
	CancelledAt *time.Time
	ClosedAt    *time.Time
}

// HasTag reports whether the order already carries tag (case-insensitive)
func (s OrderState) HasTag(tag string) bool {
	for _, t := range s.Tags {
		if strings.EqualFold(strings.TrimSpace(t), tag) {
			return true
		}
	}
	return false
}

// FulfillmentRequest asks the storefront to mark an order shipped
type FulfillmentRequest struct {
	TrackingNumbers []string
	TrackingCompany string
	LocationID      int64
	NotifyCustomer  bool
}

// Fulfillment is the storefront's acknowledgement of a FulfillmentRequest
type Fulfillment struct {
	ID     int64
	Status string
}

// ---------------------------------------------------------------------------
// Ports
// ---------------------------------------------------------------------------

// Storefront is the port to the storefront orders API
type Storefront interface {
	// ListOrdersSince returns one page of orders with id greater than sinceID,
	// ascending by id. An empty page means there is nothing more to read.
	ListOrdersSince(ctx context.Context, sinceID int64, limit int) ([]StorefrontOrder, error)
	// GetOrders returns the orders with the given ids that still exist
	GetOrders(ctx context.Context, ids []int64) ([]StorefrontOrder, error)
	GetOrderState(ctx context.Context, id int64) (OrderState, error)
	UpdateOrderTags(ctx context.Context, id int64, tags []string) error
	CreateFulfillment(ctx context.Context, id int64, req FulfillmentRequest) (Fulfillment, error)
}
