package models

import (
	"github.com/shopspring/decimal"

	"github.com/ordersync/backend/internal/domain/order"
)

// Field names shared by the document model, the indexes and the query builder
const (
	FieldExternalOrderID = "shopify_order_id"
	FieldPurchaseOrder   = "shopify_po"
	FieldDateOrdered     = "date_ordered"
	FieldDateReceived    = "date_received"
	FieldClosed          = "closed"
)

// AddressDocument is the embedded ship-to address
type AddressDocument struct {
	Name     string `bson:"name"`
	Address1 string `bson:"address1"`
	Address2 string `bson:"address2,omitempty"`
	City     string `bson:"city"`
	Province string `bson:"province"`
	Zip      string `bson:"zip"`
	Country  string `bson:"country"`
	Phone    string `bson:"phone,omitempty"`
}

// LineItemDocument is one embedded order line. Money is kept as decimal
// strings so no precision is lost in the document store.
type LineItemDocument struct {
	Index           int    `bson:"index"`
	SKU             string `bson:"sku"`
	Title           string `bson:"title"`
	ProductID       string `bson:"product_id,omitempty"`
	VariantID       string `bson:"variant_id,omitempty"`
	Quantity        int    `bson:"quantity"`
	UnitPrice       string `bson:"unit_price"`
	DiscountRate    string `bson:"discount_rate"`
	DiscountAmount  string `bson:"discount_amount"`
	DiscountedPrice string `bson:"discounted_price"`
	TaxAmount       string `bson:"tax_amount"`
	TaxRate         string `bson:"tax_rate"`
	RecyclingFee    string `bson:"recycling_fee"`
}

// OrderDocument is the persistence model of order.Record. The partition is
// the collection the document lives in, so it is not stored.
type OrderDocument struct {
	ExternalOrderID     string `bson:"shopify_order_id"`
	PurchaseOrderNumber string `bson:"shopify_po"`
	OrderNumber         string `bson:"doc_no"`
	Status              string `bson:"status"`

	Cancelled bool `bson:"cancelled"`
	Posted    bool `bson:"posted"`
	Closed    bool `bson:"closed"`

	DateOrdered     string `bson:"date_ordered"`
	DateReceived    string `bson:"date_received"`
	DateImported    string `bson:"date_imported,omitempty"`
	DateFulfilled   string `bson:"date_fulfilled,omitempty"`
	DatePosted      string `bson:"date_posted,omitempty"`
	DateLastUpdated string `bson:"date_last_updated,omitempty"`
	DateExpiration  string `bson:"date_expiration,omitempty"`

	TrackingNumbers []string `bson:"tracking_no"`
	WarehouseCode   string   `bson:"wh_code,omitempty"`
	Company         string   `bson:"company,omitempty"`
	ErpOrderNumber  string   `bson:"sage_order_number,omitempty"`
	ErpOrderedAt    string   `bson:"date_ordered_sage,omitempty"`

	CustomerName    string             `bson:"customer_name"`
	Email           string             `bson:"email"`
	ShipTo          AddressDocument    `bson:"ship_to"`
	TotalPrice      string             `bson:"total_price"`
	CouponCode      string             `bson:"coupon_code,omitempty"`
	FinancialStatus string             `bson:"financial_status,omitempty"`
	RiskLevel       string             `bson:"risk_level,omitempty"`
	LineItems       []LineItemDocument `bson:"line_items"`
}

// ToDomain converts the document to a record living in stage
func (d *OrderDocument) ToDomain(stage order.Stage) order.Record {
	r := order.Record{
		ExternalOrderID:     d.ExternalOrderID,
		PurchaseOrderNumber: d.PurchaseOrderNumber,
		OrderNumber:         d.OrderNumber,
		Stage:               stage,
		Status:              d.Status,
		Flags:               order.Flags{Cancelled: d.Cancelled, Posted: d.Posted, Closed: d.Closed},
		Timestamps: order.Timestamps{
			OrderedAt:     d.DateOrdered,
			ReceivedAt:    d.DateReceived,
			ImportedAt:    d.DateImported,
			FulfilledAt:   d.DateFulfilled,
			PostedAt:      d.DatePosted,
			LastUpdatedAt: d.DateLastUpdated,
		},
		TrackingNumbers: d.TrackingNumbers,
		WarehouseCode:   d.WarehouseCode,
		Company:         d.Company,
		ErpOrderNumber:  d.ErpOrderNumber,
		ErpOrderedAt:    d.ErpOrderedAt,
		CustomerName:    d.CustomerName,
		Email:           d.Email,
		ShippingAddress: order.Address{
			Name:     d.ShipTo.Name,
			Address1: d.ShipTo.Address1,
			Address2: d.ShipTo.Address2,
			City:     d.ShipTo.City,
			Province: d.ShipTo.Province,
			Zip:      d.ShipTo.Zip,
			Country:  d.ShipTo.Country,
			Phone:    d.ShipTo.Phone,
		},
		TotalPrice:      parseDecimal(d.TotalPrice),
		CouponCode:      d.CouponCode,
		FinancialStatus: d.FinancialStatus,
		RiskLevel:       d.RiskLevel,
		ExpiresAt:       d.DateExpiration,
	}
	if d.LineItems != nil {
		r.LineItems = make([]order.LineItem, 0, len(d.LineItems))
		for _, li := range d.LineItems {
			r.LineItems = append(r.LineItems, order.LineItem{
				Index:           li.Index,
				SKU:             li.SKU,
				Title:           li.Title,
				ProductID:       li.ProductID,
				VariantID:       li.VariantID,
				Quantity:        li.Quantity,
				UnitPrice:       parseDecimal(li.UnitPrice),
				DiscountRate:    parseDecimal(li.DiscountRate),
				DiscountAmount:  parseDecimal(li.DiscountAmount),
				DiscountedPrice: parseDecimal(li.DiscountedPrice),
				TaxAmount:       parseDecimal(li.TaxAmount),
				TaxRate:         parseDecimal(li.TaxRate),
				RecyclingFee:    parseDecimal(li.RecyclingFee),
			})
		}
	}
	return r
}

// FromDomain populates the document from a record
func (d *OrderDocument) FromDomain(r order.Record) {
	d.ExternalOrderID = r.ExternalOrderID
	d.PurchaseOrderNumber = r.PurchaseOrderNumber
	d.OrderNumber = r.OrderNumber
	d.Status = r.Status
	d.Cancelled = r.Flags.Cancelled
	d.Posted = r.Flags.Posted
	d.Closed = r.Flags.Closed
	d.DateOrdered = r.Timestamps.OrderedAt
	d.DateReceived = r.Timestamps.ReceivedAt
	d.DateImported = r.Timestamps.ImportedAt
	d.DateFulfilled = r.Timestamps.FulfilledAt
	d.DatePosted = r.Timestamps.PostedAt
	d.DateLastUpdated = r.Timestamps.LastUpdatedAt
	d.DateExpiration = r.ExpiresAt
	d.TrackingNumbers = r.TrackingNumbers
	if d.TrackingNumbers == nil {
		d.TrackingNumbers = []string{}
	}
	d.WarehouseCode = r.WarehouseCode
	d.Company = r.Company
	d.ErpOrderNumber = r.ErpOrderNumber
	d.ErpOrderedAt = r.ErpOrderedAt
	d.CustomerName = r.CustomerName
	d.Email = r.Email
	a := r.ShippingAddress
	d.ShipTo = AddressDocument{
		Name: a.Name, Address1: a.Address1, Address2: a.Address2, City: a.City,
		Province: a.Province, Zip: a.Zip, Country: a.Country, Phone: a.Phone,
	}
	d.TotalPrice = r.TotalPrice.String()
	d.CouponCode = r.CouponCode
	d.FinancialStatus = r.FinancialStatus
	d.RiskLevel = r.RiskLevel

	d.LineItems = make([]LineItemDocument, 0, len(r.LineItems))
	for _, li := range r.LineItems {
		d.LineItems = append(d.LineItems, LineItemDocument{
			Index:           li.Index,
			SKU:             li.SKU,
			Title:           li.Title,
			ProductID:       li.ProductID,
			VariantID:       li.VariantID,
			Quantity:        li.Quantity,
			UnitPrice:       li.UnitPrice.String(),
			DiscountRate:    li.DiscountRate.String(),
			DiscountAmount:  li.DiscountAmount.String(),
			DiscountedPrice: li.DiscountedPrice.String(),
			TaxAmount:       li.TaxAmount.String(),
			TaxRate:         li.TaxRate.String(),
			RecyclingFee:    li.RecyclingFee.String(),
		})
	}
}

// NewOrderDocument builds the document for r
func NewOrderDocument(r order.Record) *OrderDocument {
	d := &OrderDocument{}
	d.FromDomain(r)
	return d
}

func parseDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
