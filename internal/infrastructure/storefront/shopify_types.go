package storefront

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ordersync/backend/internal/domain/integration"
)

// MaxPageSize is the largest page the orders endpoint returns
const MaxPageSize = 250

// ShopifyOrdersResponse is the envelope of orders.json
type ShopifyOrdersResponse struct {
	Orders []ShopifyOrder `json:"orders"`
}

// ShopifyOrderResponse is the envelope of orders/{id}.json
type ShopifyOrderResponse struct {
	Order ShopifyOrder `json:"order"`
}

// ShopifyOrder is the subset of the REST order resource the pipeline reads
type ShopifyOrder struct {
	ID              int64                 `json:"id"`
	OrderNumber     int                   `json:"order_number"`
	CreatedAt       time.Time             `json:"created_at"`
	CancelledAt     *time.Time            `json:"cancelled_at"`
	ClosedAt        *time.Time            `json:"closed_at"`
	FinancialStatus string                `json:"financial_status"`
	Email           string                `json:"email"`
	TotalPrice      decimal.Decimal       `json:"total_price"`
	Tags            string                `json:"tags"`
	RiskLevel       string                `json:"risk_level,omitempty"`
	Customer        *ShopifyCustomer      `json:"customer"`
	DiscountCodes   []ShopifyDiscountCode `json:"discount_codes"`
	ShippingAddress *ShopifyAddress       `json:"shipping_address"`
	ShippingLines   []ShopifyShippingLine `json:"shipping_lines"`
	LineItems       []ShopifyLineItem     `json:"line_items"`
}

// ShopifyCustomer is the embedded customer
type ShopifyCustomer struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// ShopifyDiscountCode is one applied discount code
type ShopifyDiscountCode struct {
	Code   string `json:"code"`
	Amount string `json:"amount"`
	Type   string `json:"type"`
}

// ShopifyAddress is a shipping address
type ShopifyAddress struct {
	Name     string `json:"name"`
	Address1 string `json:"address1"`
	Address2 string `json:"address2"`
	City     string `json:"city"`
	Province string `json:"province"`
	Zip      string `json:"zip"`
	Country  string `json:"country"`
	Phone    string `json:"phone"`
}

// ShopifyShippingLine is a shipping charge
type ShopifyShippingLine struct {
	Title           string          `json:"title"`
	Price           decimal.Decimal `json:"price"`
	DiscountedPrice decimal.Decimal `json:"discounted_price"`
}

// ShopifyLineItem is one order line. Product and variant ids are null for
// custom items.
type ShopifyLineItem struct {
	ID        int64            `json:"id"`
	ProductID *int64           `json:"product_id"`
	VariantID *int64           `json:"variant_id"`
	SKU       string           `json:"sku"`
	Title     string           `json:"title"`
	Quantity  int              `json:"quantity"`
	Price     decimal.Decimal  `json:"price"`
	TaxLines  []ShopifyTaxLine `json:"tax_lines"`
}

// ShopifyTaxLine is one tax component
type ShopifyTaxLine struct {
	Title string          `json:"title"`
	Rate  decimal.Decimal `json:"rate"`
	Price decimal.Decimal `json:"price"`
}

// ShopifyTagsUpdate is the body of a tags-only order update
type ShopifyTagsUpdate struct {
	Order struct {
		ID   int64  `json:"id"`
		Tags string `json:"tags"`
	} `json:"order"`
}

// ShopifyFulfillmentCreate is the body of orders/{id}/fulfillments.json
type ShopifyFulfillmentCreate struct {
	Fulfillment ShopifyFulfillmentRequest `json:"fulfillment"`
}

// ShopifyFulfillmentRequest carries tracking for a whole-order fulfillment
type ShopifyFulfillmentRequest struct {
	LocationID      int64    `json:"location_id,omitempty"`
	TrackingNumbers []string `json:"tracking_numbers"`
	TrackingCompany string   `json:"tracking_company,omitempty"`
	NotifyCustomer  bool     `json:"notify_customer"`
}

// ShopifyFulfillmentResponse is the envelope of a created fulfillment
type ShopifyFulfillmentResponse struct {
	Fulfillment struct {
		ID     int64  `json:"id"`
		Status string `json:"status"`
	} `json:"fulfillment"`
}

// ShopifyErrorResponse is the error body; errors is a string or an object.
type ShopifyErrorResponse struct {
	Errors any `json:"errors"`
}

func (o ShopifyOrder) toDomain() integration.StorefrontOrder {
	out := integration.StorefrontOrder{
		ID:              o.ID,
		OrderNumber:     o.OrderNumber,
		CreatedAt:       o.CreatedAt,
		CancelledAt:     o.CancelledAt,
		ClosedAt:        o.ClosedAt,
		FinancialStatus: o.FinancialStatus,
		Email:           o.Email,
		TotalPrice:      o.TotalPrice,
		Tags:            splitTags(o.Tags),
		RiskLevel:       o.RiskLevel,
	}
	if o.Customer != nil {
		out.CustomerName = strings.TrimSpace(o.Customer.FirstName + " " + o.Customer.LastName)
	}
	for _, dc := range o.DiscountCodes {
		out.DiscountCodes = append(out.DiscountCodes, dc.Code)
	}
	if a := o.ShippingAddress; a != nil {
		out.ShippingAddress = &integration.ShipTo{
			Name:     a.Name,
			Address1: a.Address1,
			Address2: a.Address2,
			City:     a.City,
			Province: a.Province,
			Zip:      a.Zip,
			Country:  a.Country,
			Phone:    a.Phone,
		}
	}
	for _, sl := range o.ShippingLines {
		out.ShippingLines = append(out.ShippingLines, integration.ShippingLine{
			Title:           sl.Title,
			Price:           sl.Price,
			DiscountedPrice: sl.DiscountedPrice,
		})
	}
	for _, li := range o.LineItems {
		item := integration.StorefrontLineItem{
			ID:        li.ID,
			ProductID: formatID(li.ProductID),
			VariantID: formatID(li.VariantID),
			SKU:       li.SKU,
			Title:     li.Title,
			Quantity:  li.Quantity,
			Price:     li.Price,
		}
		for _, tl := range li.TaxLines {
			item.TaxLines = append(item.TaxLines, integration.TaxLine{Title: tl.Title, Rate: tl.Rate, Price: tl.Price})
		}
		out.LineItems = append(out.LineItems, item)
	}
	return out
}

func formatID(id *int64) string {
	if id == nil {
		return ""
	}
	return strconv.FormatInt(*id, 10)
}

// splitTags parses the comma-separated tags field
func splitTags(tags string) []string {
	var out []string
	for _, t := range strings.Split(tags, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
