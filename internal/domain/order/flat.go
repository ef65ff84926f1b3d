package order

import (
	"fmt"
	"strconv"
)

// Export column names understood by FlatRow.Values
const (
	ColLineIndex       = "line_index"
	ColExternalOrderID = "shopify_order_id"
	ColPurchaseOrder   = "shopify_po"
	ColOrderNumber     = "order_number"
	ColOrderedAt       = "date_ordered"
	ColCustomerName    = "customer_name"
	ColEmail           = "email"
	ColShipName        = "ship_to_name"
	ColShipAddress1    = "ship_to_address1"
	ColShipAddress2    = "ship_to_address2"
	ColShipCity        = "ship_to_city"
	ColShipState       = "ship_to_state"
	ColShipZip         = "ship_to_zip"
	ColShipCountry     = "ship_to_country"
	ColShipPhone       = "ship_to_phone"
	ColItemIndex       = "item_index"
	ColSKU             = "sku"
	ColTitle           = "title"
	ColQuantity        = "quantity"
	ColUnitPrice       = "unit_price"
	ColCouponCode      = "discount_code"
	ColDiscountRate    = "discount_rate"
	ColDiscountAmount  = "discount_amount"
	ColDiscountedPrice = "discounted_price"
	ColTaxRate         = "tax_rate"
	ColTaxAmount       = "tax_amount"
	ColRecyclingFee    = "recycling_fee"
	ColOrderTotal      = "order_total"
)

// AllColumns is the full reference column ordering
var AllColumns = []string{
	ColLineIndex, ColExternalOrderID, ColPurchaseOrder, ColOrderNumber, ColOrderedAt,
	ColCustomerName, ColEmail, ColShipName, ColShipAddress1, ColShipAddress2,
	ColShipCity, ColShipState, ColShipZip, ColShipCountry, ColShipPhone,
	ColItemIndex, ColSKU, ColTitle, ColQuantity, ColUnitPrice, ColCouponCode,
	ColDiscountRate, ColDiscountAmount, ColDiscountedPrice, ColTaxRate,
	ColTaxAmount, ColRecyclingFee, ColOrderTotal,
}

// FlatRow is one (order, line item) pair flattened for export.
// LineIndex numbers rows across the whole batch and is not a business key.
type FlatRow struct {
	LineIndex int
	Order     Record
	Item      LineItem
}

// Values renders the row in the given column order
func (f FlatRow) Values(columns []string) ([]string, error) {
	out := make([]string, len(columns))
	for i, col := range columns {
		v, ok := f.value(col)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownExportColumn, col)
		}
		out[i] = v
	}
	return out, nil
}

func (f FlatRow) value(col string) (string, bool) {
	o, it, addr := f.Order, f.Item, f.Order.ShippingAddress
	switch col {
	case ColLineIndex:
		return strconv.Itoa(f.LineIndex), true
	case ColExternalOrderID:
		return o.ExternalOrderID, true
	case ColPurchaseOrder:
		return o.PurchaseOrderNumber, true
	case ColOrderNumber:
		return o.OrderNumber, true
	case ColOrderedAt:
		return o.Timestamps.OrderedAt, true
	case ColCustomerName:
		return o.CustomerName, true
	case ColEmail:
		return o.Email, true
	case ColShipName:
		return addr.Name, true
	case ColShipAddress1:
		return addr.Address1, true
	case ColShipAddress2:
		return addr.Address2, true
	case ColShipCity:
		return addr.City, true
	case ColShipState:
		return addr.Province, true
	case ColShipZip:
		return addr.Zip, true
	case ColShipCountry:
		return addr.Country, true
	case ColShipPhone:
		return addr.Phone, true
	case ColItemIndex:
		return strconv.Itoa(it.Index), true
	case ColSKU:
		return it.SKU, true
	case ColTitle:
		return it.Title, true
	case ColQuantity:
		return strconv.Itoa(it.Quantity), true
	case ColUnitPrice:
		return it.UnitPrice.StringFixed(2), true
	case ColCouponCode:
		return o.CouponCode, true
	case ColDiscountRate:
		return it.DiscountRate.String(), true
	case ColDiscountAmount:
		return it.DiscountAmount.StringFixed(2), true
	case ColDiscountedPrice:
		return it.DiscountedPrice.StringFixed(2), true
	case ColTaxRate:
		return it.TaxRate.String(), true
	case ColTaxAmount:
		return it.TaxAmount.StringFixed(2), true
	case ColRecyclingFee:
		return it.RecyclingFee.StringFixed(2), true
	case ColOrderTotal:
		return o.TotalPrice.StringFixed(2), true
	default:
		return "", false
	}
}
