package integration

import (
	"context"
	"slices"

	"github.com/shopspring/decimal"
)

// DiscountRule is a coupon definition published by the pricing service.
// PercentageValue is expressed in percent; the storefront reports it
// negative (-15 for 15% off), so only its magnitude is meaningful.
type DiscountRule struct {
	Title           string
	ProductIDs      []string
	VariantIDs      []string
	PercentageValue decimal.Decimal
}

// Rate returns the discount as a fraction of the unit price
func (r DiscountRule) Rate() decimal.Decimal {
	return r.PercentageValue.Abs().Div(decimal.NewFromInt(100))
}

// CoversProduct reports whether the rule applies to productID
func (r DiscountRule) CoversProduct(productID string) bool {
	return productID != "" && slices.Contains(r.ProductIDs, productID)
}

// CoversVariant reports whether the rule applies to variantID
func (r DiscountRule) CoversVariant(variantID string) bool {
	return variantID != "" && slices.Contains(r.VariantIDs, variantID)
}

// DiscountSource is the port to the pricing service
type DiscountSource interface {
	ListDiscountRules(ctx context.Context) ([]DiscountRule, error)
}
