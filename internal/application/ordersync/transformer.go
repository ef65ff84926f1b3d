package ordersync

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ordersync/backend/internal/domain/integration"
	"github.com/ordersync/backend/internal/domain/order"
)

var trailingDigits = regexp.MustCompile(`(\d+)\s*$`)

const (
	financialStatusPending = "pending"
	riskLevelHigh          = "high"
)

// TransformResult is the normalized record of one storefront order together
// with its flattened export rows.
type TransformResult struct {
	Record order.Record
	Rows   []order.FlatRow
}

// Transformer maps storefront orders into order records. It holds no mutable
// state: the output depends only on its arguments.
type Transformer struct {
	settings Settings
	matcher  *DiscountMatcher
}

// NewTransformer creates a transformer
func NewTransformer(settings Settings) *Transformer {
	return &Transformer{settings: settings, matcher: NewDiscountMatcher(settings.PromoPrefixes)}
}

// Transform normalizes o. Flattened rows are numbered from startIndex; the
// index following the last row is returned for the next order.
func (t *Transformer) Transform(o integration.StorefrontOrder, rules []integration.DiscountRule, receivedAt time.Time, startIndex int) (TransformResult, int, error) {
	loc := t.settings.Location
	if loc == nil {
		loc = time.UTC
	}
	orderNumber := strconv.Itoa(o.OrderNumber)
	coupon, hasCoupon := o.FirstCouponCode()

	rec := order.Record{
		ExternalOrderID:     strconv.FormatInt(o.ID, 10),
		PurchaseOrderNumber: t.settings.POPrefix + orderNumber,
		OrderNumber:         orderNumber,
		Stage:               t.stageFor(o),
		Status:              order.StatusReceived,
		Flags:               order.Flags{Cancelled: o.IsCancelled(), Closed: o.IsCancelled()},
		Timestamps: order.Timestamps{
			OrderedAt:  order.FormatTimestamp(o.CreatedAt.In(loc)),
			ReceivedAt: order.FormatTimestamp(receivedAt.In(loc)),
		},
		CustomerName:    o.CustomerName,
		Email:           o.Email,
		TotalPrice:      order.FloorTotal(o.TotalPrice),
		FinancialStatus: o.FinancialStatus,
		RiskLevel:       o.RiskLevel,
		LineItems:       make([]order.LineItem, 0, len(o.LineItems)),
	}
	if hasCoupon {
		rec.CouponCode = coupon
	}
	if addr, ok := o.ShipToAddress(); ok {
		rec.ShippingAddress = normalizeAddress(addr)
		if rec.CustomerName == "" {
			rec.CustomerName = addr.Name
		}
	}
	if rec.Stage == order.StagePending {
		rec.ExpiresAt = order.FormatTimestamp(receivedAt.In(loc).Add(t.settings.PendingTTL))
	}

	fee, hasFee := o.FeeLine(t.settings.FeeMarker)
	for i, src := range o.LineItems {
		item, err := t.lineItem(i+1, src, coupon, hasCoupon, rules)
		if err != nil {
			return TransformResult{}, startIndex, fmt.Errorf("order %d: %w", o.ID, err)
		}
		if hasFee && t.isMattress(src) {
			item.RecyclingFee = recyclingFee(fee, src.Quantity)
		}
		rec.LineItems = append(rec.LineItems, item)
	}

	rows := make([]order.FlatRow, len(rec.LineItems))
	next := startIndex
	for i, item := range rec.LineItems {
		rows[i] = order.FlatRow{LineIndex: next, Order: rec, Item: item}
		next++
	}
	return TransformResult{Record: rec, Rows: rows}, next, nil
}

// TransformBatch transforms orders in input order with line indices starting at 1.
func (t *Transformer) TransformBatch(orders []integration.StorefrontOrder, rules []integration.DiscountRule, receivedAt time.Time) ([]TransformResult, []order.FlatRow, error) {
	results := make([]TransformResult, 0, len(orders))
	var rows []order.FlatRow
	next := 1
	for _, o := range orders {
		res, n, err := t.Transform(o, rules, receivedAt, next)
		if err != nil {
			return nil, nil, err
		}
		next = n
		results = append(results, res)
		rows = append(rows, res.Rows...)
	}
	return results, rows, nil
}

func (t *Transformer) lineItem(index int, src integration.StorefrontLineItem, coupon string, hasCoupon bool, rules []integration.DiscountRule) (order.LineItem, error) {
	item := order.LineItem{
		Index:           index,
		SKU:             src.SKU,
		Title:           src.Title,
		ProductID:       src.ProductID,
		VariantID:       src.VariantID,
		Quantity:        src.Quantity,
		UnitPrice:       src.Price,
		DiscountRate:    decimal.Zero,
		DiscountAmount:  decimal.Zero,
		DiscountedPrice: src.Price,
		TaxRate:         decimal.Zero,
		TaxAmount:       decimal.Zero,
		RecyclingFee:    decimal.Zero,
	}

	if hasCoupon {
		if rule, ok := t.matcher.Match(coupon, src, rules); ok {
			item.DiscountRate = rule.Rate()
			item.DiscountAmount = order.RoundToCent(item.DiscountRate.Mul(src.Price))
			item.DiscountedPrice = src.Price.Sub(item.DiscountAmount)
		}
	}
	if item.DiscountedPrice.IsNegative() {
		return order.LineItem{}, fmt.Errorf("%w: line %d discounted price %s", order.ErrNegativeAmount, index, item.DiscountedPrice)
	}

	rate, price := decimal.Zero, decimal.Zero
	for _, tl := range src.TaxLines {
		rate = rate.Add(tl.Rate)
		price = price.Add(tl.Price)
	}
	item.TaxRate = rate
	item.TaxAmount = order.TruncateToCent(price)
	return item, nil
}

func (t *Transformer) stageFor(o integration.StorefrontOrder) order.Stage {
	if strings.EqualFold(o.FinancialStatus, financialStatusPending) || strings.EqualFold(o.RiskLevel, riskLevelHigh) {
		return order.StagePending
	}
	return order.StageOpen
}

func (t *Transformer) isMattress(item integration.StorefrontLineItem) bool {
	title := strings.ToLower(item.Title)
	for _, kw := range t.settings.MattressKeywords {
		if kw != "" && strings.Contains(title, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// recyclingFee apportions a fee line to one mattress line item
func recyclingFee(fee integration.ShippingLine, quantity int) decimal.Decimal {
	per := fee.DiscountedPrice.Div(decimal.NewFromInt(feeMultiplier(fee.Title)))
	return order.TruncateToCent(per.Mul(decimal.NewFromInt(int64(quantity))))
}

// feeMultiplier reads the trailing number of a fee title, "RecyclingFee CA x2"
// yields 2. Titles without one, or ending in 0, yield 1.
func feeMultiplier(title string) int64 {
	m := trailingDigits.FindStringSubmatch(title)
	if m == nil {
		return 1
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

func normalizeAddress(a integration.ShipTo) order.Address {
	province := a.Province
	if strings.EqualFold(strings.TrimSpace(province), "District of Columbia") {
		province = "DC"
	}
	return order.Address{
		Name:     a.Name,
		Address1: a.Address1,
		Address2: a.Address2,
		City:     a.City,
		Province: province,
		Zip:      a.Zip,
		Country:  a.Country,
		Phone:    a.Phone,
	}
}
