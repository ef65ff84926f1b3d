// Package pricing reads the published coupon definitions from the pricing
// service.
package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ordersync/backend/internal/domain/integration"
)

const maxResponseSize = 5 * 1024 * 1024

// ValueTypePercentage is the only rule kind the transformer applies
const ValueTypePercentage = "percentage"

// PriceRulesResponse is the discount map payload
type PriceRulesResponse struct {
	PriceRules []PriceRule `json:"price_rules"`
}

// PriceRule is one coupon definition. Value is the signed percentage,
// e.g. "-15.0".
type PriceRule struct {
	Title              string          `json:"title"`
	ValueType          string          `json:"value_type"`
	Value              decimal.Decimal `json:"value"`
	EntitledProductIDs []int64         `json:"entitled_product_ids"`
	EntitledVariantIDs []int64         `json:"entitled_variant_ids"`
}

// Client implements integration.DiscountSource over HTTP
type Client struct {
	url        string
	httpClient *http.Client
	logger     *zap.Logger
}

var _ integration.DiscountSource = (*Client)(nil)

// NewClient creates a client for the discount map at url
func NewClient(url string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{url: url, httpClient: &http.Client{Timeout: timeout}, logger: logger}
}

// ListDiscountRules implements integration.DiscountSource. Non-percentage
// rules are skipped.
func (c *Client) ListDiscountRules(ctx context.Context) ([]integration.DiscountRule, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("pricing: failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", integration.ErrPlatformUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", integration.ErrPlatformUnavailable, err)
	}
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: HTTP %d", integration.ErrPlatformUnavailable, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: HTTP %d", integration.ErrPlatformRequestFailed, resp.StatusCode)
	}

	var payload PriceRulesResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", integration.ErrPlatformInvalidResponse, err)
	}

	rules := make([]integration.DiscountRule, 0, len(payload.PriceRules))
	for _, pr := range payload.PriceRules {
		if pr.ValueType != "" && pr.ValueType != ValueTypePercentage {
			c.logger.Debug("Skipping non-percentage price rule",
				zap.String("title", pr.Title),
				zap.String("value_type", pr.ValueType),
			)
			continue
		}
		rules = append(rules, integration.DiscountRule{
			Title:           pr.Title,
			ProductIDs:      formatIDs(pr.EntitledProductIDs),
			VariantIDs:      formatIDs(pr.EntitledVariantIDs),
			PercentageValue: pr.Value,
		})
	}
	return rules, nil
}

func formatIDs(ids []int64) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, strconv.FormatInt(id, 10))
	}
	return out
}
