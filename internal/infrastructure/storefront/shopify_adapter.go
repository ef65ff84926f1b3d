// Package storefront adapts the Shopify Admin REST API to the storefront port.
package storefront

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/ordersync/backend/internal/domain/integration"
	"github.com/ordersync/backend/internal/infrastructure/ratelimit"
)

// maxResponseSize caps a single API response (10MB)
const maxResponseSize = 10 * 1024 * 1024

const accessTokenHeader = "X-Shopify-Access-Token"

// ShopifyAdapter implements integration.Storefront. Every request waits on a
// shared limiter so request starts stay spaced across all callers.
type ShopifyAdapter struct {
	config     *ShopifyConfig
	httpClient *http.Client
	limiter    *ratelimit.Limiter
	logger     *zap.Logger
}

var _ integration.Storefront = (*ShopifyAdapter)(nil)

// NewShopifyAdapter creates an adapter; httpClient may be nil
func NewShopifyAdapter(cfg *ShopifyConfig, httpClient *http.Client, logger *zap.Logger) (*ShopifyAdapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &ShopifyAdapter{
		config:     cfg,
		httpClient: httpClient,
		limiter:    ratelimit.NewLimiter(cfg.MinInterval),
		logger:     logger,
	}, nil
}

// ListOrdersSince implements integration.Storefront
func (a *ShopifyAdapter) ListOrdersSince(ctx context.Context, sinceID int64, limit int) ([]integration.StorefrontOrder, error) {
	if limit <= 0 || limit > MaxPageSize {
		limit = a.config.PageSize
	}
	q := url.Values{}
	q.Set("status", "any")
	q.Set("limit", strconv.Itoa(limit))
	q.Set("order", "id asc")
	if sinceID > 0 {
		q.Set("since_id", strconv.FormatInt(sinceID, 10))
	}

	var resp ShopifyOrdersResponse
	if err := a.doJSON(ctx, http.MethodGet, "orders.json?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return convertOrders(resp.Orders), nil
}

// GetOrders implements integration.Storefront. Ids are requested in chunks
// of one page; ids the shop no longer knows are simply absent.
func (a *ShopifyAdapter) GetOrders(ctx context.Context, ids []int64) ([]integration.StorefrontOrder, error) {
	var out []integration.StorefrontOrder
	for start := 0; start < len(ids); start += MaxPageSize {
		end := min(start+MaxPageSize, len(ids))
		parts := make([]string, 0, end-start)
		for _, id := range ids[start:end] {
			parts = append(parts, strconv.FormatInt(id, 10))
		}
		q := url.Values{}
		q.Set("status", "any")
		q.Set("limit", strconv.Itoa(MaxPageSize))
		q.Set("ids", strings.Join(parts, ","))

		var resp ShopifyOrdersResponse
		if err := a.doJSON(ctx, http.MethodGet, "orders.json?"+q.Encode(), nil, &resp); err != nil {
			return nil, err
		}
		out = append(out, convertOrders(resp.Orders)...)
	}
	return out, nil
}

// GetOrderState implements integration.Storefront
func (a *ShopifyAdapter) GetOrderState(ctx context.Context, id int64) (integration.OrderState, error) {
	q := url.Values{}
	q.Set("fields", "id,tags,cancelled_at,closed_at")

	var resp ShopifyOrderResponse
	if err := a.doJSON(ctx, http.MethodGet, fmt.Sprintf("orders/%d.json?%s", id, q.Encode()), nil, &resp); err != nil {
		return integration.OrderState{}, err
	}
	return integration.OrderState{
		ID:          resp.Order.ID,
		Tags:        splitTags(resp.Order.Tags),
		CancelledAt: resp.Order.CancelledAt,
		ClosedAt:    resp.Order.ClosedAt,
	}, nil
}

// UpdateOrderTags implements integration.Storefront. The tag list replaces
// the order's tags.
func (a *ShopifyAdapter) UpdateOrderTags(ctx context.Context, id int64, tags []string) error {
	var body ShopifyTagsUpdate
	body.Order.ID = id
	body.Order.Tags = strings.Join(tags, ", ")
	return a.doJSON(ctx, http.MethodPut, fmt.Sprintf("orders/%d.json", id), body, nil)
}

// CreateFulfillment implements integration.Storefront
func (a *ShopifyAdapter) CreateFulfillment(ctx context.Context, id int64, req integration.FulfillmentRequest) (integration.Fulfillment, error) {
	body := ShopifyFulfillmentCreate{Fulfillment: ShopifyFulfillmentRequest{
		LocationID:      req.LocationID,
		TrackingNumbers: req.TrackingNumbers,
		TrackingCompany: req.TrackingCompany,
		NotifyCustomer:  req.NotifyCustomer,
	}}
	var resp ShopifyFulfillmentResponse
	if err := a.doJSON(ctx, http.MethodPost, fmt.Sprintf("orders/%d/fulfillments.json", id), body, &resp); err != nil {
		return integration.Fulfillment{}, err
	}
	return integration.Fulfillment{ID: resp.Fulfillment.ID, Status: resp.Fulfillment.Status}, nil
}

// doJSON sends one rate-limited request and decodes the response into out
// when out is non-nil.
func (a *ShopifyAdapter) doJSON(ctx context.Context, method, path string, in, out any) error {
	if err := a.limiter.Wait(ctx); err != nil {
		return err
	}

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("shopify: failed to encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.config.endpoint(path), body)
	if err != nil {
		return fmt.Errorf("shopify: failed to create request: %w", err)
	}
	req.Header.Set(accessTokenHeader, a.config.AccessToken)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", integration.ErrPlatformUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("%w: failed to read response: %v", integration.ErrPlatformUnavailable, err)
	}

	if resp.StatusCode >= 400 {
		a.logger.Debug("Shopify request failed",
			zap.String("method", method),
			zap.String("path", req.URL.Path),
			zap.Int("status", resp.StatusCode),
		)
		return statusError(resp.StatusCode, raw)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %v", integration.ErrPlatformInvalidResponse, err)
	}
	return nil
}

// statusError maps an HTTP failure onto the platform sentinels. Throttling
// and server errors count as unavailability.
func statusError(status int, body []byte) error {
	detail := errorDetail(body)
	switch {
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %w: HTTP %d", integration.ErrPlatformUnavailable, integration.ErrPlatformRateLimited, status)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: HTTP %d %s", integration.ErrPlatformAuthFailed, status, detail)
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: HTTP %d", integration.ErrPlatformOrderNotFound, status)
	case status >= 500:
		return fmt.Errorf("%w: HTTP %d", integration.ErrPlatformUnavailable, status)
	default:
		return fmt.Errorf("%w: HTTP %d %s", integration.ErrPlatformRequestFailed, status, detail)
	}
}

func errorDetail(body []byte) string {
	var e ShopifyErrorResponse
	if err := json.Unmarshal(body, &e); err != nil || e.Errors == nil {
		return ""
	}
	if s, ok := e.Errors.(string); ok {
		return s
	}
	raw, _ := json.Marshal(e.Errors)
	return string(raw)
}

func convertOrders(orders []ShopifyOrder) []integration.StorefrontOrder {
	out := make([]integration.StorefrontOrder, 0, len(orders))
	for _, o := range orders {
		out = append(out, o.toDomain())
	}
	return out
}
