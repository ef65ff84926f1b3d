package storefront

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ordersync/backend/internal/domain/integration"
)

const orderPayload = `{
  "id": 5001,
  "order_number": 1001,
  "created_at": "2024-03-01T09:30:00-08:00",
  "cancelled_at": null,
  "closed_at": null,
  "financial_status": "paid",
  "email": "jane@example.com",
  "total_price": "504.00",
  "tags": "web, VIP",
  "customer": {"first_name": "Jane", "last_name": "Doe"},
  "discount_codes": [{"code": "ZIN15WELCOME", "amount": "15.00", "type": "percentage"}],
  "shipping_address": {"name": "Jane Doe", "address1": "1 Main St", "address2": null, "city": "Austin", "province": "Texas", "zip": "78701", "country": "United States", "phone": null},
  "shipping_lines": [{"title": "Recycling Fee", "price": "5.00", "discounted_price": "5.00"}],
  "line_items": [
    {"id": 1, "product_id": 77, "variant_id": 701, "sku": "MAT-Q", "title": "Green Tea Mattress", "quantity": 1, "price": "499.00",
     "tax_lines": [{"title": "TX State Tax", "rate": 0.0825, "price": "41.17"}]},
    {"id": 2, "product_id": null, "variant_id": null, "sku": "", "title": "Gift wrap", "quantity": 1, "price": "0.00", "tax_lines": []}
  ]
}`

func newTestAdapter(t *testing.T, handler http.HandlerFunc) *ShopifyAdapter {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	a, err := NewShopifyAdapter(&ShopifyConfig{
		BaseURL:     srv.URL,
		AccessToken: "shpat_test",
		APIVersion:  "2024-01",
	}, srv.Client(), zaptest.NewLogger(t))
	require.NoError(t, err)
	return a
}

func TestShopifyConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  *ShopifyConfig
		wantErr error
	}{
		{name: "valid", config: &ShopifyConfig{ShopDomain: "zinus.myshopify.com", AccessToken: "t"}},
		{name: "missing domain", config: &ShopifyConfig{AccessToken: "t"}, wantErr: ErrShopifyConfigMissingDomain},
		{name: "missing token", config: &ShopifyConfig{ShopDomain: "zinus.myshopify.com"}, wantErr: ErrShopifyConfigMissingToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "https://zinus.myshopify.com", tt.config.BaseURL)
			assert.Equal(t, DefaultAPIVersion, tt.config.APIVersion)
			assert.Equal(t, MaxPageSize, tt.config.PageSize)
			assert.Equal(t, "https://zinus.myshopify.com/admin/api/2024-01/orders.json", tt.config.endpoint("orders.json"))
		})
	}
}

func TestShopifyAdapter_ListOrdersSince(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/admin/api/2024-01/orders.json", r.URL.Path)
		assert.Equal(t, "shpat_test", r.Header.Get("X-Shopify-Access-Token"))
		assert.Equal(t, "5000", r.URL.Query().Get("since_id"))
		assert.Equal(t, "50", r.URL.Query().Get("limit"))
		assert.Equal(t, "any", r.URL.Query().Get("status"))
		_, _ = io.WriteString(w, `{"orders":[`+orderPayload+`]}`)
	})

	orders, err := a.ListOrdersSince(context.Background(), 5000, 50)
	require.NoError(t, err)
	require.Len(t, orders, 1)

	o := orders[0]
	assert.Equal(t, int64(5001), o.ID)
	assert.Equal(t, 1001, o.OrderNumber)
	assert.Equal(t, "Jane Doe", o.CustomerName)
	assert.Equal(t, []string{"web", "VIP"}, o.Tags)
	assert.Equal(t, []string{"ZIN15WELCOME"}, o.DiscountCodes)
	assert.True(t, decimal.RequireFromString("504").Equal(o.TotalPrice))
	assert.False(t, o.IsCancelled())

	addr, ok := o.ShipToAddress()
	require.True(t, ok)
	assert.Equal(t, "Texas", addr.Province)

	fee, ok := o.FeeLine("recycling")
	require.True(t, ok)
	assert.True(t, decimal.RequireFromString("5").Equal(fee.Price))

	require.Len(t, o.LineItems, 2)
	assert.Equal(t, "77", o.LineItems[0].ProductID)
	assert.Equal(t, "701", o.LineItems[0].VariantID)
	require.Len(t, o.LineItems[0].TaxLines, 1)
	assert.True(t, decimal.RequireFromString("0.0825").Equal(o.LineItems[0].TaxLines[0].Rate))
	assert.Empty(t, o.LineItems[1].ProductID)
	assert.Empty(t, o.LineItems[1].TaxLines)
}

func TestShopifyAdapter_ListOrdersSince_ZeroCursorOmitsSinceID(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.False(t, r.URL.Query().Has("since_id"))
		assert.Equal(t, "250", r.URL.Query().Get("limit"))
		_, _ = io.WriteString(w, `{"orders":[]}`)
	})

	orders, err := a.ListOrdersSince(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestShopifyAdapter_GetOrders(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "5001,5002", r.URL.Query().Get("ids"))
		_, _ = io.WriteString(w, `{"orders":[`+orderPayload+`]}`)
	})

	orders, err := a.GetOrders(context.Background(), []int64{5001, 5002})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, int64(5001), orders[0].ID)

	none, err := a.GetOrders(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestShopifyAdapter_GetOrderState(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/admin/api/2024-01/orders/5001.json", r.URL.Path)
		assert.Equal(t, "id,tags,cancelled_at,closed_at", r.URL.Query().Get("fields"))
		_, _ = io.WriteString(w, `{"order":{"id":5001,"tags":"SAGE:ORD0002, web","cancelled_at":null,"closed_at":"2024-03-02T08:00:00Z"}}`)
	})

	state, err := a.GetOrderState(context.Background(), 5001)
	require.NoError(t, err)
	assert.True(t, state.HasTag("sage:ord0002"))
	require.NotNil(t, state.ClosedAt)
	assert.Nil(t, state.CancelledAt)
}

func TestShopifyAdapter_UpdateOrderTags(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body ShopifyTagsUpdate
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, int64(5001), body.Order.ID)
		assert.Equal(t, "web, SAGE:ORD0002", body.Order.Tags)
		_, _ = io.WriteString(w, `{"order":{"id":5001}}`)
	})

	require.NoError(t, a.UpdateOrderTags(context.Background(), 5001, []string{"web", "SAGE:ORD0002"}))
}

func TestShopifyAdapter_CreateFulfillment(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/admin/api/2024-01/orders/5001/fulfillments.json", r.URL.Path)
		var body ShopifyFulfillmentCreate
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []string{"1Z999"}, body.Fulfillment.TrackingNumbers)
		assert.Equal(t, "UPS", body.Fulfillment.TrackingCompany)
		assert.Equal(t, int64(42), body.Fulfillment.LocationID)
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"fulfillment":{"id":9001,"status":"success"}}`)
	})

	f, err := a.CreateFulfillment(context.Background(), 5001, integration.FulfillmentRequest{
		TrackingNumbers: []string{"1Z999"},
		TrackingCompany: "UPS",
		LocationID:      42,
	})
	require.NoError(t, err)
	assert.Equal(t, integration.Fulfillment{ID: 9001, Status: "success"}, f)
}

func TestShopifyAdapter_ErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr []error
	}{
		{"throttled", http.StatusTooManyRequests, `{"errors":"Exceeded 2 calls per second"}`, []error{integration.ErrPlatformRateLimited, integration.ErrPlatformUnavailable}},
		{"unauthorized", http.StatusUnauthorized, `{"errors":"Invalid API key"}`, []error{integration.ErrPlatformAuthFailed}},
		{"not found", http.StatusNotFound, `{"errors":"Not Found"}`, []error{integration.ErrPlatformOrderNotFound}},
		{"server error", http.StatusBadGateway, ``, []error{integration.ErrPlatformUnavailable}},
		{"unprocessable", http.StatusUnprocessableEntity, `{"errors":{"tracking_numbers":["is invalid"]}}`, []error{integration.ErrPlatformRequestFailed}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})
			_, err := a.GetOrderState(context.Background(), 1)
			for _, want := range tt.wantErr {
				assert.ErrorIs(t, err, want)
			}
		})
	}
}

func TestShopifyAdapter_UnprocessableIncludesDetail(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = io.WriteString(w, `{"errors":{"tracking_numbers":["is invalid"]}}`)
	})
	_, err := a.CreateFulfillment(context.Background(), 1, integration.FulfillmentRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is invalid")
}

func TestShopifyAdapter_InvalidJSON(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"orders":`)
	})
	_, err := a.ListOrdersSince(context.Background(), 0, 10)
	assert.ErrorIs(t, err, integration.ErrPlatformInvalidResponse)
}

func TestShopifyAdapter_SpacesRequests(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = io.WriteString(w, `{"orders":[]}`)
	}))
	t.Cleanup(srv.Close)

	a, err := NewShopifyAdapter(&ShopifyConfig{
		BaseURL:     srv.URL,
		AccessToken: "t",
		MinInterval: 40 * time.Millisecond,
	}, srv.Client(), zaptest.NewLogger(t))
	require.NoError(t, err)

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := a.ListOrdersSince(context.Background(), 0, 1)
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
	assert.Equal(t, int32(3), calls.Load())
}

func TestShopifyAdapter_CancelledContext(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"orders":[]}`)
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := a.ListOrdersSince(ctx, 0, 1)
	assert.ErrorIs(t, err, context.Canceled)
}
