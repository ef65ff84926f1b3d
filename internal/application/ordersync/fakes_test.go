package ordersync

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/ordersync/backend/internal/domain/integration"
	"github.com/ordersync/backend/internal/domain/order"
	"github.com/ordersync/backend/internal/infrastructure/persistence"
)

// ---------------------------------------------------------------------------
// Storefront
// ---------------------------------------------------------------------------

// fakeStorefront serves a fixed order list and records outbound calls.
// Fulfilling an order closes it, like the storefront's auto-archive setting.
type fakeStorefront struct {
	mu           sync.Mutex
	orders       []integration.StorefrontOrder
	tags         map[int64][]string
	closed       map[int64]time.Time
	fulfilled    []int64
	tagUpdates   map[int64][]string
	listErr      error
	fulfillErr   map[int64]error
	stateErr     error
	listCalls    []int64
	getOrdersIDs []int64
}

func newFakeStorefront(orders ...integration.StorefrontOrder) *fakeStorefront {
	return &fakeStorefront{
		orders:     orders,
		tags:       make(map[int64][]string),
		closed:     make(map[int64]time.Time),
		tagUpdates: make(map[int64][]string),
		fulfillErr: make(map[int64]error),
	}
}

func (f *fakeStorefront) ListOrdersSince(_ context.Context, sinceID int64, limit int) ([]integration.StorefrontOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls = append(f.listCalls, sinceID)
	if f.listErr != nil {
		return nil, f.listErr
	}
	var page []integration.StorefrontOrder
	for _, o := range f.orders {
		if o.ID > sinceID && len(page) < limit {
			page = append(page, o)
		}
	}
	return page, nil
}

func (f *fakeStorefront) GetOrders(_ context.Context, ids []int64) ([]integration.StorefrontOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getOrdersIDs = append(f.getOrdersIDs, ids...)
	var out []integration.StorefrontOrder
	for _, o := range f.orders {
		if slices.Contains(ids, o.ID) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeStorefront) GetOrderState(_ context.Context, id int64) (integration.OrderState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stateErr != nil {
		return integration.OrderState{}, f.stateErr
	}
	st := integration.OrderState{ID: id, Tags: f.tags[id]}
	if at, ok := f.closed[id]; ok {
		st.ClosedAt = &at
	}
	for _, o := range f.orders {
		if o.ID == id && o.CancelledAt != nil {
			st.CancelledAt = o.CancelledAt
		}
	}
	return st, nil
}

func (f *fakeStorefront) UpdateOrderTags(_ context.Context, id int64, tags []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tags[id] = tags
	f.tagUpdates[id] = tags
	return nil
}

func (f *fakeStorefront) CreateFulfillment(_ context.Context, id int64, _ integration.FulfillmentRequest) (integration.Fulfillment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fulfillErr[id]; err != nil {
		return integration.Fulfillment{}, err
	}
	f.fulfilled = append(f.fulfilled, id)
	f.closed[id] = time.Date(2024, 3, 2, 12, 0, 0, 0, time.UTC)
	return integration.Fulfillment{ID: id * 10, Status: "success"}, nil
}

// mockStorefront is a testify mock for call-level expectations
type mockStorefront struct {
	mock.Mock
}

func (m *mockStorefront) ListOrdersSince(ctx context.Context, sinceID int64, limit int) ([]integration.StorefrontOrder, error) {
	args := m.Called(ctx, sinceID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.StorefrontOrder), args.Error(1)
}

func (m *mockStorefront) GetOrders(ctx context.Context, ids []int64) ([]integration.StorefrontOrder, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.StorefrontOrder), args.Error(1)
}

func (m *mockStorefront) GetOrderState(ctx context.Context, id int64) (integration.OrderState, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(integration.OrderState), args.Error(1)
}

func (m *mockStorefront) UpdateOrderTags(ctx context.Context, id int64, tags []string) error {
	return m.Called(ctx, id, tags).Error(0)
}

func (m *mockStorefront) CreateFulfillment(ctx context.Context, id int64, req integration.FulfillmentRequest) (integration.Fulfillment, error) {
	args := m.Called(ctx, id, req)
	return args.Get(0).(integration.Fulfillment), args.Error(1)
}

// ---------------------------------------------------------------------------
// Pricing, ERP, export, lock
// ---------------------------------------------------------------------------

type fakeDiscounts struct {
	rules []integration.DiscountRule
	err   error
}

func (f fakeDiscounts) ListDiscountRules(context.Context) ([]integration.DiscountRule, error) {
	return f.rules, f.err
}

type fakeErp struct {
	rows  []integration.ErpRow
	err   error
	since time.Time
	// afterList runs once the rows are handed out
	afterList func()
}

func (f *fakeErp) ListOrderRows(_ context.Context, since time.Time) ([]integration.ErpRow, error) {
	f.since = since
	if f.afterList != nil {
		f.afterList()
	}
	return f.rows, f.err
}

type exportCall struct {
	name    string
	columns []string
	rows    []order.FlatRow
}

type fakeExporter struct {
	calls []exportCall
	err   error
}

func (f *fakeExporter) Write(_ context.Context, name string, columns []string, rows []order.FlatRow) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.calls = append(f.calls, exportCall{name: name, columns: columns, rows: rows})
	return "/exports/" + name, nil
}

var errLocked = errors.New("locked")

type fakeLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func (l *fakeLocker) Acquire(_ context.Context, key string, _ time.Duration) (func(context.Context) error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held == nil {
		l.held = make(map[string]bool)
	}
	if l.held[key] {
		return nil, errLocked
	}
	l.held[key] = true
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
		return nil
	}, nil
}

// ---------------------------------------------------------------------------
// Store with fault injection
// ---------------------------------------------------------------------------

type faultyStore struct {
	*persistence.MemoryOrderStore
	findErr   error
	upsertErr error
	deleteErr error
}

func newFaultyStore() *faultyStore {
	return &faultyStore{MemoryOrderStore: persistence.NewMemoryOrderStore()}
}

func (s *faultyStore) Find(ctx context.Context, stage order.Stage, q order.Query) ([]order.Record, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.MemoryOrderStore.Find(ctx, stage, q)
}

func (s *faultyStore) BulkUpsert(ctx context.Context, stage order.Stage, recs []order.Record) (order.BulkResult, error) {
	if s.upsertErr != nil {
		return order.BulkResult{}, s.upsertErr
	}
	return s.MemoryOrderStore.BulkUpsert(ctx, stage, recs)
}

func (s *faultyStore) BulkDelete(ctx context.Context, stage order.Stage, ids []string) (int64, error) {
	if s.deleteErr != nil {
		return 0, s.deleteErr
	}
	return s.MemoryOrderStore.BulkDelete(ctx, stage, ids)
}

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testSettings() Settings {
	s := DefaultSettings()
	s.TrackingCompany = "UPS"
	if err := s.Validate(); err != nil {
		panic(err)
	}
	return s
}

func storefrontOrder(id int64, number int, items ...integration.StorefrontLineItem) integration.StorefrontOrder {
	return integration.StorefrontOrder{
		ID:              id,
		OrderNumber:     number,
		CreatedAt:       time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC),
		FinancialStatus: "paid",
		Email:           "buyer@example.com",
		CustomerName:    "Pat Buyer",
		TotalPrice:      dec("499.00"),
		ShippingAddress: &integration.ShipTo{Name: "Pat Buyer", City: "Austin", Province: "Texas", Zip: "78701", Country: "US"},
		LineItems:       items,
	}
}

func mattress(productID, variantID, price string, qty int) integration.StorefrontLineItem {
	return integration.StorefrontLineItem{
		ProductID: productID,
		VariantID: variantID,
		SKU:       "MAT-" + productID,
		Title:     "Green Tea Memory Foam Mattress",
		Quantity:  qty,
		Price:     dec(price),
	}
}

func pillow(productID, variantID, price string) integration.StorefrontLineItem {
	return integration.StorefrontLineItem{
		ProductID: productID,
		VariantID: variantID,
		SKU:       "PIL-" + productID,
		Title:     "Cooling Pillow",
		Quantity:  1,
		Price:     dec(price),
	}
}
