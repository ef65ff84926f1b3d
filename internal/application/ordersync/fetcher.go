package ordersync

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ordersync/backend/internal/domain/integration"
	"github.com/ordersync/backend/internal/domain/order"
	"github.com/ordersync/backend/internal/infrastructure/logger"
)

// SourceFetcher pulls new storefront orders and the discount-rule table
type SourceFetcher struct {
	storefront integration.Storefront
	discounts  integration.DiscountSource
	pageSize   int
}

// NewSourceFetcher creates a source fetcher
func NewSourceFetcher(storefront integration.Storefront, discounts integration.DiscountSource, pageSize int) *SourceFetcher {
	if pageSize <= 0 {
		pageSize = DefaultSettings().PageSize
	}
	return &SourceFetcher{storefront: storefront, discounts: discounts, pageSize: pageSize}
}

// FetchOrders pages through every order newer than cursor. Paging stops at
// the first empty page; the next page starts after the largest id seen.
// No retries are attempted.
func (f *SourceFetcher) FetchOrders(ctx context.Context, cursor order.Cursor) ([]integration.StorefrontOrder, error) {
	log := logger.Stage(ctx, "fetch")
	sinceID := cursorID(ctx, cursor)

	var all []integration.StorefrontOrder
	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		orders, err := f.storefront.ListOrdersSince(ctx, sinceID, f.pageSize)
		if err != nil {
			return nil, fmt.Errorf("%w: list orders since %d: %w", integration.ErrSourceUnavailable, sinceID, err)
		}
		if len(orders) == 0 {
			break
		}
		for _, o := range orders {
			if o.ID > sinceID {
				sinceID = o.ID
			}
		}
		all = append(all, orders...)
		log.Debug("fetched order page",
			zap.Int("page", page),
			zap.Int("orders_in_page", len(orders)),
			zap.Int64("next_since_id", sinceID),
		)
	}
	return all, nil
}

// FetchDiscountRules reads the full discount-rule table
func (f *SourceFetcher) FetchDiscountRules(ctx context.Context) ([]integration.DiscountRule, error) {
	rules, err := f.discounts.ListDiscountRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list discount rules: %w", integration.ErrSourceUnavailable, err)
	}
	return rules, nil
}

// FetchAll issues both fetches concurrently; either failing aborts both.
func (f *SourceFetcher) FetchAll(ctx context.Context, cursor order.Cursor) ([]integration.StorefrontOrder, []integration.DiscountRule, error) {
	var (
		orders []integration.StorefrontOrder
		rules  []integration.DiscountRule
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		orders, err = f.FetchOrders(gctx, cursor)
		return err
	})
	g.Go(func() error {
		var err error
		rules, err = f.FetchDiscountRules(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return orders, rules, nil
}

func cursorID(ctx context.Context, cursor order.Cursor) int64 {
	if cursor.IsZero() {
		return 0
	}
	id, err := strconv.ParseInt(cursor.ExternalOrderID, 10, 64)
	if err != nil || id < 0 {
		logger.Stage(ctx, "fetch").Warn("cursor is not a storefront order id, fetching from the earliest order",
			zap.String("cursor", cursor.ExternalOrderID))
		return 0
	}
	return id
}
