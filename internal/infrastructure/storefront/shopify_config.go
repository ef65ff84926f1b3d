package storefront

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ordersync/backend/internal/infrastructure/config"
)

// DefaultAPIVersion is the Admin REST API version used when none is configured
const DefaultAPIVersion = "2024-01"

// Errors for Shopify configuration
var (
	ErrShopifyConfigMissingDomain = errors.New("shopify: shop domain is required")
	ErrShopifyConfigMissingToken  = errors.New("shopify: access token is required")
)

// ShopifyConfig holds the Admin API settings of one shop
type ShopifyConfig struct {
	// ShopDomain is the myshopify.com host of the shop
	ShopDomain string
	// AccessToken is the Admin API access token of the custom app
	AccessToken string
	APIVersion  string
	// BaseURL overrides https://<ShopDomain>; tests point it at httptest.
	BaseURL string
	Timeout time.Duration
	// MinInterval is the minimum spacing between request starts
	MinInterval time.Duration
	PageSize    int
}

// NewShopifyConfig builds the adapter configuration from application config
func NewShopifyConfig(cfg config.StorefrontConfig) *ShopifyConfig {
	return &ShopifyConfig{
		ShopDomain:  cfg.ShopDomain,
		AccessToken: cfg.AccessToken,
		APIVersion:  cfg.APIVersion,
		Timeout:     cfg.Timeout,
		MinInterval: cfg.MinInterval,
		PageSize:    cfg.PageSize,
	}
}

// Validate checks required fields and fills defaults
func (c *ShopifyConfig) Validate() error {
	if c.ShopDomain == "" && c.BaseURL == "" {
		return ErrShopifyConfigMissingDomain
	}
	if c.AccessToken == "" {
		return ErrShopifyConfigMissingToken
	}
	if c.APIVersion == "" {
		c.APIVersion = DefaultAPIVersion
	}
	if c.BaseURL == "" {
		c.BaseURL = "https://" + c.ShopDomain
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.PageSize <= 0 || c.PageSize > MaxPageSize {
		c.PageSize = MaxPageSize
	}
	return nil
}

// endpoint returns the Admin API URL of path, e.g. "orders.json"
func (c *ShopifyConfig) endpoint(path string) string {
	return fmt.Sprintf("%s/admin/api/%s/%s", c.BaseURL, c.APIVersion, path)
}
