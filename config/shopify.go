package config

import (
	"errors"
	"os"
	"strings"
)

const DefaultShopifyApiVersion = "2026-01"

// ShopifyConfig holds the credentials for the merchant's Shopify Admin API.
type ShopifyConfig struct {
	StoreDomain   string
	AccessToken   string
	ApiVersion    string
	WebhookSecret string
}

var ErrShopifyConfigMissing = errors.New("shopify store domain or access token is not configured")

// GetShopifyConfig reads the Shopify credentials from the environment.
// Store domain and access token are mandatory; callers must fail fast
// before any sync or outbound action when they are missing.
func GetShopifyConfig() (ShopifyConfig, error) {
	cfg := ShopifyConfig{
		StoreDomain:   strings.TrimSpace(os.Getenv("SHOPIFY_STORE_DOMAIN")),
		AccessToken:   strings.TrimSpace(os.Getenv("SHOPIFY_ACCESS_TOKEN")),
		ApiVersion:    strings.TrimSpace(os.Getenv("SHOPIFY_API_VERSION")),
		WebhookSecret: strings.TrimSpace(os.Getenv("SHOPIFY_WEBHOOK_SECRET")),
	}
	if cfg.ApiVersion == "" {
		cfg.ApiVersion = DefaultShopifyApiVersion
	}
	if cfg.StoreDomain == "" || cfg.AccessToken == "" {
		return cfg, ErrShopifyConfigMissing
	}
	return cfg, nil
}

// GetShopifyWebhookSecret reads the webhook signing secret on its own so the
// webhook receiver can run even when sync credentials are absent.
func GetShopifyWebhookSecret() string {
	return strings.TrimSpace(os.Getenv("SHOPIFY_WEBHOOK_SECRET"))
}
