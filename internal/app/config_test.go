package app

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPricingConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     PricingConfig
		wantErr bool
	}{
		{
			name: "Defaults",
			cfg:  PricingConfig{DeliveryFee: "40", FreeDeliveryThreshold: "500", GiftWrapFee: "29", TaxRate: "0.05"},
		},
		{
			name:    "Malformed",
			cfg:     PricingConfig{DeliveryFee: "forty", FreeDeliveryThreshold: "500", GiftWrapFee: "29", TaxRate: "0.05"},
			wantErr: true,
		},
		{
			name:    "Negative",
			cfg:     PricingConfig{DeliveryFee: "40", FreeDeliveryThreshold: "500", GiftWrapFee: "-1", TaxRate: "0.05"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := tt.cfg.Pricing()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, decimal.NewFromInt(40).Equal(p.DeliveryFee))
			assert.True(t, decimal.RequireFromString("0.05").Equal(p.TaxRate))
		})
	}
}

func TestConfig_ApplyPlatformDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://agrilink@db/agrilink")
	t.Setenv("PORT", "9090")

	cfg := Config{Addr: "0.0.0.0:8080"}
	cfg.applyPlatformDefaults()
	assert.Equal(t, "postgres://agrilink@db/agrilink", cfg.DatabaseURL)
	assert.Equal(t, "0.0.0.0:9090", cfg.Addr)

	custom := Config{Addr: "127.0.0.1:7000", DatabaseURL: "postgres://explicit"}
	custom.applyPlatformDefaults()
	assert.Equal(t, "postgres://explicit", custom.DatabaseURL)
	assert.Equal(t, "127.0.0.1:7000", custom.Addr)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		return Config{
			CouponCatalog: "coupons.yaml",
			Upstream: UpstreamConfig{
				AuthURL:         "http://auth",
				UserURL:         "http://user",
				FarmURL:         "http://farm",
				MarketplaceURL:  "http://market",
				OrderURL:        "http://order",
				NotificationURL: "http://notify",
			},
			Pricing: PricingConfig{DeliveryFee: "40", FreeDeliveryThreshold: "500", GiftWrapFee: "29", TaxRate: "0.05"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "Valid", mutate: func(*Config) {}},
		{name: "MissingUpstream", mutate: func(c *Config) { c.Upstream.OrderURL = "" }, wantErr: true},
		{name: "NoCouponSource", mutate: func(c *Config) { c.CouponCatalog = "" }, wantErr: true},
		{name: "DatabaseOnly", mutate: func(c *Config) { c.CouponCatalog = ""; c.DatabaseURL = "postgres://db" }},
		{name: "BadPricing", mutate: func(c *Config) { c.Pricing.TaxRate = "x" }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}
