package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/agrilink/storefront/internal/domain/checkout"
)

// Config holds the complete gateway configuration, loadable from environment
// variables (AGRILINK_ prefix), a .env file, flags, or YAML config files.
type Config struct {
	Addr string `default:"0.0.0.0:8080" usage:"HTTP listen address"`
	// DatabaseURL enables the Postgres coupon store. Without it coupons are
	// read from CouponCatalog.
	DatabaseURL   string `usage:"PostgreSQL connection URL for coupons (AGRILINK_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	CouponCatalog string `default:"coupons.yaml" usage:"YAML coupon catalog used without a database" flag:"coupon-catalog"`
	Upstream      UpstreamConfig
	Local         LocalConfig
	Pricing       PricingConfig
	Cookie        CookieConfig
	Search        SearchConfig
	RateLimit     RateLimitConfig
	CORS          CORSConfig
	Graceful      GracefulConfig
}

// UpstreamConfig locates the AgriLink REST services.
type UpstreamConfig struct {
	AuthURL         string        `default:"http://localhost:8081" usage:"Auth service base URL" flag:"auth-url"`
	UserURL         string        `default:"http://localhost:8082" usage:"User service base URL" flag:"user-url"`
	FarmURL         string        `default:"http://localhost:8083" usage:"Farm service base URL" flag:"farm-url"`
	MarketplaceURL  string        `default:"http://localhost:8084" usage:"Marketplace service base URL" flag:"marketplace-url"`
	OrderURL        string        `default:"http://localhost:8085" usage:"Order service base URL" flag:"order-url"`
	NotificationURL string        `default:"http://localhost:8086" usage:"Notification service base URL" flag:"notification-url"`
	Timeout         time.Duration `default:"10s" usage:"Upstream request timeout"`
	// HealthPath is probed on every service by the optional readiness checks.
	HealthPath string `default:"/actuator/health" usage:"Upstream health endpoint path" flag:"upstream-health-path"`
}

// LocalConfig controls the per-browser store.
type LocalConfig struct {
	Path          string        `default:"storefront.db" usage:"SQLite file of the browser partition store" flag:"local-store"`
	Retention     time.Duration `default:"720h" usage:"Partitions idle longer than this are purged"`
	PurgeInterval time.Duration `default:"1h" usage:"How often idle partitions are purged"`
}

// PricingConfig holds checkout fees. Amounts are decimal strings.
type PricingConfig struct {
	DeliveryFee           string `default:"40" usage:"Delivery fee below the free delivery threshold"`
	FreeDeliveryThreshold string `default:"500" usage:"Subtotal from which delivery is free"`
	GiftWrapFee           string `default:"29" usage:"Gift wrap fee"`
	TaxRate               string `default:"0.05" usage:"Tax rate applied to the subtotal"`
}

// Pricing parses the configured amounts.
func (p PricingConfig) Pricing() (checkout.Pricing, error) {
	var (
		out    checkout.Pricing
		fields = []struct {
			name string
			raw  string
			dst  *decimal.Decimal
		}{
			{"delivery fee", p.DeliveryFee, &out.DeliveryFee},
			{"free delivery threshold", p.FreeDeliveryThreshold, &out.FreeDeliveryThreshold},
			{"gift wrap fee", p.GiftWrapFee, &out.GiftWrapFee},
			{"tax rate", p.TaxRate, &out.TaxRate},
		}
	)
	for _, f := range fields {
		v, err := decimal.NewFromString(f.raw)
		if err != nil {
			return checkout.Pricing{}, errors.Wrapf(err, "parse %s", f.name)
		}
		if v.IsNegative() {
			return checkout.Pricing{}, errors.Errorf("%s must not be negative", f.name)
		}
		*f.dst = v
	}
	return out, nil
}

// CookieConfig controls the browser partition cookie.
type CookieConfig struct {
	Name   string        `default:"agrilink_partition" usage:"Partition cookie name" flag:"cookie-name"`
	Secure bool          `default:"false" usage:"Set the Secure flag on the partition cookie" flag:"cookie-secure"`
	MaxAge time.Duration `default:"8760h" usage:"Partition cookie lifetime" flag:"cookie-max-age"`
}

// SearchConfig controls live search.
type SearchConfig struct {
	Delay time.Duration `default:"300ms" usage:"Live search keystroke debounce" flag:"search-delay"`
}

// RateLimitConfig controls the per-partition sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"300" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"http://localhost:5173" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"true" usage:"Allow credentials (the partition cookie)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from a .env file, environment variables and
// YAML config files, and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	// A missing .env is fine.
	_ = godotenv.Load()

	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "AGRILINK",
		Files:     []string{"config.yaml", "/etc/agrilink/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	for name, u := range map[string]string{
		"auth":         c.Upstream.AuthURL,
		"user":         c.Upstream.UserURL,
		"farm":         c.Upstream.FarmURL,
		"marketplace":  c.Upstream.MarketplaceURL,
		"order":        c.Upstream.OrderURL,
		"notification": c.Upstream.NotificationURL,
	} {
		if u == "" {
			return errors.Errorf("%s service URL is required", name)
		}
	}
	if c.DatabaseURL == "" && c.CouponCatalog == "" {
		return errors.New("coupon source is required: set AGRILINK_DATABASE_URL or AGRILINK_COUPON_CATALOG")
	}
	if _, err := c.Pricing.Pricing(); err != nil {
		return errors.Wrap(err, "pricing")
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's AGRILINK_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
