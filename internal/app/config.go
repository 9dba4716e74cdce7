package app

import (
	"os"
	"strings"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/qorikusi/storefront/internal/domain/cart"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

// Config holds the complete gateway configuration, loadable from
// environment variables (STOREFRONT_ prefix), flags, or YAML config files.
type Config struct {
	Addr      string `default:"0.0.0.0:8080" usage:"Gateway listen address"`
	Backend   BackendConfig
	Storage   StorageConfig
	Cart      CartConfig
	Session   SessionConfig
	Catalog   CatalogConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Graceful  GracefulConfig
}

// BackendConfig locates the storefront microservices.
type BackendConfig struct {
	AuthURL     string        `default:"http://localhost:8081" usage:"Auth service base URL"`
	CatalogURL  string        `default:"http://localhost:8082" usage:"Product service base URL"`
	CartURL     string        `default:"http://localhost:8083" usage:"Cart service base URL"`
	OrdersURL   string        `default:"http://localhost:8084" usage:"Order service base URL"`
	PaymentsURL string        `default:"http://localhost:8085" usage:"Payment service base URL"`
	CustomerURL string        `default:"http://localhost:8086" usage:"Customer service base URL"`
	Timeout     time.Duration `default:"10s" usage:"Timeout of one backend call"`
	// RequestTimeout bounds one gateway request, which may span several
	// backend calls.
	RequestTimeout time.Duration `default:"30s" usage:"Timeout of one gateway request"`
}

// StorageConfig selects where per-session values are persisted.
type StorageConfig struct {
	Driver      string        `default:"memory" usage:"Session storage driver: memory, redis or postgres"`
	RedisURL    string        `usage:"Redis connection URL (STOREFRONT_STORAGE_REDIS_URL or REDIS_URL)"`
	DatabaseURL string        `usage:"PostgreSQL connection URL (STOREFRONT_STORAGE_DATABASE_URL or DATABASE_URL)"`
	TTL         time.Duration `default:"720h" usage:"Expiry of persisted session values in Redis"`
}

// CartConfig holds the pricing rules. Amounts are decimal strings.
type CartConfig struct {
	FreeShippingThreshold string `default:"250" usage:"Subtotal from which shipping is free"`
	ShippingFee           string `default:"15" usage:"Flat shipping fee below the threshold"`
	MaxQuantity           int    `default:"10" usage:"Maximum quantity of one product"`
}

// Pricing returns the parsed pricing rules and shipping fee.
func (c CartConfig) Pricing() (cart.Pricing, decimal.Decimal, error) {
	threshold, err := decimal.NewFromString(c.FreeShippingThreshold)
	if err != nil {
		return cart.Pricing{}, decimal.Zero, errors.Wrap(err, "free shipping threshold")
	}
	fee, err := decimal.NewFromString(c.ShippingFee)
	if err != nil {
		return cart.Pricing{}, decimal.Zero, errors.Wrap(err, "shipping fee")
	}
	if threshold.IsNegative() || fee.IsNegative() {
		return cart.Pricing{}, decimal.Zero, errors.New("cart amounts must not be negative")
	}
	if c.MaxQuantity < 1 {
		return cart.Pricing{}, decimal.Zero, errors.New("max quantity must be positive")
	}
	return cart.Pricing{FreeShippingThreshold: threshold, MaxQuantity: c.MaxQuantity}, fee, nil
}

// SessionConfig controls the session cookie and in-memory session lifetime.
type SessionConfig struct {
	CookieName    string        `default:"sf_session" usage:"Session cookie name"`
	CookieMaxAge  time.Duration `default:"720h" usage:"Session cookie lifetime"`
	Secure        bool          `default:"false" usage:"Send the session cookie over HTTPS only"`
	IdleTTL       time.Duration `default:"30m" usage:"How long an idle session stays in memory"`
	EvictInterval time.Duration `default:"1m" usage:"Interval between idle session sweeps"`
}

// CatalogConfig controls the product cache, active when Redis is configured.
type CatalogConfig struct {
	CacheTTL time.Duration `default:"5m" usage:"Product cache TTL"`
}

// RateLimitConfig controls the per-client token bucket rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"true" usage:"Allow credentials (the session cookie)"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration"`
}

// LoadConfig loads configuration from a .env file, environment variables,
// flags and YAML config files, then applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "load .env")
	}
	return loadConfig(aconfig.Config{
		Files: []string{"config.yaml", "/etc/storefront/config.yaml"},
	})
}

func loadConfig(ac aconfig.Config) (*Config, error) {
	ac.EnvPrefix = "STOREFRONT"
	ac.FileDecoders = map[string]aconfig.FileDecoder{
		".yaml": aconfigyaml.New(),
	}

	var cfg Config
	if err := aconfig.LoaderFor(&cfg, ac).Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	switch c.Storage.Driver {
	case DriverMemory:
	case DriverRedis:
		if c.Storage.RedisURL == "" {
			return errors.New("redis URL is required: set STOREFRONT_STORAGE_REDIS_URL or REDIS_URL")
		}
	case DriverPostgres:
		if c.Storage.DatabaseURL == "" {
			return errors.New("database URL is required: set STOREFRONT_STORAGE_DATABASE_URL or DATABASE_URL")
		}
	default:
		return errors.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if _, _, err := c.Cart.Pricing(); err != nil {
		return errors.Wrap(err, "cart config")
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL, REDIS_URL and PORT
// to the gateway's STOREFRONT_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.Storage.DatabaseURL == "" {
		c.Storage.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if c.Storage.RedisURL == "" {
		c.Storage.RedisURL = os.Getenv("REDIS_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
