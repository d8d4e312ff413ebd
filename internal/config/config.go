package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/shopspring/decimal"
)

// Metaobject store backends.
const (
	StoreShopify = "shopify"
	StoreMemory  = "memory"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	RedisURL           string
	CORSAllowedOrigins []string

	ShopifyShopDomain string
	ShopifyAdminToken string
	ShopifyAPIVersion string
	ShopifyAPIKey     string
	ShopifyAPISecret  string
	ShopifyTimeout    time.Duration
	MetaobjectStore   string
	SessionClockSkew  time.Duration

	VIESURL       string
	VIESTimeout   time.Duration
	VATCacheTTL   time.Duration
	VATRateLimit  int
	VATRateWindow time.Duration

	DiscountPolicy         string
	DiscountTiersFile      string
	CheckoutDefaultTaxRate decimal.Decimal

	QueueName         string
	SyncUniqueWindow  time.Duration
	WorkerConcurrency int

	BodyLimitBytes  int64
	SecurityHeaders bool
	EnableHSTS      bool
	ShutdownTimeout time.Duration

	HealthRedisTimeout   time.Duration
	HealthShopifyTimeout time.Duration

	Obs Obs
}

// Obs groups the OBS_* observability settings.
type Obs struct {
	LogFormat        string
	LogLevel         string
	MetricsNamespace string
	EnablePrometheus bool
	MetricsBucketsMS string
	EnableTracing    bool
	TracingExporter  string
	OTLPEndpoint     string
	SamplingRatio    float64
	EnablePprof      bool
	PprofUser        string
	PprofPass        string
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		RedisURL:           strings.TrimSpace(k.String("REDIS_URL")),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		ShopifyShopDomain: strings.TrimSpace(k.String("SHOPIFY_SHOP_DOMAIN")),
		ShopifyAdminToken: strings.TrimSpace(k.String("SHOPIFY_ADMIN_TOKEN")),
		ShopifyAPIVersion: valueOrDefault(k.String("SHOPIFY_API_VERSION"), "2024-10"),
		ShopifyAPIKey:     strings.TrimSpace(k.String("SHOPIFY_API_KEY")),
		ShopifyAPISecret:  strings.TrimSpace(k.String("SHOPIFY_API_SECRET")),
		ShopifyTimeout:    parseDuration(k.String("SHOPIFY_TIMEOUT"), "10s"),
		MetaobjectStore:   strings.ToLower(valueOrDefault(k.String("METAOBJECT_STORE"), StoreShopify)),
		SessionClockSkew:  parseDuration(k.String("SESSION_CLOCK_SKEW"), "5s"),

		VIESURL:       valueOrDefault(k.String("VIES_URL"), "https://ec.europa.eu/taxation_customs/vies/rest-api/check-vat-number"),
		VIESTimeout:   parseDuration(k.String("VIES_TIMEOUT"), "10s"),
		VATCacheTTL:   parseDuration(k.String("VAT_CACHE_TTL"), "24h"),
		VATRateLimit:  parseInt(k.String("VAT_RATE_LIMIT"), 30),
		VATRateWindow: parseDuration(k.String("VAT_RATE_WINDOW"), "1m"),

		DiscountPolicy:         valueOrDefault(k.String("DISCOUNT_POLICY"), "first"),
		DiscountTiersFile:      strings.TrimSpace(k.String("DISCOUNT_TIERS_FILE")),
		CheckoutDefaultTaxRate: parseDecimal(k.String("CHECKOUT_DEFAULT_TAX_RATE"), "5"),

		QueueName:         valueOrDefault(k.String("QUEUE_NAME"), "default"),
		SyncUniqueWindow:  parseDuration(k.String("SYNC_UNIQUE_WINDOW"), "10s"),
		WorkerConcurrency: parseInt(k.String("WORKER_CONCURRENCY"), 2),

		BodyLimitBytes:  int64(parseInt(k.String("BODY_LIMIT_BYTES"), 1<<20)),
		SecurityHeaders: parseBoolDefault(k.String("SECURITY_HEADERS"), true),
		EnableHSTS:      parseBool(k.String("SECURITY_HSTS")),
		ShutdownTimeout: parseDuration(k.String("SHUTDOWN_TIMEOUT"), "15s"),

		HealthRedisTimeout:   parseDuration(k.String("HEALTH_READY_REDIS_TIMEOUT"), "300ms"),
		HealthShopifyTimeout: parseDuration(k.String("HEALTH_READY_SHOPIFY_TIMEOUT"), "2s"),

		Obs: Obs{
			LogFormat:        valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
			LogLevel:         valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
			MetricsNamespace: valueOrDefault(k.String("OBS_METRICS_NAMESPACE"), "taxapp"),
			EnablePrometheus: parseBoolDefault(k.String("OBS_ENABLE_PROMETHEUS"), true),
			MetricsBucketsMS: strings.TrimSpace(k.String("OBS_METRICS_BUCKETS_MS")),
			EnableTracing:    parseBoolDefault(k.String("OBS_ENABLE_TRACING"), false),
			TracingExporter:  valueOrDefault(k.String("OBS_TRACING_EXPORTER"), "otlp"),
			OTLPEndpoint:     strings.TrimSpace(k.String("OBS_OTLP_ENDPOINT")),
			SamplingRatio:    parseFloat(k.String("OBS_TRACING_SAMPLING_RATIO"), 1.0),
			EnablePprof:      parseBool(k.String("OBS_ENABLE_PPROF")),
			PprofUser:        strings.TrimSpace(k.String("SECURE_PPROF_BASIC_AUTH_USER")),
			PprofPass:        strings.TrimSpace(k.String("SECURE_PPROF_BASIC_AUTH_PASS")),
		},
	}

	switch cfg.MetaobjectStore {
	case StoreShopify:
		if cfg.ShopifyShopDomain == "" {
			return nil, errors.New("SHOPIFY_SHOP_DOMAIN is required")
		}
		if cfg.ShopifyAdminToken == "" {
			return nil, errors.New("SHOPIFY_ADMIN_TOKEN is required")
		}
	case StoreMemory:
	default:
		return nil, fmt.Errorf("METAOBJECT_STORE must be %q or %q, got %q", StoreShopify, StoreMemory, cfg.MetaobjectStore)
	}
	if cfg.CheckoutDefaultTaxRate.IsNegative() || cfg.CheckoutDefaultTaxRate.GreaterThan(decimal.NewFromInt(100)) {
		return nil, errors.New("CHECKOUT_DEFAULT_TAX_RATE must be between 0 and 100")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// SessionEnabled reports whether API requests must carry a session token.
func (c *Config) SessionEnabled() bool {
	return c.ShopifyAPISecret != ""
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseBool(value string) bool {
	return parseBoolDefault(value, false)
}

func parseBoolDefault(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "t", "true", "yes", "on":
		return true
	case "0", "f", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func parseInt(value string, fallback int) int {
	if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
		return parsed
	}
	return fallback
}

func parseFloat(value string, fallback float64) float64 {
	if parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
		return parsed
	}
	return fallback
}

func parseDecimal(value, fallback string) decimal.Decimal {
	if d, err := decimal.NewFromString(strings.TrimSpace(value)); err == nil {
		return d
	}
	return decimal.RequireFromString(fallback)
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
