// Package app assembles the services shared by the API and worker processes.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/felipedev418/tax-rate-adjustment/internal/cache"
	"github.com/felipedev418/tax-rate-adjustment/internal/checkout"
	"github.com/felipedev418/tax-rate-adjustment/internal/config"
	"github.com/felipedev418/tax-rate-adjustment/internal/discount"
	"github.com/felipedev418/tax-rate-adjustment/internal/metaobject"
	"github.com/felipedev418/tax-rate-adjustment/internal/queue"
	"github.com/felipedev418/tax-rate-adjustment/internal/ratelimit"
	"github.com/felipedev418/tax-rate-adjustment/internal/shopify"
	"github.com/felipedev418/tax-rate-adjustment/internal/taxrate"
	"github.com/felipedev418/tax-rate-adjustment/internal/vat"
)

// Dependencies enumerates the services shared across modules.
type Dependencies struct {
	Config *config.Config
	Logger zerolog.Logger

	// Redis is nil when REDIS_URL is unset. Caching, shared rate limits and
	// background sync are then disabled.
	Redis *redis.Client
	// Shopify is nil with the memory metaobject store.
	Shopify *shopify.Client
	Store   metaobject.Store
	Tasks   *asynq.Client

	TaxRates   *taxrate.Service
	Settings   *vat.SettingsService
	Validator  *vat.Validator
	Calculator checkout.Calculator
	Evaluator  discount.Evaluator
	Limiter    ratelimit.Limiter
}

// Options override pieces of the assembly. Tests use them to inject fakes.
type Options struct {
	Store   metaobject.Store
	Checker vat.Checker
}

// New builds the dependency graph from cfg.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger, opts Options) (*Dependencies, error) {
	d := &Dependencies{Config: cfg, Logger: logger}

	if cfg.RedisURL != "" {
		rdb, err := connectRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		if err := redisotel.InstrumentTracing(rdb); err != nil {
			logger.Error().Err(err).Msg("instrument redis tracing")
		}
		d.Redis = rdb

		redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis uri for asynq: %w", err)
		}
		d.Tasks = asynq.NewClient(redisOpt)
	}

	switch {
	case opts.Store != nil:
		d.Store = opts.Store
	case cfg.MetaobjectStore == config.StoreMemory:
		d.Store = metaobject.NewMemStore()
	default:
		client, err := shopify.NewClient(shopify.Config{
			ShopDomain: cfg.ShopifyShopDomain,
			APIVersion: cfg.ShopifyAPIVersion,
			Token:      cfg.ShopifyAdminToken,
			Timeout:    cfg.ShopifyTimeout,
		}, shopify.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		d.Shopify = client
		d.Store = metaobject.NewGraphQLStore(client)
	}

	svcCfg := taxrate.ServiceConfig{Store: d.Store, Logger: logger}
	if d.Shopify != nil {
		svcCfg.Functions = d.Shopify
	}
	if d.Tasks != nil {
		svcCfg.Enqueuer = queue.Enqueuer{
			Client: d.Tasks,
			Queue:  cfg.QueueName,
			Unique: cfg.SyncUniqueWindow,
			Logger: &logger,
		}
	}
	d.TaxRates = taxrate.NewService(svcCfg)
	d.Settings = vat.NewSettingsService(d.Store)

	checker := opts.Checker
	if checker == nil {
		checker = vat.NewVIESClient(cfg.VIESURL, &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)})
	}
	var cacheClient redis.Cmdable
	if d.Redis != nil {
		cacheClient = d.Redis
	}
	d.Validator = vat.NewValidator(vat.ValidatorConfig{
		Checker: checker,
		Cache:   cache.NewJSON(cacheClient, "vat", cfg.VATCacheTTL),
		Timeout: cfg.VIESTimeout,
		Logger:  logger,
	})
	d.Calculator = checkout.Calculator{Rates: d.TaxRates, VAT: d.Validator, DefaultRate: cfg.CheckoutDefaultTaxRate}

	evaluator, err := discount.Configure(cfg.DiscountTiersFile, cfg.DiscountPolicy)
	if err != nil {
		return nil, err
	}
	d.Evaluator = evaluator

	if d.Redis != nil {
		lim, err := ratelimit.NewRedisLimiter(d.Redis, "taxapp:ratelimit")
		if err != nil {
			return nil, fmt.Errorf("rate limit store: %w", err)
		}
		d.Limiter = lim
	} else {
		d.Limiter = ratelimit.NewMemoryLimiter("taxapp:ratelimit")
	}

	return d, nil
}

// Close releases network clients.
func (d *Dependencies) Close() error {
	var errs []error
	if d.Tasks != nil {
		errs = append(errs, d.Tasks.Close())
	}
	if d.Redis != nil {
		errs = append(errs, d.Redis.Close())
	}
	return errors.Join(errs...)
}

func connectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}
