package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/felipedev418/tax-rate-adjustment/internal/admin"
	"github.com/felipedev418/tax-rate-adjustment/internal/checkout"
	"github.com/felipedev418/tax-rate-adjustment/internal/common"
	"github.com/felipedev418/tax-rate-adjustment/internal/discount"
	"github.com/felipedev418/tax-rate-adjustment/internal/health"
	"github.com/felipedev418/tax-rate-adjustment/internal/obs"
	"github.com/felipedev418/tax-rate-adjustment/internal/ratelimit"
	"github.com/felipedev418/tax-rate-adjustment/internal/security"
	"github.com/felipedev418/tax-rate-adjustment/internal/session"
	"github.com/felipedev418/tax-rate-adjustment/internal/shopify"
	"github.com/felipedev418/tax-rate-adjustment/internal/taxrate"
	"github.com/felipedev418/tax-rate-adjustment/internal/vat"
)

// RouterOptions carries process level concerns into the router.
type RouterOptions struct {
	HTTPMetrics *obs.HTTPMetrics
	Tracing     bool
	// Metrics serves /metrics when set.
	Metrics http.Handler
	// Mount registers extra routes such as pprof.
	Mount func(chi.Router)
}

// Router builds the HTTP surface.
func (d *Dependencies) Router(o RouterOptions) http.Handler {
	cfg := d.Config

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if o.Tracing {
		r.Use(obs.TracingMiddleware)
	}
	if o.HTTPMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: o.HTTPMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: d.Logger}.Middleware)
	r.Use(security.Headers{Enable: cfg.SecurityHeaders, EnableHSTS: cfg.EnableHSTS}.Middleware)
	r.Use(security.CORS(allowedOrigins(cfg.CORSAllowedOrigins)))

	if o.Metrics != nil {
		r.Handle("/metrics", o.Metrics)
	}
	if o.Mount != nil {
		o.Mount(r)
	}

	healthHandler := health.Handler{Checks: d.probes().Checks(cfg.HealthRedisTimeout, cfg.HealthShopifyTimeout)}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	verifier := session.Verifier{
		APIKey:    cfg.ShopifyAPIKey,
		Secret:    []byte(cfg.ShopifyAPISecret),
		ClockSkew: cfg.SessionClockSkew,
	}
	vatLimit := ratelimit.Handler{
		Limiter: d.Limiter,
		Config: ratelimit.Config{
			Name:   "vat",
			Key:    ratelimit.ShopOrIPKey("vat:"),
			Window: cfg.VATRateWindow,
			Max:    cfg.VATRateLimit,
		},
		OnError: func(err error) { d.Logger.Warn().Err(err).Msg("rate limiter unavailable") },
	}

	r.Route("/api", func(api chi.Router) {
		api.Use(security.BodyLimit{Max: cfg.BodyLimitBytes}.Middleware)
		api.Use(session.Middleware{Verifier: verifier}.Require)

		taxrate.NewHandler(taxrate.HandlerConfig{Service: d.TaxRates}).Routes(api)
		vat.NewHandler(vat.HandlerConfig{
			Validator: d.Validator,
			Settings:  d.Settings,
			RateLimit: vatLimit.Middleware,
		}).Routes(api)
		checkout.NewHandler(d.Calculator).Routes(api)
		discount.NewHandler(d.Evaluator).Routes(api)
		admin.NewHandler(d.TaxRates).Routes(api)
		api.Get("/products/count", d.productsCount)
		api.Post("/products", d.createProducts)
	})

	return r
}

// productsCount handles GET /api/products/count.
func (d *Dependencies) productsCount(w http.ResponseWriter, r *http.Request) {
	if d.Shopify == nil {
		common.JSONError(w, http.StatusServiceUnavailable, "NOT_CONFIGURED", "shopify client not configured", nil)
		return
	}
	count, err := d.Shopify.ProductsCount(r.Context())
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("products count")
		common.WriteError(w, common.Upstream(err))
		return
	}
	common.JSON(w, http.StatusOK, map[string]int{"count": count})
}

// createProducts handles POST /api/products by seeding sample products.
func (d *Dependencies) createProducts(w http.ResponseWriter, r *http.Request) {
	if d.Shopify == nil {
		common.JSONError(w, http.StatusServiceUnavailable, "NOT_CONFIGURED", "shopify client not configured", nil)
		return
	}
	ids, err := d.Shopify.CreateSampleProducts(r.Context(), shopify.DefaultSampleProducts)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Int("created", len(ids)).Msg("create sample products")
		common.JSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": err.Error(), "created": ids})
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"success": true, "error": nil, "created": ids})
}

func (d *Dependencies) probes() health.Probes {
	var p health.Probes
	if d.Redis != nil {
		p.Redis = d.Redis
	}
	if d.Shopify != nil {
		p.Shopify = d.Shopify.Ping
	}
	return p
}

func allowedOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
