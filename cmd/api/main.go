package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/felipedev418/tax-rate-adjustment/internal/app"
	"github.com/felipedev418/tax-rate-adjustment/internal/config"
	"github.com/felipedev418/tax-rate-adjustment/internal/health"
	"github.com/felipedev418/tax-rate-adjustment/internal/obs"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.Obs.LogFormat, cfg.Obs.LogLevel).With().Str("env", cfg.AppEnv).Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metricsEnabled := cfg.Obs.EnablePrometheus
	obs.MustRegisterDomainMetrics(cfg.Obs.MetricsNamespace, nil)

	tracingEnabled := cfg.Obs.EnableTracing
	if tracingEnabled {
		shutdown, err := obs.InitTracer(ctx, obs.TracingConfig{
			Exporter:      cfg.Obs.TracingExporter,
			Endpoint:      cfg.Obs.OTLPEndpoint,
			SamplingRatio: cfg.Obs.SamplingRatio,
			Environment:   cfg.AppEnv,
			Shop:          cfg.ShopifyShopDomain,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	deps, err := app.New(ctx, cfg, logger, app.Options{})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise dependencies")
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.Error().Err(err).Msg("close dependencies")
		}
	}()

	opts := app.RouterOptions{Tracing: tracingEnabled}
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(cfg.Obs.MetricsBucketsMS)
		opts.HTTPMetrics = obs.NewHTTPMetrics(cfg.Obs.MetricsNamespace, buckets, nil)
		opts.Metrics = promhttp.Handler()
	}
	if cfg.Obs.EnablePprof {
		opts.Mount = func(r chi.Router) {
			r.Mount("/debug/pprof", protectPprof(newPprofMux(), cfg.Obs.PprofUser, cfg.Obs.PprofPass))
		}
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           deps.Router(opts),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		health.SetReady(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("graceful shutdown")
		}
	}()

	logger.Info().
		Str("addr", srv.Addr).
		Str("store", cfg.MetaobjectStore).
		Bool("redis", deps.Redis != nil).
		Bool("session_tokens", cfg.SessionEnabled()).
		Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
	logger.Info().Msg("server stopped")
}

// newPprofMux serves under /debug/pprof. chi mounts keep the full request path.
func newPprofMux() http.Handler {
	const base = "/debug/pprof"
	mux := http.NewServeMux()
	mux.HandleFunc(base+"/", pprof.Index)
	mux.HandleFunc(base+"/cmdline", pprof.Cmdline)
	mux.HandleFunc(base+"/profile", pprof.Profile)
	mux.HandleFunc(base+"/symbol", pprof.Symbol)
	mux.HandleFunc(base+"/trace", pprof.Trace)
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
