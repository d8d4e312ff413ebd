package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/felipedev418/tax-rate-adjustment/internal/common"
	"github.com/felipedev418/tax-rate-adjustment/internal/obs"
	"github.com/felipedev418/tax-rate-adjustment/internal/taxrate"
)

// Syncer pushes rates to Shopify. *taxrate.Service satisfies it.
type Syncer interface {
	Sync(ctx context.Context) (taxrate.SyncResult, error)
}

// SyncLocker serialises syncs for a shop. lock.Locker satisfies it.
type SyncLocker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Handlers processes queue tasks.
type Handlers struct {
	Syncer Syncer
	// Lock keeps two workers from pushing rate maps for the same shop at once.
	// Syncs run unguarded when nil.
	Lock    SyncLocker
	LockTTL time.Duration
	Logger  zerolog.Logger
}

// HandleTaxRateSync runs one sync. A malformed payload is not retried.
func (h Handlers) HandleTaxRateSync(ctx context.Context, t *asynq.Task) error {
	var payload SyncPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("decode %s payload: %v: %w", TypeTaxRateSync, err, asynq.SkipRetry)
	}
	logger := h.Logger.With().Str("task", TypeTaxRateSync).Str("shop", payload.Shop).Logger()
	ctx = logger.WithContext(ctx)
	if payload.Shop != "" {
		ctx = common.WithShop(ctx, payload.Shop)
	}
	var res taxrate.SyncResult
	run := func(ctx context.Context) error {
		var err error
		res, err = h.Syncer.Sync(ctx)
		return err
	}
	var err error
	if h.Lock != nil {
		err = h.Lock.WithLock(ctx, lockKey(payload.Shop), h.lockTTL(), run)
	} else {
		err = run(ctx)
	}
	if err != nil {
		logger.Error().Err(err).Msg("tax rate sync failed")
		return err
	}
	logger.Info().Int("countries", len(res.TaxRates)).Str("calculation_id", res.CalculationID).Msg("tax rate sync complete")
	return nil
}

func (h Handlers) lockTTL() time.Duration {
	if h.LockTTL <= 0 {
		return time.Minute
	}
	return h.LockTTL
}

func lockKey(shop string) string {
	if shop == "" {
		shop = "default"
	}
	return TypeTaxRateSync + ":" + shop
}

// NewServeMux registers the task handlers with processing metrics.
func NewServeMux(h Handlers) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Use(metricsMiddleware)
	mux.HandleFunc(TypeTaxRateSync, h.HandleTaxRateSync)
	return mux
}

func metricsMiddleware(next asynq.Handler) asynq.Handler {
	return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
		err := next.ProcessTask(ctx, t)
		status := "ok"
		if err != nil {
			status = "error"
		}
		if obs.QueueProcessedTotal != nil {
			obs.QueueProcessedTotal.WithLabelValues(t.Type(), status).Inc()
		}
		return err
	})
}
