// Package queue schedules background work on asynq.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/felipedev418/tax-rate-adjustment/internal/common"
	"github.com/felipedev418/tax-rate-adjustment/internal/obs"
)

// TypeTaxRateSync pushes the stored rates to the tax calculator function.
const TypeTaxRateSync = "taxrates:sync"

// DefaultQueue is the asynq queue tasks are placed on.
const DefaultQueue = "default"

// SyncPayload is the body of a TypeTaxRateSync task. asynq keys uniqueness on
// type, queue and payload, so the payload holds nothing that changes between
// enqueues for the same shop.
type SyncPayload struct {
	Shop string `json:"shop,omitempty"`
}

// NewTaxRateSyncTask builds a sync task for shop.
func NewTaxRateSyncTask(shop string) (*asynq.Task, error) {
	raw, err := json.Marshal(SyncPayload{Shop: shop})
	if err != nil {
		return nil, fmt.Errorf("marshal sync payload: %w", err)
	}
	return asynq.NewTask(TypeTaxRateSync, raw), nil
}

// TaskClient is the subset of *asynq.Client the enqueuer needs.
type TaskClient interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Enqueuer submits sync tasks. Bursts of edits within the Unique window
// collapse into one task.
type Enqueuer struct {
	Client   TaskClient
	Queue    string
	Unique   time.Duration
	MaxRetry int
	Timeout  time.Duration
	Logger   *zerolog.Logger
}

// EnqueueTaxRateSync schedules a tax-rate sync. A duplicate inside the
// uniqueness window is not an error.
func (e Enqueuer) EnqueueTaxRateSync(ctx context.Context) error {
	if e.Client == nil {
		return errors.New("queue: client not configured")
	}
	shop, _ := common.Shop(ctx)
	task, err := NewTaxRateSyncTask(shop)
	if err != nil {
		return err
	}
	info, err := e.Client.EnqueueContext(ctx, task, e.options()...)
	switch {
	case errors.Is(err, asynq.ErrDuplicateTask), errors.Is(err, asynq.ErrTaskIDConflict):
		observeEnqueue("duplicate")
		return nil
	case err != nil:
		observeEnqueue("error")
		return fmt.Errorf("enqueue %s: %w", TypeTaxRateSync, err)
	}
	observeEnqueue("ok")
	if e.Logger != nil {
		e.Logger.Debug().Str("task_id", info.ID).Str("queue", info.Queue).Msg("tax rate sync enqueued")
	}
	return nil
}

func (e Enqueuer) options() []asynq.Option {
	queue := e.Queue
	if queue == "" {
		queue = DefaultQueue
	}
	unique := e.Unique
	if unique <= 0 {
		unique = 10 * time.Second
	}
	retry := e.MaxRetry
	if retry <= 0 {
		retry = 5
	}
	timeout := e.Timeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	return []asynq.Option{
		asynq.Queue(queue),
		asynq.Unique(unique),
		asynq.MaxRetry(retry),
		asynq.Timeout(timeout),
	}
}

func observeEnqueue(result string) {
	if obs.QueueEnqueuedTotal != nil {
		obs.QueueEnqueuedTotal.WithLabelValues(TypeTaxRateSync, result).Inc()
	}
}
