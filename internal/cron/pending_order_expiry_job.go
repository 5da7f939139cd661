package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type PendingOrderExpiryJobParams struct {
	Logger *logger.Logger
	Orders pendingOrderExpirer
	TTL    time.Duration
}

type pendingOrderExpirer interface {
	ExpireStalePending(ctx context.Context, cutoff time.Time) (int, error)
}

type pendingOrderExpiryJob struct {
	logg   *logger.Logger
	orders pendingOrderExpirer
	ttl    time.Duration
	now    func() time.Time
}

// NewPendingOrderExpiryJob cancels orders that stayed pending longer than TTL,
// returning their stock to the catalog. TTL must be positive.
func NewPendingOrderExpiryJob(params PendingOrderExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	if params.TTL <= 0 {
		return nil, fmt.Errorf("pending order ttl must be positive")
	}
	return &pendingOrderExpiryJob{
		logg:   params.Logger,
		orders: params.Orders,
		ttl:    params.TTL,
		now:    time.Now,
	}, nil
}

func (j *pendingOrderExpiryJob) Name() string { return "pending-order-expiry" }

func (j *pendingOrderExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.ttl)
	expired, err := j.orders.ExpireStalePending(ctx, cutoff)
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":  cutoff.Format(time.RFC3339),
		"expired": expired,
	})
	if err != nil {
		return fmt.Errorf("expire pending orders (%d expired before failure): %w", expired, err)
	}
	j.logg.Info(logCtx, "pending order expiry complete")
	return nil
}
