package cron

import (
	"fmt"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// JobsParams wire the storefront maintenance jobs.
type JobsParams struct {
	Logger              *logger.Logger
	Outbox              outboxPruner
	OutboxRetentionDays int
	Orders              pendingOrderExpirer
	PendingOrderTTL     time.Duration
}

// NewJobRegistry registers outbox retention, plus pending order expiry when
// PendingOrderTTL is positive.
func NewJobRegistry(params JobsParams) (*Registry, error) {
	registry := NewRegistry()

	retention, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:        params.Logger,
		Repository:    params.Outbox,
		RetentionDays: params.OutboxRetentionDays,
	})
	if err != nil {
		return nil, fmt.Errorf("outbox retention job: %w", err)
	}
	if err := registry.Register(retention); err != nil {
		return nil, err
	}

	if params.PendingOrderTTL <= 0 {
		return registry, nil
	}
	expiry, err := NewPendingOrderExpiryJob(PendingOrderExpiryJobParams{
		Logger: params.Logger,
		Orders: params.Orders,
		TTL:    params.PendingOrderTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("pending order expiry job: %w", err)
	}
	if err := registry.Register(expiry); err != nil {
		return nil, err
	}
	return registry, nil
}
