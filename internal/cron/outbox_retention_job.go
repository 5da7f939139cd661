package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const defaultOutboxRetentionDays = 30

type OutboxRetentionJobParams struct {
	Logger        *logger.Logger
	Repository    outboxPruner
	RetentionDays int
}

type outboxPruner interface {
	DeletePublishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type outboxRetentionJob struct {
	logg      *logger.Logger
	repo      outboxPruner
	retention time.Duration
	now       func() time.Time
}

// NewOutboxRetentionJob deletes outbox rows that were published more than
// RetentionDays ago. Unpublished rows are never touched.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	days := params.RetentionDays
	if days <= 0 {
		days = defaultOutboxRetentionDays
	}
	return &outboxRetentionJob{
		logg:      params.Logger,
		repo:      params.Repository,
		retention: time.Duration(days) * 24 * time.Hour,
		now:       time.Now,
	}, nil
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	deleted, err := j.repo.DeletePublishedBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("outbox retention: %w", err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff.Format(time.RFC3339),
		"rows_deleted": deleted,
	}), "outbox retention cleanup complete")
	return nil
}
