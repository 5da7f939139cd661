package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

const (
	defaultInterval   = time.Hour
	defaultJobTimeout = 10 * time.Minute
)

// ServiceParams configure the cron service.
type ServiceParams struct {
	Logger     *logger.Logger
	Registry   *Registry
	Lock       Lock
	Metrics    *metrics.CronJobMetrics
	Interval   time.Duration
	JobTimeout time.Duration
}

// Service runs every registered job once per interval while holding the cycle lock.
type Service struct {
	logg       *logger.Logger
	registry   *Registry
	lock       Lock
	metrics    *metrics.CronJobMetrics
	interval   time.Duration
	jobTimeout time.Duration
}

// CycleReport summarises one cycle. Skipped is set when another worker held the lock.
type CycleReport struct {
	Skipped bool
	Ran     []string
	Failed  []string
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Lock == nil {
		return nil, fmt.Errorf("lock required")
	}
	registry := params.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	timeout := params.JobTimeout
	if timeout <= 0 {
		timeout = defaultJobTimeout
	}
	return &Service{
		logg:       params.Logger,
		registry:   registry,
		lock:       params.Lock,
		metrics:    params.Metrics,
		interval:   interval,
		jobTimeout: timeout,
	}, nil
}

// Run executes a cycle immediately and then on every tick until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"interval": s.interval.String(),
		"jobs":     s.registry.Names(),
	}), "cron worker started")

	if _, err := s.RunOnce(ctx); err != nil {
		s.logg.Error(ctx, "cron cycle failed", err)
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron worker stopping")
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil {
				s.logg.Error(ctx, "cron cycle failed", err)
			}
		}
	}
}

// RunOnce takes the lock and runs every job in order. A failing job does not
// stop the ones after it; failures are reported, not returned.
func (s *Service) RunOnce(ctx context.Context) (CycleReport, error) {
	var report CycleReport
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return report, fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		report.Skipped = true
		s.logg.Info(ctx, "cron cycle held by another worker, skipping")
		return report, nil
	}
	defer func() {
		if err := s.lock.Release(ctx); err != nil {
			s.logg.Error(ctx, "release cron lock", err)
		}
	}()

	for _, job := range s.registry.Jobs() {
		report.Ran = append(report.Ran, job.Name())
		if err := s.runJob(ctx, job); err != nil {
			report.Failed = append(report.Failed, job.Name())
		}
	}
	return report, nil
}

func (s *Service) runJob(ctx context.Context, job Job) error {
	jobCtx := s.logg.WithFields(ctx, map[string]any{"job": job.Name(), "event": "cron.job"})
	jobCtx, cancel := context.WithTimeout(jobCtx, s.jobTimeout)
	defer cancel()

	start := time.Now()
	err := job.Run(jobCtx)
	elapsed := time.Since(start)
	s.metrics.ObserveDuration(job.Name(), elapsed)

	logCtx := s.logg.WithField(jobCtx, "duration_ms", elapsed.Milliseconds())
	if err != nil {
		s.logg.Error(logCtx, "job failed", err)
		s.metrics.IncFailure(job.Name())
		return err
	}
	s.logg.Info(logCtx, "job completed")
	s.metrics.IncSuccess(job.Name())
	return nil
}
