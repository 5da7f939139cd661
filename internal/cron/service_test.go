package cron

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

type fakeLock struct {
	held     bool
	releases int
	err      error
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if f.held {
		return false, nil
	}
	f.held = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error {
	f.held = false
	f.releases++
	return nil
}

type testJob struct {
	name     string
	err      error
	runs     int
	deadline bool
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(ctx context.Context) error {
	t.runs++
	_, t.deadline = ctx.Deadline()
	return t.err
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard})
}

func TestRunOnceRunsAllJobsEvenOnFailure(t *testing.T) {
	ok := &testJob{name: "success"}
	bad := &testJob{name: "fail", err: errors.New("boom")}
	lock := &fakeLock{}
	service, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Registry: NewRegistry().MustRegister(bad, ok),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.NewRegistry()),
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}

	report, err := service.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if ok.runs != 1 || bad.runs != 1 {
		t.Fatalf("expected each job to run once, got ok=%d bad=%d", ok.runs, bad.runs)
	}
	if len(report.Ran) != 2 || len(report.Failed) != 1 || report.Failed[0] != "fail" {
		t.Fatalf("unexpected report %+v", report)
	}
	if !ok.deadline {
		t.Fatalf("expected job context to carry a timeout")
	}
	if lock.held || lock.releases != 1 {
		t.Fatalf("expected lock released once, held=%v releases=%d", lock.held, lock.releases)
	}
}

func TestRunOnceSkipsWhenLockHeld(t *testing.T) {
	job := &testJob{name: "never"}
	service, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Registry: NewRegistry().MustRegister(job),
		Lock:     &fakeLock{held: true},
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}

	report, err := service.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if !report.Skipped || job.runs != 0 {
		t.Fatalf("expected skipped cycle, report=%+v runs=%d", report, job.runs)
	}
}

func TestRunOnceSurfacesLockErrors(t *testing.T) {
	service, err := NewService(ServiceParams{
		Logger: testLogger(),
		Lock:   &fakeLock{err: errors.New("redis down")},
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	if _, err := service.RunOnce(context.Background()); err == nil {
		t.Fatal("expected lock error")
	}
}

type signalJob struct {
	once    sync.Once
	started chan struct{}
}

func (s *signalJob) Name() string { return "signal" }

func (s *signalJob) Run(context.Context) error {
	s.once.Do(func() { close(s.started) })
	return nil
}

func TestRunStopsOnContextCancel(t *testing.T) {
	job := &signalJob{started: make(chan struct{})}
	service, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Registry: NewRegistry().MustRegister(job),
		Lock:     &fakeLock{},
		Interval: time.Hour,
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- service.Run(ctx) }()

	select {
	case <-job.started:
	case <-time.After(2 * time.Second):
		t.Fatal("first cycle did not run")
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNewServiceRequiresLoggerAndLock(t *testing.T) {
	if _, err := NewService(ServiceParams{Lock: &fakeLock{}}); err == nil {
		t.Fatal("expected logger error")
	}
	if _, err := NewService(ServiceParams{Logger: testLogger()}); err == nil {
		t.Fatal("expected lock error")
	}
}
