package cron

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeExpirer struct {
	cutoff  time.Time
	expired int
	err     error
}

func (f *fakeExpirer) ExpireStalePending(_ context.Context, cutoff time.Time) (int, error) {
	f.cutoff = cutoff
	return f.expired, f.err
}

func TestPendingOrderExpiryJobComputesCutoff(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	orders := &fakeExpirer{expired: 2}
	jobIface, err := NewPendingOrderExpiryJob(PendingOrderExpiryJobParams{
		Logger: testLogger(),
		Orders: orders,
		TTL:    48 * time.Hour,
	})
	if err != nil {
		t.Fatalf("NewPendingOrderExpiryJob: %v", err)
	}
	job := jobIface.(*pendingOrderExpiryJob)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !orders.cutoff.Equal(now.Add(-48 * time.Hour)) {
		t.Fatalf("unexpected cutoff %s", orders.cutoff)
	}
}

func TestPendingOrderExpiryJobRequiresTTLAndPropagatesErrors(t *testing.T) {
	if _, err := NewPendingOrderExpiryJob(PendingOrderExpiryJobParams{Logger: testLogger(), TTL: time.Hour}); err == nil {
		t.Fatal("expected missing orders error")
	}
	if _, err := NewPendingOrderExpiryJob(PendingOrderExpiryJobParams{Logger: testLogger(), Orders: &fakeExpirer{}}); err == nil {
		t.Fatal("expected zero ttl to be rejected")
	}

	boom := errors.New("boom")
	jobIface, err := NewPendingOrderExpiryJob(PendingOrderExpiryJobParams{
		Logger: testLogger(),
		Orders: &fakeExpirer{expired: 1, err: boom},
		TTL:    time.Hour,
	})
	if err != nil {
		t.Fatalf("NewPendingOrderExpiryJob: %v", err)
	}
	if err := jobIface.Run(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped boom, got %v", err)
	}
}
