package checkout

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	orderNumberPrefix  = "ORD-"
	orderNumberCounter = "order_number"
)

// NumberAllocator hands out order numbers. Numbers are never reused, even when
// the transaction that drew one rolls back.
type NumberAllocator interface {
	Next(ctx context.Context) (string, error)
}

type counterStore interface {
	Incr(ctx context.Context, key string) (int64, error)
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	RaiseCounter(ctx context.Context, key string, floor int64) (int64, error)
	CounterKey(name string) string
}

// numberResyncer is implemented by allocators whose counter can fall behind the
// stored orders, for instance after a redis flush or restore.
type numberResyncer interface {
	Resync(ctx context.Context, latest string) error
}

// RedisNumberAllocator draws sequence values from an atomic redis counter.
type RedisNumberAllocator struct {
	store counterStore
}

func NewRedisNumberAllocator(store counterStore) (*RedisNumberAllocator, error) {
	if store == nil {
		return nil, fmt.Errorf("redis client required")
	}
	return &RedisNumberAllocator{store: store}, nil
}

func (a *RedisNumberAllocator) Next(ctx context.Context) (string, error) {
	seq, err := a.store.Incr(ctx, a.store.CounterKey(orderNumberCounter))
	if err != nil {
		return "", fmt.Errorf("allocate order number: %w", err)
	}
	return FormatOrderNumber(seq), nil
}

// Seed initialises a missing counter from the latest persisted order number so a
// flushed redis does not hand out numbers that already exist. An existing counter
// is left alone.
func (a *RedisNumberAllocator) Seed(ctx context.Context, latest string) (bool, error) {
	if strings.TrimSpace(latest) == "" {
		return false, nil
	}
	seq, err := ParseOrderNumber(latest)
	if err != nil {
		return false, err
	}
	return a.store.SetNX(ctx, a.store.CounterKey(orderNumberCounter), seq, 0)
}

// Resync lifts the counter to the latest persisted order number when it is
// behind. It never moves the counter backwards.
func (a *RedisNumberAllocator) Resync(ctx context.Context, latest string) error {
	if strings.TrimSpace(latest) == "" {
		return nil
	}
	seq, err := ParseOrderNumber(latest)
	if err != nil {
		return err
	}
	if _, err := a.store.RaiseCounter(ctx, a.store.CounterKey(orderNumberCounter), seq); err != nil {
		return fmt.Errorf("resync order number counter: %w", err)
	}
	return nil
}

// FormatOrderNumber renders ORD- followed by the sequence padded to six digits.
func FormatOrderNumber(seq int64) string {
	return fmt.Sprintf("%s%06d", orderNumberPrefix, seq)
}

func ParseOrderNumber(value string) (int64, error) {
	raw := strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(value)), orderNumberPrefix)
	seq, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || seq < 0 {
		return 0, fmt.Errorf("invalid order number %q", value)
	}
	return seq, nil
}
