package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Store persists carts keyed by browser session id.
type Store interface {
	Load(ctx context.Context, sessionID string) (*Cart, error)
	Save(ctx context.Context, sessionID string, cart *Cart) error
	Delete(ctx context.Context, sessionID string) error
}

type keyValue interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	CartKey(sessionID string) string
}

// RedisStore keeps each cart as JSON under its session key. Every save refreshes the TTL.
type RedisStore struct {
	kv  keyValue
	ttl time.Duration
}

// NewRedisStore builds a cart store on top of the shared redis client.
func NewRedisStore(kv keyValue, ttl time.Duration) (*RedisStore, error) {
	if kv == nil {
		return nil, fmt.Errorf("redis client required")
	}
	return &RedisStore{kv: kv, ttl: ttl}, nil
}

func (s *RedisStore) Load(ctx context.Context, sessionID string) (*Cart, error) {
	key, err := s.key(sessionID)
	if err != nil {
		return nil, err
	}
	raw, err := s.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return newCart(), nil
		}
		return nil, fmt.Errorf("load cart: %w", err)
	}
	cart := newCart()
	if err := json.Unmarshal([]byte(raw), cart); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}
	cart.ensure()
	return cart, nil
}

func (s *RedisStore) Save(ctx context.Context, sessionID string, cart *Cart) error {
	if cart.IsEmpty() {
		return s.Delete(ctx, sessionID)
	}
	key, err := s.key(sessionID)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	if err := s.kv.Set(ctx, key, string(payload), s.ttl); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	key, err := s.key(sessionID)
	if err != nil {
		return err
	}
	if err := s.kv.Del(ctx, key); err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}
	return nil
}

func (s *RedisStore) key(sessionID string) (string, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return "", errSessionRequired
	}
	return s.kv.CartKey(sessionID), nil
}

var errSessionRequired = errors.New("cart session id is required")
