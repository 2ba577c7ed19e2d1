// Package cart keeps per-session shopping carts behind an injectable store.
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"studio/internal/domain"
)

// Store loads and saves the whole cart of a session.
type Store interface {
	Load(ctx context.Context, sessionID string) ([]domain.CartItem, error)
	Save(ctx context.Context, sessionID string, items []domain.CartItem) error
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu    sync.Mutex
	carts map[string][]domain.CartItem
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{carts: make(map[string][]domain.CartItem)}
}

func (s *MemoryStore) Load(_ context.Context, sessionID string) ([]domain.CartItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.carts[sessionID]), nil
}

func (s *MemoryStore) Save(_ context.Context, sessionID string, items []domain.CartItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(items) == 0 {
		delete(s.carts, sessionID)
		return nil
	}
	s.carts[sessionID] = slices.Clone(items)
	return nil
}

// RedisStore keeps each cart as one JSON value that expires after ttl of inactivity.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &RedisStore{client: client, ttl: ttl}
}

func cartKey(sessionID string) string {
	return "studio:cart:" + sessionID
}

func (s *RedisStore) Load(ctx context.Context, sessionID string) ([]domain.CartItem, error) {
	raw, err := s.client.Get(ctx, cartKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cart: load: %w", err)
	}
	var items []domain.CartItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("cart: decode: %w", err)
	}
	return items, nil
}

func (s *RedisStore) Save(ctx context.Context, sessionID string, items []domain.CartItem) error {
	if len(items) == 0 {
		return s.client.Del(ctx, cartKey(sessionID)).Err()
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("cart: encode: %w", err)
	}
	if err := s.client.Set(ctx, cartKey(sessionID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("cart: save: %w", err)
	}
	return nil
}
