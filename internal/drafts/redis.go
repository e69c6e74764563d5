// Package drafts persists in-progress applications.
package drafts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sfp-labs/fellowship-portal/internal/application"
)

// KeyPrefix namespaces draft keys in Redis.
const KeyPrefix = "fellowship:draft:"

// DefaultTTL keeps an untouched draft for a month.
const DefaultTTL = 30 * 24 * time.Hour

// Key returns the Redis key for a session key.
func Key(sessionKey string) string {
	return KeyPrefix + sessionKey
}

// RedisStore keeps one session's draft under a fixed Redis key.
type RedisStore struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisStore creates a store scoped to the given session key
func NewRedisStore(client *redis.Client, sessionKey string, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{
		client: client,
		key:    Key(sessionKey),
		ttl:    ttl,
	}
}

// Load returns the stored draft, or nil when there is none.
func (s *RedisStore) Load(ctx context.Context) (*application.Draft, error) {
	raw, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read draft: %w", err)
	}

	var d application.Draft
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("failed to decode draft: %w", err)
	}
	return &d, nil
}

// Save overwrites the draft and refreshes its TTL.
func (s *RedisStore) Save(ctx context.Context, d application.Draft) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to encode draft: %w", err)
	}
	if err := s.client.Set(ctx, s.key, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write draft: %w", err)
	}
	return nil
}

// Clear deletes the draft.
func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("failed to delete draft: %w", err)
	}
	return nil
}

// Count returns how many drafts are currently stored.
func Count(ctx context.Context, client *redis.Client) (int, error) {
	var cursor uint64
	total := 0
	for {
		keys, next, err := client.Scan(ctx, cursor, KeyPrefix+"*", 100).Result()
		if err != nil {
			return 0, fmt.Errorf("failed to scan drafts: %w", err)
		}
		total += len(keys)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return total, nil
}

// ValidSessionKey reports whether a client-supplied key is usable.
func ValidSessionKey(key string) bool {
	if key == "" || len(key) > 128 {
		return false
	}
	return !strings.ContainsAny(key, " \t\r\n*?[]")
}
