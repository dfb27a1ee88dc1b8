package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// DefaultRedisPrefix is the key prefix of session records in redis
const DefaultRedisPrefix = "keyloom:session:"

// redisRecord is the JSON value stored under each session key
type redisRecord struct {
	User      User      `json:"user"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// RedisStore reads sessions kept in redis
type RedisStore struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedisStore creates a redis-backed session store
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix, now: time.Now}
}

// Lookup returns the user owning token
func (s *RedisStore) Lookup(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, ErrNoSession
	}

	data, err := s.client.Get(ctx, s.prefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var rec redisRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	if !s.now().Before(rec.ExpiresAt) || rec.User.ID == "" {
		return nil, ErrNoSession
	}
	return &rec.User, nil
}

// Put writes a session record with a TTL matching its expiry.
// The portal never issues sessions; this exists for seeding and tests.
func (s *RedisStore) Put(ctx context.Context, token string, user User, expiresAt time.Time) error {
	data, err := json.Marshal(redisRecord{User: user, ExpiresAt: expiresAt})
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session already expired")
	}
	if err := s.client.Set(ctx, s.prefix+token, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}
