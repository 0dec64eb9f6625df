package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore shares vendor sessions between bridge replicas. Expiry is
// delegated to Redis key TTLs.
type RedisStore struct {
	client     redis.UniversalClient
	keyPrefix  string
	defaultTTL time.Duration
}

// RedisOptions configures NewRedisStore
type RedisOptions struct {
	Addr       string
	Password   string
	DB         int
	KeyPrefix  string
	Timeout    time.Duration
	DefaultTTL time.Duration
}

// NewRedisStore connects to Redis and verifies the connection
func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisStoreWithClient(client, opts.KeyPrefix, opts.DefaultTTL), nil
}

// NewRedisStoreWithClient wraps an existing client
func NewRedisStoreWithClient(client redis.UniversalClient, keyPrefix string, defaultTTL time.Duration) *RedisStore {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	return &RedisStore{
		client:     client,
		keyPrefix:  keyPrefix,
		defaultTTL: defaultTTL,
	}
}

func (s *RedisStore) key(owner string) string {
	return s.keyPrefix + owner
}

// Put stores token for owner with a key TTL, replacing any previous value
func (s *RedisStore) Put(ctx context.Context, owner, token string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	if err := s.client.Set(ctx, s.key(owner), token, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store vendor session: %w", err)
	}
	return nil
}

// Get returns the owner's token; a missing or expired key is absent
func (s *RedisStore) Get(ctx context.Context, owner string) (string, bool, error) {
	token, err := s.client.Get(ctx, s.key(owner)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read vendor session: %w", err)
	}
	return token, true, nil
}

// Remove deletes the owner's key; deleting a missing key is not an error
func (s *RedisStore) Remove(ctx context.Context, owner string) error {
	if err := s.client.Del(ctx, s.key(owner)).Err(); err != nil {
		return fmt.Errorf("failed to remove vendor session: %w", err)
	}
	return nil
}

// Ping checks connectivity
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the underlying client
func (s *RedisStore) Close() error {
	return s.client.Close()
}
