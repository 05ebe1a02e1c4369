// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Talentdesk Contributors

package tokenstore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/talentdesk/backoffice/internal/auth"
)

// Connection tuning for the shared Redis client.
const (
	redisPoolSize     = 10
	redisMinIdleConns = 2
	redisDialTimeout  = 5 * time.Second
	redisReadTimeout  = 3 * time.Second
	redisWriteTimeout = 3 * time.Second
	redisPingTimeout  = 5 * time.Second
)

// RedisStore is a TokenStore on Redis 7. Take uses GETDEL and Incr applies
// the window with EXPIRE NX, so both are single round-trip atomic operations.
type RedisStore struct {
	client redis.UniversalClient
}

var _ auth.TokenStore = (*RedisStore)(nil)

// NewRedisStore wraps an existing client.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

// OpenRedis parses url, connects and pings.
func OpenRedis(ctx context.Context, url string) (*RedisStore, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, oops.Code("TOKENSTORE_CONFIG_INVALID").Wrap(err)
	}
	opt.PoolSize = redisPoolSize
	opt.MinIdleConns = redisMinIdleConns
	opt.DialTimeout = redisDialTimeout
	opt.ReadTimeout = redisReadTimeout
	opt.WriteTimeout = redisWriteTimeout

	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close() //nolint:errcheck // already failing
		return nil, oops.Code("TOKENSTORE_CONNECT_FAILED").With("addr", opt.Addr).Wrap(err)
	}
	return &RedisStore{client: client}, nil
}

// Ping checks connectivity, for readiness probes.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return oops.Code("TOKENSTORE_PING_FAILED").Wrap(err)
	}
	return nil
}

// Close releases the client's connections.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Set stores value under key with expiry ttl.
func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return oops.Code("TOKENSTORE_INVALID_TTL").With("key", key).Errorf("ttl must be positive")
	}
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return oops.Code("TOKENSTORE_SET_FAILED").With("key", key).Wrap(err)
	}
	return nil
}

// Get returns the value under key.
func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	value, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", notFound(key)
		}
		return "", oops.Code("TOKENSTORE_GET_FAILED").With("key", key).Wrap(err)
	}
	return value, nil
}

// Take returns the value and deletes the key with GETDEL.
func (s *RedisStore) Take(ctx context.Context, key string) (string, error) {
	value, err := s.client.GetDel(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", notFound(key)
		}
		return "", oops.Code("TOKENSTORE_TAKE_FAILED").With("key", key).Wrap(err)
	}
	return value, nil
}

// Delete removes key and reports whether it existed.
func (s *RedisStore) Delete(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Del(ctx, key).Result()
	if err != nil {
		return false, oops.Code("TOKENSTORE_DELETE_FAILED").With("key", key).Wrap(err)
	}
	return n > 0, nil
}

// Incr increments the counter under key. The expiry is set only when the
// key has none, so later increments do not extend the window.
func (s *RedisStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, oops.Code("TOKENSTORE_INCR_FAILED").With("key", key).Wrap(err)
	}
	return incr.Val(), nil
}
