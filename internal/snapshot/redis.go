package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/errors"
)

// DefaultRedisTTL is the expiry applied to every Redis snapshot write.
const DefaultRedisTTL = 24 * time.Hour

// DefaultRedisPrefix namespaces snapshot keys.
const DefaultRedisPrefix = "debate:state:"

// RedisBackend stores envelopes as Redis strings with a fixed expiry.
//
// It does not implement Counter or Lister: both would need a keyspace scan,
// which this backend deliberately avoids.
type RedisBackend struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisBackend wraps an existing client. A zero ttl uses DefaultRedisTTL
// and an empty prefix uses DefaultRedisPrefix.
func NewRedisBackend(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisBackend {
	if ttl <= 0 {
		ttl = DefaultRedisTTL
	}
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisBackend{client: client, prefix: prefix, ttl: ttl}
}

// DialRedis parses a redis:// URL, connects, and pings the server.
func DialRedis(ctx context.Context, url, prefix string, ttl time.Duration) (*RedisBackend, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.NewValidationError("invalid redis url").WithField("snapshot.redis_url").WithValue(url)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisBackend(client, prefix, ttl), nil
}

// Close closes the underlying client.
func (r *RedisBackend) Close() error {
	return r.client.Close()
}

func (r *RedisBackend) key(k string) string {
	return r.prefix + k
}

func (r *RedisBackend) Put(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, r.key(key), value, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r *RedisBackend) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, true, nil
}

func (r *RedisBackend) Delete(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Del(ctx, r.key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("redis del %s: %w", key, err)
	}
	return n > 0, nil
}

func (r *RedisBackend) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, r.key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists %s: %w", key, err)
	}
	return n > 0, nil
}

var errSwapMismatch = errors.New("value changed")

// Swap uses WATCH/MULTI so a concurrent writer aborts the transaction.
func (r *RedisBackend) Swap(ctx context.Context, key, old, value string) (bool, error) {
	k := r.key(key)
	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, k).Result()
		if errors.Is(err, redis.Nil) {
			cur = ""
		} else if err != nil {
			return err
		}
		if cur != old {
			return errSwapMismatch
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, k, value, r.ttl)
			return nil
		})
		return err
	}, k)

	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, errSwapMismatch), errors.Is(err, redis.TxFailedErr):
		return false, nil
	default:
		return false, fmt.Errorf("redis swap %s: %w", key, err)
	}
}

var (
	_ Backend = (*RedisBackend)(nil)
	_ Swapper = (*RedisBackend)(nil)
)
