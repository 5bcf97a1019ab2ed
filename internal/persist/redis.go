package persist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"goflare.io/strata/internal/retrier"
)

// RedisStore implements Store on a redis hash per cache layer.
type RedisStore struct {
	client    redis.Cmdable
	retrier   *retrier.Retrier
	keyPrefix string
}

// NewRedisStore creates a redis-backed Store. Transient I/O errors are
// retried with exponential backoff; redis.Nil is never retried.
func NewRedisStore(client redis.Cmdable, keyPrefix string) (*RedisStore, error) {
	r, err := retrier.NewRetrier(
		3,
		100*time.Millisecond,
		1*time.Second,
		2.0,
		0.2,
		retrier.ExponentialBackoff,
		func(err error) bool {
			return !errors.Is(err, redis.Nil)
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create retrier: %w", err)
	}

	return &RedisStore{
		client:    client,
		retrier:   r,
		keyPrefix: keyPrefix,
	}, nil
}

func (s *RedisStore) hashKey(cacheName string) string {
	return s.keyPrefix + ":" + cacheName
}

// Put stores the serialized entry under the layer's hash.
func (s *RedisStore) Put(ctx context.Context, cacheName, key string, data []byte) error {
	return s.retrier.Run(ctx, func() error {
		return s.client.HSet(ctx, s.hashKey(cacheName), key, data).Err()
	})
}

// Get loads one serialized entry; the bool reports presence.
func (s *RedisStore) Get(ctx context.Context, cacheName, key string) ([]byte, bool, error) {
	var data []byte
	err := s.retrier.Run(ctx, func() error {
		var err error
		data, err = s.client.HGet(ctx, s.hashKey(cacheName), key).Bytes()
		return err
	})
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load key %s: %w", key, err)
	}
	return data, true, nil
}

// Delete removes one entry from the layer's hash.
func (s *RedisStore) Delete(ctx context.Context, cacheName, key string) error {
	return s.retrier.Run(ctx, func() error {
		return s.client.HDel(ctx, s.hashKey(cacheName), key).Err()
	})
}

// Clear drops the layer's hash entirely.
func (s *RedisStore) Clear(ctx context.Context, cacheName string) error {
	return s.retrier.Run(ctx, func() error {
		return s.client.Del(ctx, s.hashKey(cacheName)).Err()
	})
}

// ScanAll loads every serialized entry for the layer.
func (s *RedisStore) ScanAll(ctx context.Context, cacheName string) (map[string][]byte, error) {
	var raw map[string]string
	err := s.retrier.Run(ctx, func() error {
		var err error
		raw, err = s.client.HGetAll(ctx, s.hashKey(cacheName)).Result()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan cache %s: %w", cacheName, err)
	}

	result := make(map[string][]byte, len(raw))
	for key, data := range raw {
		result[key] = []byte(data)
	}
	return result, nil
}

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the underlying connection when the client owns one.
func (s *RedisStore) Close() error {
	if closer, ok := s.client.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}
