// Package persist adapts a durable key-value provider to the cache's
// needs: get/put/delete/scan-all keyed by hashed key, one logical
// namespace per cache layer.
package persist

import "context"

// Store is the durability boundary. Implementations must be safe for
// concurrent use. Failures are transient dependency failures: callers log
// and degrade, they never propagate them to cache callers.
type Store interface {
	Put(ctx context.Context, cacheName, key string, data []byte) error
	Get(ctx context.Context, cacheName, key string) ([]byte, bool, error)
	Delete(ctx context.Context, cacheName, key string) error
	Clear(ctx context.Context, cacheName string) error
	ScanAll(ctx context.Context, cacheName string) (map[string][]byte, error)
	Ping(ctx context.Context) error
	Close() error
}
