package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"hash/fnv"
	"time"
)

// HashKey maps a raw caller key to a fixed-length lowercase hex digest so
// identical raw keys share a storage slot and distinct keys essentially
// never collide.
func HashKey(rawKey string) string {
	sum := sha256.Sum256([]byte(rawKey))
	return hex.EncodeToString(sum[:])
}

// ShardIndex computes the shard index for a hashed key.
func ShardIndex(totalShards uint64, key string) uint64 {
	h := fnv.New64a()
	if _, err := h.Write([]byte(key)); err != nil {
		return 0
	}
	return h.Sum64() % totalShards
}

// ExpirationTime returns the first positive ttl, falling back to the
// default when none is given.
func ExpirationTime(defaultTTL time.Duration, ttl ...time.Duration) time.Duration {
	if len(ttl) > 0 && ttl[0] > 0 {
		return ttl[0]
	}
	return defaultTTL
}
