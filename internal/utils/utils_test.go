package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHashKey(t *testing.T) {
	digest := HashKey("user:123")

	assert.Len(t, digest, 64)
	assert.Equal(t, digest, HashKey("user:123"))
	assert.NotEqual(t, digest, HashKey("user:124"))
	// lowercase hex only
	for _, r := range digest {
		assert.True(t, (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f'))
	}
}

func TestShardIndexInRange(t *testing.T) {
	keys := []string{"a", "b", "user:1", HashKey("x"), ""}
	for _, key := range keys {
		idx := ShardIndex(16, key)
		assert.Less(t, idx, uint64(16))
		assert.Equal(t, idx, ShardIndex(16, key))
	}
}

func TestExpirationTime(t *testing.T) {
	assert.Equal(t, time.Minute, ExpirationTime(time.Minute))
	assert.Equal(t, time.Second, ExpirationTime(time.Minute, time.Second))
	assert.Equal(t, time.Minute, ExpirationTime(time.Minute, 0))
	assert.Equal(t, time.Minute, ExpirationTime(time.Minute, -time.Second))
}
