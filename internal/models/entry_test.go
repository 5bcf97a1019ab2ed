package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEntry(t *testing.T) {
	entry := NewEntry("key", []byte(`"value"`), LayerSemantic, time.Minute)

	assert.Equal(t, "key", entry.Key)
	assert.Equal(t, LayerSemantic, entry.Layer)
	assert.False(t, entry.CreatedAt.IsZero())
	assert.True(t, entry.ExpiresAt.After(entry.CreatedAt))
	assert.Equal(t, int64(0), entry.AccessCount.Load())
}

func TestNewEntryNeverExpires(t *testing.T) {
	for _, ttl := range []time.Duration{0, -time.Second} {
		entry := NewEntry("key", nil, LayerPredictive, ttl)
		assert.True(t, entry.ExpiresAt.IsZero())
		assert.False(t, entry.IsExpired())
	}
}

func TestEntryIsExpired(t *testing.T) {
	entry := NewEntry("key", nil, LayerVector, 10*time.Millisecond)
	require.False(t, entry.IsExpired())

	time.Sleep(20 * time.Millisecond)
	assert.True(t, entry.IsExpired())
}

func TestEntryIsExpiredDoesNotMutate(t *testing.T) {
	entry := NewEntry("key", nil, LayerGlobal, time.Minute)
	before := entry.LastAccessed.Load()

	entry.IsExpired()
	entry.IsExpired()

	assert.Equal(t, int64(0), entry.AccessCount.Load())
	assert.Equal(t, before, entry.LastAccessed.Load())
}

func TestEntryTouch(t *testing.T) {
	entry := NewEntry("key", nil, LayerSemantic, time.Minute)
	before := entry.LastAccessed.Load()

	time.Sleep(time.Millisecond)
	entry.Touch()
	entry.Touch()

	assert.Equal(t, int64(2), entry.AccessCount.Load())
	assert.True(t, entry.LastAccessed.Load().After(before))
}
