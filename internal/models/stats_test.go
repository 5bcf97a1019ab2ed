package models

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatsEmptyHitRate(t *testing.T) {
	stats := NewStats()
	assert.Equal(t, int64(0), stats.TotalOperations())
	assert.Equal(t, float64(0), stats.HitRate())
}

func TestStatsHitRate(t *testing.T) {
	stats := NewStats()
	stats.Hits.Add(3)
	stats.Misses.Add(1)
	stats.Errors.Add(0)

	assert.Equal(t, int64(4), stats.TotalOperations())
	assert.InDelta(t, 0.75, stats.HitRate(), 1e-9)
}

func TestStatsErrorsCountAsOperations(t *testing.T) {
	stats := NewStats()
	stats.Hits.Add(1)
	stats.Errors.Add(1)

	assert.Equal(t, int64(2), stats.TotalOperations())
	assert.InDelta(t, 0.5, stats.HitRate(), 1e-9)
}

func TestStatsSnapshot(t *testing.T) {
	stats := NewStats()
	stats.Hits.Add(2)
	stats.Misses.Add(2)

	snapshot := stats.Snapshot()
	assert.Equal(t, int64(2), snapshot["hits"])
	assert.Equal(t, int64(2), snapshot["misses"])
	assert.Equal(t, int64(0), snapshot["errors"])
	assert.Equal(t, int64(4), snapshot["total_operations"])
	assert.InDelta(t, 0.5, snapshot["hit_rate"].(float64), 1e-9)
}

func TestStatsConcurrentCounting(t *testing.T) {
	stats := NewStats()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			stats.Hits.Inc()
			stats.Misses.Inc()
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(100), stats.TotalOperations())
	assert.InDelta(t, 0.5, stats.HitRate(), 1e-9)
}
