package predictive

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"goflare.io/strata/internal/cache/base"
	"goflare.io/strata/internal/config"
	"goflare.io/strata/internal/models"
)

func newTestCache(t *testing.T, scorer Scorer, opts ...config.Option) *Cache {
	t.Helper()
	opts = append([]config.Option{config.WithLogger(zap.NewNop())}, opts...)
	cfg, err := config.New(opts...)
	require.NoError(t, err)

	return New(base.New("predictive", models.LayerPredictive, cfg, nil, nil), scorer)
}

func TestDefaultScorer(t *testing.T) {
	assert.InDelta(t, 0.7, DefaultScorer(1, 0), 1e-9)
	assert.InDelta(t, 0.3, DefaultScorer(0, 1), 1e-9)
	assert.InDelta(t, 1.0, DefaultScorer(1, 1), 1e-9)
	assert.Equal(t, float64(0), DefaultScorer(-1, -1))
	assert.Equal(t, float64(1), DefaultScorer(2, 2))
}

func TestPredictEmptyWithoutMatchingKeys(t *testing.T) {
	c := newTestCache(t, nil)
	ctx := context.Background()

	assert.Empty(t, c.Predict(ctx, "user:", 5))

	require.True(t, c.Set(ctx, "other:1", "value"))
	assert.Empty(t, c.Predict(ctx, "user:", 5))
}

func TestPredictRanksByAccessPattern(t *testing.T) {
	c := newTestCache(t, nil)
	ctx := context.Background()

	for _, key := range []string{"user:1", "user:2", "other:9"} {
		require.True(t, c.Set(ctx, key, key))
	}

	c.Get(ctx, "user:1")
	c.Get(ctx, "user:1")
	c.Get(ctx, "user:1")
	c.Get(ctx, "user:2")

	predictions := c.Predict(ctx, "user:", 5)
	require.Len(t, predictions, 2)
	assert.Equal(t, "user:1", predictions[0].Key)
	assert.Equal(t, "user:2", predictions[1].Key)
	assert.Greater(t, predictions[0].Confidence, predictions[1].Confidence)
	for _, p := range predictions {
		assert.GreaterOrEqual(t, p.Confidence, 0.0)
		assert.LessOrEqual(t, p.Confidence, 1.0)
	}
}

func TestPredictDeterministic(t *testing.T) {
	c := newTestCache(t, nil)
	ctx := context.Background()

	for _, key := range []string{"user:1", "user:2", "user:3"} {
		require.True(t, c.Set(ctx, key, key))
	}
	c.Get(ctx, "user:2")
	c.Get(ctx, "user:1")

	first := c.Predict(ctx, "user:", 5)
	second := c.Predict(ctx, "user:", 5)
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Key, second[i].Key)
		assert.Equal(t, first[i].Confidence, second[i].Confidence)
	}
}

func TestPredictNeverAccessedKeysScoreZero(t *testing.T) {
	c := newTestCache(t, nil)
	ctx := context.Background()

	require.True(t, c.Set(ctx, "user:cold", "value"))

	predictions := c.Predict(ctx, "user:", 5)
	require.Len(t, predictions, 1)
	assert.Equal(t, float64(0), predictions[0].Confidence)
}

func TestPredictTruncates(t *testing.T) {
	c := newTestCache(t, nil)
	ctx := context.Background()

	for _, key := range []string{"user:1", "user:2", "user:3"} {
		require.True(t, c.Set(ctx, key, key))
	}

	assert.Len(t, c.Predict(ctx, "user:", 2), 2)
}

func TestPredictAttachesLiveEntry(t *testing.T) {
	c := newTestCache(t, nil)
	ctx := context.Background()

	require.True(t, c.Set(ctx, "user:live", "value"))
	require.True(t, c.Set(ctx, "user:fleeting", "value", base.WithTTL(5*time.Millisecond)))
	time.Sleep(10 * time.Millisecond)

	predictions := c.Predict(ctx, "user:", 5)
	require.Len(t, predictions, 2)
	for _, p := range predictions {
		if p.Key == "user:live" {
			assert.NotNil(t, p.Entry)
		} else {
			assert.Nil(t, p.Entry)
		}
	}
}

func TestPredictCustomScorer(t *testing.T) {
	// recency-only scorer inverts the default ranking
	c := newTestCache(t, func(_, recency float64) float64 { return recency })
	ctx := context.Background()

	require.True(t, c.Set(ctx, "user:frequent", "value"))
	require.True(t, c.Set(ctx, "user:recent", "value"))

	c.Get(ctx, "user:frequent")
	c.Get(ctx, "user:frequent")
	c.Get(ctx, "user:recent")

	predictions := c.Predict(ctx, "user:", 5)
	require.Len(t, predictions, 2)
	assert.Equal(t, "user:recent", predictions[0].Key)
}

func TestHistoryRingBounded(t *testing.T) {
	c := newTestCache(t, nil, config.WithHistorySize(4))
	ctx := context.Background()

	require.True(t, c.Set(ctx, "user:old", "value"))
	require.True(t, c.Set(ctx, "user:new", "value"))

	c.Get(ctx, "user:old")
	for i := 0; i < 4; i++ {
		c.Get(ctx, "user:new")
	}

	// the old access aged out of the ring entirely
	assert.Equal(t, 4, c.Stats()["history_length"])
	predictions := c.Predict(ctx, "user:", 5)
	require.Len(t, predictions, 2)
	assert.Equal(t, "user:new", predictions[0].Key)
	assert.Equal(t, float64(0), predictions[1].Confidence)
}

func TestClearDropsHistory(t *testing.T) {
	c := newTestCache(t, nil)
	ctx := context.Background()

	require.True(t, c.Set(ctx, "user:1", "value"))
	c.Get(ctx, "user:1")

	require.True(t, c.Clear(ctx))
	assert.Equal(t, 0, c.Stats()["history_length"])
	assert.Equal(t, 0, c.Stats()["tracked_keys"])
	assert.Empty(t, c.Predict(ctx, "user:", 5))
}

func TestDeleteStopsTracking(t *testing.T) {
	c := newTestCache(t, nil)
	ctx := context.Background()

	require.True(t, c.Set(ctx, "user:1", "value"))
	require.True(t, c.Delete(ctx, "user:1"))

	assert.Empty(t, c.Predict(ctx, "user:", 5))
}
