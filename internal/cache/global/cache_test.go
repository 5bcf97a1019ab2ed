package global

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"goflare.io/strata/internal/cache/base"
	"goflare.io/strata/internal/config"
	"goflare.io/strata/internal/models"
	"goflare.io/strata/pkg/retrieval"
)

func newTestCache(t *testing.T, client retrieval.Client, opts ...config.Option) *Cache {
	t.Helper()
	opts = append([]config.Option{config.WithLogger(zap.NewNop())}, opts...)
	cfg, err := config.New(opts...)
	require.NoError(t, err)

	return New(base.New("global", models.LayerGlobal, cfg, nil, nil), client)
}

// flakyClient answers successfully until failing is set.
type flakyClient struct {
	failing bool
	answer  retrieval.Answer
}

func (c *flakyClient) Query(context.Context, string) (retrieval.Answer, error) {
	if c.failing {
		return retrieval.Answer{}, errors.New("service unavailable")
	}
	return c.answer, nil
}

func TestQueryKnowledgeSuccess(t *testing.T) {
	client := &flakyClient{answer: retrieval.Answer{Success: true, Data: "the answer", Confidence: 0.92}}
	c := newTestCache(t, client)

	answer := c.QueryKnowledge(context.Background(), "question")
	assert.True(t, answer.Success)
	assert.Equal(t, SourceKnowledgeBase, answer.Source)
	assert.Equal(t, "the answer", answer.Data)
	assert.InDelta(t, 0.92, answer.Confidence, 1e-9)
}

func TestQueryKnowledgeFallbackAfterFailure(t *testing.T) {
	client := &flakyClient{answer: retrieval.Answer{Success: true, Data: "remembered"}}
	c := newTestCache(t, client)
	ctx := context.Background()

	// prime the fallback store with a successful answer
	require.True(t, c.QueryKnowledge(ctx, "question").Success)

	client.failing = true
	answer := c.QueryKnowledge(ctx, "question")
	assert.True(t, answer.Success)
	assert.Equal(t, SourceFallback, answer.Source)
	assert.Equal(t, "remembered", answer.Data)
	assert.InDelta(t, 0.5, answer.Confidence, 1e-9)
}

func TestQueryKnowledgeFailureWithoutFallbackEntry(t *testing.T) {
	client := &flakyClient{failing: true}
	c := newTestCache(t, client)

	answer := c.QueryKnowledge(context.Background(), "never seen")
	assert.False(t, answer.Success)
	assert.Equal(t, float64(0), answer.Confidence)
}

func TestQueryKnowledgeFallbackDisabled(t *testing.T) {
	client := &flakyClient{answer: retrieval.Answer{Success: true, Data: "remembered"}}
	c := newTestCache(t, client, config.WithFallback(false, 16))
	ctx := context.Background()

	require.True(t, c.QueryKnowledge(ctx, "question").Success)

	client.failing = true
	answer := c.QueryKnowledge(ctx, "question")
	assert.False(t, answer.Success)
}

func TestQueryKnowledgeNoClient(t *testing.T) {
	c := newTestCache(t, nil)

	answer := c.QueryKnowledge(context.Background(), "question")
	assert.False(t, answer.Success)
	assert.Equal(t, int64(1), c.serviceFailures.Load())
}

func TestQueryKnowledgeUnsuccessfulAnswerTakesFailurePath(t *testing.T) {
	client := &flakyClient{answer: retrieval.Answer{Success: false}}
	c := newTestCache(t, client)

	answer := c.QueryKnowledge(context.Background(), "question")
	assert.False(t, answer.Success)
	assert.Equal(t, int64(1), c.serviceFailures.Load())
	assert.Equal(t, 0, c.fallback.Len())
}

func TestClearKeepsFallbackStore(t *testing.T) {
	client := &flakyClient{answer: retrieval.Answer{Success: true, Data: "remembered"}}
	c := newTestCache(t, client)
	ctx := context.Background()

	require.True(t, c.QueryKnowledge(ctx, "question").Success)
	require.True(t, c.Set(ctx, "local", "value"))
	require.True(t, c.Clear(ctx))

	assert.Equal(t, models.StatusMiss, c.Get(ctx, "local").Status)

	client.failing = true
	answer := c.QueryKnowledge(ctx, "question")
	assert.True(t, answer.Success)
	assert.Equal(t, SourceFallback, answer.Source)
}

func TestStatsIncludesGlobalCounters(t *testing.T) {
	client := &flakyClient{answer: retrieval.Answer{Success: true, Data: "x"}}
	c := newTestCache(t, client)
	ctx := context.Background()

	c.QueryKnowledge(ctx, "q")
	client.failing = true
	c.QueryKnowledge(ctx, "q")

	stats := c.Stats()
	assert.Equal(t, true, stats["fallback_enabled"])
	assert.Equal(t, 1, stats["fallback_entries"])
	assert.Equal(t, int64(1), stats["fallback_hits"])
	assert.Equal(t, int64(1), stats["service_failures"])
	assert.Equal(t, "closed", stats["breaker_state"])
}
