package embedder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"goflare.io/strata/pkg/embedding"
)

func TestEmbedNoProvider(t *testing.T) {
	e := New(nil, time.Second)
	_, err := e.Embed(context.Background(), "text")
	assert.ErrorIs(t, err, ErrNoProvider)
}

func TestEmbed(t *testing.T) {
	provider := embedding.ProviderFunc(func(context.Context, string) ([]float64, error) {
		return []float64{1, 2, 3}, nil
	})

	e := New(provider, time.Second)
	vec, err := e.Embed(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, vec)
	assert.Equal(t, int64(0), e.Failures())
}

func TestEmbedCountsFailures(t *testing.T) {
	provider := embedding.ProviderFunc(func(context.Context, string) ([]float64, error) {
		return nil, errors.New("model offline")
	})

	e := New(provider, time.Second)
	_, err := e.Embed(context.Background(), "a")
	require.Error(t, err)
	_, err = e.Embed(context.Background(), "b")
	require.Error(t, err)

	assert.Equal(t, int64(2), e.Failures())
}

func TestEmbedHonorsTimeout(t *testing.T) {
	provider := embedding.ProviderFunc(func(ctx context.Context, _ string) ([]float64, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	e := New(provider, 20*time.Millisecond)
	start := time.Now()
	_, err := e.Embed(context.Background(), "slow")
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, int64(1), e.Failures())
}

func TestEmbedDeduplicatesConcurrentCalls(t *testing.T) {
	gate := make(chan struct{})
	var calls atomic.Int64
	provider := embedding.ProviderFunc(func(context.Context, string) ([]float64, error) {
		calls.Inc()
		<-gate
		return []float64{1}, nil
	})

	e := New(provider, time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			vec, err := e.Embed(context.Background(), "same text")
			assert.NoError(t, err)
			assert.Equal(t, []float64{1}, vec)
		}()
	}

	time.Sleep(100 * time.Millisecond)
	close(gate)
	wg.Wait()

	assert.Equal(t, int64(1), calls.Load())
}
