// Package embedder wraps the external embedding provider with the
// discipline the cache layers need: bounded timeouts, deduplication of
// concurrent identical requests, and failure counting. Provider failure is
// never fatal to the caller.
package embedder

import (
	"context"
	"errors"
	"time"

	"go.uber.org/atomic"
	"golang.org/x/sync/singleflight"

	"goflare.io/strata/pkg/embedding"
)

// ErrNoProvider is returned when no embedding provider was configured.
var ErrNoProvider = errors.New("no embedding provider configured")

// Embedder computes embeddings through the configured provider. Calls for
// the same text issued concurrently share one provider round trip.
type Embedder struct {
	provider embedding.Provider
	timeout  time.Duration
	sf       singleflight.Group
	failures atomic.Int64
}

// New creates an Embedder. provider may be nil; every Embed call then
// fails with ErrNoProvider and callers degrade.
func New(provider embedding.Provider, timeout time.Duration) *Embedder {
	return &Embedder{
		provider: provider,
		timeout:  timeout,
	}
}

// Embed computes the embedding for text with a bounded timeout. The
// embedding is computed before any store lock is taken by callers.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if e.provider == nil {
		return nil, ErrNoProvider
	}

	v, err, _ := e.sf.Do(text, func() (any, error) {
		callCtx := ctx
		if e.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, e.timeout)
			defer cancel()
		}
		return e.provider.Embed(callCtx, text)
	})
	if err != nil {
		e.failures.Inc()
		return nil, err
	}
	return v.([]float64), nil
}

// Failures returns how many provider calls failed so far.
func (e *Embedder) Failures() int64 {
	return e.failures.Load()
}
