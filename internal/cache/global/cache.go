// Package global implements the global cache layer: base caching plus
// delegation to the external knowledge service with a bounded local
// fallback used when the service is unavailable.
package global

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"goflare.io/strata/internal/cache/base"
	"goflare.io/strata/internal/metrics"
	"goflare.io/strata/internal/models"
	"goflare.io/strata/internal/utils"
	"goflare.io/strata/pkg/retrieval"
)

// Answer sources reported to routing callers.
const (
	SourceKnowledgeBase = "knowledge_base"
	SourceFallback      = "fallback"
)

// fallbackConfidence is the fixed confidence attached to degraded answers.
const fallbackConfidence = 0.5

// ErrNoClient is returned through the failure path when no knowledge
// service client was configured.
var ErrNoClient = errors.New("no retrieval client configured")

// Cache is the global layer. A local miss never queries the knowledge
// service implicitly; that composition is QueryKnowledge, invoked by a
// routing caller. The service call is wrapped in a circuit breaker and a
// bounded timeout, with no retries inside a single call.
type Cache struct {
	base            *base.Cache
	client          retrieval.Client
	breaker         *gobreaker.CircuitBreaker
	queryTimeout    time.Duration
	fallbackEnabled bool
	fallback        *fallbackStore

	fallbackHits    atomic.Int64
	serviceFailures atomic.Int64
}

// New creates the global layer over the given base cache. client may be
// nil; every QueryKnowledge call then takes the failure path.
func New(b *base.Cache, client retrieval.Client) *Cache {
	cfg := b.Config()
	return &Cache{
		base:            b,
		client:          client,
		breaker:         gobreaker.NewCircuitBreaker(cfg.Global.CircuitBreaker),
		queryTimeout:    cfg.Global.QueryTimeout,
		fallbackEnabled: cfg.Global.FallbackEnabled,
		fallback:        newFallbackStore(cfg.Global.MaxFallbackEntries),
	}
}

// Initialize delegates to the base contract.
func (c *Cache) Initialize(ctx context.Context) bool {
	return c.base.Initialize(ctx)
}

// Get delegates to the base contract.
func (c *Cache) Get(ctx context.Context, rawKey string) models.Result {
	return c.base.Get(ctx, rawKey)
}

// Set delegates to the base contract.
func (c *Cache) Set(ctx context.Context, rawKey string, value any, opts ...base.SetOption) bool {
	return c.base.Set(ctx, rawKey, value, opts...)
}

// Delete delegates to the base contract.
func (c *Cache) Delete(ctx context.Context, rawKey string) bool {
	return c.base.Delete(ctx, rawKey)
}

// Clear drops all entries. The fallback store survives; it exists for
// exactly the moments when fresh data is unavailable.
func (c *Cache) Clear(ctx context.Context) bool {
	return c.base.Clear(ctx)
}

// Exists delegates to the base contract.
func (c *Cache) Exists(ctx context.Context, rawKey string) bool {
	return c.base.Exists(ctx, rawKey)
}

// CleanupExpired delegates to the base contract.
func (c *Cache) CleanupExpired(ctx context.Context) int {
	return c.base.CleanupExpired(ctx)
}

// QueryKnowledge calls the knowledge service. On success the answer is
// tagged with the knowledge-base source and remembered in the fallback
// store. On any failure with fallback enabled, a matching fallback entry
// is returned with fixed confidence; otherwise the failure is reported as
// an unsuccessful answer. The call is terminal: no retries here.
func (c *Cache) QueryKnowledge(ctx context.Context, query string) retrieval.Answer {
	ctx, span := c.base.Tracer().Start(ctx, "Global.QueryKnowledge", trace.WithAttributes(
		attribute.String("cache", c.base.Name()),
	))
	defer span.End()

	answer, err := c.queryService(ctx, query)
	if err == nil && answer.Success {
		answer.Source = SourceKnowledgeBase
		c.fallback.Put(utils.HashKey(query), answer.Data)
		return answer
	}

	c.serviceFailures.Inc()
	if err == nil {
		err = errors.New("knowledge service reported failure")
	}
	c.base.Logger().Warn("Knowledge service unavailable", zap.Error(err))

	if c.fallbackEnabled {
		if data, ok := c.fallback.Get(utils.HashKey(query)); ok {
			c.fallbackHits.Inc()
			c.base.Collector().IncCounter(metrics.MetricFallbacks, c.base.Name(), 1)
			return retrieval.Answer{
				Success:    true,
				Data:       data,
				Source:     SourceFallback,
				Confidence: fallbackConfidence,
			}
		}
	}

	return retrieval.Answer{Success: false, Confidence: 0}
}

func (c *Cache) queryService(ctx context.Context, query string) (retrieval.Answer, error) {
	if c.client == nil {
		return retrieval.Answer{}, ErrNoClient
	}

	callCtx := ctx
	if c.queryTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.queryTimeout)
		defer cancel()
	}

	v, err := c.breaker.Execute(func() (any, error) {
		return c.client.Query(callCtx, query)
	})
	if err != nil {
		return retrieval.Answer{}, err
	}
	return v.(retrieval.Answer), nil
}

// Stats adds the global counters on top of the base fields.
func (c *Cache) Stats() map[string]any {
	snapshot := c.base.Stats()
	snapshot["fallback_enabled"] = c.fallbackEnabled
	snapshot["fallback_entries"] = c.fallback.Len()
	snapshot["fallback_hits"] = c.fallbackHits.Load()
	snapshot["service_failures"] = c.serviceFailures.Load()
	snapshot["breaker_state"] = c.breaker.State().String()
	return snapshot
}

// Base exposes the underlying base cache for composition by the facade.
func (c *Cache) Base() *base.Cache { return c.base }
