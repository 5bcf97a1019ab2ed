package strata

import (
	"context"
	"time"

	"goflare.io/strata/internal/cache/base"
	"goflare.io/strata/internal/cache/global"
	"goflare.io/strata/internal/cache/predictive"
	"goflare.io/strata/internal/cache/semantic"
	"goflare.io/strata/internal/cache/vector"
	"goflare.io/strata/internal/models"
	"goflare.io/strata/pkg/retrieval"
)

// Status classifies the outcome of a lookup.
type Status string

const (
	StatusHit         Status = "hit"
	StatusMiss        Status = "miss"
	StatusError       Status = "error"
	StatusExpired     Status = "expired"
	StatusInvalidated Status = "invalidated"
)

// Result is the typed outcome of a Get. Callers always receive one; no
// steady-state operation surfaces an uncaught fault.
type Result struct {
	Status        Status
	ErrorMessage  string
	ExecutionTime time.Duration
}

// Match is one similarity-search result. Data holds the serialized
// payload; decode it with Strata.Decode.
type Match struct {
	Similarity float64
	Data       []byte
	Metadata   map[string]any
	CreatedAt  time.Time
}

// Prediction proposes a likely next key with its confidence and, when the
// key is currently cached, the serialized prior value.
type Prediction struct {
	Key        string
	Confidence float64
	Data       []byte
}

// SetOption carries the optional parts of a Set call.
type SetOption func(*setOptions)

type setOptions struct {
	ttl      time.Duration
	ttlSet   bool
	metadata map[string]any
}

// WithTTL overrides the default time-to-live for one entry. A
// non-positive ttl means the entry never expires.
func WithTTL(ttl time.Duration) SetOption {
	return func(o *setOptions) {
		o.ttl = ttl
		o.ttlSet = true
	}
}

// WithMetadata attaches caller-supplied metadata, opaque to the cache.
// The vector layer reads the "context" field for its context window.
func WithMetadata(metadata map[string]any) SetOption {
	return func(o *setOptions) {
		o.metadata = metadata
	}
}

func toBaseOptions(opts []SetOption) []base.SetOption {
	var o setOptions
	for _, opt := range opts {
		opt(&o)
	}
	var out []base.SetOption
	if o.ttlSet {
		out = append(out, base.WithTTL(o.ttl))
	}
	if o.metadata != nil {
		out = append(out, base.WithMetadata(o.metadata))
	}
	return out
}

// layerContract is the capability set every layer implements.
type layerContract interface {
	Initialize(ctx context.Context) bool
	Get(ctx context.Context, rawKey string) models.Result
	Set(ctx context.Context, rawKey string, value any, opts ...base.SetOption) bool
	Delete(ctx context.Context, rawKey string) bool
	Clear(ctx context.Context) bool
	Exists(ctx context.Context, rawKey string) bool
	CleanupExpired(ctx context.Context) int
	Stats() map[string]any
	Base() *base.Cache
}

// cacheOps adapts a layer's internal contract to the public surface.
type cacheOps struct {
	inner layerContract
}

// Initialize prepares backing resources, returning false (not an error)
// on failure so callers can degrade gracefully.
func (c *cacheOps) Initialize(ctx context.Context) bool {
	return c.inner.Initialize(ctx)
}

// Get looks up the key. On a hit the payload is decoded into value when
// value is non-nil; a decode failure is reported as StatusError.
func (c *cacheOps) Get(ctx context.Context, key string, value any) Result {
	res := c.inner.Get(ctx, key)
	out := Result{
		Status:        Status(res.Status),
		ErrorMessage:  res.ErrorMessage,
		ExecutionTime: res.ExecutionTime,
	}
	if res.Status == models.StatusHit && value != nil {
		if err := c.inner.Base().Decode(res.Entry, value); err != nil {
			c.inner.Base().RecordError("get", err)
			return Result{Status: StatusError, ErrorMessage: err.Error(), ExecutionTime: res.ExecutionTime}
		}
	}
	return out
}

// Set stores the value under the key, overwriting any prior entry. It
// returns false on internal failure.
func (c *cacheOps) Set(ctx context.Context, key string, value any, opts ...SetOption) bool {
	return c.inner.Set(ctx, key, value, toBaseOptions(opts)...)
}

// Delete removes the entry if present; true iff something was removed.
func (c *cacheOps) Delete(ctx context.Context, key string) bool {
	return c.inner.Delete(ctx, key)
}

// Clear removes all entries for this layer.
func (c *cacheOps) Clear(ctx context.Context) bool {
	return c.inner.Clear(ctx)
}

// Exists reports whether the key is present and live, without touching
// access metadata or stats.
func (c *cacheOps) Exists(ctx context.Context, key string) bool {
	return c.inner.Exists(ctx, key)
}

// CleanupExpired evicts all expired entries, returning the count removed.
func (c *cacheOps) CleanupExpired(ctx context.Context) int {
	return c.inner.CleanupExpired(ctx)
}

// Stats exports this layer's counters.
func (c *cacheOps) Stats() map[string]any {
	return c.inner.Stats()
}

// PredictiveCache is the public surface of the predictive layer.
type PredictiveCache struct {
	cacheOps
	inner *predictive.Cache
}

// Predict proposes up to n stored keys matching prefix, sorted by
// descending confidence.
func (p *PredictiveCache) Predict(ctx context.Context, prefix string, n int) []Prediction {
	raw := p.inner.Predict(ctx, prefix, n)
	out := make([]Prediction, 0, len(raw))
	for _, pr := range raw {
		pub := Prediction{Key: pr.Key, Confidence: pr.Confidence}
		if pr.Entry != nil {
			pub.Data = pr.Entry.Data
		}
		out = append(out, pub)
	}
	return out
}

// SemanticCache is the public surface of the semantic layer.
type SemanticCache struct {
	cacheOps
	inner *semantic.Cache
}

// FindSimilar returns at most n stored entries whose embeddings score at
// least minSimilarity against the query text, most similar first.
func (s *SemanticCache) FindSimilar(ctx context.Context, query string, n int, minSimilarity float64) []Match {
	raw := s.inner.FindSimilar(ctx, query, n, minSimilarity)
	out := make([]Match, 0, len(raw))
	for _, m := range raw {
		out = append(out, Match{
			Similarity: m.Similarity,
			Data:       m.Entry.Data,
			Metadata:   m.Entry.Metadata,
			CreatedAt:  m.Entry.CreatedAt,
		})
	}
	return out
}

// VectorCache is the public surface of the vector layer.
type VectorCache struct {
	cacheOps
	inner *vector.Cache
}

// Search is FindSimilar plus optional context filtering and reranking.
func (v *VectorCache) Search(ctx context.Context, query string, n int, minSimilarity float64, contextFilter string, rerank bool) []Match {
	raw := v.inner.Search(ctx, query, n, minSimilarity, contextFilter, rerank)
	out := make([]Match, 0, len(raw))
	for _, r := range raw {
		out = append(out, Match{
			Similarity: r.Similarity,
			Data:       r.Entry.Data,
			Metadata:   r.Entry.Metadata,
			CreatedAt:  r.Entry.CreatedAt,
		})
	}
	return out
}

// GlobalCache is the public surface of the global layer.
type GlobalCache struct {
	cacheOps
	inner *global.Cache
}

// QueryKnowledge queries the external knowledge service, degrading to the
// bounded local fallback when the service is unavailable.
func (g *GlobalCache) QueryKnowledge(ctx context.Context, query string) retrieval.Answer {
	return g.inner.QueryKnowledge(ctx, query)
}
