// Package vector implements the vector cache layer: embedding generation
// on set plus similarity search with context filtering and reranking, over
// a bounded window of distinct contexts.
package vector

import (
	"context"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"goflare.io/strata/internal/cache/base"
	"goflare.io/strata/internal/cache/embedder"
	"goflare.io/strata/internal/models"
	"goflare.io/strata/internal/utils"
	"goflare.io/strata/internal/vectormath"
)

// MetadataContextKey is the metadata field that assigns an entry to a
// context bucket.
const MetadataContextKey = "context"

// Result pairs a stored entry with its similarity to a query.
type Result struct {
	Entry      *models.Entry
	Similarity float64
}

// Cache is the vector layer. Entries carry embeddings and optionally
// belong to a context bucket; at most MaxContexts distinct buckets are
// tracked at once, and exceeding the bound evicts the least recently used
// bucket together with its entries.
type Cache struct {
	base          *base.Cache
	embedder      *embedder.Embedder
	minSimilarity float64

	mu       sync.Mutex
	contexts *lru.Cache[string, map[string]struct{}]
}

// New creates the vector layer over the given base cache.
func New(b *base.Cache, emb *embedder.Embedder) (*Cache, error) {
	c := &Cache{
		base:          b,
		embedder:      emb,
		minSimilarity: b.Config().Semantic.MinSimilarity,
	}

	contexts, err := lru.NewWithEvict(b.Config().Vector.MaxContexts, c.onContextEvicted)
	if err != nil {
		return nil, err
	}
	c.contexts = contexts
	return c, nil
}

// onContextEvicted drops the evicted bucket's entries. The context window
// is a bound on live contexts, not just on bookkeeping.
func (c *Cache) onContextEvicted(contextName string, keys map[string]struct{}) {
	c.base.Logger().Debug("Evicting context bucket", zap.String("context", contextName), zap.Int("entries", len(keys)))
	for key := range keys {
		c.base.Evict(context.Background(), key)
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

// Set computes an embedding before storing, same degradation rules as the
// semantic layer, and tracks the entry's context bucket when the metadata
// names one.
func (c *Cache) Set(ctx context.Context, rawKey string, value any, opts ...base.SetOption) bool {
	emb, err := c.embedder.Embed(ctx, rawKey)
	if err != nil {
		c.base.Logger().Warn("Embedding failed, storing without one", zap.Error(err))
		emb = nil
	}

	hashed := utils.HashKey(rawKey)
	c.untrack(hashed)

	if emb != nil {
		opts = append(opts, base.WithEmbedding(emb))
	}
	if !c.base.Set(ctx, rawKey, value, opts...) {
		return false
	}

	if entry, ok := c.base.EntryStore().Get(hashed); ok {
		if contextName, ok := entryContext(entry); ok {
			c.track(contextName, hashed)
		}
	}
	return true
}

// Delete removes the entry and its context-bucket reference.
func (c *Cache) Delete(ctx context.Context, rawKey string) bool {
	hashed := utils.HashKey(rawKey)
	c.untrack(hashed)
	return c.base.Delete(ctx, rawKey)
}

// Clear drops all entries and the context window.
func (c *Cache) Clear(ctx context.Context) bool {
	c.mu.Lock()
	// Purge would re-enter eviction; the entries go away wholesale below.
	contexts, err := lru.NewWithEvict(c.base.Config().Vector.MaxContexts, c.onContextEvicted)
	if err == nil {
		c.contexts = contexts
	}
	c.mu.Unlock()
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

// Search scores stored embeddings against the query text. A non-empty
// contextFilter restricts candidates to entries whose metadata context
// matches before scoring. Results satisfy similarity >= minSimilarity and
// are truncated to nResults; when rerank is set the final slice is
// re-sorted so result[i].Similarity >= result[i+1].Similarity always
// holds. Provider failure yields an empty result, never an error.
func (c *Cache) Search(ctx context.Context, queryText string, nResults int, minSimilarity float64, contextFilter string, rerank bool) []Result {
	ctx, span := c.base.Tracer().Start(ctx, "Vector.Search", trace.WithAttributes(
		attribute.String("cache", c.base.Name()),
		attribute.String("context_filter", contextFilter),
		attribute.Bool("rerank", rerank),
	))
	defer span.End()

	if nResults <= 0 {
		nResults = 10
	}
	if minSimilarity <= 0 {
		minSimilarity = c.minSimilarity
	}

	queryEmb, err := c.embedder.Embed(ctx, queryText)
	if err != nil {
		c.base.RecordError("vector_search", err)
		return nil
	}

	results := c.score(c.candidates(contextFilter), queryEmb, minSimilarity)

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].Entry.CreatedAt.After(results[j].Entry.CreatedAt)
	})
	if len(results) > nResults {
		results = results[:nResults]
	}

	if rerank {
		sort.SliceStable(results, func(i, j int) bool {
			return results[i].Similarity > results[j].Similarity
		})
	}
	return results
}

// Stats adds the vector counters on top of the base fields.
func (c *Cache) Stats() map[string]any {
	snapshot := c.base.Stats()
	snapshot["embedding_failures"] = c.embedder.Failures()

	c.mu.Lock()
	snapshot["tracked_contexts"] = c.contexts.Len()
	c.mu.Unlock()
	return snapshot
}

// Base exposes the underlying base cache for composition by the facade.
func (c *Cache) Base() *base.Cache { return c.base }

func (c *Cache) candidates(contextFilter string) []*models.Entry {
	if contextFilter != "" {
		c.mu.Lock()
		keys, ok := c.contexts.Get(contextFilter)
		var snapshot []string
		if ok {
			snapshot = make([]string, 0, len(keys))
			for key := range keys {
				snapshot = append(snapshot, key)
			}
		}
		c.mu.Unlock()

		entries := make([]*models.Entry, 0, len(snapshot))
		for _, key := range snapshot {
			if entry, ok := c.base.EntryStore().Get(key); ok {
				entries = append(entries, entry)
			}
		}
		return entries
	}

	var entries []*models.Entry
	c.base.EntryStore().Range(func(entry *models.Entry) bool {
		entries = append(entries, entry)
		return true
	})
	return entries
}

func (c *Cache) score(entries []*models.Entry, queryEmb []float64, minSimilarity float64) []Result {
	var results []Result
	for _, entry := range entries {
		if entry.Embedding == nil || entry.IsExpired() {
			continue
		}
		score := vectormath.Cosine(queryEmb, entry.Embedding)
		if score >= minSimilarity {
			results = append(results, Result{Entry: entry, Similarity: score})
		}
	}
	return results
}

func (c *Cache) track(contextName, hashedKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys, ok := c.contexts.Get(contextName)
	if !ok {
		keys = make(map[string]struct{})
	}
	keys[hashedKey] = struct{}{}
	c.contexts.Add(contextName, keys)
}

func (c *Cache) untrack(hashedKey string) {
	entry, ok := c.base.EntryStore().Get(hashedKey)
	if !ok {
		return
	}
	contextName, ok := entryContext(entry)
	if !ok {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if keys, ok := c.contexts.Peek(contextName); ok {
		delete(keys, hashedKey)
	}
}

func entryContext(entry *models.Entry) (string, bool) {
	if entry.Metadata == nil {
		return "", false
	}
	contextName, ok := entry.Metadata[MetadataContextKey].(string)
	return contextName, ok && contextName != ""
}
