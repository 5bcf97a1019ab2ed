// Package semantic implements the semantic cache layer: embedding
// generation on set and nearest-neighbor search over stored embeddings.
package semantic

import (
	"context"
	"sort"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"goflare.io/strata/internal/cache/base"
	"goflare.io/strata/internal/cache/embedder"
	"goflare.io/strata/internal/models"
	"goflare.io/strata/internal/utils"
	"goflare.io/strata/internal/vectormath"
)

// Match pairs a stored entry with its similarity to a query.
type Match struct {
	Entry      *models.Entry
	Similarity float64
}

// Cache is the semantic layer. It wraps a base cache and adds
// embedding-on-set plus exact similarity search. A coarse sign-bucket map
// tracks how stored embeddings cluster; it is observability only (Stats),
// never a search narrowing, because nearby vectors can straddle a sign
// boundary.
type Cache struct {
	base     *base.Cache
	embedder *embedder.Embedder

	minSimilarity float64
	bucketDims    int

	indexMu sync.RWMutex
	index   map[string]map[string]struct{}
}

// New creates the semantic layer over the given base cache.
func New(b *base.Cache, emb *embedder.Embedder) *Cache {
	cfg := b.Config()
	return &Cache{
		base:          b,
		embedder:      emb,
		minSimilarity: cfg.Semantic.MinSimilarity,
		bucketDims:    cfg.Semantic.IndexBucketDims,
		index:         make(map[string]map[string]struct{}),
	}
}

// Initialize prepares backing resources and rebuilds the semantic index
// from any persisted entries.
func (c *Cache) Initialize(ctx context.Context) bool {
	if !c.base.Initialize(ctx) {
		return false
	}
	c.rebuildIndex()
	return true
}

// Get delegates to the base contract.
func (c *Cache) Get(ctx context.Context, rawKey string) models.Result {
	return c.base.Get(ctx, rawKey)
}

// Set computes an embedding for the raw key text before storing. The
// embedding is computed outside any store lock; if the provider fails the
// entry is still stored without one.
func (c *Cache) Set(ctx context.Context, rawKey string, value any, opts ...base.SetOption) bool {
	emb, err := c.embedder.Embed(ctx, rawKey)
	if err != nil {
		c.base.Logger().Warn("Embedding failed, storing without one", zap.Error(err))
		emb = nil
	}

	hashed := utils.HashKey(rawKey)
	c.unindex(hashed)

	if emb != nil {
		opts = append(opts, base.WithEmbedding(emb))
	}
	if !c.base.Set(ctx, rawKey, value, opts...) {
		return false
	}
	if emb != nil {
		c.indexKey(hashed, emb)
	}
	return true
}

// Delete removes the entry and its index reference.
func (c *Cache) Delete(ctx context.Context, rawKey string) bool {
	hashed := utils.HashKey(rawKey)
	c.unindex(hashed)
	return c.base.Delete(ctx, rawKey)
}

// Clear drops all entries and the index.
func (c *Cache) Clear(ctx context.Context) bool {
	c.indexMu.Lock()
	c.index = make(map[string]map[string]struct{})
	c.indexMu.Unlock()
	return c.base.Clear(ctx)
}

// Exists delegates to the base contract.
func (c *Cache) Exists(ctx context.Context, rawKey string) bool {
	return c.base.Exists(ctx, rawKey)
}

// CleanupExpired evicts expired entries and prunes dangling index
// references.
func (c *Cache) CleanupExpired(ctx context.Context) int {
	removed := c.base.CleanupExpired(ctx)
	if removed > 0 {
		c.pruneIndex()
	}
	return removed
}

// FindSimilar scores stored embeddings against the query text and returns
// at most nResults matches with similarity >= minSimilarity, sorted by
// descending similarity (ties broken by most recent CreatedAt). Provider
// failure yields an empty result, never an error.
func (c *Cache) FindSimilar(ctx context.Context, queryText string, nResults int, minSimilarity float64) []Match {
	ctx, span := c.base.Tracer().Start(ctx, "Semantic.FindSimilar", trace.WithAttributes(
		attribute.String("cache", c.base.Name()),
		attribute.Int("n_results", nResults),
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
		c.base.RecordError("find_similar", err)
		return nil
	}

	matches := scoreCandidates(c.candidates(), queryEmb, minSimilarity)
	sortMatches(matches)
	if len(matches) > nResults {
		matches = matches[:nResults]
	}
	return matches
}

// Stats adds the semantic counters on top of the base fields.
func (c *Cache) Stats() map[string]any {
	snapshot := c.base.Stats()
	snapshot["embedding_failures"] = c.embedder.Failures()

	c.indexMu.RLock()
	snapshot["index_buckets"] = len(c.index)
	c.indexMu.RUnlock()
	return snapshot
}

// Base exposes the underlying base cache for composition by the facade.
func (c *Cache) Base() *base.Cache { return c.base }

// candidates returns every embedded entry. Scoring is exact over the full
// store; a match must never be lost to the coarse bucket map, so searches
// do not consult it.
func (c *Cache) candidates() []*models.Entry {
	var entries []*models.Entry
	c.base.EntryStore().Range(func(entry *models.Entry) bool {
		if entry.Embedding != nil {
			entries = append(entries, entry)
		}
		return true
	})
	return entries
}

func scoreCandidates(entries []*models.Entry, queryEmb []float64, minSimilarity float64) []Match {
	var matches []Match
	for _, entry := range entries {
		if entry.Embedding == nil || entry.IsExpired() {
			continue
		}
		score := vectormath.Cosine(queryEmb, entry.Embedding)
		if score >= minSimilarity {
			matches = append(matches, Match{Entry: entry, Similarity: score})
		}
	}
	return matches
}

func sortMatches(matches []Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		return matches[i].Entry.CreatedAt.After(matches[j].Entry.CreatedAt)
	})
}

func (c *Cache) indexKey(hashedKey string, emb []float64) {
	bucket := vectormath.SignBucket(emb, c.bucketDims)
	c.indexMu.Lock()
	keys, ok := c.index[bucket]
	if !ok {
		keys = make(map[string]struct{})
		c.index[bucket] = keys
	}
	keys[hashedKey] = struct{}{}
	c.indexMu.Unlock()
}

func (c *Cache) unindex(hashedKey string) {
	entry, ok := c.base.EntryStore().Get(hashedKey)
	if !ok || entry.Embedding == nil {
		return
	}
	bucket := vectormath.SignBucket(entry.Embedding, c.bucketDims)

	c.indexMu.Lock()
	if keys, ok := c.index[bucket]; ok {
		delete(keys, hashedKey)
		if len(keys) == 0 {
			delete(c.index, bucket)
		}
	}
	c.indexMu.Unlock()
}

// pruneIndex drops index references whose entries no longer exist.
func (c *Cache) pruneIndex() {
	c.indexMu.Lock()
	defer c.indexMu.Unlock()
	for bucket, keys := range c.index {
		for key := range keys {
			if _, ok := c.base.EntryStore().Get(key); !ok {
				delete(keys, key)
			}
		}
		if len(keys) == 0 {
			delete(c.index, bucket)
		}
	}
}

// rebuildIndex reconstructs the bucket index from the live store.
func (c *Cache) rebuildIndex() {
	fresh := make(map[string]map[string]struct{})
	c.base.EntryStore().Range(func(entry *models.Entry) bool {
		if entry.Embedding == nil {
			return true
		}
		bucket := vectormath.SignBucket(entry.Embedding, c.bucketDims)
		keys, ok := fresh[bucket]
		if !ok {
			keys = make(map[string]struct{})
			fresh[bucket] = keys
		}
		keys[entry.Key] = struct{}{}
		return true
	})

	c.indexMu.Lock()
	c.index = fresh
	c.indexMu.Unlock()
}
