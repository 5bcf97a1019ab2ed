// Package predictive implements the predictive cache layer: base caching
// plus next-key prediction derived from historical access patterns.
package predictive

import (
	"context"
	"sort"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"goflare.io/strata/internal/cache/base"
	"goflare.io/strata/internal/models"
	"goflare.io/strata/internal/utils"
)

// Prediction proposes a likely next key. Entry carries the currently
// cached prior value when the key is live, nil otherwise.
type Prediction struct {
	Key        string
	Confidence float64
	Entry      *models.Entry
}

// Scorer combines a key's normalized access frequency and recency (both
// in [0, 1]) into a confidence in [0, 1]. It must be deterministic: the
// same history always yields the same scores.
type Scorer func(frequency, recency float64) float64

// DefaultScorer weights frequency over recency.
func DefaultScorer(frequency, recency float64) float64 {
	confidence := 0.7*frequency + 0.3*recency
	if confidence > 1 {
		confidence = 1
	}
	if confidence < 0 {
		confidence = 0
	}
	return confidence
}

// Cache is the predictive layer. It records raw-key access order in a
// bounded ring and keeps the raw-to-hashed key mapping needed for prefix
// matching, since the store itself only sees digests.
type Cache struct {
	base   *base.Cache
	scorer Scorer

	mu          sync.Mutex
	history     []string
	historySize int
	rawKeys     map[string]string
}

// New creates the predictive layer over the given base cache. A nil
// scorer selects DefaultScorer.
func New(b *base.Cache, scorer Scorer) *Cache {
	if scorer == nil {
		scorer = DefaultScorer
	}
	return &Cache{
		base:        b,
		scorer:      scorer,
		historySize: b.Config().Predictive.HistorySize,
		rawKeys:     make(map[string]string),
	}
}

// Initialize delegates to the base contract.
func (c *Cache) Initialize(ctx context.Context) bool {
	return c.base.Initialize(ctx)
}

// Get records the access in the history ring, then delegates.
func (c *Cache) Get(ctx context.Context, rawKey string) models.Result {
	c.recordAccess(rawKey)
	return c.base.Get(ctx, rawKey)
}

// Set stores the value and tracks the raw key for prefix matching.
func (c *Cache) Set(ctx context.Context, rawKey string, value any, opts ...base.SetOption) bool {
	if !c.base.Set(ctx, rawKey, value, opts...) {
		return false
	}
	c.mu.Lock()
	c.rawKeys[rawKey] = utils.HashKey(rawKey)
	c.mu.Unlock()
	return true
}

// Delete removes the entry and stops tracking the raw key.
func (c *Cache) Delete(ctx context.Context, rawKey string) bool {
	c.mu.Lock()
	delete(c.rawKeys, rawKey)
	c.mu.Unlock()
	return c.base.Delete(ctx, rawKey)
}

// Clear drops all entries, tracked keys, and access history.
func (c *Cache) Clear(ctx context.Context) bool {
	c.mu.Lock()
	c.rawKeys = make(map[string]string)
	c.history = nil
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

// Predict proposes up to nPredictions stored keys matching keyPrefix,
// sorted by descending confidence (ties broken by key order so identical
// history always yields identical output).
func (c *Cache) Predict(ctx context.Context, keyPrefix string, nPredictions int) []Prediction {
	_, span := c.base.Tracer().Start(ctx, "Predictive.Predict", trace.WithAttributes(
		attribute.String("cache", c.base.Name()),
		attribute.String("prefix", keyPrefix),
	))
	defer span.End()

	if nPredictions <= 0 {
		nPredictions = 5
	}

	c.mu.Lock()
	history := make([]string, len(c.history))
	copy(history, c.history)
	candidates := make(map[string]string)
	for rawKey, hashed := range c.rawKeys {
		if strings.HasPrefix(rawKey, keyPrefix) {
			candidates[rawKey] = hashed
		}
	}
	c.mu.Unlock()

	if len(candidates) == 0 {
		return nil
	}

	counts := make(map[string]int, len(candidates))
	lastIndex := make(map[string]int, len(candidates))
	totalMatching := 0
	for i, rawKey := range history {
		if _, ok := candidates[rawKey]; !ok {
			continue
		}
		counts[rawKey]++
		lastIndex[rawKey] = i
		totalMatching++
	}

	predictions := make([]Prediction, 0, len(candidates))
	for rawKey, hashed := range candidates {
		var frequency, recency float64
		if totalMatching > 0 {
			frequency = float64(counts[rawKey]) / float64(totalMatching)
		}
		if idx, ok := lastIndex[rawKey]; ok && len(history) > 0 {
			recency = float64(idx+1) / float64(len(history))
		}

		p := Prediction{
			Key:        rawKey,
			Confidence: c.scorer(frequency, recency),
		}
		if entry, ok := c.base.EntryStore().Get(hashed); ok && !entry.IsExpired() {
			p.Entry = entry
		}
		predictions = append(predictions, p)
	}

	sort.SliceStable(predictions, func(i, j int) bool {
		if predictions[i].Confidence != predictions[j].Confidence {
			return predictions[i].Confidence > predictions[j].Confidence
		}
		return predictions[i].Key < predictions[j].Key
	})
	if len(predictions) > nPredictions {
		predictions = predictions[:nPredictions]
	}
	return predictions
}

// Stats adds the predictive counters on top of the base fields.
func (c *Cache) Stats() map[string]any {
	snapshot := c.base.Stats()
	c.mu.Lock()
	snapshot["history_length"] = len(c.history)
	snapshot["tracked_keys"] = len(c.rawKeys)
	c.mu.Unlock()
	return snapshot
}

// Base exposes the underlying base cache for composition by the facade.
func (c *Cache) Base() *base.Cache { return c.base }

func (c *Cache) recordAccess(rawKey string) {
	c.mu.Lock()
	c.history = append(c.history, rawKey)
	if len(c.history) > c.historySize {
		c.history = c.history[len(c.history)-c.historySize:]
	}
	c.mu.Unlock()
}
