// Package base implements the cache contract shared by every layer:
// lifecycle, key hashing, stats bookkeeping, and error conversion. Layers
// compose a base cache instead of subclassing it.
package base

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"goflare.io/strata/internal/config"
	"goflare.io/strata/internal/metrics"
	"goflare.io/strata/internal/models"
	"goflare.io/strata/internal/persist"
	"goflare.io/strata/internal/store"
	"goflare.io/strata/internal/utils"
	"goflare.io/strata/pkg/serialization"
)

// Cache owns the entry store and statistics for one cache layer. All
// steady-state operations convert internal failures into typed results;
// they never surface an unexpected error to the caller.
type Cache struct {
	name  string
	layer models.Layer

	cfg       *config.Config
	store     *store.Store
	stats     *models.Stats
	codec     serialization.Codec
	persist   persist.Store
	collector metrics.Collector
	logger    *zap.Logger
	tracer    trace.Tracer

	initialized atomic.Bool
}

// New creates a base cache. persistStore may be nil, in which case the
// layer is memory-only.
func New(name string, layer models.Layer, cfg *config.Config, persistStore persist.Store, collector metrics.Collector) *Cache {
	if collector == nil {
		collector = metrics.NewNoop()
	}
	return &Cache{
		name:      name,
		layer:     layer,
		cfg:       cfg,
		store:     store.New(cfg.ShardCount, cfg.Bloom.ExpectedItems, cfg.Bloom.FalsePositiveRate),
		stats:     models.NewStats(),
		codec:     cfg.Serialization.Codec,
		persist:   persistStore,
		collector: collector,
		logger:    cfg.Logger.With(zap.String("cache", name)),
		tracer:    otel.Tracer("strata"),
	}
}

// Initialize prepares the backing resources. It returns false instead of
// an error on failure so callers can degrade to memory-only operation.
// Safe to call more than once.
func (c *Cache) Initialize(ctx context.Context) bool {
	if c.initialized.Load() {
		return true
	}
	if c.persist == nil {
		c.initialized.Store(true)
		return true
	}

	if err := c.persist.Ping(ctx); err != nil {
		c.logger.Warn("Persistent store unreachable, staying memory-only", zap.Error(err))
		return false
	}

	records, err := c.persist.ScanAll(ctx, c.name)
	if err != nil {
		c.logger.Warn("Failed to load persisted entries", zap.Error(err))
		return false
	}

	loaded := 0
	for key, data := range records {
		entry, err := decodePersisted(key, data, c.layer)
		if err != nil {
			c.logger.Warn("Skipping corrupt persisted entry", zap.String("key", key), zap.Error(err))
			continue
		}
		if entry.IsExpired() {
			continue
		}
		c.store.Put(entry)
		loaded++
	}

	c.logger.Info("Initialized cache", zap.Int("loaded_entries", loaded))
	c.initialized.Store(true)
	return true
}

// Get looks up the hashed key. A live entry is a hit and has its access
// metadata bumped; an expired entry is evicted as a side effect and
// reported as expired, counting as a miss for hit-rate purposes.
func (c *Cache) Get(ctx context.Context, rawKey string) models.Result {
	ctx, span := c.tracer.Start(ctx, "Cache.Get", trace.WithAttributes(
		attribute.String("cache", c.name),
	))
	defer span.End()

	start := time.Now()
	hashed := utils.HashKey(rawKey)

	entry, ok := c.store.Get(hashed)
	if !ok {
		c.stats.Misses.Inc()
		c.collector.IncCounter(metrics.MetricMisses, c.name, 1)
		return models.Miss(time.Since(start))
	}

	if entry.IsExpired() {
		c.store.Delete(hashed)
		c.deletePersisted(ctx, hashed)
		c.stats.Misses.Inc()
		c.collector.IncCounter(metrics.MetricMisses, c.name, 1)
		c.collector.IncCounter(metrics.MetricEvictions, c.name, 1)
		return models.Expired(time.Since(start))
	}

	entry.Touch()
	c.stats.Hits.Inc()
	c.collector.IncCounter(metrics.MetricHits, c.name, 1)
	return models.Hit(entry, time.Since(start))
}

// Set serializes the value and stores it under the hashed key,
// overwriting any prior entry. It returns false on internal failure and
// never propagates storage errors to the caller.
func (c *Cache) Set(ctx context.Context, rawKey string, value any, opts ...SetOption) bool {
	ctx, span := c.tracer.Start(ctx, "Cache.Set", trace.WithAttributes(
		attribute.String("cache", c.name),
	))
	defer span.End()

	options := buildSetOptions(c.cfg.DefaultTTL, opts)

	data, err := c.codec.Marshal(value)
	if err != nil {
		c.logger.Warn("Failed to serialize value", zap.Error(err))
		c.stats.Errors.Inc()
		c.collector.IncCounter(metrics.MetricErrors, c.name, 1)
		return false
	}

	hashed := utils.HashKey(rawKey)
	entry := models.NewEntry(hashed, data, c.layer, options.TTL)
	entry.Metadata = options.Metadata
	entry.Embedding = options.Embedding

	c.store.Put(entry)
	c.putPersisted(ctx, entry)
	c.collector.SetGauge(metrics.MetricEntries, c.name, int64(c.store.Len()))
	return true
}

// Delete removes the entry if present, reporting whether anything was
// removed.
func (c *Cache) Delete(ctx context.Context, rawKey string) bool {
	hashed := utils.HashKey(rawKey)
	removed := c.store.Delete(hashed)
	if removed {
		c.deletePersisted(ctx, hashed)
		c.collector.SetGauge(metrics.MetricEntries, c.name, int64(c.store.Len()))
	}
	return removed
}

// Evict removes an entry by its hashed key. Used by layer extensions
// whose bookkeeping works on hashed keys (index pruning, context-window
// eviction).
func (c *Cache) Evict(ctx context.Context, hashedKey string) bool {
	removed := c.store.Delete(hashedKey)
	if removed {
		c.deletePersisted(ctx, hashedKey)
		c.collector.IncCounter(metrics.MetricEvictions, c.name, 1)
		c.collector.SetGauge(metrics.MetricEntries, c.name, int64(c.store.Len()))
	}
	return removed
}

// Clear removes every entry for this instance. Stats counters survive;
// they reset only with the instance.
func (c *Cache) Clear(ctx context.Context) bool {
	c.store.Clear()
	if c.persist != nil {
		if err := c.persist.Clear(ctx, c.name); err != nil {
			c.logger.Warn("Failed to clear persisted entries", zap.Error(err))
		}
	}
	c.collector.SetGauge(metrics.MetricEntries, c.name, 0)
	return true
}

// Exists reports whether the key is present and live. It touches neither
// access metadata nor stats.
func (c *Cache) Exists(_ context.Context, rawKey string) bool {
	entry, ok := c.store.Get(utils.HashKey(rawKey))
	return ok && !entry.IsExpired()
}

// CleanupExpired evicts every expired entry and returns the count
// removed. Meant for periodic invocation, not the per-request path.
func (c *Cache) CleanupExpired(ctx context.Context) int {
	var expired []string
	c.store.Range(func(entry *models.Entry) bool {
		if entry.IsExpired() {
			expired = append(expired, entry.Key)
		}
		return true
	})

	removed := 0
	for _, key := range expired {
		if c.store.Delete(key) {
			c.deletePersisted(ctx, key)
			removed++
		}
	}

	if removed > 0 {
		c.store.RebuildFilter()
		c.collector.IncCounter(metrics.MetricEvictions, c.name, int64(removed))
		c.collector.SetGauge(metrics.MetricEntries, c.name, int64(c.store.Len()))
	}
	return removed
}

// Stats exports the current counters plus instance identity. Layer
// wrappers add their own fields on top, never removing the base ones.
func (c *Cache) Stats() map[string]any {
	snapshot := c.stats.Snapshot()
	snapshot["name"] = c.name
	snapshot["layer"] = string(c.layer)
	snapshot["entries"] = c.store.Len()
	return snapshot
}

// Decode unmarshals an entry's payload into v using the configured codec.
func (c *Cache) Decode(entry *models.Entry, v any) error {
	return c.codec.Unmarshal(entry.Data, v)
}

// RecordError counts an internal failure that was converted at a layer
// boundary.
func (c *Cache) RecordError(op string, err error) {
	c.logger.Warn("Cache operation degraded", zap.String("op", op), zap.Error(err))
	c.stats.Errors.Inc()
	c.collector.IncCounter(metrics.MetricErrors, c.name, 1)
}

// EntryStore exposes the shared store to layer extensions.
func (c *Cache) EntryStore() *store.Store { return c.store }

// Counters exposes the stats tracker to layer extensions.
func (c *Cache) Counters() *models.Stats { return c.stats }

// Logger returns the layer-scoped logger.
func (c *Cache) Logger() *zap.Logger { return c.logger }

// Tracer returns the shared tracer.
func (c *Cache) Tracer() trace.Tracer { return c.tracer }

// Collector returns the metrics collector.
func (c *Cache) Collector() metrics.Collector { return c.collector }

// Name returns the instance name used for persistence and metrics.
func (c *Cache) Name() string { return c.name }

// Config returns the construction-time configuration.
func (c *Cache) Config() *config.Config { return c.cfg }

func (c *Cache) putPersisted(ctx context.Context, entry *models.Entry) {
	if c.persist == nil {
		return
	}
	data, err := encodePersisted(entry)
	if err != nil {
		c.logger.Warn("Failed to encode entry for persistence", zap.Error(err))
		return
	}
	if err := c.persist.Put(ctx, c.name, entry.Key, data); err != nil {
		c.logger.Warn("Failed to persist entry", zap.String("key", entry.Key), zap.Error(err))
	}
}

func (c *Cache) deletePersisted(ctx context.Context, key string) {
	if c.persist == nil {
		return
	}
	if err := c.persist.Delete(ctx, c.name, key); err != nil {
		c.logger.Warn("Failed to delete persisted entry", zap.String("key", key), zap.Error(err))
	}
}
