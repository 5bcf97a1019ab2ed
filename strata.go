// Package strata is a multi-layer cache subsystem: predictive, semantic,
// vector, and global layers behind one uniform contract. Each layer owns
// its own entry store, expiry, and statistics; routing across layers is
// the caller's business.
package strata

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"goflare.io/strata/internal/cache/base"
	"goflare.io/strata/internal/cache/embedder"
	"goflare.io/strata/internal/cache/global"
	"goflare.io/strata/internal/cache/predictive"
	"goflare.io/strata/internal/cache/semantic"
	"goflare.io/strata/internal/cache/vector"
	"goflare.io/strata/internal/config"
	"goflare.io/strata/internal/metrics"
	"goflare.io/strata/internal/persist"
	"goflare.io/strata/pkg/embedding"
	"goflare.io/strata/pkg/retrieval"
)

// PredictionScorer combines normalized access frequency and recency (both
// in [0, 1]) into a prediction confidence in [0, 1]. It must be
// deterministic given identical history.
type PredictionScorer func(frequency, recency float64) float64

type settings struct {
	cfgOptions []config.Option
	provider   embedding.Provider
	client     retrieval.Client
	redisOpts  *redis.Options
	registerer prometheus.Registerer
	prometheus bool
	scorer     PredictionScorer
}

// Option configures the subsystem during construction.
type Option func(*settings) error

// WithLogger sets a custom logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *settings) error {
		s.cfgOptions = append(s.cfgOptions, config.WithLogger(logger))
		return nil
	}
}

// WithShardCount sets the number of store shards per layer.
func WithShardCount(count uint64) Option {
	return func(s *settings) error {
		s.cfgOptions = append(s.cfgOptions, config.WithShardCount(count))
		return nil
	}
}

// WithDefaultTTL sets the default time-to-live for new entries.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(s *settings) error {
		s.cfgOptions = append(s.cfgOptions, config.WithDefaultTTL(ttl))
		return nil
	}
}

// WithSerialization selects the payload codec ("json" or "gob").
func WithSerialization(codecType string) Option {
	return func(s *settings) error {
		s.cfgOptions = append(s.cfgOptions, config.WithSerialization(codecType))
		return nil
	}
}

// WithMinSimilarity sets the default similarity threshold for searches.
func WithMinSimilarity(threshold float64) Option {
	return func(s *settings) error {
		s.cfgOptions = append(s.cfgOptions, config.WithMinSimilarity(threshold))
		return nil
	}
}

// WithMaxContexts bounds the vector layer's context window.
func WithMaxContexts(n int) Option {
	return func(s *settings) error {
		s.cfgOptions = append(s.cfgOptions, config.WithMaxContexts(n))
		return nil
	}
}

// WithHistorySize bounds the predictive layer's access history.
func WithHistorySize(n int) Option {
	return func(s *settings) error {
		s.cfgOptions = append(s.cfgOptions, config.WithHistorySize(n))
		return nil
	}
}

// WithFallback configures the global layer's local fallback cache.
func WithFallback(enabled bool, maxEntries int) Option {
	return func(s *settings) error {
		s.cfgOptions = append(s.cfgOptions, config.WithFallback(enabled, maxEntries))
		return nil
	}
}

// WithQueryTimeout bounds each knowledge-service call.
func WithQueryTimeout(timeout time.Duration) Option {
	return func(s *settings) error {
		s.cfgOptions = append(s.cfgOptions, config.WithQueryTimeout(timeout))
		return nil
	}
}

// WithEmbedTimeout bounds each embedding-provider call.
func WithEmbedTimeout(timeout time.Duration) Option {
	return func(s *settings) error {
		s.cfgOptions = append(s.cfgOptions, config.WithEmbedTimeout(timeout))
		return nil
	}
}

// WithEmbeddingProvider wires the external embedding model consumed by
// the semantic and vector layers. Without one those layers store entries
// without embeddings and searches return nothing.
func WithEmbeddingProvider(provider embedding.Provider) Option {
	return func(s *settings) error {
		s.provider = provider
		return nil
	}
}

// WithRetrievalClient wires the external knowledge service consumed by
// the global layer.
func WithRetrievalClient(client retrieval.Client) Option {
	return func(s *settings) error {
		s.client = client
		return nil
	}
}

// WithRedis enables the durable backing store. Reachability is checked by
// each layer's Initialize, which degrades to memory-only on failure
// instead of failing construction.
func WithRedis(opts *redis.Options, keyPrefix string) Option {
	return func(s *settings) error {
		s.redisOpts = opts
		s.cfgOptions = append(s.cfgOptions, config.WithPersistence(keyPrefix))
		return nil
	}
}

// WithPrometheus exports layer counters through the given registerer
// (nil selects the default registry).
func WithPrometheus(reg prometheus.Registerer) Option {
	return func(s *settings) error {
		s.prometheus = true
		s.registerer = reg
		return nil
	}
}

// WithPredictionScorer replaces the predictive layer's confidence
// strategy.
func WithPredictionScorer(scorer PredictionScorer) Option {
	return func(s *settings) error {
		s.scorer = scorer
		return nil
	}
}

// Strata bundles the four cache layers over shared configuration,
// logging, and metrics.
type Strata struct {
	cfg     *config.Config
	logger  *zap.Logger
	persist persist.Store

	predictive *PredictiveCache
	semantic   *SemanticCache
	vector     *VectorCache
	global     *GlobalCache

	janitorStop chan struct{}
	closed      atomic.Bool
}

// New builds the subsystem and initializes every layer. A layer whose
// backing store is unreachable degrades to memory-only operation; that is
// logged, not fatal.
func New(ctx context.Context, opts ...Option) (*Strata, error) {
	var s settings
	for _, opt := range opts {
		if err := opt(&s); err != nil {
			return nil, err
		}
	}

	cfg, err := config.New(s.cfgOptions...)
	if err != nil {
		return nil, err
	}

	var collector metrics.Collector = metrics.NewNoop()
	if s.prometheus {
		collector = metrics.NewPrometheus(s.registerer)
	}

	var persistStore persist.Store
	if s.redisOpts != nil {
		client := redis.NewClient(s.redisOpts)
		persistStore, err = persist.NewRedisStore(client, cfg.Persistence.KeyPrefix)
		if err != nil {
			return nil, err
		}
	}

	var scorer predictive.Scorer
	if s.scorer != nil {
		scorer = predictive.Scorer(s.scorer)
	}

	st := &Strata{
		cfg:         cfg,
		logger:      cfg.Logger,
		persist:     persistStore,
		janitorStop: make(chan struct{}),
	}

	predictiveLayer := predictive.New(
		base.New("predictive", "predictive", cfg, persistStore, collector), scorer)
	semanticLayer := semantic.New(
		base.New("semantic", "semantic", cfg, persistStore, collector),
		embedder.New(s.provider, cfg.EmbedTimeout))
	vectorLayer, err := vector.New(
		base.New("vector", "vector", cfg, persistStore, collector),
		embedder.New(s.provider, cfg.EmbedTimeout))
	if err != nil {
		return nil, err
	}
	globalLayer := global.New(
		base.New("global", "global", cfg, persistStore, collector), s.client)

	st.predictive = &PredictiveCache{cacheOps: cacheOps{inner: predictiveLayer}, inner: predictiveLayer}
	st.semantic = &SemanticCache{cacheOps: cacheOps{inner: semanticLayer}, inner: semanticLayer}
	st.vector = &VectorCache{cacheOps: cacheOps{inner: vectorLayer}, inner: vectorLayer}
	st.global = &GlobalCache{cacheOps: cacheOps{inner: globalLayer}, inner: globalLayer}

	for _, layer := range st.layers() {
		if !layer.Initialize(ctx) {
			cfg.Logger.Warn("Layer initialization degraded to memory-only",
				zap.String("layer", layer.Stats()["name"].(string)))
		}
	}

	if cfg.CleanupInterval > 0 {
		go st.runJanitor(cfg.CleanupInterval)
	}

	return st, nil
}

// Predictive returns the predictive cache layer.
func (s *Strata) Predictive() *PredictiveCache { return s.predictive }

// Semantic returns the semantic cache layer.
func (s *Strata) Semantic() *SemanticCache { return s.semantic }

// Vector returns the vector cache layer.
func (s *Strata) Vector() *VectorCache { return s.vector }

// Global returns the global cache layer.
func (s *Strata) Global() *GlobalCache { return s.global }

// Stats exports every layer's counters keyed by layer name.
func (s *Strata) Stats() map[string]map[string]any {
	out := make(map[string]map[string]any, 4)
	for _, layer := range s.layers() {
		snapshot := layer.Stats()
		out[snapshot["name"].(string)] = snapshot
	}
	return out
}

// Decode unmarshals serialized payload bytes (as returned in search
// matches) into v using the configured codec.
func (s *Strata) Decode(data []byte, v any) error {
	return s.cfg.Serialization.Codec.Unmarshal(data, v)
}

// Close stops the cleanup janitor and releases the backing store
// connection. A second Close returns ErrClosed.
func (s *Strata) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	close(s.janitorStop)
	if s.persist != nil {
		return s.persist.Close()
	}
	return nil
}

func (s *Strata) layers() []layerContract {
	return []layerContract{s.predictive.inner, s.semantic.inner, s.vector.inner, s.global.inner}
}

// runJanitor periodically evicts expired entries from every layer.
func (s *Strata) runJanitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			for _, layer := range s.layers() {
				if removed := layer.CleanupExpired(ctx); removed > 0 {
					s.logger.Debug("Evicted expired entries", zap.Int("count", removed))
				}
			}
			cancel()
		case <-s.janitorStop:
			return
		}
	}
}
