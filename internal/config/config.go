package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"goflare.io/strata/pkg/serialization"
)

// Config holds the settings shared by every cache layer plus the
// layer-specific sections. Construction-time validation fails fast;
// steady-state operations never re-validate.
type Config struct {
	ShardCount      uint64
	DefaultTTL      time.Duration
	CleanupInterval time.Duration

	// EmbedTimeout bounds every call to the embedding provider.
	EmbedTimeout time.Duration

	Bloom       BloomConfig
	Semantic    SemanticConfig
	Vector      VectorConfig
	Predictive  PredictiveConfig
	Global      GlobalConfig
	Persistence PersistenceConfig

	Serialization SerializationConfig
	Logger        *zap.Logger
}

// BloomConfig sizes the per-store negative-lookup filter.
type BloomConfig struct {
	ExpectedItems     uint
	FalsePositiveRate float64
}

// SemanticConfig configures the semantic layer.
type SemanticConfig struct {
	// MinSimilarity is the default threshold for FindSimilar when the
	// caller passes a non-positive one.
	MinSimilarity float64

	// IndexBucketDims is the number of embedding components used for the
	// coarse sign-bucket index.
	IndexBucketDims int
}

// VectorConfig configures the vector layer.
type VectorConfig struct {
	// MaxContexts bounds how many distinct context buckets are tracked at
	// once; exceeding it evicts the least recently used bucket.
	MaxContexts int
}

// PredictiveConfig configures the predictive layer.
type PredictiveConfig struct {
	// HistorySize bounds the access-history ring used by Predict.
	HistorySize int
}

// GlobalConfig configures the global layer and its knowledge-service path.
type GlobalConfig struct {
	FallbackEnabled    bool
	MaxFallbackEntries int
	QueryTimeout       time.Duration
	CircuitBreaker     gobreaker.Settings
}

// PersistenceConfig configures the optional durable backing store.
type PersistenceConfig struct {
	Enabled   bool
	KeyPrefix string
}

// SerializationConfig selects the payload codec.
type SerializationConfig struct {
	Type  string
	Codec serialization.Codec
}

// Option mutates the config during construction.
type Option func(*Config) error

var (
	ErrShardCountZero   = errors.New("shard count must be at least 1")
	ErrInvalidThreshold = errors.New("similarity threshold must be within [0, 1]")
	ErrInvalidContexts  = errors.New("max contexts must be at least 1")
	ErrInvalidHistory   = errors.New("history size must be at least 1")
	ErrInvalidFallback  = errors.New("max fallback entries must be at least 1")
	ErrInvalidTTL       = errors.New("default ttl must not be negative")
)

// New creates a Config with defaults, applies the options, and validates
// the result.
func New(options ...Option) (*Config, error) {
	cfg := &Config{
		ShardCount: 16,
		// A Set without a per-call ttl never expires unless the owner
		// opts into a default ttl.
		DefaultTTL:      0,
		CleanupInterval: 10 * time.Minute,
		EmbedTimeout:    2 * time.Second,
		Bloom: BloomConfig{
			ExpectedItems:     10000,
			FalsePositiveRate: 0.01,
		},
		Semantic: SemanticConfig{
			MinSimilarity:   0.8,
			IndexBucketDims: 8,
		},
		Vector: VectorConfig{
			MaxContexts: 64,
		},
		Predictive: PredictiveConfig{
			HistorySize: 1024,
		},
		Global: GlobalConfig{
			FallbackEnabled:    true,
			MaxFallbackEntries: 256,
			QueryTimeout:       5 * time.Second,
			CircuitBreaker: gobreaker.Settings{
				Name:        "KnowledgeService",
				MaxRequests: 3,
				Interval:    60 * time.Second,
				Timeout:     30 * time.Second,
				ReadyToTrip: func(counts gobreaker.Counts) bool {
					return counts.ConsecutiveFailures > 5
				},
			},
		},
		Persistence: PersistenceConfig{
			Enabled:   false,
			KeyPrefix: "strata",
		},
		Serialization: SerializationConfig{
			Type:  serialization.JSONType,
			Codec: serialization.NewJSON(),
		},
	}

	for _, option := range options {
		if err := option(cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Logger == nil {
		logger, err := zap.NewProduction()
		if err != nil {
			return nil, fmt.Errorf("failed to initialize default logger: %w", err)
		}
		cfg.Logger = logger
	}

	return cfg, nil
}

// Validate checks the invariants that must hold before any layer is built.
func (c *Config) Validate() error {
	if c.ShardCount == 0 {
		return ErrShardCountZero
	}
	if c.DefaultTTL < 0 {
		return ErrInvalidTTL
	}
	if c.Semantic.MinSimilarity < 0 || c.Semantic.MinSimilarity > 1 {
		return ErrInvalidThreshold
	}
	if c.Vector.MaxContexts < 1 {
		return ErrInvalidContexts
	}
	if c.Predictive.HistorySize < 1 {
		return ErrInvalidHistory
	}
	if c.Global.MaxFallbackEntries < 1 {
		return ErrInvalidFallback
	}
	return nil
}

// WithLogger sets a custom logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Config) error {
		if logger != nil {
			c.Logger = logger
		}
		return nil
	}
}

// WithShardCount sets the number of store shards.
func WithShardCount(count uint64) Option {
	return func(c *Config) error {
		if count == 0 {
			return ErrShardCountZero
		}
		c.ShardCount = count
		return nil
	}
}

// WithDefaultTTL sets the default time-to-live for new entries. Zero means
// entries never expire unless a per-call ttl is given.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(c *Config) error {
		if ttl < 0 {
			return ErrInvalidTTL
		}
		c.DefaultTTL = ttl
		return nil
	}
}

// WithSerialization selects the payload codec by name.
func WithSerialization(codecType string) Option {
	return func(c *Config) error {
		switch codecType {
		case serialization.JSONType:
			c.Serialization = SerializationConfig{Type: codecType, Codec: serialization.NewJSON()}
		case serialization.GobType:
			c.Serialization = SerializationConfig{Type: codecType, Codec: serialization.NewGob()}
		default:
			return fmt.Errorf("unsupported serialization type: %s", codecType)
		}
		return nil
	}
}

// WithMinSimilarity sets the default similarity threshold for searches.
func WithMinSimilarity(threshold float64) Option {
	return func(c *Config) error {
		if threshold < 0 || threshold > 1 {
			return ErrInvalidThreshold
		}
		c.Semantic.MinSimilarity = threshold
		return nil
	}
}

// WithMaxContexts bounds the vector layer's context window.
func WithMaxContexts(n int) Option {
	return func(c *Config) error {
		if n < 1 {
			return ErrInvalidContexts
		}
		c.Vector.MaxContexts = n
		return nil
	}
}

// WithHistorySize bounds the predictive layer's access history.
func WithHistorySize(n int) Option {
	return func(c *Config) error {
		if n < 1 {
			return ErrInvalidHistory
		}
		c.Predictive.HistorySize = n
		return nil
	}
}

// WithFallback configures the global layer's local fallback cache.
func WithFallback(enabled bool, maxEntries int) Option {
	return func(c *Config) error {
		if maxEntries < 1 {
			return ErrInvalidFallback
		}
		c.Global.FallbackEnabled = enabled
		c.Global.MaxFallbackEntries = maxEntries
		return nil
	}
}

// WithQueryTimeout bounds each knowledge-service call.
func WithQueryTimeout(timeout time.Duration) Option {
	return func(c *Config) error {
		if timeout > 0 {
			c.Global.QueryTimeout = timeout
		}
		return nil
	}
}

// WithEmbedTimeout bounds each embedding-provider call.
func WithEmbedTimeout(timeout time.Duration) Option {
	return func(c *Config) error {
		if timeout > 0 {
			c.EmbedTimeout = timeout
		}
		return nil
	}
}

// WithPersistence enables the durable backing store under the given key
// prefix.
func WithPersistence(keyPrefix string) Option {
	return func(c *Config) error {
		c.Persistence.Enabled = true
		if keyPrefix != "" {
			c.Persistence.KeyPrefix = keyPrefix
		}
		return nil
	}
}
