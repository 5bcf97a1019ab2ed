package base

import "time"

// SetOptions carries the optional parts of a Set call.
type SetOptions struct {
	TTL       time.Duration
	Metadata  map[string]any
	Embedding []float64
}

// SetOption mutates the options for one Set call.
type SetOption func(*SetOptions)

// WithTTL overrides the default time-to-live. A non-positive ttl means
// the entry never expires.
func WithTTL(ttl time.Duration) SetOption {
	return func(o *SetOptions) {
		o.TTL = ttl
	}
}

// WithMetadata attaches caller-supplied metadata, opaque to the cache.
func WithMetadata(metadata map[string]any) SetOption {
	return func(o *SetOptions) {
		o.Metadata = metadata
	}
}

// WithEmbedding attaches a precomputed embedding to the entry.
func WithEmbedding(embedding []float64) SetOption {
	return func(o *SetOptions) {
		o.Embedding = embedding
	}
}

func buildSetOptions(defaultTTL time.Duration, opts []SetOption) SetOptions {
	options := SetOptions{TTL: defaultTTL}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}
