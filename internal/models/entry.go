package models

import (
	"time"

	"go.uber.org/atomic"
)

// Layer identifies which cache layer created an entry.
type Layer string

const (
	LayerPredictive Layer = "predictive"
	LayerSemantic   Layer = "semantic"
	LayerVector     Layer = "vector"
	LayerGlobal     Layer = "global"
)

// Entry represents a cache entry. The payload is opaque serialized bytes;
// the embedding is present only when the owning layer generated one.
type Entry struct {
	Key          string
	Data         []byte
	Layer        Layer
	Embedding    []float64
	Metadata     map[string]any
	CreatedAt    time.Time
	ExpiresAt    time.Time
	AccessCount  *atomic.Int64
	LastAccessed *atomic.Time
}

// NewEntry creates a new Entry. A non-positive ttl means the entry never
// expires (zero ExpiresAt).
func NewEntry(key string, data []byte, layer Layer, ttl time.Duration) *Entry {
	now := time.Now()
	e := &Entry{
		Key:          key,
		Data:         data,
		Layer:        layer,
		CreatedAt:    now,
		AccessCount:  atomic.NewInt64(0),
		LastAccessed: atomic.NewTime(now),
	}
	if ttl > 0 {
		e.ExpiresAt = now.Add(ttl)
	}
	return e
}

// IsExpired checks if the entry has expired. Pure with respect to the
// entry: it never mutates access metadata.
func (e *Entry) IsExpired() bool {
	return !e.ExpiresAt.IsZero() && time.Now().After(e.ExpiresAt)
}

// Touch increments the access count and updates the last access time.
// Called only on successful Get hits.
func (e *Entry) Touch() {
	e.AccessCount.Inc()
	e.LastAccessed.Store(time.Now())
}
