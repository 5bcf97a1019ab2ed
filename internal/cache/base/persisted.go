package base

import (
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/atomic"

	"goflare.io/strata/internal/models"
)

// persistedEntry is the durable form of an entry. Access metadata is
// carried along so hot entries stay hot across restarts.
type persistedEntry struct {
	Key          string         `json:"key"`
	Data         []byte         `json:"data"`
	Layer        string         `json:"layer"`
	Embedding    []float64      `json:"embedding,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	ExpiresAt    time.Time      `json:"expires_at,omitempty"`
	AccessCount  int64          `json:"access_count"`
	LastAccessed time.Time      `json:"last_accessed"`
}

func encodePersisted(entry *models.Entry) ([]byte, error) {
	return json.Marshal(persistedEntry{
		Key:          entry.Key,
		Data:         entry.Data,
		Layer:        string(entry.Layer),
		Embedding:    entry.Embedding,
		Metadata:     entry.Metadata,
		CreatedAt:    entry.CreatedAt,
		ExpiresAt:    entry.ExpiresAt,
		AccessCount:  entry.AccessCount.Load(),
		LastAccessed: entry.LastAccessed.Load(),
	})
}

func decodePersisted(key string, data []byte, layer models.Layer) (*models.Entry, error) {
	var p persistedEntry
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to decode persisted entry: %w", err)
	}
	if p.Key == "" {
		p.Key = key
	}
	entry := &models.Entry{
		Key:          p.Key,
		Data:         p.Data,
		Layer:        layer,
		Embedding:    p.Embedding,
		Metadata:     p.Metadata,
		CreatedAt:    p.CreatedAt,
		ExpiresAt:    p.ExpiresAt,
		AccessCount:  atomic.NewInt64(p.AccessCount),
		LastAccessed: atomic.NewTime(p.LastAccessed),
	}
	return entry, nil
}
