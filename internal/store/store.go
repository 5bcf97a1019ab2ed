// Package store provides the sharded in-memory entry store shared by all
// cache layers. Distinct keys map to distinct shards, so reads and writes
// on different keys proceed without blocking each other.
package store

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"go.uber.org/atomic"

	"goflare.io/strata/internal/models"
	"goflare.io/strata/internal/utils"
)

type shard struct {
	mu      sync.RWMutex
	entries map[string]*models.Entry
}

// Store is a sharded map of hashed key to entry with a bloom filter for
// cheap negative lookups. Structural mutation of a shard happens under its
// write lock; the entry count is kept in an atomic so Len never scans.
type Store struct {
	shards []shard

	filterMu sync.RWMutex
	filter   *bloom.BloomFilter
	// rebuilding is non-nil while RebuildFilter scans; Put double-writes
	// into it so a key inserted mid-rebuild survives the filter swap.
	rebuilding    *bloom.BloomFilter
	expectedItems uint
	fpRate        float64

	count atomic.Int64
}

// New creates a Store with the given shard count and bloom filter sizing.
func New(shardCount uint64, expectedItems uint, fpRate float64) *Store {
	if shardCount == 0 {
		shardCount = 1
	}
	s := &Store{
		shards:        make([]shard, shardCount),
		filter:        bloom.NewWithEstimates(expectedItems, fpRate),
		expectedItems: expectedItems,
		fpRate:        fpRate,
	}
	for i := range s.shards {
		s.shards[i].entries = make(map[string]*models.Entry)
	}
	return s
}

func (s *Store) shardFor(key string) *shard {
	return &s.shards[utils.ShardIndex(uint64(len(s.shards)), key)]
}

// Put inserts or overwrites the entry at its hashed key.
func (s *Store) Put(entry *models.Entry) {
	sh := s.shardFor(entry.Key)
	sh.mu.Lock()
	_, existed := sh.entries[entry.Key]
	sh.entries[entry.Key] = entry
	sh.mu.Unlock()

	if !existed {
		s.count.Inc()
	}

	s.filterMu.Lock()
	s.filter.AddString(entry.Key)
	if s.rebuilding != nil {
		s.rebuilding.AddString(entry.Key)
	}
	s.filterMu.Unlock()
}

// Get returns the entry at the hashed key, expired or not. Expiry policy
// belongs to the caller; the store only answers presence.
func (s *Store) Get(key string) (*models.Entry, bool) {
	if !s.MayContain(key) {
		return nil, false
	}

	sh := s.shardFor(key)
	sh.mu.RLock()
	entry, ok := sh.entries[key]
	sh.mu.RUnlock()
	return entry, ok
}

// Delete removes the entry at the hashed key, reporting whether anything
// was removed. The bloom filter keeps the stale bit until the next
// rebuild; a false positive only costs one extra map lookup.
func (s *Store) Delete(key string) bool {
	sh := s.shardFor(key)
	sh.mu.Lock()
	_, ok := sh.entries[key]
	if ok {
		delete(sh.entries, key)
	}
	sh.mu.Unlock()

	if ok {
		s.count.Dec()
	}
	return ok
}

// Clear removes every entry and resets the bloom filter.
func (s *Store) Clear() {
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		sh.entries = make(map[string]*models.Entry)
		sh.mu.Unlock()
	}
	s.count.Store(0)

	s.filterMu.Lock()
	s.filter = bloom.NewWithEstimates(s.expectedItems, s.fpRate)
	s.filterMu.Unlock()
}

// Range calls f for every entry until f returns false. Each shard is read
// locked only while its own entries are visited.
func (s *Store) Range(f func(entry *models.Entry) bool) {
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		for _, entry := range sh.entries {
			if !f(entry) {
				sh.mu.RUnlock()
				return
			}
		}
		sh.mu.RUnlock()
	}
}

// Len returns the current entry count.
func (s *Store) Len() int {
	return int(s.count.Load())
}

// MayContain reports whether the key could be present. False means
// definitely absent.
func (s *Store) MayContain(key string) bool {
	s.filterMu.RLock()
	defer s.filterMu.RUnlock()
	return s.filter.TestString(key)
}

// RebuildFilter reconstructs the bloom filter from the live keys. Called
// after bulk eviction so deleted keys stop costing lookups. A Put landing
// after the scan pass but before the swap double-writes into the fresh
// filter, so a live key never loses its bit to the rebuild.
func (s *Store) RebuildFilter() {
	fresh := s.beginRebuild()
	s.scanInto(fresh)
	s.commitRebuild(fresh)
}

func (s *Store) beginRebuild() *bloom.BloomFilter {
	fresh := bloom.NewWithEstimates(s.expectedItems, s.fpRate)
	s.filterMu.Lock()
	s.rebuilding = fresh
	s.filterMu.Unlock()
	return fresh
}

func (s *Store) scanInto(fresh *bloom.BloomFilter) {
	s.Range(func(entry *models.Entry) bool {
		s.filterMu.Lock()
		fresh.AddString(entry.Key)
		s.filterMu.Unlock()
		return true
	})
}

func (s *Store) commitRebuild(fresh *bloom.BloomFilter) {
	s.filterMu.Lock()
	s.filter = fresh
	s.rebuilding = nil
	s.filterMu.Unlock()
}
