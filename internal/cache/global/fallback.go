package global

import "sync"

// fallbackStore is a small bounded FIFO cache of previously successful
// answers. It is a resilience cache, not a primary store: eviction is O(1)
// oldest-first and the bound is firm.
type fallbackStore struct {
	mu         sync.Mutex
	maxEntries int
	entries    map[string]any
	order      []string
}

func newFallbackStore(maxEntries int) *fallbackStore {
	return &fallbackStore{
		maxEntries: maxEntries,
		entries:    make(map[string]any),
		order:      make([]string, 0, maxEntries),
	}
}

// Put stores data under the hashed query key, evicting the oldest entry
// when the bound is exceeded. Updating an existing key keeps its original
// queue position.
func (f *fallbackStore) Put(key string, data any) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.entries[key]; exists {
		f.entries[key] = data
		return
	}

	f.entries[key] = data
	f.order = append(f.order, key)

	if len(f.order) > f.maxEntries {
		oldest := f.order[0]
		f.order = f.order[1:]
		delete(f.entries, oldest)
	}
}

// Get returns the stored data for the hashed query key.
func (f *fallbackStore) Get(key string) (any, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.entries[key]
	return data, ok
}

// Len returns the current entry count.
func (f *fallbackStore) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}
