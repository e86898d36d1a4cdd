package core

import (
	"context"
	"sort"
	"sync"
)

// memoryStore is a brute-force linear-scan VectorStore, grounded on the
// teacher's MemoryDB (rag/memory.go) but rebuilt against the new
// ensure_collection/add/query/get/delete/count interface. Collection handle
// creation is guarded by the same mutex that protects inserts, acting as
// the one-shot mutual-exclusion construct spec §5 calls for.
type memoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]VectorEntry
	metric      string
}

func newMemoryStore(cfg StoreConfig) (VectorStore, error) {
	metric := cfg.Metric
	if metric == "" {
		metric = "l2"
	}
	return &memoryStore{
		collections: make(map[string]map[string]VectorEntry),
		metric:      metric,
	}, nil
}

func init() {
	registerStore("memory", newMemoryStore)
}

func (m *memoryStore) EnsureCollection(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.collections[name]; !ok {
		m.collections[name] = make(map[string]VectorEntry)
	}
	return nil
}

func (m *memoryStore) Add(ctx context.Context, collection string, items []VectorEntry) error {
	if len(items) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	entries, ok := m.collections[collection]
	if !ok {
		entries = make(map[string]VectorEntry)
		m.collections[collection] = entries
	}
	for _, item := range items {
		entries[item.ID] = item
	}
	return nil
}

func (m *memoryStore) Query(ctx context.Context, collection string, vector []float32, k int, where map[string]any) ([]VectorMatch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries, ok := m.collections[collection]
	if !ok {
		return nil, nil
	}
	matches := make([]VectorMatch, 0, len(entries))
	for _, e := range entries {
		if where != nil && !matchesWhere(e.Metadata, where) {
			continue
		}
		dist := m.distance(vector, e.Vector)
		matches = append(matches, VectorMatch{ID: e.ID, Document: e.Document, Metadata: e.Metadata, Distance: dist})
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Distance < matches[j].Distance })
	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func (m *memoryStore) Get(ctx context.Context, collection string, where map[string]any) ([]VectorMatch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries, ok := m.collections[collection]
	if !ok {
		return nil, nil
	}
	var matches []VectorMatch
	for _, e := range entries {
		if where != nil && !matchesWhere(e.Metadata, where) {
			continue
		}
		matches = append(matches, VectorMatch{ID: e.ID, Document: e.Document, Metadata: e.Metadata})
	}
	return matches, nil
}

func (m *memoryStore) Delete(ctx context.Context, collection string, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries, ok := m.collections[collection]
	if !ok {
		return nil
	}
	for _, id := range ids {
		delete(entries, id)
	}
	return nil
}

func (m *memoryStore) Count(ctx context.Context, collection string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.collections[collection]), nil
}

func (m *memoryStore) Close() error { return nil }

func (m *memoryStore) distance(a, b []float32) float64 {
	if m.metric == "ip" {
		var dot float64
		n := len(a)
		if len(b) < n {
			n = len(b)
		}
		for i := 0; i < n; i++ {
			dot += float64(a[i]) * float64(b[i])
		}
		// Inner product is a similarity, not a distance; invert to a
		// non-negative distance so Similarity() still behaves monotonically.
		if dot < 0 {
			dot = 0
		}
		return 1 / (dot + 1e-9)
	}
	return euclideanDistance(a, b)
}
