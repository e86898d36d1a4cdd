package core

import (
	"context"
	"sync"

	"github.com/coder/hnsw"
)

// hnswCollection holds one collection's ANN graph plus the side tables the
// graph itself does not carry: document text, metadata, and the
// string-id <-> graph-key mapping (coder/hnsw keys are generic but the core
// only ever needs string ids).
type hnswCollection struct {
	graph   *hnsw.Graph[string]
	entries map[string]VectorEntry
}

// hnswStore is an ANN-accelerated in-memory VectorStore, grounded on
// Aman-CERP-amanmcp's HNSWStore. An enrichment beyond the spec's minimum
// linear-scan requirement (§4.2 only requires "nearest-neighbor query",
// not a specific index), useful for larger in-memory collections than
// memoryStore's brute-force scan handles well.
type hnswStore struct {
	mu          sync.RWMutex
	collections map[string]*hnswCollection
	metric      string
}

func newHNSWStore(cfg StoreConfig) (VectorStore, error) {
	metric := cfg.Metric
	if metric == "" {
		metric = "l2"
	}
	return &hnswStore{collections: make(map[string]*hnswCollection), metric: metric}, nil
}

func init() {
	registerStore("hnsw", newHNSWStore)
}

func (s *hnswStore) newGraph() *hnsw.Graph[string] {
	g := hnsw.NewGraph[string]()
	if s.metric == "ip" {
		g.Distance = hnsw.CosineDistance
	} else {
		g.Distance = hnsw.EuclideanDistance
	}
	g.M = 16
	g.EfSearch = 20
	return g
}

func (s *hnswStore) EnsureCollection(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[name]; !ok {
		s.collections[name] = &hnswCollection{graph: s.newGraph(), entries: make(map[string]VectorEntry)}
	}
	return nil
}

func (s *hnswStore) Add(ctx context.Context, collection string, items []VectorEntry) error {
	if len(items) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	coll, ok := s.collections[collection]
	if !ok {
		coll = &hnswCollection{graph: s.newGraph(), entries: make(map[string]VectorEntry)}
		s.collections[collection] = coll
	}
	for _, item := range items {
		coll.graph.Add(hnsw.MakeNode(item.ID, item.Vector))
		coll.entries[item.ID] = item
	}
	return nil
}

func (s *hnswStore) Query(ctx context.Context, collection string, vector []float32, k int, where map[string]any) ([]VectorMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	coll, ok := s.collections[collection]
	if !ok || coll.graph.Len() == 0 {
		return nil, nil
	}
	nodes := coll.graph.Search(vector, k)
	matches := make([]VectorMatch, 0, len(nodes))
	for _, node := range nodes {
		entry, ok := coll.entries[node.Key]
		if !ok {
			continue
		}
		if where != nil && !matchesWhere(entry.Metadata, where) {
			continue
		}
		dist := coll.graph.Distance(vector, node.Value)
		matches = append(matches, VectorMatch{ID: entry.ID, Document: entry.Document, Metadata: entry.Metadata, Distance: float64(dist)})
	}
	return matches, nil
}

func (s *hnswStore) Get(ctx context.Context, collection string, where map[string]any) ([]VectorMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	coll, ok := s.collections[collection]
	if !ok {
		return nil, nil
	}
	var matches []VectorMatch
	for _, e := range coll.entries {
		if where != nil && !matchesWhere(e.Metadata, where) {
			continue
		}
		matches = append(matches, VectorMatch{ID: e.ID, Document: e.Document, Metadata: e.Metadata})
	}
	return matches, nil
}

func (s *hnswStore) Delete(ctx context.Context, collection string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	coll, ok := s.collections[collection]
	if !ok {
		return nil
	}
	for _, id := range ids {
		// Lazy deletion: drop the entry so it no longer surfaces in
		// results, without touching the graph itself (coder/hnsw has no
		// safe single-node removal for the last-node case).
		delete(coll.entries, id)
	}
	return nil
}

func (s *hnswStore) Count(ctx context.Context, collection string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	coll, ok := s.collections[collection]
	if !ok {
		return 0, nil
	}
	return len(coll.entries), nil
}

func (s *hnswStore) Close() error { return nil }
