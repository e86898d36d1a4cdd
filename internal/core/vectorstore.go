package core

import (
	"context"
	"fmt"
	"math"
)

// VectorStore is the typed named-collection abstraction of spec §4.2.
// Distance returned by Query is Euclidean-like and non-negative; callers
// convert to similarity with Similarity(), never any other transform.
//
// Failure semantics: on the memory, hnsw and chromem backends, Query on a
// missing collection returns (nil, nil) and logs nothing; the milvus and
// postgres backends return the backend's error. Add with a zero-length
// item list is a no-op. Delete of absent ids is silent.
type VectorStore interface {
	// EnsureCollection creates the named collection if it does not already
	// exist. Idempotent.
	EnsureCollection(ctx context.Context, name string) error

	// Add inserts or overwrites (by id) the given entries. Metadata must
	// already have passed SanitizeMetadata.
	Add(ctx context.Context, collection string, items []VectorEntry) error

	// Query returns up to k nearest entries ordered by ascending distance.
	// where, if non-nil, is an equality filter over metadata keys.
	Query(ctx context.Context, collection string, vector []float32, k int, where map[string]any) ([]VectorMatch, error)

	// Get enumerates entries matching where.
	Get(ctx context.Context, collection string, where map[string]any) ([]VectorMatch, error)

	// Delete removes the given ids. Missing ids are not an error.
	Delete(ctx context.Context, collection string, ids []string) error

	// Count returns the number of entries in the collection.
	Count(ctx context.Context, collection string) (int, error)

	// Close releases any resources held by the store.
	Close() error
}

// StoreConfig selects and configures a VectorStore backend.
type StoreConfig struct {
	Type       string // "memory", "hnsw", "milvus", "postgres", "chromem"
	Address    string
	DSN        string // postgres connection string
	Dimension  int
	Metric     string // "l2" or "ip"; default l2
	Parameters map[string]any
}

type storeFactory func(StoreConfig) (VectorStore, error)

var storeRegistry = map[string]storeFactory{}

func registerStore(name string, f storeFactory) {
	storeRegistry[name] = f
}

// NewVectorStore constructs a VectorStore backend by cfg.Type.
func NewVectorStore(cfg StoreConfig) (VectorStore, error) {
	factory, ok := storeRegistry[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("unsupported vector store type: %s", cfg.Type)
	}
	return factory(cfg)
}

func matchesWhere(metadata map[string]any, where map[string]any) bool {
	for k, v := range where {
		if metadata[k] != v {
			return false
		}
	}
	return true
}

func euclideanDistance(a, b []float32) float64 {
	var sum float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
