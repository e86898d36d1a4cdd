package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

func secondsToDuration(s int) time.Duration {
	return time.Duration(s) * time.Second
}

// RetrieverConfig holds the tunable thresholds of the hybrid retriever
// (C8, spec §4.8). Defaults correspond to Euclidean-derived similarities in
// the 0.04-0.15 band observed with normalized multilingual embeddings.
type RetrieverConfig struct {
	Collections           []string
	DiscoveryK            int
	TargetedK             int
	FallbackK             int
	DiscoveryThreshold    float64
	FallbackThreshold     float64
	MinResultsForContext  int
	CacheCapacity         int
	CacheTTLSeconds       int
	SparseIndexes         map[string]*BM25Index
}

// RetrieverOption configures a HybridRetriever using the functional options
// pattern, matching the teacher's Retriever construction style.
type RetrieverOption func(*RetrieverConfig)

func defaultRetrieverConfig() RetrieverConfig {
	return RetrieverConfig{
		Collections:          []string{CollectionDocuments, CollectionConversations, CollectionProfile},
		DiscoveryK:           2,
		TargetedK:            5,
		FallbackK:            2,
		DiscoveryThreshold:   0.08,
		FallbackThreshold:    0.04,
		MinResultsForContext: 1,
		CacheCapacity:        256,
		CacheTTLSeconds:      300,
	}
}

func WithCollections(names ...string) RetrieverOption {
	return func(c *RetrieverConfig) { c.Collections = names }
}

func WithDiscoveryThreshold(v float64) RetrieverOption {
	return func(c *RetrieverConfig) { c.DiscoveryThreshold = v }
}

func WithFallbackThreshold(v float64) RetrieverOption {
	return func(c *RetrieverConfig) { c.FallbackThreshold = v }
}

func WithMinResultsForContext(v int) RetrieverOption {
	return func(c *RetrieverConfig) { c.MinResultsForContext = v }
}

func WithCache(capacity, ttlSeconds int) RetrieverOption {
	return func(c *RetrieverConfig) { c.CacheCapacity = capacity; c.CacheTTLSeconds = ttlSeconds }
}

// HybridRetriever implements C8's two-phase discovery/targeted/fallback
// search across the store's named collections, per spec §4.8's state
// machine: received -> cache-check -> (cache-hit -> return) |
// (discovery -> targeted -> (empty -> "no context" | non-empty -> assemble
// -> cache -> return)).
type HybridRetriever struct {
	store         VectorStore
	embedder      *EmbeddingService
	cfg           RetrieverConfig
	cache         *QueryCache
	sparseIndexes map[string]*BM25Index
}

// NewHybridRetriever builds a HybridRetriever over store/embedder, applying
// opts on top of defaultRetrieverConfig.
func NewHybridRetriever(store VectorStore, embedder *EmbeddingService, opts ...RetrieverOption) (*HybridRetriever, error) {
	cfg := defaultRetrieverConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	cache, err := NewQueryCache(cfg.CacheCapacity, secondsToDuration(cfg.CacheTTLSeconds))
	if err != nil {
		return nil, fmt.Errorf("building query cache: %w", err)
	}
	return &HybridRetriever{
		store:         store,
		embedder:      embedder,
		cfg:           cfg,
		cache:         cache,
		sparseIndexes: cfg.SparseIndexes,
	}, nil
}

// WithSparseIndexes attaches per-collection BM25 sparse indexes (shared
// with the Ingestor via WithSparseIndex so both see the same postings).
// Discovery blends each collection's dense similarity mean with its BM25
// top score, implementing genuine hybrid (dense + sparse) search rather
// than vector-only retrieval (spec §4.8).
func WithSparseIndexes(indexes map[string]*BM25Index) RetrieverOption {
	return func(c *RetrieverConfig) { c.SparseIndexes = indexes }
}

// discoveryResult is the per-collection outcome of Phase 1.
type discoveryResult struct {
	collection     string
	signalStrength float64
	preview        *VectorMatch
	totalFound     int
	err            error
}

// RetrieveContext implements the top-level "Retrieve context" external
// interface (spec §6): a single human-readable context string, possibly
// the C9 "no context" sentinel.
func (r *HybridRetriever) RetrieveContext(ctx context.Context, query string) (string, error) {
	if cached, ok := r.cache.Get(query); ok {
		return cached, nil
	}

	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return "", err
	}
	vec32 := toFloat32(vector)

	discoveries := r.discover(ctx, query, vec32)

	signalMap := make(map[string]float64, len(discoveries))
	for _, d := range discoveries {
		if d.err == nil {
			signalMap[d.collection] = d.signalStrength
		}
	}

	perCollection := r.targeted(ctx, vec32, discoveries)

	total := 0
	for _, matches := range perCollection {
		total += len(matches)
	}
	if total < r.cfg.MinResultsForContext {
		r.fallback(ctx, vec32, discoveries, perCollection)
		for _, matches := range perCollection {
			total += len(matches)
		}
	}

	assembled := AssembleContext(query, perCollection, signalMap)
	r.cache.Put(query, assembled)
	return assembled, nil
}

// discover runs Phase 1: a shallow (k=DiscoveryK) concurrent query per
// collection. Per-collection errors are isolated, not fatal to the phase.
// Where a BM25 sparse index is attached for the collection, its top score
// is blended 30% into the dense similarity mean (70%), so a collection
// with no close vector match but a strong lexical hit can still clear the
// discovery threshold — and vice versa.
func (r *HybridRetriever) discover(ctx context.Context, query string, vector []float32) []discoveryResult {
	results := make([]discoveryResult, len(r.cfg.Collections))
	var wg sync.WaitGroup
	for i, collection := range r.cfg.Collections {
		wg.Add(1)
		go func(i int, collection string) {
			defer wg.Done()
			matches, err := r.store.Query(ctx, collection, vector, r.cfg.DiscoveryK, nil)
			if err != nil {
				GlobalLogger.Warn("discovery query failed", "collection", collection, "error", err)
				results[i] = discoveryResult{collection: collection, err: err}
				return
			}
			sims := make([]float64, len(matches))
			for j, m := range matches {
				sims[j] = Similarity(m.Distance)
			}
			var denseStrength float64
			if len(sims) > 0 {
				denseStrength = stat.Mean(sims, nil)
			}
			strength := denseStrength
			if idx := r.sparseIndexes[collection]; idx != nil {
				if sparseResults, err := idx.Search(ctx, query, 1); err == nil && len(sparseResults) > 0 {
					strength = 0.7*denseStrength + 0.3*sparseSignal(sparseResults[0].Score)
				}
			}
			var preview *VectorMatch
			if len(matches) > 0 {
				preview = &matches[0]
			}
			results[i] = discoveryResult{
				collection:     collection,
				signalStrength: strength,
				preview:        preview,
				totalFound:     len(matches),
			}
		}(i, collection)
	}
	wg.Wait()
	return results
}

// targeted runs Phase 2's primary set: collections with signal_strength >=
// DiscoveryThreshold get a deep (k=TargetedK) query; a per-collection
// failure substitutes the Phase-1 preview.
func (r *HybridRetriever) targeted(ctx context.Context, vector []float32, discoveries []discoveryResult) map[string][]VectorMatch {
	out := make(map[string][]VectorMatch)
	for _, d := range discoveries {
		if d.err != nil || d.signalStrength < r.cfg.DiscoveryThreshold {
			continue
		}
		matches, err := r.store.Query(ctx, d.collection, vector, r.cfg.TargetedK, nil)
		if err != nil {
			if d.preview != nil {
				out[d.collection] = []VectorMatch{*d.preview}
			}
			continue
		}
		if len(matches) > 0 {
			out[d.collection] = matches
		}
	}
	return out
}

// fallback implements Phase 2's fallback: if targeted yielded too few
// results, add any collection with signal_strength >= FallbackThreshold not
// already included and without a Phase-1 error.
func (r *HybridRetriever) fallback(ctx context.Context, vector []float32, discoveries []discoveryResult, perCollection map[string][]VectorMatch) {
	for _, d := range discoveries {
		if d.err != nil {
			continue
		}
		if _, already := perCollection[d.collection]; already {
			continue
		}
		if d.signalStrength < r.cfg.FallbackThreshold {
			continue
		}
		if d.preview != nil {
			perCollection[d.collection] = []VectorMatch{*d.preview}
			continue
		}
		matches, err := r.store.Query(ctx, d.collection, vector, r.cfg.FallbackK, nil)
		if err == nil && len(matches) > 0 {
			perCollection[d.collection] = matches
		}
	}
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}
