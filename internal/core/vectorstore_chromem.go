package core

import (
	"context"
	"fmt"
	"sync"

	chromem "github.com/philippgille/chromem-go"
)

// noEmbeddingFunc is passed to chromem-go collections because the core
// always supplies precomputed vectors (via C1's Embedder) up front; chromem
// only invokes the embedding func for documents added without one.
func noEmbeddingFunc(ctx context.Context, text string) ([]float32, error) {
	return nil, fmt.Errorf("chromem embedding func invoked without a precomputed vector for %q", text)
}

// chromemStore is an embedded, pure-Go VectorStore requiring no external
// service, grounded on the teacher's ChromemDB (rag/chromem.go) but
// generalized from its OpenAI-specific, always-remote-embedding
// configuration to accept the core's own precomputed vectors directly —
// the teacher's version hard-required OPENAI_API_KEY even when the caller
// already had embeddings in hand.
type chromemStore struct {
	db          *chromem.DB
	mu          sync.RWMutex
	collections map[string]*chromem.Collection
}

func newChromemStore(cfg StoreConfig) (VectorStore, error) {
	var db *chromem.DB
	var err error
	if cfg.Address != "" {
		db, err = chromem.NewPersistentDB(cfg.Address, false)
		if err != nil {
			return nil, fmt.Errorf("create persistent chromem db: %w", err)
		}
	} else {
		db = chromem.NewDB()
	}
	return &chromemStore{db: db, collections: make(map[string]*chromem.Collection)}, nil
}

func init() {
	registerStore("chromem", newChromemStore)
}

func (c *chromemStore) EnsureCollection(ctx context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.collections[name]; ok {
		return nil
	}
	col := c.db.GetCollection(name, noEmbeddingFunc)
	if col == nil {
		created, err := c.db.CreateCollection(name, map[string]string{}, noEmbeddingFunc)
		if err != nil {
			return fmt.Errorf("create collection %s: %w", name, err)
		}
		col = created
	}
	c.collections[name] = col
	return nil
}

func (c *chromemStore) collection(name string) (*chromem.Collection, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	col, ok := c.collections[name]
	return col, ok
}

func (c *chromemStore) Add(ctx context.Context, collection string, items []VectorEntry) error {
	if len(items) == 0 {
		return nil
	}
	col, ok := c.collection(collection)
	if !ok {
		return nil
	}
	docs := make([]chromem.Document, len(items))
	for i, item := range items {
		docs[i] = chromem.Document{
			ID:        item.ID,
			Content:   item.Document,
			Embedding: item.Vector,
			Metadata:  stringMetadata(item.Metadata),
		}
	}
	if err := col.AddDocuments(ctx, docs, 1); err != nil {
		return wrapErr(ErrVectorStoreError, "VectorStoreError", err)
	}
	return nil
}

func (c *chromemStore) Query(ctx context.Context, collection string, vector []float32, k int, where map[string]any) ([]VectorMatch, error) {
	col, ok := c.collection(collection)
	if !ok {
		return nil, nil
	}
	n := k
	if count := col.Count(); count < n {
		n = count
	}
	if n == 0 {
		return nil, nil
	}
	results, err := col.QueryEmbedding(ctx, vector, n, stringWhere(where), nil)
	if err != nil {
		return nil, wrapErr(ErrVectorStoreError, "VectorStoreError", err)
	}
	matches := make([]VectorMatch, len(results))
	for i, r := range results {
		matches[i] = VectorMatch{
			ID:       r.ID,
			Document: r.Content,
			Metadata: anyMetadata(r.Metadata),
			Distance: 1/float64(r.Similarity) - 1,
		}
	}
	return matches, nil
}

func (c *chromemStore) Get(ctx context.Context, collection string, where map[string]any) ([]VectorMatch, error) {
	col, ok := c.collection(collection)
	if !ok {
		return nil, nil
	}
	var matches []VectorMatch
	for _, id := range col.ListIDs() {
		doc, err := col.GetByID(ctx, id)
		if err != nil {
			continue
		}
		metadata := anyMetadata(doc.Metadata)
		if where != nil && !matchesWhere(metadata, where) {
			continue
		}
		matches = append(matches, VectorMatch{ID: doc.ID, Document: doc.Content, Metadata: metadata})
	}
	return matches, nil
}

func (c *chromemStore) Delete(ctx context.Context, collection string, ids []string) error {
	col, ok := c.collection(collection)
	if !ok || len(ids) == 0 {
		return nil
	}
	return col.Delete(ctx, nil, nil, ids...)
}

func (c *chromemStore) Count(ctx context.Context, collection string) (int, error) {
	col, ok := c.collection(collection)
	if !ok {
		return 0, nil
	}
	return col.Count(), nil
}

func (c *chromemStore) Close() error { return nil }

func stringMetadata(m map[string]any) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = fmt.Sprintf("%v", v)
	}
	return out
}

func anyMetadata(m map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func stringWhere(where map[string]any) map[string]string {
	if where == nil {
		return nil
	}
	return stringMetadata(where)
}
