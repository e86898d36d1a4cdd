package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMemoryStore(t *testing.T) VectorStore {
	t.Helper()
	store, err := NewVectorStore(StoreConfig{Type: "memory"})
	require.NoError(t, err)
	return store
}

func TestMemoryStoreQueryOnMissingCollectionReturnsNilNotError(t *testing.T) {
	store := newTestMemoryStore(t)
	matches, err := store.Query(context.Background(), "nonexistent", []float32{1, 2, 3}, 5, nil)
	assert.NoError(t, err)
	assert.Nil(t, matches)
}

func TestMemoryStoreAddIsNoOpForEmptyItems(t *testing.T) {
	store := newTestMemoryStore(t)
	require.NoError(t, store.EnsureCollection(context.Background(), "documents"))
	require.NoError(t, store.Add(context.Background(), "documents", nil))
	count, err := store.Count(context.Background(), "documents")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestMemoryStoreAddQueryOrdersByAscendingDistance(t *testing.T) {
	ctx := context.Background()
	store := newTestMemoryStore(t)
	require.NoError(t, store.EnsureCollection(ctx, "documents"))
	require.NoError(t, store.Add(ctx, "documents", []VectorEntry{
		{ID: "far", Vector: []float32{10, 10, 10}, Document: "far"},
		{ID: "near", Vector: []float32{1, 1, 1}, Document: "near"},
	}))

	matches, err := store.Query(ctx, "documents", []float32{1, 1, 1}, 5, nil)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "near", matches[0].ID)
	assert.Equal(t, "far", matches[1].ID)
}

func TestMemoryStoreQueryRespectsWhereFilter(t *testing.T) {
	ctx := context.Background()
	store := newTestMemoryStore(t)
	require.NoError(t, store.EnsureCollection(ctx, "documents"))
	require.NoError(t, store.Add(ctx, "documents", []VectorEntry{
		{ID: "a", Vector: []float32{1, 1}, Metadata: map[string]any{"document_id": "doc1"}},
		{ID: "b", Vector: []float32{1, 1}, Metadata: map[string]any{"document_id": "doc2"}},
	}))

	matches, err := store.Query(ctx, "documents", []float32{1, 1}, 5, map[string]any{"document_id": "doc2"})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "b", matches[0].ID)
}

func TestMemoryStoreDeleteOfAbsentIDsIsSilent(t *testing.T) {
	ctx := context.Background()
	store := newTestMemoryStore(t)
	require.NoError(t, store.EnsureCollection(ctx, "documents"))
	assert.NoError(t, store.Delete(ctx, "documents", []string{"does-not-exist"}))
}

func TestSimilarityIsMonotonicInverse(t *testing.T) {
	assert.Equal(t, 1.0, Similarity(0))
	assert.Less(t, Similarity(1), Similarity(0.5))
	assert.Greater(t, Similarity(100), 0.0)
}
