package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBM25IndexSearchRanksByTermFrequencyAndRarity(t *testing.T) {
	idx := NewBM25Index()
	ctx := context.Background()
	require.NoError(t, idx.Add(ctx, 1, "widgets are great widgets for sale", nil))
	require.NoError(t, idx.Add(ctx, 2, "completely unrelated filler about gardening", nil))

	results, err := idx.Search(ctx, "widgets", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(1), results[0].ID)
}

func TestBM25IndexRemoveDropsDocumentFromFutureSearches(t *testing.T) {
	idx := NewBM25Index()
	ctx := context.Background()
	require.NoError(t, idx.Add(ctx, 1, "widgets for sale", nil))
	require.NoError(t, idx.Remove(ctx, 1))

	results, err := idx.Search(ctx, "widgets", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestBM25IndexSearchOnEmptyIndexReturnsNoResults(t *testing.T) {
	idx := NewBM25Index()
	results, err := idx.Search(context.Background(), "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestBM25DocIDIsStableForIdenticalInput(t *testing.T) {
	assert.Equal(t, bm25DocID("doc1:chunk0"), bm25DocID("doc1:chunk0"))
	assert.NotEqual(t, bm25DocID("doc1:chunk0"), bm25DocID("doc1:chunk1"))
}

func TestSparseSignalIsZeroForNonPositiveScoreAndSaturates(t *testing.T) {
	assert.Equal(t, 0.0, sparseSignal(0))
	assert.Equal(t, 0.0, sparseSignal(-1))
	assert.Greater(t, sparseSignal(100), sparseSignal(1))
	assert.LessOrEqual(t, sparseSignal(1_000_000), 1.0)
}
