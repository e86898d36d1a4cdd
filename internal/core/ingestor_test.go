package core

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIngestor(t *testing.T) (*Ingestor, VectorStore) {
	t.Helper()
	store, err := NewVectorStore(StoreConfig{Type: "memory"})
	require.NoError(t, err)
	embedSvc := NewEmbeddingService(newFakeEmbedder(8))
	records, err := NewJSONFileRecordStore(t.TempDir())
	require.NoError(t, err)
	return NewIngestor(store, embedSvc, records), store
}

func writeTestFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestIngestorIngestsTextFileAndPersistsRecord(t *testing.T) {
	ing, store := newTestIngestor(t)
	ctx := context.Background()

	path := writeTestFile(t, "notes.txt", "This is a sufficiently long paragraph of plain text content to chunk and embed for the test.")
	record, err := ing.Ingest(ctx, path, "")
	require.NoError(t, err)

	assert.NotEmpty(t, record.DocumentID)
	assert.Equal(t, DocumentStatusProcessed, record.Status)
	assert.True(t, record.Vectorized)
	assert.Greater(t, record.ChunkCount, 0)

	count, err := store.Count(ctx, CollectionDocuments)
	require.NoError(t, err)
	assert.Greater(t, count, 0)

	loaded, ok, err := ing.GetDocument(record.DocumentID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, record.DocumentID, loaded.DocumentID)
}

func TestIngestorUsesSuppliedDocumentID(t *testing.T) {
	ing, _ := newTestIngestor(t)
	path := writeTestFile(t, "a.txt", "some short content here for the chunker to process.")
	record, err := ing.Ingest(context.Background(), path, "my-doc-id")
	require.NoError(t, err)
	assert.Equal(t, "my-doc-id", record.DocumentID)
}

func TestIngestorExtractionFailureYieldsFailedStatusNoPartialIndex(t *testing.T) {
	ing, store := newTestIngestor(t)
	ctx := context.Background()

	missing := filepath.Join(t.TempDir(), "missing.txt")
	record, err := ing.Ingest(ctx, missing, "")
	require.Error(t, err)
	assert.Equal(t, DocumentStatusFailed, record.Status)

	count, cerr := store.Count(ctx, CollectionDocuments)
	require.NoError(t, cerr)
	assert.Equal(t, 0, count)
}

func TestIngestorRejectsUnsupportedFormat(t *testing.T) {
	ing, _ := newTestIngestor(t)
	path := writeTestFile(t, "file.xyz", "whatever")
	_, err := ing.Ingest(context.Background(), path, "")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestIngestorDeleteDocumentRemovesChunksSummaryAndRecord(t *testing.T) {
	ing, store := newTestIngestor(t)
	ctx := context.Background()

	path := writeTestFile(t, "doc.txt", "Content long enough to form at least one chunk for deletion testing purposes.")
	record, err := ing.Ingest(ctx, path, "del-me")
	require.NoError(t, err)
	require.Equal(t, "del-me", record.DocumentID)

	require.NoError(t, ing.DeleteDocument(ctx, "del-me"))

	matches, err := store.Get(ctx, CollectionDocuments, map[string]any{"document_id": "del-me"})
	require.NoError(t, err)
	assert.Empty(t, matches)

	_, ok, err := ing.GetDocument("del-me")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIngestorDeleteOfMissingDocumentIsNotAnError(t *testing.T) {
	ing, _ := newTestIngestor(t)
	assert.NoError(t, ing.DeleteDocument(context.Background(), "never-existed"))
}

func TestIngestorListDocumentsSortedByProcessedAtDescending(t *testing.T) {
	ing, _ := newTestIngestor(t)
	ctx := context.Background()

	p1 := writeTestFile(t, "first.txt", "first document content for listing order test.")
	_, err := ing.Ingest(ctx, p1, "first")
	require.NoError(t, err)

	p2 := writeTestFile(t, "second.txt", "second document content for listing order test.")
	_, err = ing.Ingest(ctx, p2, "second")
	require.NoError(t, err)

	list, err := ing.ListDocuments()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.False(t, list[0].ProcessedAt.Before(list[1].ProcessedAt))
}

func TestIngestorChunkIndexIsContiguousAcrossEmbedBatches(t *testing.T) {
	store, err := NewVectorStore(StoreConfig{Type: "memory"})
	require.NoError(t, err)
	embedSvc := NewEmbeddingService(newFakeEmbedder(8))
	records, err := NewJSONFileRecordStore(t.TempDir())
	require.NoError(t, err)
	// A tiny MaxChunkSize forces many small chunks, and a batch size smaller
	// than the chunk count forces embedAndInsert to run more than one
	// batch, which previously reset chunk_index to 0 at the start of every
	// batch.
	ing := NewIngestor(store, embedSvc, records,
		WithChunkerConfig(TextChunkerConfig{MaxChunkSize: 10, MinChunkSize: 2, OverlapSize: 3}),
		WithEmbedBatchSize(2),
	)
	ctx := context.Background()

	var b strings.Builder
	for i := 0; i < 20; i++ {
		b.WriteString("# Heading\nThis is a reasonably long paragraph describing section content in real detail. ")
		b.WriteString("It keeps going for a while to exceed the max chunk size threshold with ease.\n\n")
	}
	path := writeTestFile(t, "long.txt", b.String())

	record, err := ing.Ingest(ctx, path, "long-doc")
	require.NoError(t, err)
	require.Greater(t, record.ChunkCount, 2, "need enough chunks to span multiple embed batches")

	matches, err := store.Get(ctx, CollectionDocuments, map[string]any{"document_id": "long-doc"})
	require.NoError(t, err)

	seen := make(map[int]bool)
	for _, m := range matches {
		if m.Metadata["chunk_type"] == "document_summary" {
			continue
		}
		idx, ok := m.Metadata["chunk_index"].(int)
		require.True(t, ok, "chunk_index must be present and an int")
		assert.False(t, seen[idx], "chunk_index %d repeated across batches", idx)
		seen[idx] = true
	}
	for i := 0; i < record.ChunkCount; i++ {
		assert.True(t, seen[i], "missing contiguous chunk_index %d", i)
	}
}

func TestIngestorIndexesAndRemovesChunksFromSparseIndex(t *testing.T) {
	store, err := NewVectorStore(StoreConfig{Type: "memory"})
	require.NoError(t, err)
	embedSvc := NewEmbeddingService(newFakeEmbedder(8))
	records, err := NewJSONFileRecordStore(t.TempDir())
	require.NoError(t, err)
	sparse := NewBM25Index()
	ing := NewIngestor(store, embedSvc, records, WithSparseIndex(sparse))
	ctx := context.Background()

	path := writeTestFile(t, "searchable.txt", "The giraffe walked quietly across the savanna at dawn.")
	record, err := ing.Ingest(ctx, path, "sparse-doc")
	require.NoError(t, err)

	results, err := sparse.Search(ctx, "giraffe", 5)
	require.NoError(t, err)
	assert.NotEmpty(t, results, "ingested chunk content should be discoverable via the sparse index")

	require.NoError(t, ing.DeleteDocument(ctx, record.DocumentID))
	results, err = sparse.Search(ctx, "giraffe", 5)
	require.NoError(t, err)
	assert.Empty(t, results, "deleting the document should remove its postings from the sparse index")
}

func TestStampChunkMetadataSetsExpectedFields(t *testing.T) {
	c := Chunk{Content: "some content"}
	stampChunkMetadata(&c, "doc1", 0, time.Now(), ApproxTokenCounter{})
	assert.Equal(t, "doc1", c.Metadata["document_id"])
	assert.Equal(t, string(ChunkTypeParagraph), c.Metadata["chunk_type"])
	assert.Equal(t, len("some content"), c.Metadata["length"])
	assert.Equal(t, "0", c.ChunkID)
}
