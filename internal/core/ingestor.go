package core

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	defaultEmbedBatchSize = 5
	embedBatchPause       = 20 * time.Millisecond
	minChunkContentChars  = 10
)

// RecordStore persists processed DocumentRecords to durable storage,
// keyed by document id.
type RecordStore interface {
	Save(record DocumentRecord) error
	Load(documentID string) (DocumentRecord, bool, error)
	Delete(documentID string) error
	List() ([]DocumentRecord, error)
}

// JSONFileRecordStore is a RecordStore backed by one JSON file per document
// under dir. There is no teacher equivalent of a durable record store with
// a registered factory; internal/rag's Store interface was an unused
// alternate VectorDB abstraction and is repurposed here for its shape
// (Save/Load/Delete) rather than its original content.
type JSONFileRecordStore struct {
	dir string
}

// NewJSONFileRecordStore creates dir if needed and returns a store rooted
// there.
func NewJSONFileRecordStore(dir string) (*JSONFileRecordStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating record store directory: %w", err)
	}
	return &JSONFileRecordStore{dir: dir}, nil
}

func (s *JSONFileRecordStore) path(documentID string) string {
	return filepath.Join(s.dir, documentID+".json")
}

func (s *JSONFileRecordStore) Save(record DocumentRecord) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path(record.DocumentID), data, 0o644)
}

func (s *JSONFileRecordStore) Load(documentID string) (DocumentRecord, bool, error) {
	data, err := os.ReadFile(s.path(documentID))
	if os.IsNotExist(err) {
		return DocumentRecord{}, false, nil
	}
	if err != nil {
		return DocumentRecord{}, false, err
	}
	var record DocumentRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return DocumentRecord{}, false, err
	}
	return record, true, nil
}

func (s *JSONFileRecordStore) Delete(documentID string) error {
	err := os.Remove(s.path(documentID))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (s *JSONFileRecordStore) List() ([]DocumentRecord, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	records := make([]DocumentRecord, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, e.Name()))
		if err != nil {
			continue
		}
		var record DocumentRecord
		if err := json.Unmarshal(data, &record); err != nil {
			continue
		}
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].ProcessedAt.After(records[j].ProcessedAt)
	})
	return records, nil
}

// Ingestor implements the document ingestor (C5, spec §4.5): extraction,
// chunking, metadata stamping, batch embedding, vector insertion, and
// durable persistence of processed records.
type Ingestor struct {
	store       VectorStore
	embedder    *EmbeddingService
	records     RecordStore
	chunkerCfg  TextChunkerConfig
	tokenCount  TokenCounter
	maxFileSize int64
	batchSize   int
	sparse      *BM25Index
}

// IngestorOption configures an Ingestor.
type IngestorOption func(*Ingestor)

func WithChunkerConfig(cfg TextChunkerConfig) IngestorOption {
	return func(i *Ingestor) { i.chunkerCfg = cfg }
}

func WithTokenCounter(tc TokenCounter) IngestorOption {
	return func(i *Ingestor) { i.tokenCount = tc }
}

func WithMaxFileSize(n int64) IngestorOption {
	return func(i *Ingestor) { i.maxFileSize = n }
}

func WithEmbedBatchSize(n int) IngestorOption {
	return func(i *Ingestor) { i.batchSize = n }
}

// WithSparseIndex attaches a BM25Index that every ingested chunk's content
// is indexed into alongside its dense-vector insertion, feeding the hybrid
// retriever's (C8) lexical signal. Shared with a HybridRetriever via
// WithSparseIndexes so both sides of ingestion and retrieval see the same
// postings.
func WithSparseIndex(idx *BM25Index) IngestorOption {
	return func(i *Ingestor) { i.sparse = idx }
}

// NewIngestor builds an Ingestor over store/embedder/records.
func NewIngestor(store VectorStore, embedder *EmbeddingService, records RecordStore, opts ...IngestorOption) *Ingestor {
	ing := &Ingestor{
		store:       store,
		embedder:    embedder,
		records:     records,
		chunkerCfg:  DefaultTextChunkerConfig(),
		tokenCount:  ApproxTokenCounter{},
		maxFileSize: defaultMaxFileSize,
		batchSize:   defaultEmbedBatchSize,
	}
	for _, opt := range opts {
		opt(ing)
	}
	return ing
}

// Ingest implements spec §4.5's 8-step pipeline for one file.
func (ing *Ingestor) Ingest(ctx context.Context, path string, documentID string) (DocumentRecord, error) {
	extracted, err := ExtractDocument(ctx, path, ing.maxFileSize)
	if err != nil {
		failed := DocumentRecord{
			DocumentID:  documentIDOrGenerated(documentID, path, nil),
			FileName:    filepath.Base(path),
			FileType:    strings.TrimPrefix(filepath.Ext(path), "."),
			ProcessedAt: time.Now(),
			Status:      DocumentStatusFailed,
		}
		_ = ing.records.Save(failed)
		return failed, err
	}

	content, err := os.ReadFile(path)
	if err != nil {
		content = nil
	}
	if documentID == "" {
		documentID = GenerateDocumentID(filepath.Base(path), content)
	}

	chunks := extracted.Chunks
	if len(chunks) == 0 {
		chunks = ChunkText(extracted.Content, ing.chunkerCfg, ing.tokenCount)
	}

	fileType := strings.TrimPrefix(filepath.Ext(path), ".")
	now := time.Now()
	for i := range chunks {
		stampChunkMetadata(&chunks[i], documentID, i, now, ing.tokenCount)
	}

	if err := ing.store.EnsureCollection(ctx, CollectionDocuments); err != nil {
		return DocumentRecord{}, fmt.Errorf("ensuring documents collection: %w", err)
	}

	vectorizedCount, embedErr := ing.embedAndInsert(ctx, documentID, chunks)

	if err := ing.insertSummary(ctx, documentID, filepath.Base(path), fileType, extracted.Metadata); err != nil {
		GlobalLogger.Warn("document summary insert failed", "document_id", documentID, "error", err)
	}

	status := DocumentStatusProcessed
	vectorized := vectorizedCount > 0
	if embedErr != nil {
		GlobalLogger.Warn("partial embedding failure during ingest", "document_id", documentID, "error", embedErr)
	}

	totalTokens := 0
	for _, c := range chunks {
		if tokens, ok := c.Metadata["tokens"].(int); ok {
			totalTokens += tokens
		}
	}

	record := DocumentRecord{
		DocumentID:  documentID,
		FileName:    filepath.Base(path),
		FileType:    fileType,
		ProcessedAt: now,
		Chunks:      chunks,
		ChunkCount:  len(chunks),
		TotalTokens: totalTokens,
		Vectorized:  vectorized,
		Status:      status,
	}
	if err := ing.records.Save(record); err != nil {
		return record, fmt.Errorf("persisting document record: %w", err)
	}
	return record, nil
}

func documentIDOrGenerated(documentID, path string, content []byte) string {
	if documentID != "" {
		return documentID
	}
	return GenerateDocumentID(filepath.Base(path), content)
}

// stampChunkMetadata applies spec §4.5 step 4's metadata stamping, then
// sanitizes (§4.10).
func stampChunkMetadata(c *Chunk, documentID string, index int, now time.Time, counter TokenCounter) {
	if c.Metadata == nil {
		c.Metadata = map[string]any{}
	}
	c.Metadata["document_id"] = documentID
	c.Metadata["processed_at"] = now.Format(time.RFC3339)
	if _, ok := c.Metadata["chunk_type"]; !ok {
		c.Metadata["chunk_type"] = string(ChunkTypeParagraph)
	}
	c.Metadata["chunk_index"] = index
	c.Metadata["tokens"] = counter.Count(c.Content)
	c.Metadata["length"] = len(c.Content)
	if c.ChunkID == "" {
		c.ChunkID = fmt.Sprintf("%d", index)
	}
	c.Metadata = SanitizeMetadata(c.Metadata)
}

// embedAndInsert batch-embeds chunk contents (default 5/batch, paused
// between batches) and inserts each into the documents collection, skipping
// chunks under minChunkContentChars. Returns the count of chunks
// successfully vectorized and the last error encountered, if any (partial
// failure is logged, not retried, per spec §4.5's failure policy).
func (ing *Ingestor) embedAndInsert(ctx context.Context, documentID string, chunks []Chunk) (int, error) {
	var lastErr error
	vectorized := 0

	for start := 0; start < len(chunks); start += ing.batchSize {
		end := start + ing.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		var eligible []Chunk
		for _, c := range batch {
			if len(strings.TrimSpace(c.Content)) >= minChunkContentChars {
				eligible = append(eligible, c)
			}
		}
		if len(eligible) == 0 {
			continue
		}

		embedded, err := ing.embedder.EmbedChunks(ctx, eligible)
		if err != nil {
			lastErr = err
			continue
		}

		items := make([]VectorEntry, 0, len(embedded))
		for i, ec := range embedded {
			chunkID := eligible[i].ChunkID
			items = append(items, VectorEntry{
				ID:       DocumentChunkID(documentID, chunkID),
				Vector:   toFloat32(ec.Embeddings["default"]),
				Document: ec.Text,
				Metadata: ec.Metadata,
			})
		}
		if err := ing.store.Add(ctx, CollectionDocuments, items); err != nil {
			lastErr = err
			continue
		}
		vectorized += len(items)

		if ing.sparse != nil {
			for _, item := range items {
				_ = ing.sparse.Add(ctx, bm25DocID(item.ID), item.Document, nil)
			}
		}

		if end < len(chunks) {
			time.Sleep(embedBatchPause)
		}
	}

	return vectorized, lastErr
}

// insertSummary embeds and inserts the synthetic document-summary entry
// (spec §4.5 step 7).
func (ing *Ingestor) insertSummary(ctx context.Context, documentID, fileName, fileType string, fileMeta map[string]any) error {
	summary := buildSummaryText(fileName, fileType, fileMeta)
	vector, err := ing.embedder.Embed(ctx, summary)
	if err != nil {
		return err
	}
	meta := SanitizeMetadata(map[string]any{
		"document_id": documentID,
		"chunk_type":  "document_summary",
		"file_name":   fileName,
		"file_type":   fileType,
	})
	return ing.store.Add(ctx, CollectionDocuments, []VectorEntry{{
		ID:       DocumentSummaryID(documentID),
		Vector:   toFloat32(vector),
		Document: summary,
		Metadata: meta,
	}})
}

func buildSummaryText(fileName, fileType string, meta map[string]any) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Document '%s' (%s)", fileName, fileType)
	if pages, ok := meta["page_count"]; ok {
		fmt.Fprintf(&b, ", %v pages", pages)
	}
	if sheets, ok := meta["sheet_count"]; ok {
		fmt.Fprintf(&b, ", %v sheets", sheets)
	}
	if info, ok := meta["pdf_info"]; ok {
		fmt.Fprintf(&b, ". Info: %v", info)
	}
	b.WriteString(".")
	return b.String()
}

// DeleteDocument implements spec §4.5's delete operation: removes every
// documents entry with document_id == documentID, the synthetic summary
// entry, and the persisted record. Missing is not an error.
func (ing *Ingestor) DeleteDocument(ctx context.Context, documentID string) error {
	matches, err := ing.store.Get(ctx, CollectionDocuments, map[string]any{"document_id": documentID})
	if err != nil {
		return fmt.Errorf("enumerating document entries: %w", err)
	}
	ids := make([]string, 0, len(matches)+1)
	for _, m := range matches {
		ids = append(ids, m.ID)
	}
	ids = append(ids, DocumentSummaryID(documentID))

	if err := ing.store.Delete(ctx, CollectionDocuments, ids); err != nil {
		return fmt.Errorf("deleting document entries: %w", err)
	}
	if ing.sparse != nil {
		for _, id := range ids {
			_ = ing.sparse.Remove(ctx, bm25DocID(id))
		}
	}
	return ing.records.Delete(documentID)
}

// ListDocuments implements the "List documents" external interface (spec
// §6): summaries sorted by processed_at descending.
func (ing *Ingestor) ListDocuments() ([]DocumentRecord, error) {
	return ing.records.List()
}

// GetDocument implements "Get document" by document id.
func (ing *Ingestor) GetDocument(documentID string) (DocumentRecord, bool, error) {
	return ing.records.Load(documentID)
}
