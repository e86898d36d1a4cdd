// Package retrievalcore implements the Retrieval Core: ingestion, chunking,
// embedding, vector storage, hybrid retrieval, re-ranking, and conversation
// memory for a retrieval-augmented conversational backend. It exposes
// exactly the External Interfaces named in spec §6; HTTP transport, auth,
// and LLM provider clients are out of scope and live above this package.
package retrievalcore

import (
	"context"
	"fmt"

	"github.com/ragcore/retrievalcore/config"
	"github.com/ragcore/retrievalcore/internal/core"
	"github.com/ragcore/retrievalcore/internal/core/providers"
)

// Core is the single facade over every component (C1-C10), replacing the
// teacher's several overlapping top-level types (RAG/SimpleRAG/
// ContextualRAG) with the one coherent API the spec names.
type Core struct {
	store      core.VectorStore
	embedder   *core.EmbeddingService
	ingestor   *core.Ingestor
	memory     *core.ConversationMemory
	retriever  *core.HybridRetriever
	reranker   *core.Reranker
	cfg        *config.Config
}

// New builds a Core from cfg, constructing the embedder (with optional
// fallback), vector store, ingestor, conversation memory, hybrid
// retriever, and re-ranker.
func New(cfg *config.Config) (*Core, error) {
	core.SetSheetCaps(cfg.MaxSheetRows, cfg.MaxSheetCols)

	primary, err := providers.GetEmbedderFactory(cfg.Provider)
	if err != nil {
		return nil, fmt.Errorf("resolving embedding provider %q: %w", cfg.Provider, err)
	}
	primaryEmbedder, err := primary(embedderOptions(cfg, false))
	if err != nil {
		return nil, fmt.Errorf("constructing primary embedder: %w", err)
	}

	var embedSvc *core.EmbeddingService
	if cfg.FallbackProvider != "" {
		fallbackFactory, err := providers.GetEmbedderFactory(cfg.FallbackProvider)
		if err != nil {
			return nil, fmt.Errorf("resolving fallback embedding provider %q: %w", cfg.FallbackProvider, err)
		}
		fallbackEmbedder, err := fallbackFactory(embedderOptions(cfg, true))
		if err != nil {
			return nil, fmt.Errorf("constructing fallback embedder: %w", err)
		}
		embedSvc = core.NewEmbeddingServiceWithFallback(primaryEmbedder, fallbackEmbedder)
	} else {
		embedSvc = core.NewEmbeddingService(primaryEmbedder)
	}

	store, err := core.NewVectorStore(core.StoreConfig{
		Type:      cfg.VectorStoreType,
		DSN:       cfg.VectorStoreDSN,
		Dimension: cfg.VectorDimension,
	})
	if err != nil {
		return nil, fmt.Errorf("constructing vector store: %w", err)
	}

	records, err := core.NewJSONFileRecordStore(cfg.RecordStoreDir)
	if err != nil {
		return nil, fmt.Errorf("constructing record store: %w", err)
	}

	// sparseIndex is the BM25 lexical index shared between ingestion and
	// retrieval: the ingestor populates it as documents chunks are indexed,
	// the hybrid retriever queries it alongside the vector store to blend
	// a sparse signal into discovery (spec §4.8's "hybrid" search).
	sparseIndex := core.NewBM25Index()

	ingestor := core.NewIngestor(store, embedSvc, records,
		core.WithChunkerConfig(core.TextChunkerConfig{
			MaxChunkSize: cfg.MaxChunkSize,
			MinChunkSize: cfg.MinChunkSize,
			OverlapSize:  cfg.OverlapSize,
		}),
		core.WithMaxFileSize(cfg.MaxFileSize),
		core.WithEmbedBatchSize(cfg.EmbedBatchSize),
		core.WithSparseIndex(sparseIndex),
	)

	memory := core.NewConversationMemory(store, embedSvc,
		core.WithWindowSize(cfg.WindowSize),
		core.WithBatchThreshold(cfg.BatchThreshold),
		core.WithProvider(cfg.Provider),
	)

	retriever, err := core.NewHybridRetriever(store, embedSvc,
		core.WithDiscoveryThreshold(cfg.DiscoveryThreshold),
		core.WithFallbackThreshold(cfg.FallbackThreshold),
		core.WithMinResultsForContext(cfg.MinResultsForContext),
		core.WithCache(cfg.CacheCapacity, cfg.CacheTTLSeconds),
		core.WithSparseIndexes(map[string]*core.BM25Index{core.CollectionDocuments: sparseIndex}),
	)
	if err != nil {
		return nil, fmt.Errorf("constructing hybrid retriever: %w", err)
	}

	return &Core{
		store:     store,
		embedder:  embedSvc,
		ingestor:  ingestor,
		memory:    memory,
		retriever: retriever,
		reranker:  core.NewReranker(),
		cfg:       cfg,
	}, nil
}

func embedderOptions(cfg *config.Config, fallback bool) map[string]interface{} {
	model := cfg.Model
	if fallback {
		model = cfg.FallbackModel
	}
	return map[string]interface{}{
		"api_key": cfg.APIKeys[cfg.Provider],
		"model":   model,
	}
}

// Close releases the underlying vector store's resources.
func (c *Core) Close() error {
	return c.store.Close()
}

// IngestDocument implements the "Ingest document" external interface.
func (c *Core) IngestDocument(ctx context.Context, path string, documentID string) (core.DocumentRecord, error) {
	return c.ingestor.Ingest(ctx, path, documentID)
}

// ListDocuments implements "List documents".
func (c *Core) ListDocuments() ([]core.DocumentRecord, error) {
	return c.ingestor.ListDocuments()
}

// GetDocument implements "Get document" by document id.
func (c *Core) GetDocument(documentID string) (core.DocumentRecord, bool, error) {
	return c.ingestor.GetDocument(documentID)
}

// DeleteDocument implements "Delete document" by document id.
func (c *Core) DeleteDocument(ctx context.Context, documentID string) error {
	return c.ingestor.DeleteDocument(ctx, documentID)
}

// SearchDocuments implements "Search documents": embeds query, queries the
// documents collection (optionally filtered by document_id), re-ranks, and
// returns up to limit results sorted by final score descending.
func (c *Core) SearchDocuments(ctx context.Context, query string, documentID string, limit int) ([]core.SearchResult, error) {
	if limit <= 0 {
		limit = c.cfg.DefaultSearchLimit
	}
	if limit > 50 {
		limit = 50
	}

	vector, err := c.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	var where map[string]any
	if documentID != "" {
		where = map[string]any{"document_id": documentID}
	}

	matches, err := c.store.Query(ctx, core.CollectionDocuments, toFloat32Slice(vector), limit*4, where)
	if err != nil {
		return nil, err
	}

	candidates := make([]core.RerankCandidate, 0, len(matches))
	for _, m := range matches {
		candidates = append(candidates, core.RerankCandidate{
			ID:         m.ID,
			Collection: core.CollectionDocuments,
			Content:    m.Document,
			Metadata:   m.Metadata,
			Similarity: core.Similarity(m.Distance),
		})
	}

	ranked := c.reranker.Rerank(query, candidates, limit)

	results := make([]core.SearchResult, 0, len(ranked))
	for _, r := range ranked {
		docID, _ := r.Metadata["document_id"].(string)
		fileName, _ := r.Metadata["file_name"].(string)
		results = append(results, core.SearchResult{
			Content:    r.Content,
			Metadata:   r.Metadata,
			Similarity: r.FinalScore,
			DocumentID: docID,
			ChunkID:    r.ID,
			FileName:   fileName,
		})
	}
	return results, nil
}

// RetrieveContext implements the top-level "Retrieve context" (C8)
// external interface.
func (c *Core) RetrieveContext(ctx context.Context, query string) (string, error) {
	return c.retriever.RetrieveContext(ctx, query)
}

// RecordTurn implements "Record conversation turn".
func (c *Core) RecordTurn(ctx context.Context, role core.ConversationRole, content string) error {
	return c.memory.AddTurn(ctx, role, content)
}

// FlushConversation forces a conversation-memory flush ("close session").
func (c *Core) FlushConversation(ctx context.Context) error {
	return c.memory.CloseSession(ctx)
}

// ConversationWindow returns the current sliding window of turns for
// direct prompt construction (no embedding, per spec §4.6).
func (c *Core) ConversationWindow() []core.ConversationTurn {
	return c.memory.Window()
}

func toFloat32Slice(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}
