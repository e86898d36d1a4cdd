package core

import (
	"context"
	"fmt"

	"github.com/ragcore/retrievalcore/internal/core/providers"
)

// EmbedderConfig holds the configuration for creating an Embedder instance.
type EmbedderConfig struct {
	Provider string
	Options  map[string]interface{}
}

// EmbedderOption configures an EmbedderConfig.
type EmbedderOption func(*EmbedderConfig)

// SetProvider selects the embedding provider ("openai", "remote", "local").
func SetProvider(provider string) EmbedderOption {
	return func(c *EmbedderConfig) { c.Provider = provider }
}

// SetModel sets the provider-specific model name.
func SetModel(model string) EmbedderOption {
	return func(c *EmbedderConfig) { c.Options["model"] = model }
}

// SetAPIKey sets the provider's authentication key.
func SetAPIKey(apiKey string) EmbedderOption {
	return func(c *EmbedderConfig) { c.Options["api_key"] = apiKey }
}

// SetOption sets an arbitrary provider-specific option.
func SetOption(key string, value interface{}) EmbedderOption {
	return func(c *EmbedderConfig) { c.Options[key] = value }
}

// NewEmbedder builds a provider.Embedder from registered factories.
func NewEmbedder(opts ...EmbedderOption) (providers.Embedder, error) {
	config := &EmbedderConfig{Options: make(map[string]interface{})}
	for _, opt := range opts {
		opt(config)
	}
	if config.Provider == "" {
		return nil, fmt.Errorf("provider must be specified")
	}
	factory, err := providers.GetEmbedderFactory(config.Provider)
	if err != nil {
		return nil, err
	}
	return factory(config.Options)
}

// EmbeddedChunk is a chunk along with its vector embedding and metadata,
// ready for insertion into the vector store.
type EmbeddedChunk struct {
	Text       string
	Embeddings map[string][]float64
	Metadata   map[string]interface{}
}

// EmbeddingService converts chunks of text into embeddings, trying a
// fallback provider when the primary fails (spec §4.1): a transient outage
// of one provider shouldn't stall ingestion or queries, only degrade them.
type EmbeddingService struct {
	primary  providers.Embedder
	fallback providers.Embedder
	logger   Logger
}

// NewEmbeddingService creates a service backed by a single embedder, with
// no fallback.
func NewEmbeddingService(embedder providers.Embedder) *EmbeddingService {
	return &EmbeddingService{primary: embedder, logger: GlobalLogger}
}

// NewEmbeddingServiceWithFallback creates a service that falls back to a
// secondary embedder whenever the primary returns an error.
func NewEmbeddingServiceWithFallback(primary, fallback providers.Embedder) *EmbeddingService {
	return &EmbeddingService{primary: primary, fallback: fallback, logger: GlobalLogger}
}

// Embed generates the embedding for a single piece of text, trying the
// fallback provider if the primary fails. Returns ErrEmbeddingUnavailable
// only when both providers (or the lone configured one) fail.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float64, error) {
	embedding, err := s.primary.Embed(ctx, text)
	if err == nil {
		return embedding, nil
	}
	if s.fallback == nil {
		return nil, wrapErr(ErrEmbeddingUnavailable, "EmbeddingUnavailable", err)
	}
	s.logger.Warn("primary embedder failed, trying fallback", "error", err)
	embedding, fbErr := s.fallback.Embed(ctx, text)
	if fbErr != nil {
		return nil, wrapErr(ErrEmbeddingUnavailable, "EmbeddingUnavailable", fmt.Errorf("primary: %v, fallback: %v", err, fbErr))
	}
	return embedding, nil
}

// EmbedMany embeds a batch of texts in order, failing the whole batch if
// any single text cannot be embedded (spec §4.1's embed_many semantics) —
// a partially-embedded batch would leave the caller unable to tell which
// chunks were skipped.
func (s *EmbeddingService) EmbedMany(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, text := range texts {
		embedding, err := s.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embedding text %d of %d: %w", i+1, len(texts), err)
		}
		out[i] = embedding
	}
	return out, nil
}

// EmbedChunks embeds a slice of chunks, carrying each chunk's own metadata
// through to the resulting EmbeddedChunk unchanged. chunk_index is already
// stamped document-wide by stampChunkMetadata before chunks reach here; this
// batch may be a sub-slice of the document (see Ingestor.embedAndInsert), so
// re-deriving it from the batch position would clobber the correct value.
func (s *EmbeddingService) EmbedChunks(ctx context.Context, chunks []Chunk) ([]EmbeddedChunk, error) {
	embeddedChunks := make([]EmbeddedChunk, 0, len(chunks))
	s.logger.Debug("embedding chunks", "count", len(chunks))

	for i, chunk := range chunks {
		embedding, err := s.Embed(ctx, chunk.Content)
		if err != nil {
			return nil, fmt.Errorf("error embedding chunk %d: %w", i+1, err)
		}

		metadata := make(map[string]interface{}, len(chunk.Metadata))
		for k, v := range chunk.Metadata {
			metadata[k] = v
		}

		embeddedChunks = append(embeddedChunks, EmbeddedChunk{
			Text:       chunk.Content,
			Embeddings: map[string][]float64{"default": embedding},
			Metadata:   metadata,
		})
	}

	return embeddedChunks, nil
}
