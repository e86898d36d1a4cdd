// Package core implements the Retrieval Core: extraction, chunking,
// embedding, vector storage, conversation memory, hybrid retrieval,
// re-ranking and context assembly. It has no knowledge of HTTP transport,
// authentication, or LLM provider clients — those are external collaborators
// per the core's scope.
package core

import "time"

// Chunk is the unit of retrieval: a short, self-contained text snippet with
// primitive-typed metadata. Immutable once indexed; DocumentID is stable.
type Chunk struct {
	ChunkID  string
	Content  string
	Metadata map[string]any
}

// ChunkType enumerates the kinds of chunk a document can be decomposed into.
type ChunkType string

const (
	ChunkTypeParagraph     ChunkType = "paragraph"
	ChunkTypeTable         ChunkType = "table"
	ChunkTypeSpreadsheetRow ChunkType = "spreadsheet_row"
	ChunkTypeSection       ChunkType = "section"
	ChunkTypeSmart         ChunkType = "smart_chunk"
)

// DocumentStatus is the lifecycle state of a DocumentRecord.
type DocumentStatus string

const (
	DocumentStatusProcessed DocumentStatus = "processed"
	DocumentStatusFailed    DocumentStatus = "failed"
)

// DocumentRecord is the durable record of one ingested file.
type DocumentRecord struct {
	DocumentID  string         `json:"document_id"`
	FileName    string         `json:"file_name"`
	FileType    string         `json:"file_type"`
	ProcessedAt time.Time      `json:"processed_at"`
	Chunks      []Chunk        `json:"chunks"`
	ChunkCount  int            `json:"chunk_count"`
	TotalTokens int            `json:"total_tokens"`
	Vectorized  bool           `json:"vectorized"`
	Status      DocumentStatus `json:"status"`
}

// ConversationRole is the speaker of a conversation turn.
type ConversationRole string

const (
	RoleUser      ConversationRole = "user"
	RoleAssistant ConversationRole = "assistant"
)

// ConversationTurn is one message in a conversation.
type ConversationTurn struct {
	Role      ConversationRole
	Content   string
	Timestamp time.Time
}

// VectorEntry is the unit stored in a Collection: (id, vector, document, metadata).
type VectorEntry struct {
	ID       string
	Vector   []float32
	Document string
	Metadata map[string]any
}

// VectorMatch is a single nearest-neighbor result from a Query, ordered by
// ascending distance. Distance is Euclidean-like and non-negative; callers
// convert to similarity via Similarity(distance), never any other formula.
type VectorMatch struct {
	ID       string
	Document string
	Metadata map[string]any
	Distance float64
}

// Similarity is the sole distance-to-similarity transform the rest of the
// system relies on (spec §4.2, invariant I4). similarity ∈ (0, 1].
func Similarity(distance float64) float64 {
	return 1 / (1 + distance)
}

// SearchResult is what the Search-documents external interface returns.
type SearchResult struct {
	Content    string
	Metadata   map[string]any
	Similarity float64
	DocumentID string
	ChunkID    string
	FileName   string
}

// CachedQueryResult is an entry in the hybrid retriever's query-result cache.
type CachedQueryResult struct {
	QueryHash     string
	ContextString string
	Expiry        time.Time
}

// Collection names are fixed by convention (spec §3).
const (
	CollectionDocuments    = "documents"
	CollectionConversations = "conversations"
	CollectionProfile      = "profile"
)
