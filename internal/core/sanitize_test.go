package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeMetadataPassesPrimitivesThrough(t *testing.T) {
	out := SanitizeMetadata(map[string]any{
		"s": "hello",
		"b": true,
		"i": 42,
		"f": 3.14,
	})
	assert.Equal(t, "hello", out["s"])
	assert.Equal(t, true, out["b"])
	assert.Equal(t, 42, out["i"])
	assert.Equal(t, 3.14, out["f"])
}

func TestSanitizeMetadataJoinsLists(t *testing.T) {
	out := SanitizeMetadata(map[string]any{
		"tags": []string{"a", "b", "c"},
	})
	assert.Equal(t, "a, b, c", out["tags"])
}

func TestSanitizeMetadataStringifiesNestedMaps(t *testing.T) {
	out := SanitizeMetadata(map[string]any{
		"nested": map[string]any{"x": 1},
	})
	assert.Equal(t, "x=1", out["nested"])
}

func TestSanitizeMetadataIsIdempotent(t *testing.T) {
	raw := map[string]any{
		"tags":   []string{"x", "y"},
		"nested": map[string]any{"a": 1},
		"n":      7,
	}
	once := SanitizeMetadata(raw)
	twice := SanitizeMetadata(once)
	assert.Equal(t, once, twice)
}

func TestDocumentChunkIDGrammar(t *testing.T) {
	assert.Equal(t, "doc1_chunk2", DocumentChunkID("doc1", "chunk2"))
}

func TestDocumentSummaryIDGrammar(t *testing.T) {
	assert.Equal(t, "metadata_doc1", DocumentSummaryID("doc1"))
}

func TestConversationBatchIDGrammar(t *testing.T) {
	assert.Equal(t, "conv_2024-01-01T00:00:00Z", ConversationBatchID("2024-01-01T00:00:00Z"))
}

func TestGenerateDocumentIDIsStableForIdenticalContent(t *testing.T) {
	id1 := GenerateDocumentID("report.pdf", []byte("same bytes"))
	id2 := GenerateDocumentID("report.pdf", []byte("same bytes"))
	assert.Equal(t, id1, id2)
}

func TestGenerateDocumentIDDiffersForDifferentContent(t *testing.T) {
	id1 := GenerateDocumentID("report.pdf", []byte("content A"))
	id2 := GenerateDocumentID("report.pdf", []byte("content B"))
	assert.NotEqual(t, id1, id2)
}
