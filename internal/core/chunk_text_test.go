package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApproxTokenCounter(t *testing.T) {
	c := ApproxTokenCounter{}
	assert.Equal(t, 0, c.Count(""))
	assert.Equal(t, 1, c.Count("hi"))
	assert.Equal(t, 2, c.Count("exactly8"))
}

func TestChunkTextShortDocumentIsSingleSmartChunk(t *testing.T) {
	cfg := DefaultTextChunkerConfig()
	chunks := ChunkText("A short paragraph that easily fits in one chunk.", cfg, ApproxTokenCounter{})
	require.Len(t, chunks, 1)
	assert.Equal(t, string(ChunkTypeSmart), chunks[0].Metadata["chunk_type"])
	assert.Equal(t, 0, chunks[0].Metadata["chunk_index"])
	assert.Equal(t, 1, chunks[0].Metadata["chunk_count"])
}

func TestChunkTextEmptyInputProducesNoChunks(t *testing.T) {
	chunks := ChunkText("   ", DefaultTextChunkerConfig(), ApproxTokenCounter{})
	assert.Empty(t, chunks)
}

func TestChunkTextSplitsLongDocumentIntoSections(t *testing.T) {
	cfg := TextChunkerConfig{MaxChunkSize: 10, MinChunkSize: 2, OverlapSize: 3}
	var b strings.Builder
	for i := 0; i < 20; i++ {
		b.WriteString("# Heading\nThis is a reasonably long paragraph describing section content in detail. ")
		b.WriteString("It keeps going for a while to exceed the max chunk size threshold easily.\n\n")
	}
	chunks := ChunkText(b.String(), cfg, ApproxTokenCounter{})
	require.Greater(t, len(chunks), 1)
	for i, c := range chunks {
		assert.Equal(t, i, c.Metadata["chunk_index"])
		assert.Equal(t, len(chunks), c.Metadata["chunk_count"])
	}
}

func TestSplitSectionsDetectsHeadings(t *testing.T) {
	text := "# First\nbody one\n\n# Second\nbody two"
	sections := splitSections(text)
	require.Len(t, sections, 2)
	assert.Equal(t, "First", sections[0].heading)
	assert.Equal(t, "Second", sections[1].heading)
}

func TestLastWordsReturnsTailWords(t *testing.T) {
	assert.Equal(t, "b c", lastWords("a b c", 2))
	assert.Equal(t, "a b c", lastWords("a b c", 10))
}
