package retrievalcore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ragcore/retrievalcore/config"
	"github.com/ragcore/retrievalcore/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCore(t *testing.T) *Core {
	t.Helper()
	cfg := &config.Config{
		Provider:             "local",
		VectorStoreType:      "memory",
		VectorDimension:      8,
		MaxFileSize:          1024 * 1024,
		MaxSheetRows:         100,
		MaxSheetCols:         20,
		MaxChunkSize:         1000,
		MinChunkSize:         50,
		OverlapSize:          10,
		EmbedBatchSize:       5,
		RecordStoreDir:       t.TempDir(),
		WindowSize:           10,
		BatchThreshold:       10,
		DiscoveryThreshold:   0.08,
		FallbackThreshold:    0.04,
		MinResultsForContext: 1,
		CacheCapacity:        64,
		CacheTTLSeconds:      300,
		DefaultSearchLimit:   5,
	}
	c, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestNewBuildsAFunctioningCore(t *testing.T) {
	c := newTestCore(t)
	assert.NotNil(t, c.store)
	assert.NotNil(t, c.reranker)
}

func TestCoreIngestListGetDeleteDocument(t *testing.T) {
	c := newTestCore(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte("Content to ingest through the public facade for testing."), 0o644))

	record, err := c.IngestDocument(ctx, path, "facade-doc")
	require.NoError(t, err)
	assert.Equal(t, "facade-doc", record.DocumentID)

	list, err := c.ListDocuments()
	require.NoError(t, err)
	assert.Len(t, list, 1)

	got, ok, err := c.GetDocument("facade-doc")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "facade-doc", got.DocumentID)

	require.NoError(t, c.DeleteDocument(ctx, "facade-doc"))
	_, ok, err = c.GetDocument("facade-doc")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCoreConversationWindowAndFlush(t *testing.T) {
	c := newTestCore(t)
	ctx := context.Background()

	require.NoError(t, c.RecordTurn(ctx, core.RoleUser, "hello there"))
	window := c.ConversationWindow()
	require.Len(t, window, 1)
	assert.Equal(t, "hello there", window[0].Content)

	assert.NoError(t, c.FlushConversation(ctx))
}
