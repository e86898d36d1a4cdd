package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// erroringStore wraps a VectorStore and fails Add for a configured
// collection, to exercise ConversationMemory's "failed flush leaves
// pending intact" behavior.
type erroringStore struct {
	VectorStore
	failAddFor string
}

func (s *erroringStore) Add(ctx context.Context, collection string, items []VectorEntry) error {
	if collection == s.failAddFor {
		return errors.New("forced add failure")
	}
	return s.VectorStore.Add(ctx, collection, items)
}

func newTestConversationMemory(t *testing.T, opts ...ConversationMemoryOption) (*ConversationMemory, VectorStore) {
	t.Helper()
	store, err := NewVectorStore(StoreConfig{Type: "memory"})
	require.NoError(t, err)
	embedSvc := NewEmbeddingService(newFakeEmbedder(8))
	return NewConversationMemory(store, embedSvc, opts...), store
}

func TestConversationMemoryWindowSlidesAtCap(t *testing.T) {
	mem, _ := newTestConversationMemory(t, WithWindowSize(3), WithBatchThreshold(100))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, mem.AddTurn(ctx, RoleUser, "turn"))
	}
	assert.Len(t, mem.Window(), 3)
}

func TestConversationMemoryWindowIsNeverEmbedded(t *testing.T) {
	mem, store := newTestConversationMemory(t, WithWindowSize(10), WithBatchThreshold(100))
	ctx := context.Background()
	require.NoError(t, mem.AddTurn(ctx, RoleUser, "hello"))

	count, err := store.Count(ctx, CollectionConversations)
	require.NoError(t, err)
	assert.Equal(t, 0, count, "turns below batch_threshold must not be flushed/embedded yet")
}

func TestConversationMemoryFlushesAtBatchThreshold(t *testing.T) {
	mem, store := newTestConversationMemory(t, WithWindowSize(10), WithBatchThreshold(3))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, mem.AddTurn(ctx, RoleUser, "turn"))
	}

	count, err := store.Count(ctx, CollectionConversations)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestConversationMemoryCloseSessionForcesFlush(t *testing.T) {
	mem, store := newTestConversationMemory(t, WithWindowSize(10), WithBatchThreshold(100))
	ctx := context.Background()
	require.NoError(t, mem.AddTurn(ctx, RoleUser, "only one turn"))

	require.NoError(t, mem.CloseSession(ctx))

	count, err := store.Count(ctx, CollectionConversations)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestConversationMemoryFailedFlushLeavesPendingIntact(t *testing.T) {
	base, err := NewVectorStore(StoreConfig{Type: "memory"})
	require.NoError(t, err)
	failing := &erroringStore{VectorStore: base, failAddFor: CollectionConversations}
	embedSvc := NewEmbeddingService(newFakeEmbedder(8))
	mem := NewConversationMemory(failing, embedSvc, WithWindowSize(10), WithBatchThreshold(2))

	ctx := context.Background()
	require.NoError(t, mem.AddTurn(ctx, RoleUser, "first"))
	err = mem.AddTurn(ctx, RoleAssistant, "second")
	assert.Error(t, err, "the forced Add failure should surface from the threshold-triggered flush")

	assert.Len(t, mem.pending, 2, "a failed flush must leave the pending buffer untouched")
}

func TestFormatBatchConcatenatesInOrder(t *testing.T) {
	out := formatBatch([]ConversationTurn{
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "hello"},
	})
	assert.Equal(t, "user: hi\nassistant: hello\n", out)
}
