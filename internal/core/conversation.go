package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	defaultWindowSize     = 10
	defaultBatchThreshold = 10
)

// ConversationMemoryOptions configures a ConversationMemory, in the
// teacher's functional-options style (memory_context.go's
// MemoryContextOptions).
type ConversationMemoryOptions struct {
	WindowSize     int
	BatchThreshold int
	Provider       string
}

// ConversationMemoryOption applies one option.
type ConversationMemoryOption func(*ConversationMemoryOptions)

func WithWindowSize(n int) ConversationMemoryOption {
	return func(o *ConversationMemoryOptions) { o.WindowSize = n }
}

func WithBatchThreshold(n int) ConversationMemoryOption {
	return func(o *ConversationMemoryOptions) { o.BatchThreshold = n }
}

func WithProvider(name string) ConversationMemoryOption {
	return func(o *ConversationMemoryOptions) { o.Provider = name }
}

// ConversationMemory implements C6 (spec §4.6): a sliding window of the
// last W turns for prompt construction, plus a pending buffer flushed into
// the conversations collection once it reaches batch_threshold or on
// close_session. The teacher's memory_context.go StoreMemory was a
// non-functional stub that called Retrieve instead of inserting; this is
// rebuilt from scratch against the spec, keeping only the option-naming
// conventions.
type ConversationMemory struct {
	mu       sync.Mutex
	store    VectorStore
	embedder *EmbeddingService
	opts     ConversationMemoryOptions

	window  []ConversationTurn
	pending []ConversationTurn
}

// NewConversationMemory builds a ConversationMemory over store/embedder.
func NewConversationMemory(store VectorStore, embedder *EmbeddingService, opts ...ConversationMemoryOption) *ConversationMemory {
	options := ConversationMemoryOptions{
		WindowSize:     defaultWindowSize,
		BatchThreshold: defaultBatchThreshold,
		Provider:       "unknown",
	}
	for _, opt := range opts {
		opt(&options)
	}
	return &ConversationMemory{store: store, embedder: embedder, opts: options}
}

// AddTurn appends a turn to both the window and the pending buffer,
// flushing the pending buffer if it has reached batch_threshold.
func (m *ConversationMemory) AddTurn(ctx context.Context, role ConversationRole, content string) error {
	turn := ConversationTurn{Role: role, Content: content, Timestamp: time.Now()}

	m.mu.Lock()
	m.window = append(m.window, turn)
	if len(m.window) > m.opts.WindowSize {
		m.window = m.window[len(m.window)-m.opts.WindowSize:]
	}
	m.pending = append(m.pending, turn)
	shouldFlush := len(m.pending) >= m.opts.BatchThreshold
	m.mu.Unlock()

	if shouldFlush {
		return m.Flush(ctx)
	}
	return nil
}

// Window returns the current sliding window of turns, for prompt
// construction (read directly, never embedded, per spec §4.6).
func (m *ConversationMemory) Window() []ConversationTurn {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ConversationTurn, len(m.window))
	copy(out, m.window)
	return out
}

// Flush concatenates the pending turns into one document, embeds it, and
// inserts it into the conversations collection. Failure leaves pending
// intact for the next attempt (spec §4.6).
func (m *ConversationMemory) Flush(ctx context.Context) error {
	m.mu.Lock()
	if len(m.pending) == 0 {
		m.mu.Unlock()
		return nil
	}
	batch := make([]ConversationTurn, len(m.pending))
	copy(batch, m.pending)
	m.mu.Unlock()

	if err := m.store.EnsureCollection(ctx, CollectionConversations); err != nil {
		return fmt.Errorf("ensuring conversations collection: %w", err)
	}

	document := formatBatch(batch)
	vector, err := m.embedder.Embed(ctx, document)
	if err != nil {
		return err
	}

	first, last := batch[0].Timestamp, batch[len(batch)-1].Timestamp
	metadata := SanitizeMetadata(map[string]any{
		"date":            first.Format("2006-01-02"),
		"provider":        m.opts.Provider,
		"message_count":   len(batch),
		"first_timestamp": first.Format(time.RFC3339),
		"last_timestamp":  last.Format(time.RFC3339),
	})

	entry := VectorEntry{
		ID:       ConversationBatchID(first.Format(time.RFC3339)),
		Vector:   toFloat32(vector),
		Document: document,
		Metadata: metadata,
	}
	if err := m.store.Add(ctx, CollectionConversations, []VectorEntry{entry}); err != nil {
		return err
	}

	m.mu.Lock()
	m.pending = m.pending[len(batch):]
	m.mu.Unlock()
	return nil
}

// CloseSession forces a flush of the pending buffer regardless of size
// (spec §4.6).
func (m *ConversationMemory) CloseSession(ctx context.Context) error {
	return m.Flush(ctx)
}

// formatBatch concatenates turns as "role: content\n..." in input order.
func formatBatch(turns []ConversationTurn) string {
	var b strings.Builder
	for _, t := range turns {
		b.WriteString(string(t.Role))
		b.WriteString(": ")
		b.WriteString(t.Content)
		b.WriteString("\n")
	}
	return b.String()
}
