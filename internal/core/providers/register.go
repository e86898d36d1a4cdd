// Package providers implements the embedding backends for C1. Each provider
// registers itself under a name via RegisterEmbedder so the core can select
// one by config string without a compile-time dependency on any specific
// provider package.
package providers

import (
	"context"
	"fmt"
	"sync"
)

// Embedder converts text into a vector embedding. Implementations may call
// out to a remote API or a local daemon; both must be safe for concurrent
// use.
type Embedder interface {
	// Embed generates the embedding for the given text.
	Embed(ctx context.Context, text string) ([]float64, error)

	// GetDimension returns the dimension of the embeddings produced by the
	// current model.
	GetDimension() (int, error)
}

// EmbedderFactory builds an Embedder from a provider-specific option map.
type EmbedderFactory func(config map[string]interface{}) (Embedder, error)

var (
	embedderFactories = make(map[string]EmbedderFactory)
	mu                sync.RWMutex
)

// RegisterEmbedder registers a new embedder factory. Called from each
// provider file's init().
func RegisterEmbedder(name string, factory EmbedderFactory) {
	mu.Lock()
	defer mu.Unlock()
	embedderFactories[name] = factory
}

// GetEmbedderFactory returns the factory for the given provider name.
func GetEmbedderFactory(name string) (EmbedderFactory, error) {
	mu.RLock()
	defer mu.RUnlock()
	factory, ok := embedderFactories[name]
	if !ok {
		return nil, fmt.Errorf("embedder not found: %s", name)
	}
	return factory, nil
}
