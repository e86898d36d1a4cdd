package core

import (
	"context"
	"errors"
	"hash/fnv"
)

// fakeEmbedder is a deterministic, network-free providers.Embedder for
// tests: the embedding is a small hash-derived vector so that identical
// text always produces identical vectors and distinct text (usually)
// produces distinct ones, without depending on any external service.
type fakeEmbedder struct {
	dim     int
	failOn  string
	calls   int
}

func newFakeEmbedder(dim int) *fakeEmbedder {
	if dim <= 0 {
		dim = 8
	}
	return &fakeEmbedder{dim: dim}
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	f.calls++
	if f.failOn != "" && text == f.failOn {
		return nil, errors.New("fake embedder: forced failure")
	}
	out := make([]float64, f.dim)
	h := fnv.New64a()
	for i := 0; i < f.dim; i++ {
		h.Write([]byte{byte(i)})
		h.Write([]byte(text))
		sum := h.Sum64()
		out[i] = float64(sum%1000) / 1000.0
	}
	return out, nil
}

func (f *fakeEmbedder) GetDimension() (int, error) {
	return f.dim, nil
}
