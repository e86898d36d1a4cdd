// Package providers: the local embedder talks to a locally hosted embedding
// daemon (e.g. an Ollama-style server) over HTTP, grounded on
// Aman-CERP-amanmcp's OllamaEmbedder — connection-pooled transport,
// context-scoped per-request timeouts instead of a static client timeout
// (a static timeout would silently cap every call, including slow
// cold-start requests against a just-started daemon).
package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

func init() {
	RegisterEmbedder("local", NewLocalEmbedder)
}

const (
	defaultLocalHost      = "http://localhost:11434"
	defaultLocalModel     = "nomic-embed-text"
	defaultLocalDimension = 384
	defaultLocalPoolSize  = 4
)

// LocalEmbedder implements the Embedder interface against a local embedding
// daemon's HTTP API. Safe for concurrent use: the pooled transport and
// http.Client are already goroutine-safe.
type LocalEmbedder struct {
	client    *http.Client
	host      string
	modelName string
	dimension int
	timeout   time.Duration
}

// NewLocalEmbedder creates a new local embedding provider. Accepts:
//   - host: base URL of the local daemon (defaults to http://localhost:11434)
//   - model: model name the daemon should load (defaults to nomic-embed-text)
//   - dimension: expected output dimension (defaults to 384)
//   - timeout: per-request timeout (defaults to 30s)
func NewLocalEmbedder(config map[string]interface{}) (Embedder, error) {
	host := defaultLocalHost
	if v, ok := config["host"].(string); ok && v != "" {
		host = v
	}
	model := defaultLocalModel
	if v, ok := config["model"].(string); ok && v != "" {
		model = v
	}
	dimension := defaultLocalDimension
	if v, ok := config["dimension"].(int); ok && v > 0 {
		dimension = v
	}
	timeout := 30 * time.Second
	if v, ok := config["timeout"].(time.Duration); ok && v > 0 {
		timeout = v
	}

	transport := &http.Transport{
		MaxIdleConns:        defaultLocalPoolSize,
		MaxIdleConnsPerHost: defaultLocalPoolSize,
		MaxConnsPerHost:     defaultLocalPoolSize * 2,
		IdleConnTimeout:     10 * time.Second,
	}

	return &LocalEmbedder{
		client:    &http.Client{Transport: transport},
		host:      host,
		modelName: model,
		dimension: dimension,
		timeout:   timeout,
	}, nil
}

type localEmbedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type localEmbedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

// Embed requests a single embedding from the local daemon, bounding the
// call with its own context timeout rather than relying on a static
// http.Client timeout, so a cold-starting daemon isn't cut off mid-load.
func (e *LocalEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	reqCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	body, err := json.Marshal(localEmbedRequest{Model: e.modelName, Input: text})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, e.host+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("connect to local embedder at %s: %w", e.host, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("local embedder returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var out localEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(out.Embeddings) == 0 {
		return nil, fmt.Errorf("local embedder returned no embeddings")
	}
	return out.Embeddings[0], nil
}

// GetDimension returns the configured output dimension. Unlike the remote
// provider, the local daemon's model set isn't known in advance, so the
// dimension comes from config rather than a model-name switch.
func (e *LocalEmbedder) GetDimension() (int, error) {
	return e.dimension, nil
}
