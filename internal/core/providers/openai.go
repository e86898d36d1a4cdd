// Package providers: the remote embedder calls out to an OpenAI-compatible
// embeddings endpoint. It is registered under both "openai" and "remote" —
// the spec's generic name for any cloud embedding API — since the wire
// format this implementation speaks is the OpenAI one.
package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

func init() {
	RegisterEmbedder("openai", NewRemoteEmbedder)
	RegisterEmbedder("remote", NewRemoteEmbedder)
}

const (
	defaultEmbeddingAPI = "https://api.openai.com/v1/embeddings"
	defaultModelName    = "text-embedding-3-small"
	// defaultRequestsPerSecond throttles outbound calls to stay well clear
	// of typical per-minute embedding-API rate limits without requiring
	// the caller to configure anything.
	defaultRequestsPerSecond = 10
)

// RemoteEmbedder implements the Embedder interface against a remote,
// OpenAI-wire-compatible embeddings API. It is safe for concurrent use: the
// rate limiter serializes outbound request starts, the HTTP client itself
// is already goroutine-safe.
type RemoteEmbedder struct {
	apiKey    string
	client    *http.Client
	apiURL    string
	modelName string
	limiter   *rate.Limiter
}

// NewRemoteEmbedder creates a new remote embedding provider. The provider
// requires an API key and optionally accepts:
//   - model: the embedding model to use (defaults to text-embedding-3-small)
//   - api_url: custom API endpoint URL
//   - timeout: custom per-request timeout
//   - requests_per_second: outbound rate limit (defaults to 10)
func NewRemoteEmbedder(config map[string]interface{}) (Embedder, error) {
	apiKey, ok := config["api_key"].(string)
	if !ok || apiKey == "" {
		return nil, fmt.Errorf("API key is required for the remote embedder")
	}

	rps := defaultRequestsPerSecond
	if v, ok := config["requests_per_second"].(int); ok && v > 0 {
		rps = v
	}

	e := &RemoteEmbedder{
		apiKey:    apiKey,
		client:    &http.Client{Timeout: 30 * time.Second},
		apiURL:    defaultEmbeddingAPI,
		modelName: defaultModelName,
		limiter:   rate.NewLimiter(rate.Limit(rps), rps),
	}

	if model, ok := config["model"].(string); ok && model != "" {
		e.modelName = model
	}

	if apiURL, ok := config["api_url"].(string); ok && apiURL != "" {
		e.apiURL = apiURL
	}

	if timeout, ok := config["timeout"].(time.Duration); ok {
		e.client.Timeout = timeout
	}

	return e, nil
}

type embeddingRequest struct {
	Input string `json:"input"`
	Model string `json:"model"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

// Embed converts text into a vector via the remote API, waiting on the
// rate limiter before issuing the request.
func (e *RemoteEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	reqBody, err := json.Marshal(embeddingRequest{Input: text, Model: e.modelName})
	if err != nil {
		return nil, fmt.Errorf("error marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", e.apiURL, bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API request failed with status code %d: %s", resp.StatusCode, resp.Status)
	}

	var embeddingResp embeddingResponse
	if err := json.Unmarshal(body, &embeddingResp); err != nil {
		return nil, fmt.Errorf("error unmarshaling response: %w", err)
	}

	if len(embeddingResp.Data) == 0 {
		return nil, fmt.Errorf("no embedding data in response")
	}

	return embeddingResp.Data[0].Embedding, nil
}

// GetDimension returns the output dimension for the current model.
func (e *RemoteEmbedder) GetDimension() (int, error) {
	switch e.modelName {
	case "text-embedding-3-small":
		return 1536, nil
	case "text-embedding-3-large":
		return 3072, nil
	case "text-embedding-ada-002":
		return 1536, nil
	default:
		return 0, fmt.Errorf("unknown model: %s", e.modelName)
	}
}
