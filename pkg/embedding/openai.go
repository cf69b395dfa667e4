package embedding

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/virajxp1/forkfolio/errors"
)

// OpenAIEmbedder calls an OpenAI-compatible embedding endpoint.
//
// Works with OpenAI cloud, Hugging Face TEI, LocalAI, and anything else
// speaking the /v1/embeddings protocol. Caching belongs to CachedEmbedder,
// not here.
type OpenAIEmbedder struct {
	client     *openai.Client
	model      string
	dimensions int
}

// OpenAIConfig configures the OpenAI embedder.
type OpenAIConfig struct {
	// BaseURL of the embedding service, e.g. "https://api.openai.com/v1"
	// or "http://tei:8082".
	BaseURL string

	// Model is the embedding model, e.g. "text-embedding-3-small".
	Model string

	// APIKey for authentication. Optional for local services.
	APIKey string

	// Dimensions expected from the model. Detected from the first response
	// when zero.
	Dimensions int

	// Timeout per HTTP request (default 30s).
	Timeout time.Duration
}

// NewOpenAIEmbedder creates an embedder against an OpenAI-compatible API.
func NewOpenAIEmbedder(cfg OpenAIConfig) (*OpenAIEmbedder, error) {
	if cfg.BaseURL == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "embedding", "NewOpenAIEmbedder", "base_url is required")
	}
	if cfg.Model == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "embedding", "NewOpenAIEmbedder", "model is required")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = "unused" // local services ignore the key
	}

	clientConfig := openai.DefaultConfig(apiKey)
	clientConfig.BaseURL = cfg.BaseURL
	clientConfig.HTTPClient = &http.Client{Timeout: timeout}

	return &OpenAIEmbedder{
		client:     openai.NewClientWithConfig(clientConfig),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}, nil
}

// Generate embeds the given texts via the remote API.
func (e *OpenAIEmbedder) Generate(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, errors.WrapTransient(err, "embedding", "Generate", "embedding API call")
	}

	if len(resp.Data) != len(texts) {
		return nil, errors.WrapTransient(
			fmt.Errorf("%w: got %d embeddings for %d texts", errors.ErrInvalidData, len(resp.Data), len(texts)),
			"embedding", "Generate", "validate API response")
	}

	vectors := make([][]float32, len(texts))
	for i, data := range resp.Data {
		vectors[i] = data.Embedding
	}

	if e.dimensions == 0 && len(vectors[0]) > 0 {
		e.dimensions = len(vectors[0])
	}

	return vectors, nil
}

// Dimensions returns the vector dimensionality.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.dimensions
}

// Model returns the model identifier.
func (e *OpenAIEmbedder) Model() string {
	return e.model
}

// Close is a no-op for the HTTP client.
func (e *OpenAIEmbedder) Close() error {
	return nil
}
