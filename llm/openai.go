package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/virajxp1/forkfolio/errors"
)

// OpenAIClient performs structured completions against an
// OpenAI-compatible chat API using strict JSON-schema response formats.
type OpenAIClient struct {
	client      *openai.Client
	model       string
	temperature float32
}

// OpenAIConfig configures the structured-output client.
type OpenAIConfig struct {
	// BaseURL of the chat service, e.g. "https://api.openai.com/v1".
	BaseURL string

	// Model is the chat model, e.g. "gpt-4o-mini".
	Model string

	// APIKey for authentication. Optional for local services.
	APIKey string

	// Temperature for completions (default 0: extraction and judgment
	// calls want determinism, not creativity).
	Temperature float32

	// Timeout per HTTP request (default 60s).
	Timeout time.Duration
}

// NewOpenAIClient creates a structured-output chat client.
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if cfg.BaseURL == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "llm", "NewOpenAIClient", "base_url is required")
	}
	if cfg.Model == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "llm", "NewOpenAIClient", "model is required")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = "unused"
	}

	clientConfig := openai.DefaultConfig(apiKey)
	clientConfig.BaseURL = cfg.BaseURL
	clientConfig.HTTPClient = &http.Client{Timeout: timeout}

	return &OpenAIClient{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       cfg.Model,
		temperature: cfg.Temperature,
	}, nil
}

// Complete sends the prompts with a strict JSON-schema response format
// and returns the raw payload.
func (c *OpenAIClient) Complete(ctx context.Context, systemPrompt, userPrompt string, schema Schema) (json.RawMessage, error) {
	if schema.Name == "" || len(schema.Schema) == 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "llm", "Complete", "schema name and body are required")
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   schema.Name,
				Schema: schema.Schema,
				Strict: true,
			},
		},
	})
	if err != nil {
		return nil, errors.WrapTransient(err, "llm", "Complete", "chat completion call")
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, errors.WrapTransient(errors.ErrEmptyResult, "llm", "Complete", "read completion choices")
	}

	payload := json.RawMessage(resp.Choices[0].Message.Content)
	if !json.Valid(payload) {
		return nil, errors.WrapTransient(errors.ErrParsingFailed, "llm", "Complete", "validate completion JSON")
	}
	return payload, nil
}

// Model returns the model identifier.
func (c *OpenAIClient) Model() string {
	return c.model
}
