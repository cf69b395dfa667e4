// Package llm provides structured-output LLM calls with caching.
//
// Every call carries a JSON schema the provider must satisfy; responses
// are raw JSON validated by the typed Call helper at the consumer
// boundary, so a cached payload that no longer decodes is evicted and
// fetched fresh rather than poisoning every future hit.
package llm

import (
	"context"
	"encoding/json"
)

// Schema names and constrains the JSON shape a call must return.
type Schema struct {
	// Name identifies the schema to the provider and in cache keys.
	Name string

	// Schema is the raw JSON schema document.
	Schema json.RawMessage
}

// Client performs a structured completion call.
type Client interface {
	// Complete sends the prompts and returns the raw JSON payload matching
	// the schema.
	Complete(ctx context.Context, systemPrompt, userPrompt string, schema Schema) (json.RawMessage, error)

	// Model returns the model identifier, used in cache keys and logs.
	Model() string
}

// Invalidator is implemented by caching clients that can evict the entry
// for a specific call.
type Invalidator interface {
	// Invalidate removes any cached payload for the given call.
	Invalidate(systemPrompt, userPrompt string, schema Schema)
}
