package llm

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/virajxp1/forkfolio/pkg/cache"
)

// CachedClient memoizes structured completions.
//
// The key fingerprints every semantic input of the call: model, schema
// name, schema body, system prompt, and user prompt. Any change to any of
// them is a different key, so prompt or schema revisions never serve
// stale payloads.
type CachedClient struct {
	inner  Client
	cache  cache.Cache[json.RawMessage]
	logger *slog.Logger
}

// NewCachedClient wraps inner with the given cache.
func NewCachedClient(inner Client, c cache.Cache[json.RawMessage], logger *slog.Logger) *CachedClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedClient{
		inner:  inner,
		cache:  c,
		logger: logger.With("component", "llm"),
	}
}

// Complete returns the cached payload when present, otherwise calls the
// inner client and caches the result.
func (c *CachedClient) Complete(ctx context.Context, systemPrompt, userPrompt string, schema Schema) (json.RawMessage, error) {
	key := c.key(systemPrompt, userPrompt, schema)

	if cached, ok := c.cache.Get(key); ok {
		return cached, nil
	}

	payload, err := c.inner.Complete(ctx, systemPrompt, userPrompt, schema)
	if err != nil {
		return nil, err
	}

	if _, err := c.cache.Set(key, payload); err != nil {
		c.logger.Warn("completion cache set failed", "schema", schema.Name, "error", err)
	}
	return payload, nil
}

// Invalidate evicts the cached payload for the given call, if any.
func (c *CachedClient) Invalidate(systemPrompt, userPrompt string, schema Schema) {
	if _, err := c.cache.Delete(c.key(systemPrompt, userPrompt, schema)); err != nil {
		c.logger.Warn("completion cache delete failed", "schema", schema.Name, "error", err)
	}
}

// Model returns the inner client's model identifier.
func (c *CachedClient) Model() string {
	return c.inner.Model()
}

func (c *CachedClient) key(systemPrompt, userPrompt string, schema Schema) string {
	return cache.Fingerprint(c.inner.Model(), schema.Name, string(schema.Schema), systemPrompt, userPrompt)
}
