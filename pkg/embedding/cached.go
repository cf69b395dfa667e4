package embedding

import (
	"context"
	"log/slog"

	"github.com/virajxp1/forkfolio/pkg/cache"
)

// CachedEmbedder wraps an Embedder with a fingerprint-keyed cache.
//
// Keys combine the model identifier and the exact input text, so switching
// models never serves stale vectors. Cache failures are logged and
// swallowed: a broken cache degrades to pass-through, never to an error.
type CachedEmbedder struct {
	inner  Embedder
	cache  cache.Cache[[]float32]
	logger *slog.Logger
}

// NewCachedEmbedder wraps inner with the given cache.
func NewCachedEmbedder(inner Embedder, c cache.Cache[[]float32], logger *slog.Logger) *CachedEmbedder {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedEmbedder{
		inner:  inner,
		cache:  c,
		logger: logger.With("component", "embedding"),
	}
}

// Generate serves cached vectors where possible and batches the misses
// into a single provider call.
func (e *CachedEmbedder) Generate(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	vectors := make([][]float32, len(texts))
	var missIndexes []int
	var missTexts []string

	for i, text := range texts {
		if cached, ok := e.cache.Get(e.key(text)); ok {
			vectors[i] = cached
			continue
		}
		missIndexes = append(missIndexes, i)
		missTexts = append(missTexts, text)
	}

	if len(missTexts) == 0 {
		return vectors, nil
	}

	fresh, err := e.inner.Generate(ctx, missTexts)
	if err != nil {
		return nil, err
	}

	for i, vector := range fresh {
		vectors[missIndexes[i]] = vector
		if _, err := e.cache.Set(e.key(missTexts[i]), vector); err != nil {
			e.logger.Warn("embedding cache set failed", "error", err)
		}
	}

	return vectors, nil
}

func (e *CachedEmbedder) key(text string) string {
	return cache.Fingerprint(e.inner.Model(), text)
}

// Dimensions returns the inner embedder's dimensionality.
func (e *CachedEmbedder) Dimensions() int {
	return e.inner.Dimensions()
}

// Model returns the inner embedder's model identifier.
func (e *CachedEmbedder) Model() string {
	return e.inner.Model()
}

// Close closes the inner embedder.
func (e *CachedEmbedder) Close() error {
	return e.inner.Close()
}
