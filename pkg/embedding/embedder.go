// Package embedding provides vector embedding generation for semantic
// recipe search: an OpenAI-compatible HTTP provider, a lexical BM25
// fallback, and a caching wrapper.
package embedding

import (
	"context"

	"github.com/virajxp1/forkfolio/errors"
)

// Embedder generates vector embeddings for text.
//
// Implementations batch natively; for a single text use One.
type Embedder interface {
	// Generate creates one embedding per input text, in input order.
	Generate(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the dimensionality of produced vectors.
	Dimensions() int

	// Model returns the model identifier, used in cache keys and logs.
	Model() string

	// Close releases any resources held by the embedder.
	Close() error
}

// One embeds a single text.
func One(ctx context.Context, e Embedder, text string) ([]float32, error) {
	vectors, err := e.Generate(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 || len(vectors[0]) == 0 {
		return nil, errors.WrapTransient(errors.ErrEmptyResult, "embedding", "One", "generate single embedding")
	}
	return vectors[0], nil
}
