package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"unicode"
)

// BM25Embedder produces lexical feature-hashed vectors using BM25 term
// weighting. It is the provider-free fallback when no neural embedding
// service is configured: exact term overlap still ranks sensibly, though
// it will not capture semantic similarity.
//
// Document statistics (IDF, average length) accumulate incrementally from
// every text the embedder sees.
type BM25Embedder struct {
	dimensions int
	k1         float64 // term frequency saturation
	b          float64 // length normalization

	mu             sync.RWMutex
	docCount       int
	avgDocLength   float64
	totalDocLength int
	termDocCount   map[string]int
}

// BM25Config configures the lexical embedder. Zero values take the
// standard defaults (384 dimensions, k1=1.5, b=0.75).
type BM25Config struct {
	Dimensions int
	K1         float64
	B          float64
}

// NewBM25Embedder creates a lexical fallback embedder.
func NewBM25Embedder(cfg BM25Config) *BM25Embedder {
	if cfg.Dimensions == 0 {
		cfg.Dimensions = 384
	}
	if cfg.K1 == 0 {
		cfg.K1 = 1.5
	}
	if cfg.B == 0 {
		cfg.B = 0.75
	}
	return &BM25Embedder{
		dimensions:   cfg.Dimensions,
		k1:           cfg.K1,
		b:            cfg.B,
		termDocCount: make(map[string]int),
	}
}

// Generate embeds each text with the statistics known at that point, then
// folds the text's terms into the statistics.
func (e *BM25Embedder) Generate(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		if i%100 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		tokens := tokenize(text)
		if len(tokens) == 0 {
			vectors[i] = make([]float32, e.dimensions)
			continue
		}

		freq := make(map[string]int, len(tokens))
		for _, token := range tokens {
			freq[token]++
		}

		vectors[i] = e.score(freq, len(tokens))
		e.observe(tokens)
	}

	return vectors, nil
}

// Dimensions returns the vector dimensionality.
func (e *BM25Embedder) Dimensions() int {
	return e.dimensions
}

// Model returns a stable identifier including the tuning parameters.
func (e *BM25Embedder) Model() string {
	return fmt.Sprintf("bm25-k%.1f-b%.2f", e.k1, e.b)
}

// Close is a no-op.
func (e *BM25Embedder) Close() error {
	return nil
}

// tokenize lowercases and splits on non-alphanumeric runes, dropping
// single-character tokens.
func tokenize(text string) []string {
	text = strings.ToLower(text)

	var tokens []string
	var current strings.Builder
	flush := func() {
		if current.Len() >= 2 {
			tokens = append(tokens, current.String())
		}
		current.Reset()
	}

	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			current.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()

	return tokens
}

// observe folds one document's tokens into the corpus statistics.
func (e *BM25Embedder) observe(tokens []string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.docCount++
	e.totalDocLength += len(tokens)
	e.avgDocLength = float64(e.totalDocLength) / float64(e.docCount)

	seen := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		if _, ok := seen[token]; !ok {
			e.termDocCount[token]++
			seen[token] = struct{}{}
		}
	}
}

// score builds the feature-hashed BM25 vector for one document.
func (e *BM25Embedder) score(freq map[string]int, docLength int) []float32 {
	vector := make([]float32, e.dimensions)

	e.mu.RLock()
	defer e.mu.RUnlock()

	avgLen := e.avgDocLength
	if avgLen == 0 {
		avgLen = float64(docLength)
	}

	for term, tf := range freq {
		idf := 1.0
		if e.docCount > 0 {
			df := e.termDocCount[term]
			if df == 0 {
				df = 1
			}
			idf = math.Log((float64(e.docCount-df) + 0.5) / (float64(df) + 0.5))
			if idf < 0.01 {
				idf = 0.01
			}
		}

		numerator := float64(tf) * (e.k1 + 1)
		denominator := float64(tf) + e.k1*(1-e.b+e.b*(float64(docLength)/avgLen))

		vector[e.hashTerm(term)] += float32(idf * numerator / denominator)
	}

	l2Normalize(vector)
	return vector
}

func (e *BM25Embedder) hashTerm(term string) int {
	h := fnv.New32a()
	h.Write([]byte(term))
	return int(h.Sum32() % uint32(e.dimensions))
}

func l2Normalize(vector []float32) {
	var sumSquares float64
	for _, v := range vector {
		sumSquares += float64(v) * float64(v)
	}
	if sumSquares == 0 {
		return
	}
	norm := float32(math.Sqrt(sumSquares))
	for i := range vector {
		vector[i] /= norm
	}
}
