// Package rerank reorders distance-ranked search candidates with an LLM
// relevance ranking blended against the embedding-derived score.
//
// The reranker never hard-fails: provider errors degrade to the original
// distance order, unusable provider output falls back the same way, and
// an empty strict pass can escalate to a relaxed pass with bounded
// lexical boosts.
package rerank

// Candidate is a distance-ranked search hit entering the reranker.
type Candidate struct {
	ID   string
	Name string

	// Distance is the cosine distance from the query vector. Nil when the
	// upstream lookup could not attach one; such candidates score zero on
	// the embedding side.
	Distance *float64

	// IngredientsPreview is attached during enrichment. Empty when the
	// batched lookup failed or the recipe is missing.
	IngredientsPreview []string
}

// Result is a reranked search hit. Score fields are nil in degraded mode,
// where results carry only the original candidate identity and distance.
type Result struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Distance *float64 `json:"distance,omitempty"`

	RerankScore    *float64 `json:"rerank_score,omitempty"`
	EmbeddingScore *float64 `json:"embedding_score,omitempty"`
	CombinedScore  *float64 `json:"combined_score,omitempty"`

	// RawRerankScore is set only when a lexical boost changed the score.
	RawRerankScore *float64 `json:"raw_rerank_score,omitempty"`
	CuisineBoost   *float64 `json:"cuisine_boost,omitempty"`
	FamilyBoost    *float64 `json:"family_boost,omitempty"`

	// RerankMode tags results from the relaxed second pass as "fallback".
	RerankMode string `json:"rerank_mode,omitempty"`
}

// RankedCandidate is one entry of the provider's ranking output.
type RankedCandidate struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// Ranking is the provider's structured ranking response.
type Ranking struct {
	Ranked []RankedCandidate `json:"ranked"`
}

func ptr(v float64) *float64 {
	return &v
}
