package rerank

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLexTokens(t *testing.T) {
	tokens := lexTokens("Quick 15-Minute Thai Curry!")
	assert.Contains(t, tokens, "quick")
	assert.Contains(t, tokens, "minute")
	assert.Contains(t, tokens, "thai")
	assert.Contains(t, tokens, "curry")
	// Digits are separators, never token content.
	assert.NotContains(t, tokens, "15")
}

func TestBoostCompute(t *testing.T) {
	b := boosts{cuisine: 0.15, family: 0.10}

	// Cuisine keyword on both sides.
	cuisine, family := b.compute(lexTokens("indian dinner"), "Indian Butter Chicken")
	assert.Equal(t, 0.15, cuisine)
	assert.Zero(t, family)

	// Family terms may differ: a curry query matches a masala title.
	cuisine, family = b.compute(lexTokens("chickpea curry"), "Chana Masala")
	assert.Zero(t, cuisine)
	assert.Equal(t, 0.10, family)

	// Keyword on one side only earns nothing.
	cuisine, family = b.compute(lexTokens("thai curry"), "Beef Lasagna")
	assert.Zero(t, cuisine)
	assert.Zero(t, family)
}

func TestEmbeddingScore(t *testing.T) {
	assert.InDelta(t, 0.91, embeddingScore(ptr(0.09)), 1e-9)
	assert.Equal(t, 1.0, embeddingScore(ptr(-0.5)))
	assert.Equal(t, 0.0, embeddingScore(ptr(1.7)))
	assert.Equal(t, 0.0, embeddingScore(nil))
}

func TestRankMatchesBlending(t *testing.T) {
	candidates := []Candidate{
		{ID: "a", Name: "Chana Masala", Distance: ptr(0.09)},
		{ID: "b", Name: "Beef Stew", Distance: ptr(0.11)},
	}
	ranked := []RankedCandidate{
		{ID: "a", Score: 0.9},
		{ID: "b", Score: 0.3},
	}

	results, idsFound := rankMatches("chickpea curry", candidates, ranked, 0.4, 0.7, nil)
	assert.True(t, idsFound)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ID)
	assert.InDelta(t, 0.903, *results[0].CombinedScore, 1e-9)
	assert.InDelta(t, 0.9, *results[0].RerankScore, 1e-9)
	assert.InDelta(t, 0.91, *results[0].EmbeddingScore, 1e-9)
	// No boost ran, so no raw score is recorded.
	assert.Nil(t, results[0].RawRerankScore)
}

func TestRankMatchesIgnoresUnknownAndDuplicateIDs(t *testing.T) {
	candidates := []Candidate{{ID: "a", Name: "Chana Masala", Distance: ptr(0.1)}}
	ranked := []RankedCandidate{
		{ID: "ghost", Score: 0.9},
		{ID: "a", Score: 0.8},
		{ID: "a", Score: 0.2}, // duplicate id, ignored
	}

	results, idsFound := rankMatches("curry", candidates, ranked, 0.4, 0.7, nil)
	assert.True(t, idsFound)
	require.Len(t, results, 1)
	assert.InDelta(t, 0.8, *results[0].RerankScore, 1e-9)
}

func TestRankMatchesAllHallucinated(t *testing.T) {
	candidates := []Candidate{{ID: "a", Name: "Chana Masala", Distance: ptr(0.1)}}
	ranked := []RankedCandidate{{ID: "ghost", Score: 0.9}, {ID: "phantom", Score: 0.8}}

	results, idsFound := rankMatches("curry", candidates, ranked, 0.4, 0.7, nil)
	assert.False(t, idsFound)
	assert.Empty(t, results)
}

func TestRankMatchesOutOfRangeScore(t *testing.T) {
	candidates := []Candidate{{ID: "a", Name: "Chana Masala", Distance: ptr(0.1)}}
	ranked := []RankedCandidate{{ID: "a", Score: 1.5}}

	results, idsFound := rankMatches("curry", candidates, ranked, 0.4, 0.7, nil)
	// The id matched, but the item itself is unusable.
	assert.True(t, idsFound)
	assert.Empty(t, results)
}

func TestRankMatchesBoostRecordsRawScore(t *testing.T) {
	candidates := []Candidate{{ID: "a", Name: "Chana Masala", Distance: ptr(0.2)}}
	ranked := []RankedCandidate{{ID: "a", Score: 0.3}}
	b := &boosts{cuisine: 0.15, family: 0.10}

	results, idsFound := rankMatches("chickpea curry", candidates, ranked, 0.25, 0.7, b)
	assert.True(t, idsFound)
	require.Len(t, results, 1)
	assert.InDelta(t, 0.4, *results[0].RerankScore, 1e-9) // 0.3 + family 0.10
	require.NotNil(t, results[0].RawRerankScore)
	assert.InDelta(t, 0.3, *results[0].RawRerankScore, 1e-9)
	require.NotNil(t, results[0].FamilyBoost)
	assert.InDelta(t, 0.10, *results[0].FamilyBoost, 1e-9)
	assert.Nil(t, results[0].CuisineBoost)
}

func TestRankMatchesSortsByCombinedScore(t *testing.T) {
	candidates := []Candidate{
		{ID: "a", Name: "A", Distance: ptr(0.5)},
		{ID: "b", Name: "B", Distance: ptr(0.05)},
	}
	// Provider prefers a, but b's embedding score flips the blend.
	ranked := []RankedCandidate{
		{ID: "a", Score: 0.6},
		{ID: "b", Score: 0.58},
	}

	results, _ := rankMatches("query", candidates, ranked, 0.4, 0.5, nil)
	require.Len(t, results, 2)
	assert.Equal(t, "b", results[0].ID)
	assert.Equal(t, "a", results[1].ID)
}
