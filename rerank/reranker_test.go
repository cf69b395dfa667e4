package rerank

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/virajxp1/forkfolio/llm"
	"github.com/virajxp1/forkfolio/recipe"
)

type stubJudge struct {
	payload json.RawMessage
	err     error
	calls   int
	lastUsr string
}

func (s *stubJudge) Complete(_ context.Context, _, user string, _ llm.Schema) (json.RawMessage, error) {
	s.calls++
	s.lastUsr = user
	if s.err != nil {
		return nil, s.err
	}
	return s.payload, nil
}

func (s *stubJudge) Model() string { return "stub-judge" }

type stubPreviews struct {
	recipes map[string]*recipe.Recipe
	err     error
	lastIDs []string
}

func (s *stubPreviews) GetBatch(_ context.Context, ids []string) (map[string]*recipe.Recipe, error) {
	s.lastIDs = ids
	if s.err != nil {
		return nil, s.err
	}
	return s.recipes, nil
}

func testCandidates() []Candidate {
	return []Candidate{
		{ID: "a", Name: "Chana Masala", Distance: ptr(0.09)},
		{ID: "b", Name: "Beef Stew", Distance: ptr(0.11)},
	}
}

func newTestReranker(t *testing.T, config Config, judge llm.Client, opts ...Option) *Reranker {
	t.Helper()
	r, err := New(config, judge, opts...)
	require.NoError(t, err)
	return r
}

func TestConfigValidation(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	bad := DefaultConfig()
	bad.Weight = 1.5
	assert.Error(t, bad.Validate())

	bad = DefaultConfig()
	bad.MinScore = -0.1
	assert.Error(t, bad.Validate())

	_, err := New(DefaultConfig(), nil)
	assert.Error(t, err)
}

func TestStrictPassSurvivors(t *testing.T) {
	judge := &stubJudge{payload: json.RawMessage(`{"ranked":[{"id":"a","score":0.9},{"id":"b","score":0.3}]}`)}
	r := newTestReranker(t, Config{MinScore: 0.4, Weight: 0.7, PreviewIngredients: 8}, judge)

	results := r.RerankAndFilter(context.Background(), "chickpea curry", testCandidates(), 10)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ID)
	assert.InDelta(t, 0.903, *results[0].CombinedScore, 1e-9)
	assert.Empty(t, results[0].RerankMode)
}

func TestProviderFailureDegradesToDistanceOrder(t *testing.T) {
	judge := &stubJudge{err: stderrors.New("boom")}
	r := newTestReranker(t, DefaultConfig(), judge)

	results := r.RerankAndFilter(context.Background(), "curry", testCandidates(), 10)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].ID)
	assert.Equal(t, "b", results[1].ID)
	// Degraded results carry no scores.
	assert.Nil(t, results[0].CombinedScore)
	assert.Nil(t, results[0].RerankScore)
}

func TestHallucinatedIDsDegradeToDistanceOrder(t *testing.T) {
	judge := &stubJudge{payload: json.RawMessage(`{"ranked":[{"id":"ghost","score":0.9}]}`)}
	r := newTestReranker(t, DefaultConfig(), judge)

	results := r.RerankAndFilter(context.Background(), "curry", testCandidates(), 1)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ID)
	assert.Nil(t, results[0].CombinedScore)
}

func TestFallbackEscalation(t *testing.T) {
	// Both scores below the strict cutoff; the family boost lifts "a"
	// past the fallback cutoff.
	judge := &stubJudge{payload: json.RawMessage(`{"ranked":[{"id":"a","score":0.3},{"id":"b","score":0.1}]}`)}
	config := Config{MinScore: 0.5, FallbackMinScore: 0.35, Weight: 0.7, CuisineBoost: 0.15, FamilyBoost: 0.10}
	r := newTestReranker(t, config, judge)

	results := r.RerankAndFilter(context.Background(), "chickpea curry", testCandidates(), 10)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ID)
	assert.Equal(t, ModeFallback, results[0].RerankMode)
	assert.InDelta(t, 0.4, *results[0].RerankScore, 1e-9)
	require.NotNil(t, results[0].RawRerankScore)
	assert.InDelta(t, 0.3, *results[0].RawRerankScore, 1e-9)
	// One provider call serves both passes.
	assert.Equal(t, 1, judge.calls)
}

func TestNoFallbackConfiguredReturnsEmpty(t *testing.T) {
	judge := &stubJudge{payload: json.RawMessage(`{"ranked":[{"id":"a","score":0.1}]}`)}

	// No fallback threshold at all.
	r := newTestReranker(t, Config{MinScore: 0.5, Weight: 0.7}, judge)
	assert.Empty(t, r.RerankAndFilter(context.Background(), "curry", testCandidates(), 10))

	// Fallback threshold not strictly lower.
	r = newTestReranker(t, Config{MinScore: 0.5, FallbackMinScore: 0.5, Weight: 0.7}, judge)
	assert.Empty(t, r.RerankAndFilter(context.Background(), "curry", testCandidates(), 10))
}

func TestLimitTruncation(t *testing.T) {
	judge := &stubJudge{payload: json.RawMessage(`{"ranked":[{"id":"a","score":0.9},{"id":"b","score":0.8}]}`)}
	r := newTestReranker(t, Config{MinScore: 0.4, Weight: 0.7}, judge)

	results := r.RerankAndFilter(context.Background(), "curry", testCandidates(), 1)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ID)
}

func TestEmptyInputs(t *testing.T) {
	judge := &stubJudge{}
	r := newTestReranker(t, DefaultConfig(), judge)

	assert.Empty(t, r.RerankAndFilter(context.Background(), "curry", nil, 10))
	assert.Empty(t, r.RerankAndFilter(context.Background(), "curry", testCandidates(), 0))
	assert.Zero(t, judge.calls)
}

func TestEnrichmentAttachesPreviews(t *testing.T) {
	judge := &stubJudge{payload: json.RawMessage(`{"ranked":[{"id":"a","score":0.9}]}`)}
	previews := &stubPreviews{recipes: map[string]*recipe.Recipe{
		"a": {ID: "a", Title: "Chana Masala", Ingredients: []string{"chickpeas", "onion", "garam masala"}},
	}}
	config := Config{MinScore: 0.4, Weight: 0.7, PreviewIngredients: 2}
	r := newTestReranker(t, config, judge, WithPreviews(previews))

	r.RerankAndFilter(context.Background(), "curry", testCandidates(), 10)
	assert.Equal(t, []string{"a", "b"}, previews.lastIDs)
	// The provider payload carries the truncated preview.
	assert.Contains(t, judge.lastUsr, `"ingredients_preview":["chickpeas","onion"]`)
	// Missing recipes default to an empty preview.
	assert.Contains(t, judge.lastUsr, `"ingredients_preview":[]`)
}

func TestEnrichmentFailureIsBestEffort(t *testing.T) {
	judge := &stubJudge{payload: json.RawMessage(`{"ranked":[{"id":"a","score":0.9}]}`)}
	previews := &stubPreviews{err: stderrors.New("store down")}
	r := newTestReranker(t, Config{MinScore: 0.4, Weight: 0.7, PreviewIngredients: 8}, judge, WithPreviews(previews))

	results := r.RerankAndFilter(context.Background(), "curry", testCandidates(), 10)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ID)
}

func TestQueryNormalizedBeforeRanking(t *testing.T) {
	judge := &stubJudge{payload: json.RawMessage(`{"ranked":[{"id":"a","score":0.9}]}`)}
	r := newTestReranker(t, Config{MinScore: 0.4, Weight: 0.7}, judge)

	r.RerankAndFilter(context.Background(), `  "chana   masala"  `, testCandidates(), 10)
	assert.Contains(t, judge.lastUsr, `"query":"chana masala"`)
}
