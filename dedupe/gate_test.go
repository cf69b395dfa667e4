package dedupe

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/virajxp1/forkfolio/llm"
	"github.com/virajxp1/forkfolio/recipe"
	"github.com/virajxp1/forkfolio/vectorstore"
)

type stubEmbedder struct {
	err error
}

func (s *stubEmbedder) Generate(_ context.Context, texts []string) ([][]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{1, 0}
	}
	return vectors, nil
}

func (s *stubEmbedder) Dimensions() int { return 2 }
func (s *stubEmbedder) Model() string   { return "stub" }
func (s *stubEmbedder) Close() error    { return nil }

type stubSearcher struct {
	candidate *vectorstore.Candidate
	err       error
}

func (s *stubSearcher) Nearest(context.Context, string, []float32) (*vectorstore.Candidate, error) {
	return s.candidate, s.err
}

type stubRecipes struct {
	recipes map[string]*recipe.Recipe
	err     error
}

func (s *stubRecipes) Get(_ context.Context, id string) (*recipe.Recipe, error) {
	if s.err != nil {
		return nil, s.err
	}
	r, ok := s.recipes[id]
	if !ok {
		return nil, fmt.Errorf("recipe %s not found", id)
	}
	return r, nil
}

type stubJudge struct {
	payload json.RawMessage
	err     error
	calls   int
}

func (s *stubJudge) Complete(context.Context, string, string, llm.Schema) (json.RawMessage, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.payload, nil
}

func (s *stubJudge) Model() string { return "stub-judge" }

func storedRecipe() *recipe.Recipe {
	return &recipe.Recipe{
		ID:           "stored-1",
		Title:        "Chana Masala",
		Ingredients:  []string{"chickpeas", "onion"},
		Instructions: []string{"Cook"},
	}
}

func candidateRecipe() *recipe.Recipe {
	return &recipe.Recipe{
		Title:        "Chana Masala (Instant Pot)",
		Ingredients:  []string{"chickpeas", "onion"},
		Instructions: []string{"Pressure cook"},
	}
}

func newTestGate(t *testing.T, searcher *stubSearcher, judge *stubJudge, opts ...GateOption) *Gate {
	t.Helper()
	gate, err := NewGate(
		Config{StrictThreshold: 0.05, LooseThreshold: 0.25, EmbeddingType: recipe.EmbeddingTypeTitleIngredients},
		&stubEmbedder{},
		searcher,
		&stubRecipes{recipes: map[string]*recipe.Recipe{"stored-1": storedRecipe()}},
		judge,
		opts...,
	)
	require.NoError(t, err)
	return gate
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	bad := DefaultConfig()
	bad.StrictThreshold = 0.5
	bad.LooseThreshold = 0.2
	assert.Error(t, bad.Validate())

	bad = DefaultConfig()
	bad.EmbeddingType = ""
	assert.Error(t, bad.Validate())

	// Equal thresholds collapse the ambiguous band but stay valid.
	equal := DefaultConfig()
	equal.StrictThreshold = 0.2
	equal.LooseThreshold = 0.2
	assert.NoError(t, equal.Validate())
}

func TestStrictZoneSkipsJudge(t *testing.T) {
	judge := &stubJudge{}
	gate := newTestGate(t, &stubSearcher{candidate: &vectorstore.Candidate{RecipeID: "stored-1", Distance: 0.03}}, judge)

	isDup, id := gate.FindDuplicate(context.Background(), candidateRecipe())
	assert.True(t, isDup)
	assert.Equal(t, "stored-1", id)
	assert.Zero(t, judge.calls)
}

func TestLooseZoneSkipsJudge(t *testing.T) {
	judge := &stubJudge{}
	gate := newTestGate(t, &stubSearcher{candidate: &vectorstore.Candidate{RecipeID: "stored-1", Distance: 0.6}}, judge)

	isDup, id := gate.FindDuplicate(context.Background(), candidateRecipe())
	assert.False(t, isDup)
	assert.Empty(t, id)
	assert.Zero(t, judge.calls)
}

func TestBoundaryDistances(t *testing.T) {
	// Exactly at strict: duplicate without the judge.
	judge := &stubJudge{}
	gate := newTestGate(t, &stubSearcher{candidate: &vectorstore.Candidate{RecipeID: "stored-1", Distance: 0.05}}, judge)
	isDup, _ := gate.FindDuplicate(context.Background(), candidateRecipe())
	assert.True(t, isDup)
	assert.Zero(t, judge.calls)

	// Exactly at loose: still ambiguous, judge consulted.
	judge = &stubJudge{payload: json.RawMessage(`{"decision":"distinct","reason":"different method"}`)}
	gate = newTestGate(t, &stubSearcher{candidate: &vectorstore.Candidate{RecipeID: "stored-1", Distance: 0.25}}, judge)
	isDup, _ = gate.FindDuplicate(context.Background(), candidateRecipe())
	assert.False(t, isDup)
	assert.Equal(t, 1, judge.calls)
}

func TestAmbiguousJudgedDuplicate(t *testing.T) {
	judge := &stubJudge{payload: json.RawMessage(`{"decision":"duplicate","reason":"same dish"}`)}
	gate := newTestGate(t, &stubSearcher{candidate: &vectorstore.Candidate{RecipeID: "stored-1", Distance: 0.15}}, judge)

	isDup, id := gate.FindDuplicate(context.Background(), candidateRecipe())
	assert.True(t, isDup)
	assert.Equal(t, "stored-1", id)
}

func TestAmbiguousJudgedDistinct(t *testing.T) {
	judge := &stubJudge{payload: json.RawMessage(`{"decision":"distinct","reason":"different protein"}`)}
	gate := newTestGate(t, &stubSearcher{candidate: &vectorstore.Candidate{RecipeID: "stored-1", Distance: 0.15}}, judge)

	isDup, _ := gate.FindDuplicate(context.Background(), candidateRecipe())
	assert.False(t, isDup)
}

func TestFailOpenPaths(t *testing.T) {
	boom := stderrors.New("boom")

	t.Run("embedder failure", func(t *testing.T) {
		gate, err := NewGate(DefaultConfig(), &stubEmbedder{err: boom},
			&stubSearcher{}, &stubRecipes{}, &stubJudge{})
		require.NoError(t, err)
		isDup, _ := gate.FindDuplicate(context.Background(), candidateRecipe())
		assert.False(t, isDup)
	})

	t.Run("search failure", func(t *testing.T) {
		gate := newTestGate(t, &stubSearcher{err: boom}, &stubJudge{})
		isDup, _ := gate.FindDuplicate(context.Background(), candidateRecipe())
		assert.False(t, isDup)
	})

	t.Run("judge failure in ambiguous band", func(t *testing.T) {
		judge := &stubJudge{err: boom}
		gate := newTestGate(t, &stubSearcher{candidate: &vectorstore.Candidate{RecipeID: "stored-1", Distance: 0.15}}, judge)
		isDup, _ := gate.FindDuplicate(context.Background(), candidateRecipe())
		assert.False(t, isDup)
	})

	t.Run("unknown decision", func(t *testing.T) {
		judge := &stubJudge{payload: json.RawMessage(`{"decision":"maybe","reason":"unsure"}`)}
		gate := newTestGate(t, &stubSearcher{candidate: &vectorstore.Candidate{RecipeID: "stored-1", Distance: 0.15}}, judge)
		isDup, _ := gate.FindDuplicate(context.Background(), candidateRecipe())
		assert.False(t, isDup)
	})
}

func TestNoNeighborIsDistinct(t *testing.T) {
	judge := &stubJudge{}
	gate := newTestGate(t, &stubSearcher{candidate: nil}, judge)

	isDup, id := gate.FindDuplicate(context.Background(), candidateRecipe())
	assert.False(t, isDup)
	assert.Empty(t, id)
	assert.Zero(t, judge.calls)
}

func TestJudgePromptRendersBothRecipes(t *testing.T) {
	system, user := buildJudgePrompts(candidateRecipe(), storedRecipe())
	assert.Contains(t, system, "same dish")
	assert.Contains(t, user, "Recipe A (incoming):")
	assert.Contains(t, user, "Recipe B (stored):")
	assert.Contains(t, user, "- chickpeas")
	assert.Contains(t, user, "1. Pressure cook")
}
