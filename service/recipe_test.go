package service

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/virajxp1/forkfolio/config"
	"github.com/virajxp1/forkfolio/errors"
	"github.com/virajxp1/forkfolio/ingest"
	"github.com/virajxp1/forkfolio/pkg/worker"
	"github.com/virajxp1/forkfolio/recipe"
	"github.com/virajxp1/forkfolio/rerank"
	"github.com/virajxp1/forkfolio/vectorstore"
)

type stubIngestor struct {
	result *ingest.Result
	err    error
	gotRaw string
}

func (s *stubIngestor) Ingest(_ context.Context, rawText string) (*ingest.Result, error) {
	s.gotRaw = rawText
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

type stubBulk struct {
	submitted []string
	failAfter int
}

func (s *stubBulk) Submit(rawText string) error {
	if s.failAfter > 0 && len(s.submitted) >= s.failAfter {
		return worker.ErrQueueFull
	}
	s.submitted = append(s.submitted, rawText)
	return nil
}

func (s *stubBulk) Stats() worker.PoolStats { return worker.PoolStats{} }

type stubRecipeStore struct {
	recipes map[string]*recipe.Recipe
	err     error
	deleted []string
	updated *recipe.Recipe
}

func (s *stubRecipeStore) Get(_ context.Context, id string) (*recipe.Recipe, error) {
	if s.err != nil {
		return nil, s.err
	}
	r, ok := s.recipes[id]
	if !ok {
		return nil, errors.WrapInvalid(errors.ErrNotFound, "recipestore", "Get", "recipe not found")
	}
	return r, nil
}

func (s *stubRecipeStore) GetBatch(_ context.Context, ids []string) (map[string]*recipe.Recipe, error) {
	if s.err != nil {
		return nil, s.err
	}
	found := make(map[string]*recipe.Recipe)
	for _, id := range ids {
		if r, ok := s.recipes[id]; ok {
			found[id] = r
		}
	}
	return found, nil
}

func (s *stubRecipeStore) Update(_ context.Context, r *recipe.Recipe) error {
	if s.err != nil {
		return s.err
	}
	s.updated = r
	return nil
}

func (s *stubRecipeStore) Delete(_ context.Context, id string) error {
	s.deleted = append(s.deleted, id)
	return s.err
}

func (s *stubRecipeStore) List(_ context.Context) ([]*recipe.Recipe, error) {
	if s.err != nil {
		return nil, s.err
	}
	all := make([]*recipe.Recipe, 0, len(s.recipes))
	for _, r := range s.recipes {
		all = append(all, r)
	}
	return all, nil
}

type stubVectors struct {
	hits []vectorstore.Candidate
	err  error
	gotK int
}

func (s *stubVectors) Search(_ context.Context, _ string, _ []float32, k int, _ float64) ([]vectorstore.Candidate, error) {
	s.gotK = k
	if s.err != nil {
		return nil, s.err
	}
	return s.hits, nil
}

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

type stubReranker struct {
	results  []rerank.Result
	gotQuery string
	gotLimit int
	gotCands []rerank.Candidate
}

func (s *stubReranker) RerankAndFilter(_ context.Context, query string, candidates []rerank.Candidate, limit int) []rerank.Result {
	s.gotQuery = query
	s.gotCands = candidates
	s.gotLimit = limit
	if s.results != nil {
		return s.results
	}
	results := make([]rerank.Result, len(candidates))
	for i, c := range candidates {
		results[i] = rerank.Result{ID: c.ID, Name: c.Name, Distance: c.Distance}
	}
	return results
}

type testService struct {
	svc      *RecipeService
	ingestor *stubIngestor
	bulk     *stubBulk
	store    *stubRecipeStore
	vectors  *stubVectors
	embedder *stubEmbedder
	reranker *stubReranker
}

func newTestService(t *testing.T) *testService {
	t.Helper()
	ts := &testService{
		ingestor: &stubIngestor{},
		bulk:     &stubBulk{},
		store:    &stubRecipeStore{recipes: make(map[string]*recipe.Recipe)},
		vectors:  &stubVectors{},
		embedder: &stubEmbedder{},
		reranker: &stubReranker{},
	}

	svc, err := NewRecipeService(config.Default(), Dependencies{
		Recipes:  ts.store,
		Vectors:  ts.vectors,
		Embedder: ts.embedder,
		Reranker: ts.reranker,
		Ingestor: ts.ingestor,
		Bulk:     ts.bulk,
	})
	require.NoError(t, err)
	ts.svc = svc
	return ts
}

func (ts *testService) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	ts.svc.Routes().ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload
}

func TestNewRecipeServiceRequiresDependencies(t *testing.T) {
	_, err := NewRecipeService(config.Default(), Dependencies{})
	assert.Error(t, err)

	_, err = NewRecipeService(nil, Dependencies{})
	assert.Error(t, err)
}

func TestIngestEndpointStored(t *testing.T) {
	ts := newTestService(t)
	ts.ingestor.result = &ingest.Result{
		Status: ingest.StatusStored,
		Recipe: &recipe.Recipe{ID: "r1", Title: "Chana Masala"},
	}

	rec := ts.do(t, http.MethodPost, "/api/v1/recipes/ingest", `{"text":"some raw recipe text"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)

	payload := decodeResponse(t, rec)
	assert.Equal(t, true, payload["success"])
	assert.Equal(t, "stored", payload["status"])
	assert.Equal(t, "some raw recipe text", ts.ingestor.gotRaw)
}

func TestIngestEndpointDuplicate(t *testing.T) {
	ts := newTestService(t)
	ts.ingestor.result = &ingest.Result{Status: ingest.StatusDuplicate, DuplicateOf: "r0"}

	rec := ts.do(t, http.MethodPost, "/api/v1/recipes/ingest", `{"text":"same recipe again"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	payload := decodeResponse(t, rec)
	assert.Equal(t, "duplicate", payload["status"])
	assert.Equal(t, "r0", payload["duplicate_of"])
}

func TestIngestEndpointInvalidInput(t *testing.T) {
	ts := newTestService(t)
	ts.ingestor.err = errors.WrapInvalid(errors.ErrInvalidData, "ingest", "Ingest", "input too short")

	rec := ts.do(t, http.MethodPost, "/api/v1/recipes/ingest", `{"text":"hi"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIngestEndpointBadBody(t *testing.T) {
	ts := newTestService(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/recipes/ingest", "not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/v1/recipes/ingest", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBulkIngestEndpoint(t *testing.T) {
	ts := newTestService(t)
	ts.bulk.failAfter = 2

	rec := ts.do(t, http.MethodPost, "/api/v1/recipes/ingest/bulk", `{"texts":["a","b","c"]}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	payload := decodeResponse(t, rec)
	assert.Equal(t, float64(2), payload["accepted"])
	assert.Equal(t, float64(1), payload["dropped"])
}

func TestBulkIngestEndpointEmpty(t *testing.T) {
	ts := newTestService(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/recipes/ingest/bulk", `{"texts":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetRecipeEndpoint(t *testing.T) {
	ts := newTestService(t)
	ts.store.recipes["r1"] = &recipe.Recipe{ID: "r1", Title: "Chana Masala"}

	rec := ts.do(t, http.MethodGet, "/api/v1/recipes/r1", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/recipes/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListRecipesEndpoint(t *testing.T) {
	ts := newTestService(t)
	ts.store.recipes["r1"] = &recipe.Recipe{ID: "r1", Title: "Chana Masala"}
	ts.store.recipes["r2"] = &recipe.Recipe{ID: "r2", Title: "Minestrone"}

	rec := ts.do(t, http.MethodGet, "/api/v1/recipes", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), decodeResponse(t, rec)["count"])
}

func TestUpdateRecipeEndpoint(t *testing.T) {
	ts := newTestService(t)

	body := `{"title":"Chana Masala","ingredients":["chickpeas"],"instructions":["simmer"]}`
	rec := ts.do(t, http.MethodPut, "/api/v1/recipes/r1", body)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, ts.store.updated)
	assert.Equal(t, "r1", ts.store.updated.ID)

	// Missing title fails validation before hitting the store.
	rec = ts.do(t, http.MethodPut, "/api/v1/recipes/r1", `{"ingredients":["x"],"instructions":["y"]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteRecipeEndpoint(t *testing.T) {
	ts := newTestService(t)

	rec := ts.do(t, http.MethodDelete, "/api/v1/recipes/r1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"r1"}, ts.store.deleted)
}

func TestSearchEndpoint(t *testing.T) {
	ts := newTestService(t)
	ts.store.recipes["r1"] = &recipe.Recipe{ID: "r1", Title: "Chana Masala"}
	ts.store.recipes["r2"] = &recipe.Recipe{ID: "r2", Title: "Minestrone"}
	ts.vectors.hits = []vectorstore.Candidate{
		{RecipeID: "r1", Distance: 0.10},
		{RecipeID: "r2", Distance: 0.20},
		{RecipeID: "gone", Distance: 0.25}, // vector without a recipe
	}

	rec := ts.do(t, http.MethodGet, "/api/v1/recipes/search/semantic?q=chana+masala", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	payload := decodeResponse(t, rec)
	assert.Equal(t, "chana masala", payload["query"])
	assert.Equal(t, float64(2), payload["count"])

	// Candidate pool excludes the orphaned vector and carries titles.
	require.Len(t, ts.reranker.gotCands, 2)
	assert.Equal(t, "Chana Masala", ts.reranker.gotCands[0].Name)
	require.NotNil(t, ts.reranker.gotCands[0].Distance)
	assert.InDelta(t, 0.10, *ts.reranker.gotCands[0].Distance, 1e-9)

	// Pool size is limit * candidate factor.
	cfg := config.Default()
	assert.Equal(t, cfg.Search.DefaultLimit*cfg.Search.CandidateFactor, ts.vectors.gotK)
}

func TestSearchEndpointRejectsShortQuery(t *testing.T) {
	ts := newTestService(t)

	rec := ts.do(t, http.MethodGet, "/api/v1/recipes/search/semantic?q=x", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/recipes/search/semantic", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchEndpointLimitHandling(t *testing.T) {
	ts := newTestService(t)

	rec := ts.do(t, http.MethodGet, "/api/v1/recipes/search/semantic?q=pasta&limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/recipes/search/semantic?q=pasta&limit=-2", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Oversized limits clamp to the configured maximum.
	rec = ts.do(t, http.MethodGet, "/api/v1/recipes/search/semantic?q=pasta&limit=9999", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, config.Default().Search.MaxLimit, ts.reranker.gotLimit)
}

func TestSearchEndpointEmbedderFailure(t *testing.T) {
	ts := newTestService(t)
	ts.embedder.err = stderrors.New("provider down")

	rec := ts.do(t, http.MethodGet, "/api/v1/recipes/search/semantic?q=pasta", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSearchEndpointNoHits(t *testing.T) {
	ts := newTestService(t)

	rec := ts.do(t, http.MethodGet, "/api/v1/recipes/search/semantic?q=pasta", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), decodeResponse(t, rec)["count"])
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestService(t)

	// Not started yet.
	rec := ts.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, ts.svc.BaseService.Start(ctx))
	ts.svc.performHealthCheck()

	rec = ts.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, ts.svc.BaseService.Stop(0))
}
