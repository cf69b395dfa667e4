package service

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/virajxp1/forkfolio/config"
	"github.com/virajxp1/forkfolio/errors"
	"github.com/virajxp1/forkfolio/ingest"
	"github.com/virajxp1/forkfolio/metric"
	"github.com/virajxp1/forkfolio/natsclient"
	"github.com/virajxp1/forkfolio/pkg/embedding"
	"github.com/virajxp1/forkfolio/pkg/worker"
	"github.com/virajxp1/forkfolio/recipe"
	"github.com/virajxp1/forkfolio/rerank"
	"github.com/virajxp1/forkfolio/vectorstore"
)

// Ingestor processes one raw recipe text end to end.
type Ingestor interface {
	Ingest(ctx context.Context, rawText string) (*ingest.Result, error)
}

// BulkSubmitter queues raw texts for background ingestion.
type BulkSubmitter interface {
	Submit(rawText string) error
	Stats() worker.PoolStats
}

// RecipeStore is the recipe persistence surface the HTTP API needs.
type RecipeStore interface {
	Get(ctx context.Context, id string) (*recipe.Recipe, error)
	GetBatch(ctx context.Context, ids []string) (map[string]*recipe.Recipe, error)
	Update(ctx context.Context, r *recipe.Recipe) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*recipe.Recipe, error)
}

// VectorSearcher finds nearest stored vectors for a query vector.
type VectorSearcher interface {
	Search(ctx context.Context, embeddingType string, vector []float32, k int, maxDistance float64) ([]vectorstore.Candidate, error)
}

// Reranker reorders distance-ranked candidates for a query.
type Reranker interface {
	RerankAndFilter(ctx context.Context, query string, candidates []rerank.Candidate, limit int) []rerank.Result
}

// Dependencies carries everything the recipe service needs. NATSClient and
// Bulk are optional; the rest are required.
type Dependencies struct {
	NATSClient *natsclient.Client
	Registry   *metric.Registry
	Logger     *slog.Logger

	Recipes  RecipeStore
	Vectors  VectorSearcher
	Embedder embedding.Embedder
	Reranker Reranker
	Ingestor Ingestor
	Bulk     BulkSubmitter
}

// RecipeService exposes ingestion, search, and recipe CRUD over HTTP.
type RecipeService struct {
	*BaseService

	cfg    *config.Config
	deps   Dependencies
	logger *slog.Logger
	server *http.Server
}

// NewRecipeService creates the HTTP recipe service.
func NewRecipeService(cfg *config.Config, deps Dependencies) (*RecipeService, error) {
	if cfg == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "RecipeService", "NewRecipeService", "config is required")
	}
	if deps.Recipes == nil || deps.Vectors == nil || deps.Embedder == nil ||
		deps.Reranker == nil || deps.Ingestor == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "RecipeService", "NewRecipeService",
			"recipes, vectors, embedder, reranker, and ingestor are required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("service", "recipe-service")

	opts := []Option{WithLogger(logger)}
	if deps.NATSClient != nil {
		opts = append(opts, WithNATS(deps.NATSClient))
	}
	if deps.Registry != nil {
		opts = append(opts, WithMetrics(deps.Registry))
	}

	s := &RecipeService{
		BaseService: NewBaseService("recipe-service", opts...),
		cfg:         cfg,
		deps:        deps,
		logger:      logger,
	}

	s.server = &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      s.Routes(),
		ReadTimeout:  cfg.HTTP.ReadTimeout.Std(),
		WriteTimeout: cfg.HTTP.WriteTimeout.Std(),
	}

	return s, nil
}

// Routes builds the HTTP mux for the service.
func (s *RecipeService) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/recipes/ingest", s.handleIngest)
	mux.HandleFunc("POST /api/v1/recipes/ingest/bulk", s.handleBulkIngest)
	mux.HandleFunc("GET /api/v1/recipes/search/semantic", s.handleSearch)
	mux.HandleFunc("GET /api/v1/recipes", s.handleList)
	mux.HandleFunc("GET /api/v1/recipes/{id}", s.handleGet)
	mux.HandleFunc("PUT /api/v1/recipes/{id}", s.handleUpdate)
	mux.HandleFunc("DELETE /api/v1/recipes/{id}", s.handleDelete)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	if s.deps.Registry != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(
			s.deps.Registry.PrometheusRegistry(),
			promhttp.HandlerOpts{},
		))
	}

	return mux
}

// Start starts the base lifecycle and the HTTP listener.
func (s *RecipeService) Start(ctx context.Context) error {
	if err := s.BaseService.Start(ctx); err != nil {
		return err
	}

	go func() {
		s.logger.Info("http server listening", "addr", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server failed", "error", err)
		}
	}()

	return nil
}

// Stop shuts down the HTTP listener, then the base lifecycle.
func (s *RecipeService) Stop(timeout time.Duration) error {
	if timeout == 0 {
		timeout = s.cfg.HTTP.ShutdownTimeout.Std()
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Warn("http server shutdown incomplete", "error", err)
	}

	return s.BaseService.Stop(timeout)
}

type ingestRequest struct {
	Text string `json:"text"`
}

func (s *RecipeService) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := s.deps.Ingestor.Ingest(r.Context(), req.Text)
	if err != nil {
		s.logger.Warn("ingest failed", "error", err)
		writeError(w, statusFromError(err), sanitizeError(err))
		return
	}

	statusCode := http.StatusOK
	if result.Status == ingest.StatusStored {
		statusCode = http.StatusCreated
	}
	writeJSON(w, statusCode, map[string]any{
		"success":      true,
		"status":       result.Status,
		"recipe":       result.Recipe,
		"duplicate_of": result.DuplicateOf,
	})
}

type bulkIngestRequest struct {
	Texts []string `json:"texts"`
}

func (s *RecipeService) handleBulkIngest(w http.ResponseWriter, r *http.Request) {
	if s.deps.Bulk == nil {
		writeError(w, http.StatusNotImplemented, "bulk ingestion is not enabled")
		return
	}

	var req bulkIngestRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Texts) == 0 {
		writeError(w, http.StatusBadRequest, "texts must not be empty")
		return
	}

	accepted, dropped := 0, 0
	for _, text := range req.Texts {
		if err := s.deps.Bulk.Submit(text); err != nil {
			dropped++
			continue
		}
		accepted++
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"success":  true,
		"accepted": accepted,
		"dropped":  dropped,
	})
}

func (s *RecipeService) handleList(w http.ResponseWriter, r *http.Request) {
	recipes, err := s.deps.Recipes.List(r.Context())
	if err != nil {
		writeError(w, statusFromError(err), sanitizeError(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"count":   len(recipes),
		"recipes": recipes,
	})
}

func (s *RecipeService) handleGet(w http.ResponseWriter, r *http.Request) {
	rec, err := s.deps.Recipes.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, statusFromError(err), sanitizeError(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"recipe":  rec,
	})
}

func (s *RecipeService) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var rec recipe.Recipe
	if !decodeBody(w, r, &rec) {
		return
	}
	rec.ID = r.PathValue("id")

	if err := rec.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, sanitizeError(err))
		return
	}
	if err := s.deps.Recipes.Update(r.Context(), &rec); err != nil {
		writeError(w, statusFromError(err), sanitizeError(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"recipe":  rec,
	})
}

func (s *RecipeService) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Recipes.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, statusFromError(err), sanitizeError(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *RecipeService) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		query = r.URL.Query().Get("query")
	}
	if !rerank.ValidQuery(query) {
		writeError(w, http.StatusBadRequest, "query must contain at least 2 non-whitespace characters")
		return
	}

	limit := s.cfg.Search.DefaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(parsed, s.cfg.Search.MaxLimit)
	}

	s.recordSearch()

	results, err := s.search(r.Context(), query, limit)
	if err != nil {
		s.logger.Warn("search failed", "error", err)
		writeError(w, statusFromError(err), sanitizeError(err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"query":   query,
		"count":   len(results),
		"results": results,
	})
}

// search embeds the query, gathers nearest candidates, attaches titles,
// and hands the pool to the reranker.
func (s *RecipeService) search(ctx context.Context, query string, limit int) ([]rerank.Result, error) {
	vector, err := embedding.One(ctx, s.deps.Embedder, rerank.NormalizeQuery(query))
	if err != nil {
		return nil, errors.WrapTransient(err, "RecipeService", "search", "embed query")
	}

	poolSize := limit * s.cfg.Search.CandidateFactor
	hits, err := s.deps.Vectors.Search(ctx, recipe.EmbeddingTypeTitleIngredients, vector,
		poolSize, s.cfg.Search.MaxDistance)
	if err != nil {
		return nil, errors.WrapTransient(err, "RecipeService", "search", "vector search")
	}
	if len(hits) == 0 {
		return []rerank.Result{}, nil
	}

	ids := make([]string, len(hits))
	for i, hit := range hits {
		ids[i] = hit.RecipeID
	}
	recipes, err := s.deps.Recipes.GetBatch(ctx, ids)
	if err != nil {
		return nil, errors.WrapTransient(err, "RecipeService", "search", "load candidate recipes")
	}

	candidates := make([]rerank.Candidate, 0, len(hits))
	for _, hit := range hits {
		rec, ok := recipes[hit.RecipeID]
		if !ok {
			// Vector without a recipe: deleted between scan and load.
			continue
		}
		distance := hit.Distance
		candidates = append(candidates, rerank.Candidate{
			ID:       hit.RecipeID,
			Name:     rec.Title,
			Distance: &distance,
		})
	}

	return s.deps.Reranker.RerankAndFilter(ctx, query, candidates, limit), nil
}

func (s *RecipeService) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := s.Health()
	statusCode := http.StatusOK
	if status.IsUnhealthy() {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSON(w, statusCode, status)
}

func (s *RecipeService) recordSearch() {
	if s.deps.Registry != nil {
		s.deps.Registry.CoreMetrics().RecordSearch()
	}
}

// decodeBody decodes a JSON request body, writing the error response
// itself. Returns false when the caller should stop.
func decodeBody(w http.ResponseWriter, r *http.Request, target any) bool {
	defer r.Body.Close() //nolint:errcheck // read side close

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestSize+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return false
	}
	if len(body) > maxRequestSize {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return false
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		writeError(w, http.StatusBadRequest, "request body is required")
		return false
	}
	if err := json.Unmarshal(body, target); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}
