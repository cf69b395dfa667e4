package rerank

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/virajxp1/forkfolio/errors"
	"github.com/virajxp1/forkfolio/llm"
	"github.com/virajxp1/forkfolio/metric"
	"github.com/virajxp1/forkfolio/recipe"
)

// Rerank mode labels, also used as metric values.
const (
	ModeStrict   = "strict"
	ModeFallback = "fallback"
	ModeDegraded = "degraded"
	ModeEmpty    = "empty"
)

// Config parameterizes score blending and the two-pass policy.
type Config struct {
	// MinScore is the strict-pass rerank score cutoff.
	MinScore float64 `json:"min_score" yaml:"min_score"`

	// FallbackMinScore enables the relaxed second pass when strictly below
	// MinScore. Zero disables the fallback pass.
	FallbackMinScore float64 `json:"fallback_min_score" yaml:"fallback_min_score"`

	// Weight of the rerank score in the combined score; the embedding
	// score carries the remaining 1-weight.
	Weight float64 `json:"weight" yaml:"weight"`

	// CuisineBoost and FamilyBoost are the lexical boost magnitudes
	// applied only in the fallback pass.
	CuisineBoost float64 `json:"cuisine_boost" yaml:"cuisine_boost"`
	FamilyBoost  float64 `json:"family_boost" yaml:"family_boost"`

	// PreviewIngredients is how many leading ingredients enrich each
	// candidate for the provider.
	PreviewIngredients int `json:"preview_ingredients" yaml:"preview_ingredients"`
}

// DefaultConfig returns the standard reranking parameters.
func DefaultConfig() Config {
	return Config{
		MinScore:           0.40,
		FallbackMinScore:   0.25,
		Weight:             0.70,
		CuisineBoost:       0.15,
		FamilyBoost:        0.10,
		PreviewIngredients: 8,
	}
}

// Validate rejects parameters outside their meaningful ranges.
func (c Config) Validate() error {
	if c.MinScore < 0 || c.MinScore > 1 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "rerank", "Validate",
			fmt.Sprintf("min_score %.3f outside [0,1]", c.MinScore))
	}
	if c.FallbackMinScore < 0 || c.FallbackMinScore > 1 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "rerank", "Validate",
			fmt.Sprintf("fallback_min_score %.3f outside [0,1]", c.FallbackMinScore))
	}
	if c.Weight < 0 || c.Weight > 1 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "rerank", "Validate",
			fmt.Sprintf("weight %.3f outside [0,1]", c.Weight))
	}
	if c.CuisineBoost < 0 || c.FamilyBoost < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "rerank", "Validate", "boosts cannot be negative")
	}
	if c.PreviewIngredients < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "rerank", "Validate", "preview_ingredients cannot be negative")
	}
	return nil
}

// PreviewProvider batch-loads recipes so candidates can carry ingredient
// previews. Missing ids are simply absent from the map.
type PreviewProvider interface {
	GetBatch(ctx context.Context, ids []string) (map[string]*recipe.Recipe, error)
}

// Reranker reorders distance-ranked candidates.
type Reranker struct {
	config   Config
	judge    llm.Client
	previews PreviewProvider
	metrics  *metric.CoreMetrics
	logger   *slog.Logger
}

// Option configures optional reranker dependencies.
type Option func(*Reranker)

// WithPreviews enables ingredient-preview enrichment.
func WithPreviews(previews PreviewProvider) Option {
	return func(r *Reranker) {
		r.previews = previews
	}
}

// WithMetrics enables rerank outcome metrics.
func WithMetrics(metrics *metric.CoreMetrics) Option {
	return func(r *Reranker) {
		r.metrics = metrics
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reranker) {
		if logger != nil {
			r.logger = logger.With("component", "rerank")
		}
	}
}

// New creates a reranker. Config is validated here so out-of-range
// parameters fail at startup.
func New(config Config, judge llm.Client, opts ...Option) (*Reranker, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if judge == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "rerank", "New", "judgment client is required")
	}

	reranker := &Reranker{
		config: config,
		judge:  judge,
		logger: slog.Default().With("component", "rerank"),
	}
	for _, opt := range opts {
		opt(reranker)
	}
	return reranker, nil
}

// RerankAndFilter reorders the candidates by blended relevance, returning
// at most limit results. Never fails: provider trouble degrades to the
// original distance order.
func (r *Reranker) RerankAndFilter(ctx context.Context, query string, candidates []Candidate, limit int) []Result {
	if limit <= 0 || len(candidates) == 0 {
		r.record(ModeEmpty)
		return []Result{}
	}

	normalized := NormalizeQuery(query)
	r.enrich(ctx, candidates)

	ranking, err := r.rank(ctx, normalized, candidates, limit)
	if err != nil {
		r.logger.Warn("ranking provider failed, returning distance order", "error", err)
		r.record(ModeDegraded)
		return truncate(baseline(candidates), limit)
	}

	// Strict pass: configured cutoff, no lexical boosts.
	results, idsFound := rankMatches(normalized, candidates, ranking.Ranked, r.config.MinScore, r.config.Weight, nil)
	if !idsFound {
		r.logger.Warn("ranking output matched no candidate ids, returning distance order")
		r.record(ModeDegraded)
		return truncate(baseline(candidates), limit)
	}

	if len(results) > 0 {
		r.record(ModeStrict)
		return truncate(results, limit)
	}

	// Empty strict pass: relax only if a strictly lower threshold is
	// configured, and only with explicit bounded boosts.
	if r.config.FallbackMinScore <= 0 || r.config.FallbackMinScore >= r.config.MinScore {
		r.record(ModeEmpty)
		return []Result{}
	}

	b := &boosts{cuisine: r.config.CuisineBoost, family: r.config.FamilyBoost}
	results, _ = rankMatches(normalized, candidates, ranking.Ranked, r.config.FallbackMinScore, r.config.Weight, b)
	for i := range results {
		results[i].RerankMode = ModeFallback
	}

	if len(results) == 0 {
		r.record(ModeEmpty)
		return []Result{}
	}
	r.record(ModeFallback)
	return truncate(results, limit)
}

// enrich attaches ingredient previews in one batched lookup. Best-effort:
// any failure leaves previews empty.
func (r *Reranker) enrich(ctx context.Context, candidates []Candidate) {
	if r.previews == nil || r.config.PreviewIngredients == 0 {
		return
	}

	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ID
	}

	recipes, err := r.previews.GetBatch(ctx, ids)
	if err != nil {
		r.logger.Warn("candidate enrichment failed, previews left empty", "error", err)
		return
	}

	for i := range candidates {
		if rec, ok := recipes[candidates[i].ID]; ok {
			candidates[i].IngredientsPreview = rec.IngredientPreview(r.config.PreviewIngredients)
		}
	}
}

func (r *Reranker) rank(ctx context.Context, query string, candidates []Candidate, maxResults int) (Ranking, error) {
	system, user, err := buildRankingPrompts(query, candidates, maxResults)
	if err != nil {
		return Ranking{}, err
	}

	ranking, err := llm.Call[Ranking](ctx, r.judge, system, user, rankingSchema)
	if r.metrics != nil {
		outcome := metric.OutcomeOK
		if err != nil {
			outcome = metric.OutcomeError
		}
		r.metrics.RecordJudgeCall("rerank", outcome)
	}
	return ranking, err
}

// baseline renders candidates in their original order, unscored.
func baseline(candidates []Candidate) []Result {
	results := make([]Result, len(candidates))
	for i, c := range candidates {
		results[i] = Result{ID: c.ID, Name: c.Name, Distance: c.Distance}
	}
	return results
}

func truncate(results []Result, limit int) []Result {
	if len(results) > limit {
		return results[:limit]
	}
	return results
}

func (r *Reranker) record(mode string) {
	if r.metrics != nil {
		r.metrics.RecordRerankOutcome(mode)
	}
}
