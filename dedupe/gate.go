// Package dedupe decides whether an incoming recipe duplicates a stored
// one, using a three-zone cosine-distance policy with an LLM judge for
// the ambiguous band.
//
// The gate fails open: any provider or storage failure downgrades to
// "distinct" so ingestion keeps working when dependencies are degraded.
// The cost of failing open is a possible duplicate insert; failing closed
// would reject legitimate recipes, which is worse.
package dedupe

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/virajxp1/forkfolio/errors"
	"github.com/virajxp1/forkfolio/llm"
	"github.com/virajxp1/forkfolio/metric"
	"github.com/virajxp1/forkfolio/pkg/embedding"
	"github.com/virajxp1/forkfolio/recipe"
	"github.com/virajxp1/forkfolio/vectorstore"
)

// Config holds the distance thresholds for the three zones.
type Config struct {
	// StrictThreshold is the distance at or below which a neighbor is an
	// automatic duplicate, no judge consulted.
	StrictThreshold float64 `json:"strict_threshold" yaml:"strict_threshold"`

	// LooseThreshold is the distance above which a neighbor is
	// automatically distinct. Distances in (strict, loose] go to the judge.
	LooseThreshold float64 `json:"loose_threshold" yaml:"loose_threshold"`

	// EmbeddingType selects which stored vectors to compare against.
	EmbeddingType string `json:"embedding_type" yaml:"embedding_type"`
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		StrictThreshold: 0.05,
		LooseThreshold:  0.25,
		EmbeddingType:   recipe.EmbeddingTypeTitleIngredients,
	}
}

// Validate rejects threshold orderings that would make the ambiguous
// band negative.
func (c Config) Validate() error {
	if c.StrictThreshold < 0 || c.LooseThreshold < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "dedupe", "Validate", "thresholds cannot be negative")
	}
	if c.StrictThreshold > c.LooseThreshold {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "dedupe", "Validate",
			fmt.Sprintf("strict threshold %.3f exceeds loose threshold %.3f", c.StrictThreshold, c.LooseThreshold))
	}
	if c.EmbeddingType == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "dedupe", "Validate", "embedding type is required")
	}
	return nil
}

// VectorSearcher finds the nearest stored vector of an embedding type.
type VectorSearcher interface {
	Nearest(ctx context.Context, embeddingType string, vector []float32) (*vectorstore.Candidate, error)
}

// RecipeGetter loads a stored recipe so the judge can see both sides.
type RecipeGetter interface {
	Get(ctx context.Context, id string) (*recipe.Recipe, error)
}

// Gate is the duplicate-detection gate.
type Gate struct {
	config   Config
	embedder embedding.Embedder
	vectors  VectorSearcher
	recipes  RecipeGetter
	judge    llm.Client
	metrics  *metric.CoreMetrics
	logger   *slog.Logger
}

// GateOption configures optional gate dependencies.
type GateOption func(*Gate)

// WithMetrics enables dedupe outcome metrics.
func WithMetrics(metrics *metric.CoreMetrics) GateOption {
	return func(g *Gate) {
		g.metrics = metrics
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) GateOption {
	return func(g *Gate) {
		if logger != nil {
			g.logger = logger.With("component", "dedupe")
		}
	}
}

// NewGate creates a gate. The config is validated here so a misordered
// threshold pair fails at startup, not on the first ambiguous recipe.
func NewGate(config Config, embedder embedding.Embedder, vectors VectorSearcher, recipes RecipeGetter, judge llm.Client, opts ...GateOption) (*Gate, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if embedder == nil || vectors == nil || recipes == nil || judge == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "dedupe", "NewGate", "all dependencies are required")
	}

	gate := &Gate{
		config:   config,
		embedder: embedder,
		vectors:  vectors,
		recipes:  recipes,
		judge:    judge,
		logger:   slog.Default().With("component", "dedupe"),
	}
	for _, opt := range opts {
		opt(gate)
	}
	return gate, nil
}

// FindDuplicate reports whether the candidate duplicates a stored recipe
// and, when it does, the stored recipe's ID.
//
// Never returns an error: every failure path logs, records a fail-open
// outcome, and reports distinct.
func (g *Gate) FindDuplicate(ctx context.Context, candidate *recipe.Recipe) (bool, string) {
	vector, err := embedding.One(ctx, g.embedder, candidate.EmbeddingText())
	if err != nil {
		return g.failOpen("embed candidate", err)
	}

	nearest, err := g.vectors.Nearest(ctx, g.config.EmbeddingType, vector)
	if err != nil {
		return g.failOpen("nearest neighbor lookup", err)
	}
	if nearest == nil {
		g.record(metric.DedupeOutcomeDistinct)
		return false, ""
	}

	distance := nearest.Distance
	logger := g.logger.With("neighbor_id", nearest.RecipeID, "distance", distance)

	switch {
	case distance <= g.config.StrictThreshold:
		logger.Info("duplicate by strict threshold")
		g.record(metric.DedupeOutcomeStrictDuplicate)
		return true, nearest.RecipeID

	case distance > g.config.LooseThreshold:
		g.record(metric.DedupeOutcomeDistinct)
		return false, ""
	}

	// Ambiguous band: consult the judge with both recipes in full.
	neighbor, err := g.recipes.Get(ctx, nearest.RecipeID)
	if err != nil {
		return g.failOpen("load neighbor recipe", err)
	}

	decision, err := g.consultJudge(ctx, candidate, neighbor)
	if err != nil {
		return g.failOpen("judge ambiguous pair", err)
	}

	if decision.Decision == DecisionDuplicate {
		logger.Info("duplicate by judgment", "reason", decision.Reason)
		g.record(metric.DedupeOutcomeJudgedDuplicate)
		return true, nearest.RecipeID
	}

	logger.Debug("distinct by judgment", "reason", decision.Reason)
	g.record(metric.DedupeOutcomeDistinct)
	return false, ""
}

func (g *Gate) consultJudge(ctx context.Context, candidate, neighbor *recipe.Recipe) (Judgment, error) {
	system, user := buildJudgePrompts(candidate, neighbor)

	judgment, err := llm.Call[Judgment](ctx, g.judge, system, user, judgmentSchema)
	if g.metrics != nil {
		outcome := metric.OutcomeOK
		if err != nil {
			outcome = metric.OutcomeError
		}
		g.metrics.RecordJudgeCall("dedupe", outcome)
	}
	return judgment, err
}

func (g *Gate) failOpen(action string, err error) (bool, string) {
	g.logger.Warn("dedupe check failed, treating recipe as distinct", "action", action, "error", err)
	g.record(metric.DedupeOutcomeFailOpen)
	return false, ""
}

func (g *Gate) record(outcome string) {
	if g.metrics != nil {
		g.metrics.RecordDedupeOutcome(outcome)
	}
}
