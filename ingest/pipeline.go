// Package ingest turns raw recipe text into stored, embedded, deduplicated
// recipe records.
//
// The pipeline runs cleanup and extraction through the structured-output
// client, checks the dedupe gate, claims a content fingerprint to close
// the race between concurrent inserts of identical content, then persists
// the record and its embedding vector.
package ingest

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/virajxp1/forkfolio/errors"
	"github.com/virajxp1/forkfolio/llm"
	"github.com/virajxp1/forkfolio/metric"
	"github.com/virajxp1/forkfolio/pkg/cache"
	"github.com/virajxp1/forkfolio/pkg/embedding"
	"github.com/virajxp1/forkfolio/recipe"
	"github.com/virajxp1/forkfolio/vectorstore"
)

// MinInputLength is the minimum raw text length worth sending to the
// extraction provider. Shorter inputs cannot hold a usable recipe.
const MinInputLength = 50

// Ingestion statuses, also used as metric labels.
const (
	StatusStored    = "stored"
	StatusDuplicate = "duplicate"
	StatusFailed    = "failed"
)

// Result reports what happened to one ingested text.
type Result struct {
	Status      string         `json:"status"`
	Recipe      *recipe.Recipe `json:"recipe,omitempty"`
	DuplicateOf string         `json:"duplicate_of,omitempty"`
}

// DuplicateFinder is the dedupe gate's contract.
type DuplicateFinder interface {
	FindDuplicate(ctx context.Context, candidate *recipe.Recipe) (bool, string)
}

// RecipeStore is the subset of the recipe store used by the pipeline.
type RecipeStore interface {
	Create(ctx context.Context, r *recipe.Recipe) error
	Delete(ctx context.Context, id string) error
	ClaimContent(ctx context.Context, fingerprint, id string) (string, error)
	ReleaseContent(ctx context.Context, fingerprint string) error
}

// VectorStore is the subset of the vector store used by the pipeline.
type VectorStore interface {
	Upsert(ctx context.Context, record *vectorstore.Record) error
}

// Pipeline ingests raw recipe text end to end.
type Pipeline struct {
	extractor     llm.Client
	gate          DuplicateFinder
	recipes       RecipeStore
	vectors       VectorStore
	embedder      embedding.Embedder
	embeddingType string
	metrics       *metric.CoreMetrics
	logger        *slog.Logger
}

// PipelineOption configures optional pipeline dependencies.
type PipelineOption func(*Pipeline)

// WithMetrics enables ingestion metrics.
func WithMetrics(metrics *metric.CoreMetrics) PipelineOption {
	return func(p *Pipeline) {
		p.metrics = metrics
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) PipelineOption {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger.With("component", "ingest")
		}
	}
}

// NewPipeline creates the ingestion pipeline.
func NewPipeline(extractor llm.Client, gate DuplicateFinder, recipes RecipeStore, vectors VectorStore, embedder embedding.Embedder, opts ...PipelineOption) (*Pipeline, error) {
	if extractor == nil || gate == nil || recipes == nil || vectors == nil || embedder == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "ingest", "NewPipeline", "all dependencies are required")
	}

	pipeline := &Pipeline{
		extractor:     extractor,
		gate:          gate,
		recipes:       recipes,
		vectors:       vectors,
		embedder:      embedder,
		embeddingType: recipe.EmbeddingTypeTitleIngredients,
		logger:        slog.Default().With("component", "ingest"),
	}
	for _, opt := range opts {
		opt(pipeline)
	}
	return pipeline, nil
}

// Ingest processes one raw text. Returns a Result for the stored and
// duplicate outcomes; errors cover invalid input and persistence failures.
func (p *Pipeline) Ingest(ctx context.Context, rawText string) (*Result, error) {
	if len(strings.TrimSpace(rawText)) < MinInputLength {
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "ingest", "Ingest",
			"input too short to contain a recipe")
	}

	r, err := extract(ctx, p.extractor, rawText)
	if err != nil {
		return nil, p.failed(err)
	}
	if err := r.Validate(); err != nil {
		return nil, p.failed(err)
	}

	if isDup, existingID := p.gate.FindDuplicate(ctx, r); isDup {
		p.logger.Info("duplicate recipe rejected", "existing_id", existingID, "title", r.Title)
		p.recordIngested(StatusDuplicate)
		return &Result{Status: StatusDuplicate, DuplicateOf: existingID}, nil
	}

	r.ID = uuid.NewString()

	// The gate's lookup and this insert are not atomic; a create-only
	// fingerprint claim decides races between identical payloads.
	fingerprint := contentFingerprint(r)
	owner, err := p.recipes.ClaimContent(ctx, fingerprint, r.ID)
	if err != nil {
		return nil, p.failed(err)
	}
	if owner != r.ID {
		p.logger.Info("duplicate recipe rejected by fingerprint claim", "existing_id", owner, "title", r.Title)
		p.recordIngested(StatusDuplicate)
		return &Result{Status: StatusDuplicate, DuplicateOf: owner}, nil
	}

	if err := p.recipes.Create(ctx, r); err != nil {
		p.release(ctx, fingerprint)
		return nil, p.failed(err)
	}

	if err := p.index(ctx, r); err != nil {
		// Roll back so a retry starts clean instead of leaving a recipe
		// invisible to dedupe and search.
		if deleteErr := p.recipes.Delete(ctx, r.ID); deleteErr != nil {
			p.logger.Error("rollback delete failed", "recipe_id", r.ID, "error", deleteErr)
		}
		p.release(ctx, fingerprint)
		return nil, p.failed(err)
	}

	p.logger.Info("recipe stored", "recipe_id", r.ID, "title", r.Title)
	p.recordIngested(StatusStored)
	return &Result{Status: StatusStored, Recipe: r}, nil
}

// index embeds the recipe and stores its vector.
func (p *Pipeline) index(ctx context.Context, r *recipe.Recipe) error {
	vector, err := embedding.One(ctx, p.embedder, r.EmbeddingText())
	if err != nil {
		return errors.WrapTransient(err, "ingest", "index", "embed recipe")
	}

	return p.vectors.Upsert(ctx, &vectorstore.Record{
		RecipeID:      r.ID,
		EmbeddingType: p.embeddingType,
		ContentHash:   contentFingerprint(r),
		Vector:        vector,
		Model:         p.embedder.Model(),
		CreatedAt:     time.Now(),
	})
}

// contentFingerprint fingerprints the semantic content of a recipe:
// lowercased title plus ingredient and instruction lists, order preserved.
func contentFingerprint(r *recipe.Recipe) string {
	parts := make([]string, 0, 1+len(r.Ingredients)+len(r.Instructions))
	parts = append(parts, strings.ToLower(strings.TrimSpace(r.Title)))
	for _, ingredient := range r.Ingredients {
		parts = append(parts, strings.ToLower(strings.TrimSpace(ingredient)))
	}
	for _, step := range r.Instructions {
		parts = append(parts, strings.ToLower(strings.TrimSpace(step)))
	}
	return cache.Fingerprint(parts...)
}

func (p *Pipeline) release(ctx context.Context, fingerprint string) {
	if err := p.recipes.ReleaseContent(ctx, fingerprint); err != nil {
		p.logger.Warn("fingerprint claim release failed", "error", err)
	}
}

func (p *Pipeline) failed(err error) error {
	p.recordIngested(StatusFailed)
	return err
}

func (p *Pipeline) recordIngested(status string) {
	if p.metrics != nil {
		p.metrics.RecordRecipeIngested(status)
	}
}
