// Package recipe defines the recipe domain model and its embedding-text
// rendering.
package recipe

import (
	"strings"
	"time"

	"github.com/virajxp1/forkfolio/errors"
)

// EmbeddingTypeTitleIngredients labels vectors built from a recipe's title
// and ingredient list. Distances are only meaningful between vectors of the
// same embedding type.
const EmbeddingTypeTitleIngredients = "title_ingredients"

// Recipe is a structured recipe record.
type Recipe struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Ingredients  []string  `json:"ingredients"`
	Instructions []string  `json:"instructions"`
	Servings     string    `json:"servings,omitempty"`
	TotalTime    string    `json:"total_time,omitempty"`
	SourceText   string    `json:"source_text,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Validate checks that the recipe has the minimum required structure.
func (r *Recipe) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return errors.WrapInvalid(errors.ErrInvalidData, "recipe", "Validate", "title is required")
	}
	if len(r.Ingredients) == 0 {
		return errors.WrapInvalid(errors.ErrInvalidData, "recipe", "Validate", "at least one ingredient is required")
	}
	if len(r.Instructions) == 0 {
		return errors.WrapInvalid(errors.ErrInvalidData, "recipe", "Validate", "at least one instruction is required")
	}
	return nil
}

// EmbeddingText renders the stable, order-preserving text representation
// used to embed a recipe for the title_ingredients embedding type.
//
// The rendering must stay byte-stable across releases: stored vectors are
// only comparable to query vectors built from the same text shape.
func (r *Recipe) EmbeddingText() string {
	var b strings.Builder
	b.WriteString("Title: ")
	b.WriteString(r.Title)
	b.WriteString("\nIngredients: ")
	b.WriteString(strings.Join(r.Ingredients, ", "))
	return b.String()
}

// IngredientPreview returns the first n ingredients, order preserved.
func (r *Recipe) IngredientPreview(n int) []string {
	if n <= 0 || len(r.Ingredients) == 0 {
		return []string{}
	}
	if n > len(r.Ingredients) {
		n = len(r.Ingredients)
	}
	preview := make([]string, n)
	copy(preview, r.Ingredients[:n])
	return preview
}
