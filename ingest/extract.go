package ingest

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/virajxp1/forkfolio/errors"
	"github.com/virajxp1/forkfolio/llm"
	"github.com/virajxp1/forkfolio/recipe"
)

var cleanupSchema = llm.Schema{
	Name: "cleaned_text",
	Schema: json.RawMessage(`{
		"type": "object",
		"properties": {
			"cleaned_text": {"type": "string"}
		},
		"required": ["cleaned_text"],
		"additionalProperties": false
	}`),
}

const cleanupSystemPrompt = `You clean up raw recipe text scraped or pasted from arbitrary sources.

Remove navigation junk, ads, comments, and unrelated prose. Keep the recipe content itself: title, ingredients, steps, servings, and timing. Do not invent or summarize content; preserve the original wording of what you keep.`

type cleanupResult struct {
	CleanedText string `json:"cleaned_text"`
}

func (c cleanupResult) Validate() error {
	if strings.TrimSpace(c.CleanedText) == "" {
		return errors.WrapInvalid(errors.ErrEmptyResult, "ingest", "Validate", "cleaned text is empty")
	}
	return nil
}

var extractionSchema = llm.Schema{
	Name: "extracted_recipe",
	Schema: json.RawMessage(`{
		"type": "object",
		"properties": {
			"title": {"type": "string"},
			"ingredients": {"type": "array", "items": {"type": "string"}},
			"instructions": {"type": "array", "items": {"type": "string"}},
			"servings": {"type": "string"},
			"total_time": {"type": "string"}
		},
		"required": ["title", "ingredients", "instructions"],
		"additionalProperties": false
	}`),
}

const extractionSystemPrompt = `You extract a structured recipe from cleaned recipe text.

Return the dish title, each ingredient as one list entry with its quantity, and each instruction as one numbered step. Include servings and total time when the text states them. Never invent ingredients or steps that are not in the text.`

type extractedRecipe struct {
	Title        string   `json:"title"`
	Ingredients  []string `json:"ingredients"`
	Instructions []string `json:"instructions"`
	Servings     string   `json:"servings,omitempty"`
	TotalTime    string   `json:"total_time,omitempty"`
}

func (e extractedRecipe) Validate() error {
	if strings.TrimSpace(e.Title) == "" || len(e.Ingredients) == 0 || len(e.Instructions) == 0 {
		return errors.WrapInvalid(errors.ErrInvalidData, "ingest", "Validate",
			"extraction missing title, ingredients, or instructions")
	}
	return nil
}

// extract runs the two-step cleanup-then-extract flow against the
// structured-output client.
func extract(ctx context.Context, client llm.Client, rawText string) (*recipe.Recipe, error) {
	cleaned, err := llm.Call[cleanupResult](ctx, client, cleanupSystemPrompt, rawText, cleanupSchema)
	if err != nil {
		return nil, errors.WrapTransient(err, "ingest", "extract", "cleanup raw text")
	}

	extracted, err := llm.Call[extractedRecipe](ctx, client, extractionSystemPrompt, cleaned.CleanedText, extractionSchema)
	if err != nil {
		return nil, errors.WrapTransient(err, "ingest", "extract", "extract structured recipe")
	}

	return &recipe.Recipe{
		Title:        strings.TrimSpace(extracted.Title),
		Ingredients:  extracted.Ingredients,
		Instructions: extracted.Instructions,
		Servings:     extracted.Servings,
		TotalTime:    extracted.TotalTime,
		SourceText:   rawText,
	}, nil
}
