package dedupe

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/virajxp1/forkfolio/errors"
	"github.com/virajxp1/forkfolio/llm"
	"github.com/virajxp1/forkfolio/recipe"
)

// Judgment decisions.
const (
	DecisionDuplicate = "duplicate"
	DecisionDistinct  = "distinct"
)

// Judgment is the judge's structured verdict on an ambiguous pair.
type Judgment struct {
	Decision string `json:"decision"`
	Reason   string `json:"reason"`
}

// Validate rejects decisions outside the two-value enum. An unknown
// decision from a provider or stale cache entry must not silently count
// as either verdict.
func (j Judgment) Validate() error {
	if j.Decision != DecisionDuplicate && j.Decision != DecisionDistinct {
		return errors.WrapInvalid(errors.ErrInvalidData, "dedupe", "Validate",
			fmt.Sprintf("unknown decision %q", j.Decision))
	}
	return nil
}

var judgmentSchema = llm.Schema{
	Name: "dedupe_judgment",
	Schema: json.RawMessage(`{
		"type": "object",
		"properties": {
			"decision": {
				"type": "string",
				"enum": ["duplicate", "distinct"]
			},
			"reason": {
				"type": "string"
			}
		},
		"required": ["decision", "reason"],
		"additionalProperties": false
	}`),
}

const judgeSystemPrompt = `You compare two recipes and decide whether they are the same dish.

Two recipes are duplicates when they describe the same dish with substantially the same ingredients and method. Differences in wording, ingredient order, quantities, or minor optional ingredients do not make recipes distinct. Different dishes, different primary proteins, or fundamentally different methods make them distinct.

Answer with a decision and a one-sentence reason.`

// buildJudgePrompts renders both recipes for comparison.
func buildJudgePrompts(candidate, neighbor *recipe.Recipe) (system, user string) {
	var b strings.Builder
	b.WriteString("Recipe A (incoming):\n")
	writeRecipe(&b, candidate)
	b.WriteString("\nRecipe B (stored):\n")
	writeRecipe(&b, neighbor)
	b.WriteString("\nAre these the same recipe?")
	return judgeSystemPrompt, b.String()
}

func writeRecipe(b *strings.Builder, r *recipe.Recipe) {
	fmt.Fprintf(b, "Title: %s\n", r.Title)
	b.WriteString("Ingredients:\n")
	for _, ingredient := range r.Ingredients {
		fmt.Fprintf(b, "- %s\n", ingredient)
	}
	b.WriteString("Instructions:\n")
	for i, step := range r.Instructions {
		fmt.Fprintf(b, "%d. %s\n", i+1, step)
	}
}
