package rerank

import (
	"encoding/json"

	"github.com/virajxp1/forkfolio/errors"
	"github.com/virajxp1/forkfolio/llm"
)

var rankingSchema = llm.Schema{
	Name: "search_ranking",
	Schema: json.RawMessage(`{
		"type": "object",
		"properties": {
			"ranked": {
				"type": "array",
				"items": {
					"type": "object",
					"properties": {
						"id": {"type": "string"},
						"score": {"type": "number", "minimum": 0, "maximum": 1}
					},
					"required": ["id", "score"],
					"additionalProperties": false
				}
			}
		},
		"required": ["ranked"],
		"additionalProperties": false
	}`),
}

const rankingSystemPrompt = `You rank recipe search results by relevance to a user's query.

Score each candidate from 0 to 1: 1 means the recipe is exactly what the query asks for, 0 means unrelated. Consider the dish name, cuisine, and ingredients. Return candidates sorted best first, using only ids from the input. Omit candidates that are clearly irrelevant.`

// rankingRequest is the user-prompt payload sent to the provider.
type rankingRequest struct {
	Query      string             `json:"query"`
	MaxResults int                `json:"max_results"`
	Candidates []rankingCandidate `json:"candidates"`
}

type rankingCandidate struct {
	ID                 string   `json:"id"`
	Title              string   `json:"title"`
	Distance           *float64 `json:"distance,omitempty"`
	IngredientsPreview []string `json:"ingredients_preview"`
}

// buildRankingPrompts renders the query and enriched candidates as the
// provider payload.
func buildRankingPrompts(query string, candidates []Candidate, maxResults int) (system, user string, err error) {
	request := rankingRequest{
		Query:      query,
		MaxResults: maxResults,
		Candidates: make([]rankingCandidate, len(candidates)),
	}
	for i, c := range candidates {
		preview := c.IngredientsPreview
		if preview == nil {
			preview = []string{}
		}
		request.Candidates[i] = rankingCandidate{
			ID:                 c.ID,
			Title:              c.Name,
			Distance:           c.Distance,
			IngredientsPreview: preview,
		}
	}

	payload, err := json.Marshal(request)
	if err != nil {
		return "", "", errors.WrapFatal(err, "rerank", "buildRankingPrompts", "marshal ranking request")
	}
	return rankingSystemPrompt, string(payload), nil
}
