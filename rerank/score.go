package rerank

import "sort"

// embeddingScore converts a cosine distance to a score in [0, 1].
// A missing distance scores zero: the candidate survives only on the
// strength of its rerank score.
func embeddingScore(distance *float64) float64 {
	if distance == nil {
		return 0.0
	}
	d := *distance
	if d < 0.0 {
		d = 0.0
	}
	if d > 1.0 {
		d = 1.0
	}
	return 1.0 - d
}

func clampScore(s float64) float64 {
	if s < 0.0 {
		return 0.0
	}
	if s > 1.0 {
		return 1.0
	}
	return s
}

// rankMatches blends the provider ranking against the candidates.
//
// Returns the surviving results sorted by combined score (stable, so
// provider order breaks ties) and whether any ranked id matched an input
// candidate at all. idsFound=false means the provider output was
// entirely unusable, which callers treat as a provider failure.
func rankMatches(query string, candidates []Candidate, ranked []RankedCandidate, minScore, weight float64, b *boosts) (results []Result, idsFound bool) {
	byID := make(map[string]*Candidate, len(candidates))
	for i := range candidates {
		byID[candidates[i].ID] = &candidates[i]
	}

	var queryTokens map[string]struct{}
	if b != nil {
		queryTokens = lexTokens(query)
	}

	used := make(map[string]struct{}, len(ranked))
	for _, item := range ranked {
		candidate, ok := byID[item.ID]
		if !ok {
			continue
		}
		if _, dup := used[item.ID]; dup {
			continue
		}
		used[item.ID] = struct{}{}
		idsFound = true

		// Out-of-range scores are provider noise, excluded per-item.
		if item.Score < 0.0 || item.Score > 1.0 {
			continue
		}

		rawScore := item.Score
		rerankScore := rawScore

		var cuisineBoost, familyBoost float64
		if b != nil {
			cuisineBoost, familyBoost = b.compute(queryTokens, candidate.Name)
			rerankScore = clampScore(rawScore + cuisineBoost + familyBoost)
		}

		if rerankScore < minScore {
			continue
		}

		embScore := embeddingScore(candidate.Distance)
		combined := weight*rerankScore + (1.0-weight)*embScore

		result := Result{
			ID:             candidate.ID,
			Name:           candidate.Name,
			Distance:       candidate.Distance,
			RerankScore:    ptr(rerankScore),
			EmbeddingScore: ptr(embScore),
			CombinedScore:  ptr(combined),
		}
		if rerankScore != rawScore {
			result.RawRerankScore = ptr(rawScore)
		}
		if cuisineBoost > 0 {
			result.CuisineBoost = ptr(cuisineBoost)
		}
		if familyBoost > 0 {
			result.FamilyBoost = ptr(familyBoost)
		}
		results = append(results, result)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return *results[i].CombinedScore > *results[j].CombinedScore
	})
	return results, idsFound
}
