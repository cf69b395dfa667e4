package rerank

import "strings"

// quotePairs maps opening quote characters to their closing partner.
// Symmetric ASCII quotes pair with themselves; typographic quotes and
// guillemets pair across.
var quotePairs = map[rune]rune{
	'"':      '"',
	'\'':     '\'',
	'`':      '`',
	'“':  '”',
	'‘':  '’',
	'«':  '»',
	'‹':  '›',
}

// NormalizeQuery trims and collapses whitespace, then strips exactly one
// symmetric layer of wrapping quotes and re-collapses.
//
// Normalizing an already-normalized query returns it unchanged.
func NormalizeQuery(query string) string {
	normalized := collapseWhitespace(query)

	runes := []rune(normalized)
	if len(runes) >= 2 {
		if closing, ok := quotePairs[runes[0]]; ok && runes[len(runes)-1] == closing {
			normalized = collapseWhitespace(string(runes[1 : len(runes)-1]))
		}
	}
	return normalized
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// MinQueryLength is the minimum number of non-whitespace characters a
// search query must carry. Enforced by the caller, not the reranker.
const MinQueryLength = 2

// ValidQuery reports whether the query meets the minimum length after
// normalization.
func ValidQuery(query string) bool {
	count := 0
	for _, r := range NormalizeQuery(query) {
		if r != ' ' {
			count++
		}
		if count >= MinQueryLength {
			return true
		}
	}
	return false
}
