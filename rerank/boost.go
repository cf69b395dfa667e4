package rerank

import (
	"strings"
	"unicode"
)

// cuisineKeywords are cuisine names whose presence in both query and
// candidate title signals a cuisine-level match worth boosting.
var cuisineKeywords = map[string]struct{}{
	"indian":        {},
	"italian":       {},
	"mexican":       {},
	"thai":          {},
	"chinese":       {},
	"japanese":      {},
	"korean":        {},
	"vietnamese":    {},
	"french":        {},
	"greek":         {},
	"spanish":       {},
	"moroccan":      {},
	"lebanese":      {},
	"turkish":       {},
	"ethiopian":     {},
	"mediterranean": {},
}

// familyKeywords are dish-family terms. A query for "curry" should not
// lose "chana masala" to a hard score cutoff, so sharing any of these
// terms earns the family boost in the fallback pass.
var familyKeywords = map[string]struct{}{
	"curry":     {},
	"masala":    {},
	"korma":     {},
	"tikka":     {},
	"vindaloo":  {},
	"dal":       {},
	"stew":      {},
	"soup":      {},
	"chili":     {},
	"casserole": {},
	"stirfry":   {},
	"noodle":    {},
	"noodles":   {},
	"pasta":     {},
	"risotto":   {},
	"taco":      {},
	"tacos":     {},
	"burrito":   {},
	"salad":     {},
	"sandwich":  {},
	"pizza":     {},
	"pie":       {},
	"cake":      {},
	"bread":     {},
}

// lexTokens splits text into lowercase alphabetic tokens. Digits and
// punctuation are separators, not token content.
func lexTokens(text string) map[string]struct{} {
	tokens := make(map[string]struct{})
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			tokens[current.String()] = struct{}{}
			current.Reset()
		}
	}

	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) {
			current.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()

	return tokens
}

// boosts holds the configured lexical boost magnitudes.
type boosts struct {
	cuisine float64
	family  float64
}

// compute returns the cuisine and family boost earned by a query/title
// pair: each applies when both sides contain a keyword from its set.
func (b boosts) compute(queryTokens map[string]struct{}, title string) (cuisineBoost, familyBoost float64) {
	titleTokens := lexTokens(title)

	if b.cuisine > 0 && sharesKeyword(queryTokens, titleTokens, cuisineKeywords) {
		cuisineBoost = b.cuisine
	}
	if b.family > 0 && sharesKeyword(queryTokens, titleTokens, familyKeywords) {
		familyBoost = b.family
	}
	return cuisineBoost, familyBoost
}

// sharesKeyword reports whether both token sets contain at least one
// member of the keyword set. The two sides may match different keywords.
func sharesKeyword(a, b, keywords map[string]struct{}) bool {
	return containsAny(a, keywords) && containsAny(b, keywords)
}

func containsAny(tokens, keywords map[string]struct{}) bool {
	for token := range tokens {
		if _, ok := keywords[token]; ok {
			return true
		}
	}
	return false
}
