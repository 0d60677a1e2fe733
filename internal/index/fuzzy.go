package index

import (
	"github.com/hbollon/go-edlib"
)

// fuzzyThreshold is the minimum Jaro-Winkler similarity for a stem with no
// exact postings to fall back to its closest known neighbor.
const fuzzyThreshold = 0.85

// fuzzyDiscount scales a fallback match's contribution relative to an
// exact stem hit, so a typo'd query never outranks an exact one.
const fuzzyDiscount = 0.5

// nearestStem returns the known stem in candidates most similar to stem
// under Jaro-Winkler similarity, provided it clears fuzzyThreshold. Used
// as a typo-tolerant fallback when a query stem has no exact postings,
// the same algorithm and library the corpus's own identifier fuzzy
// matcher uses.
func nearestStem(stem string, candidates map[string][]*posting) (string, bool) {
	best := ""
	bestScore := 0.0
	for candidate := range candidates {
		score, err := edlib.StringsSimilarity(stem, candidate, edlib.JaroWinkler)
		if err != nil {
			continue
		}
		if float64(score) > bestScore {
			bestScore = float64(score)
			best = candidate
		}
	}
	if bestScore < fuzzyThreshold {
		return "", false
	}
	return best, true
}
