package scoring

import (
	"math"
	"strings"
)

// maxNGramOrder is the largest n-gram order used by BLEU.
const maxNGramOrder = 4

// BLEU computes the BLEU score of candidate against reference using
// modified n-gram precision for n = 1..4, combined geometrically and
// multiplied by a brevity penalty when the candidate is shorter than the
// reference.
//
// Zero-count precisions receive add-one smoothing so a single missing
// n-gram order does not zero out the whole score. Two empty texts score
// 1.0; an empty candidate against a non-empty reference scores 0.
func BLEU(reference, candidate string) float64 {
	refTokens := Tokenize(reference)
	candTokens := Tokenize(candidate)

	if len(refTokens) == 0 && len(candTokens) == 0 {
		return 1.0
	}
	if len(refTokens) == 0 || len(candTokens) == 0 {
		return 0.0
	}

	maxOrder := maxNGramOrder
	if len(candTokens) < maxOrder {
		maxOrder = len(candTokens)
	}

	logSum := 0.0
	for n := 1; n <= maxOrder; n++ {
		matched, total := clippedNGramMatches(refTokens, candTokens, n)
		if total == 0 {
			continue
		}
		precision := float64(matched) / float64(total)
		if matched == 0 {
			// Add-one smoothing keeps the geometric mean defined.
			precision = 1.0 / float64(total+1)
		}
		logSum += math.Log(precision)
	}
	score := math.Exp(logSum / float64(maxOrder))

	return brevityPenalty(len(refTokens), len(candTokens)) * score
}

// clippedNGramMatches counts candidate n-grams that appear in the
// reference, clipping each n-gram's count at its reference count so
// repetition cannot inflate precision.
func clippedNGramMatches(refTokens, candTokens []string, n int) (matched, total int) {
	refCounts := nGramCounts(refTokens, n)
	candCounts := nGramCounts(candTokens, n)

	for gram, count := range candCounts {
		total += count
		if refCount, ok := refCounts[gram]; ok {
			if count > refCount {
				count = refCount
			}
			matched += count
		}
	}
	return matched, total
}

// nGramCounts returns the multiset of n-grams in tokens, keyed by the
// space-joined gram.
func nGramCounts(tokens []string, n int) map[string]int {
	if len(tokens) < n {
		return nil
	}
	counts := make(map[string]int, len(tokens)-n+1)
	for i := 0; i+n <= len(tokens); i++ {
		counts[strings.Join(tokens[i:i+n], " ")]++
	}
	return counts
}

// brevityPenalty penalizes candidates shorter than the reference with
// exp(1 - r/c). Candidates at least as long as the reference are not
// penalized.
func brevityPenalty(refLen, candLen int) float64 {
	if candLen >= refLen {
		return 1.0
	}
	return math.Exp(1.0 - float64(refLen)/float64(candLen))
}
