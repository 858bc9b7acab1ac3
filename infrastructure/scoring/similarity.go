package scoring

import (
	"math"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"
)

// Cosine computes the cosine similarity of two embedding vectors.
// Mismatched lengths, zero vectors, and non-finite results all yield 0
// so degenerate embeddings never poison a score.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0.0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0.0
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if math.IsNaN(sim) || math.IsInf(sim, 0) {
		return 0.0
	}
	return sim
}

// LexicalSimilarity computes a normalized edit-distance similarity of the
// case-folded texts: 1 - distance/maxLen, in [0,1]. Two empty texts are
// identical and score 1.0.
func LexicalSimilarity(reference, candidate string) float64 {
	ref := cases.Fold().String(reference)
	cand := cases.Fold().String(candidate)

	if ref == cand {
		return 1.0
	}

	maxLen := len([]rune(ref))
	if l := len([]rune(cand)); l > maxLen {
		maxLen = l
	}
	if maxLen == 0 {
		return 1.0
	}

	distance := levenshtein.ComputeDistance(ref, cand)
	return 1.0 - float64(distance)/float64(maxLen)
}
