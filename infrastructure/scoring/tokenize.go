// Package scoring implements the deterministic quantitative metrics used to
// compare a candidate completion against a reference text: BLEU, ROUGE-1,
// ROUGE-L, embedding cosine similarity, and a Levenshtein-based lexical
// similarity, combined into a single weighted score.
//
// Every metric is a pure function over the two texts (plus their embeddings
// for the cosine term). Degenerate inputs never raise: an empty candidate
// scores 0 against a non-empty reference, and two empty texts score 1.0
// since they are identical.
package scoring

import (
	"strings"

	"golang.org/x/text/cases"
)

// caser provides Unicode case folding for case-insensitive comparison.
// Fold handles cases like the Turkish 'İ' that simple lowercasing misses.
var caser = cases.Fold()

// Tokenize splits text into case-folded, whitespace-delimited tokens.
// All metrics in this package share this tokenization so their scores are
// comparable.
func Tokenize(text string) []string {
	folded := caser.String(strings.TrimSpace(text))
	if folded == "" {
		return nil
	}
	return strings.Fields(folded)
}
