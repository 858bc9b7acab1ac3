package scoring

// ROUGE1 computes unigram recall: the number of reference unigrams that
// appear in the candidate (clipped at candidate counts) divided by the
// reference unigram count. Two empty texts score 1.0; otherwise an empty
// side scores 0.
func ROUGE1(reference, candidate string) float64 {
	refTokens := Tokenize(reference)
	candTokens := Tokenize(candidate)

	if len(refTokens) == 0 && len(candTokens) == 0 {
		return 1.0
	}
	if len(refTokens) == 0 || len(candTokens) == 0 {
		return 0.0
	}

	candCounts := nGramCounts(candTokens, 1)
	overlap := 0
	for gram, refCount := range nGramCounts(refTokens, 1) {
		candCount := candCounts[gram]
		if candCount < refCount {
			overlap += candCount
		} else {
			overlap += refCount
		}
	}
	return float64(overlap) / float64(len(refTokens))
}

// ROUGEL computes the recall-oriented longest-common-subsequence metric:
// LCS length over the two token sequences divided by the reference length.
// Edge cases follow ROUGE1.
func ROUGEL(reference, candidate string) float64 {
	refTokens := Tokenize(reference)
	candTokens := Tokenize(candidate)

	if len(refTokens) == 0 && len(candTokens) == 0 {
		return 1.0
	}
	if len(refTokens) == 0 || len(candTokens) == 0 {
		return 0.0
	}

	return float64(lcsLength(refTokens, candTokens)) / float64(len(refTokens))
}

// lcsLength computes the longest common subsequence length of two token
// sequences with a rolling single-row table.
func lcsLength(a, b []string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
