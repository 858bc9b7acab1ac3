package domain

import "time"

// EvaluationResult holds the quantitative scores for one model completion
// measured against the reference text. All scores lie in [0,1]. Recomputing
// with identical inputs yields an identical result, so upserts keyed by
// (thread, model) are idempotent.
type EvaluationResult struct {
	ModelID string `json:"model_id"`

	BLEU              float64 `json:"bleu"`
	ROUGE1            float64 `json:"rouge_1"`
	ROUGEL            float64 `json:"rouge_l"`
	CosineSimilarity  float64 `json:"cosine_similarity"`
	LexicalSimilarity float64 `json:"lexical_similarity"`

	// CombinedScore is the documented weighted aggregate of BLEU, ROUGE-L,
	// and cosine similarity.
	CombinedScore float64 `json:"combined_score"`

	// TokensPerSecond is derived from the completion's token count and
	// latency. Zero when either is unknown.
	TokensPerSecond float64 `json:"tokens_per_second"`

	// Duration is how long the metric computation took.
	Duration time.Duration `json:"duration"`

	// Error marks completions that could not be scored, such as failed
	// model calls. Scores are zero in that case.
	Error string `json:"error,omitempty"`
}

// JudgeResult holds the qualitative rubric scores for one model completion.
// When the judge reply cannot be parsed, Scores and Reasons are empty,
// Error describes the failure, and RawText preserves the reply for
// diagnostics.
type JudgeResult struct {
	ModelID string `json:"model_id"`

	// Scores maps rubric dimension name to the judge's numeric score.
	Scores map[string]float64 `json:"scores,omitempty"`

	// Reasons maps rubric dimension name to the judge's one-sentence
	// rationale.
	Reasons map[string]string `json:"reasons,omitempty"`

	// RawText is the unparsed judge reply. Always retained.
	RawText string `json:"raw_text,omitempty"`

	// Duration is the wall-clock time of the judge call.
	Duration time.Duration `json:"duration"`

	// Error marks judge calls that failed or produced unparseable output.
	Error string `json:"error,omitempty"`
}

// Reflection records one memory retrieval performed for a model before
// planning. It is persisted per (session, model) so polling can surface the
// context that informed the run.
type Reflection struct {
	ModelID  string `json:"model_id"`
	ThreadID string `json:"thread_id"`

	// ContextBlock is the rendered memory context that augmented the prompt.
	ContextBlock string `json:"context_block,omitempty"`

	// Chunks are the retrieved memory chunks ordered by descending relevance.
	Chunks []MemoryChunk `json:"chunks,omitempty"`

	Duration  time.Duration `json:"duration"`
	CreatedAt time.Time     `json:"created_at"`
}
