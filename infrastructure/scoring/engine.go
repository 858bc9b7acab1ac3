package scoring

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/modelarena/arena/internal/domain"
	"github.com/modelarena/arena/internal/ports"
)

// weightTolerance is the permitted deviation of the weight sum from 1.0.
const weightTolerance = 1e-9

// Config holds the combined-score weights. The weights must sum to 1 so
// the combined score stays in [0,1].
type Config struct {
	// BLEUWeight scales the BLEU term of the combined score.
	BLEUWeight float64 `json:"bleu_weight" yaml:"bleu_weight" validate:"gte=0,lte=1"`

	// ROUGELWeight scales the ROUGE-L term of the combined score.
	ROUGELWeight float64 `json:"rouge_l_weight" yaml:"rouge_l_weight" validate:"gte=0,lte=1"`

	// CosineWeight scales the embedding cosine similarity term.
	CosineWeight float64 `json:"cosine_weight" yaml:"cosine_weight" validate:"gte=0,lte=1"`
}

// DefaultConfig returns the documented default weighting:
// 0.25*BLEU + 0.25*ROUGE_L + 0.5*CosineSimilarity.
func DefaultConfig() Config {
	return Config{BLEUWeight: 0.25, ROUGELWeight: 0.25, CosineWeight: 0.5}
}

// Validate checks that the weights form a convex combination.
func (c Config) Validate() error {
	for _, w := range []float64{c.BLEUWeight, c.ROUGELWeight, c.CosineWeight} {
		if w < 0 || w > 1 {
			return fmt.Errorf("weights must be in [0,1], got %v", w)
		}
	}
	if sum := c.BLEUWeight + c.ROUGELWeight + c.CosineWeight; math.Abs(sum-1.0) > weightTolerance {
		return fmt.Errorf("weights must sum to 1.0, got %v", sum)
	}
	return nil
}

// Engine computes the full quantitative score set for a candidate against
// a reference. BLEU, ROUGE, and lexical similarity are self-contained; the
// cosine term calls the embedding collaborator. Evaluate never fails:
// degenerate inputs resolve to the documented edge scores and an embedding
// outage degrades the cosine term to 0.
type Engine struct {
	config   Config
	embedder ports.EmbeddingClient
	tracer   trace.Tracer
	logger   *slog.Logger
}

var _ ports.Evaluator = (*Engine)(nil)

// NewEngine creates a metric engine with the given embedding collaborator
// and weight configuration.
func NewEngine(embedder ports.EmbeddingClient, config Config, logger *slog.Logger) (*Engine, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedding client cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scoring config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		config:   config,
		embedder: embedder,
		tracer:   otel.Tracer("arena/scoring"),
		logger:   logger.With("component", "scoring_engine"),
	}, nil
}

// Evaluate scores candidate against reference. The returned result carries
// all individual metrics plus the weighted combined score; ModelID and
// TokensPerSecond are filled in by the caller, which owns that context.
func (e *Engine) Evaluate(ctx context.Context, reference, candidate string) domain.EvaluationResult {
	ctx, span := e.tracer.Start(ctx, "scoring.evaluate")
	defer span.End()

	start := time.Now()

	result := domain.EvaluationResult{
		BLEU:              BLEU(reference, candidate),
		ROUGE1:            ROUGE1(reference, candidate),
		ROUGEL:            ROUGEL(reference, candidate),
		LexicalSimilarity: LexicalSimilarity(reference, candidate),
	}
	result.CosineSimilarity = e.cosineSimilarity(ctx, reference, candidate)
	result.CombinedScore = e.config.BLEUWeight*result.BLEU +
		e.config.ROUGELWeight*result.ROUGEL +
		e.config.CosineWeight*result.CosineSimilarity
	result.Duration = time.Since(start)

	span.SetAttributes(
		attribute.Float64("scoring.bleu", result.BLEU),
		attribute.Float64("scoring.rouge_1", result.ROUGE1),
		attribute.Float64("scoring.rouge_l", result.ROUGEL),
		attribute.Float64("scoring.cosine", result.CosineSimilarity),
		attribute.Float64("scoring.combined", result.CombinedScore),
	)

	return result
}

// cosineSimilarity embeds both texts and returns their cosine similarity
// clamped to [0,1]. Identical texts short-circuit to 1.0 without an
// embedding call, and an embedding failure degrades to 0 rather than
// aborting the batch.
func (e *Engine) cosineSimilarity(ctx context.Context, reference, candidate string) float64 {
	refTokens := Tokenize(reference)
	candTokens := Tokenize(candidate)
	if len(refTokens) == 0 && len(candTokens) == 0 {
		return 1.0
	}
	if len(refTokens) == 0 || len(candTokens) == 0 {
		return 0.0
	}
	if reference == candidate {
		return 1.0
	}

	refVec, err := e.embedder.Embed(ctx, reference)
	if err != nil {
		e.logger.WarnContext(ctx, "reference embedding failed, cosine degrades to 0", "error", err)
		return 0.0
	}
	candVec, err := e.embedder.Embed(ctx, candidate)
	if err != nil {
		e.logger.WarnContext(ctx, "candidate embedding failed, cosine degrades to 0", "error", err)
		return 0.0
	}

	sim := Cosine(refVec, candVec)
	if sim < 0 {
		return 0.0
	}
	return sim
}
