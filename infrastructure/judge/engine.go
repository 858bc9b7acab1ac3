package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/modelarena/arena/internal/domain"
	"github.com/modelarena/arena/internal/ports"
)

// Default configuration values.
const (
	// DefaultTemperature keeps judge scoring mostly deterministic while
	// leaving room for nuanced rationale.
	DefaultTemperature = 0.3
	// DefaultMaxTokens must fit scores plus a one-sentence rationale per
	// dimension.
	DefaultMaxTokens = 1024
)

// promptTemplate renders the judge instruction. The reply contract is
// strict JSON with a scores map and a reasons map keyed by dimension name.
const promptTemplate = `You are an impartial evaluator of language model responses.

Question:
{{.Query}}

Candidate response:
{{.Candidate}}

Score the candidate on each dimension below on a scale from {{.Min}} to {{.Max}}:
{{range .Dimensions}}- {{.Name}}: {{.Guidance}}
{{end}}
IMPORTANT: You must respond with valid JSON in exactly this format, with one entry per dimension:
{"scores": {{.ScoresExample}}, "reasons": {{.ReasonsExample}}}`

// Config holds the judge engine's generation parameters.
type Config struct {
	// Temperature controls randomness of the judge model.
	Temperature float64 `json:"temperature" yaml:"temperature" validate:"min=0,max=1"`

	// MaxTokens limits the judge reply length.
	MaxTokens int `json:"max_tokens" yaml:"max_tokens" validate:"required,min=50,max=4000"`
}

// DefaultConfig returns the standard judge generation parameters.
func DefaultConfig() Config {
	return Config{Temperature: DefaultTemperature, MaxTokens: DefaultMaxTokens}
}

// reply is the expected JSON structure of the judge model's answer.
type reply struct {
	Scores  map[string]float64 `json:"scores" validate:"required,min=1"`
	Reasons map[string]string  `json:"reasons"`
}

// Engine scores candidate responses qualitatively by prompting a judge
// model with the configured rubric. One Judge call per completion; calls
// are independent so one failure never blocks the others.
type Engine struct {
	client    ports.LLMClient
	rubric    Rubric
	scale     ScoreScale
	config    Config
	validator *validator.Validate
	tmpl      *template.Template
}

var _ ports.Judge = (*Engine)(nil)

// NewEngine creates a judge engine bound to the given judge model client
// and rubric.
func NewEngine(client ports.LLMClient, rubric Rubric, config Config) (*Engine, error) {
	if client == nil {
		return nil, fmt.Errorf("LLM client cannot be nil")
	}

	v := validator.New()
	if err := v.Struct(config); err != nil {
		return nil, fmt.Errorf("invalid judge config: %w", err)
	}
	if err := rubric.Validate(v); err != nil {
		return nil, fmt.Errorf("invalid rubric: %w", err)
	}
	scale, err := ParseScoreScale(rubric.Scale)
	if err != nil {
		return nil, err
	}

	tmpl, err := template.New("judgePrompt").Parse(promptTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse judge prompt template: %w", err)
	}

	return &Engine{
		client:    client,
		rubric:    rubric,
		scale:     scale,
		config:    config,
		validator: v,
		tmpl:      tmpl,
	}, nil
}

// Judge prompts the judge model to score candidate against query. Errors
// are recorded in the result rather than returned: a transport failure
// yields an error-marked result with no scores, and a reply that cannot be
// parsed yields an error-marked result with RawText preserved for
// diagnostics.
func (e *Engine) Judge(ctx context.Context, query, candidate string) domain.JudgeResult {
	start := time.Now()

	prompt, err := e.buildPrompt(query, candidate)
	if err != nil {
		return domain.JudgeResult{
			Error:    fmt.Sprintf("prompt build failed: %v", err),
			Duration: time.Since(start),
		}
	}

	options := map[string]any{
		"temperature": e.config.Temperature,
		"max_tokens":  e.config.MaxTokens,
	}
	if supportsJSONMode(e.client.GetModel()) {
		options["response_format"] = map[string]string{"type": "json_object"}
	}

	response, err := e.client.Complete(ctx, prompt, options)
	if err != nil {
		return domain.JudgeResult{
			Error:    fmt.Sprintf("judge call failed: %v", err),
			Duration: time.Since(start),
		}
	}

	result := e.parseReply(response)
	result.Duration = time.Since(start)
	return result
}

// buildPrompt renders the judge prompt from the rubric and inputs.
func (e *Engine) buildPrompt(query, candidate string) (string, error) {
	scoreParts := make([]string, len(e.rubric.Dimensions))
	reasonParts := make([]string, len(e.rubric.Dimensions))
	for i, d := range e.rubric.Dimensions {
		scoreParts[i] = fmt.Sprintf("%q: <number>", d.Name)
		reasonParts[i] = fmt.Sprintf("%q: \"<one-sentence rationale>\"", d.Name)
	}

	var buf bytes.Buffer
	data := struct {
		Query          string
		Candidate      string
		Min            float64
		Max            float64
		Dimensions     []Dimension
		ScoresExample  string
		ReasonsExample string
	}{
		Query:          query,
		Candidate:      candidate,
		Min:            e.scale.Min,
		Max:            e.scale.Max,
		Dimensions:     e.rubric.Dimensions,
		ScoresExample:  "{" + strings.Join(scoreParts, ", ") + "}",
		ReasonsExample: "{" + strings.Join(reasonParts, ", ") + "}",
	}
	if err := e.tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// parseReply extracts and validates the judge's JSON reply. On any failure
// the result carries the raw text and an error marker instead of scores.
func (e *Engine) parseReply(response string) domain.JudgeResult {
	jsonStr := ExtractJSON(response)
	if jsonStr == "" {
		return domain.JudgeResult{
			RawText: response,
			Error:   "no valid JSON found in judge reply",
		}
	}

	var parsed reply
	if err := json.Unmarshal([]byte(jsonStr), &parsed); err != nil {
		return domain.JudgeResult{
			RawText: response,
			Error:   fmt.Sprintf("failed to parse judge reply: %v", err),
		}
	}
	if err := e.validator.Struct(parsed); err != nil {
		return domain.JudgeResult{
			RawText: response,
			Error:   fmt.Sprintf("invalid judge reply structure: %v", err),
		}
	}

	scores := make(map[string]float64, len(e.rubric.Dimensions))
	reasons := make(map[string]string, len(e.rubric.Dimensions))
	for _, dim := range e.rubric.Dimensions {
		score, ok := parsed.Scores[dim.Name]
		if !ok {
			return domain.JudgeResult{
				RawText: response,
				Error:   fmt.Sprintf("judge reply missing dimension %q", dim.Name),
			}
		}
		if !e.scale.Contains(score) {
			return domain.JudgeResult{
				RawText: response,
				Error:   fmt.Sprintf("score %.2f for %q not in range [%.1f, %.1f]", score, dim.Name, e.scale.Min, e.scale.Max),
			}
		}
		scores[dim.Name] = score
		if reason, ok := parsed.Reasons[dim.Name]; ok {
			reasons[dim.Name] = reason
		}
	}

	return domain.JudgeResult{
		Scores:  scores,
		Reasons: reasons,
		RawText: response,
	}
}

// supportsJSONMode checks whether the judge model likely supports
// structured JSON output. A simple heuristic on the model name.
func supportsJSONMode(model string) bool {
	model = strings.ToLower(model)
	return strings.Contains(model, "gpt") || strings.Contains(model, "claude")
}
