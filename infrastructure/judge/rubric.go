// Package judge implements the qualitative half of the evaluation pipeline:
// it prompts a designated judge model to score a candidate response along a
// fixed set of rubric dimensions and parses the structured reply. A reply
// that cannot be parsed is recorded with absent scores and the raw text
// preserved; it never fails the surrounding batch.
package judge

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Dimension is one qualitative axis the judge scores, with guidance text
// that is inlined into the judge prompt.
type Dimension struct {
	Name     string `yaml:"name" json:"name" validate:"required,min=2"`
	Guidance string `yaml:"guidance" json:"guidance" validate:"required,min=10"`
}

// Rubric is the full scoring instruction set for the judge: a score scale
// and the dimensions to score. Rubrics ship as standalone YAML documents so
// they can be tuned without a rebuild.
type Rubric struct {
	// Scale defines the scoring range in "min-max" form, e.g. "1-10".
	Scale string `yaml:"scale" json:"scale" validate:"required"`

	// Dimensions are the axes the judge scores, in prompt order.
	Dimensions []Dimension `yaml:"dimensions" json:"dimensions" validate:"required,min=1,dive"`
}

// ScoreScale is a parsed and validated scoring range.
type ScoreScale struct {
	Min float64
	Max float64
}

// Contains checks if a score falls within this scale's range.
func (s ScoreScale) Contains(score float64) bool {
	return score >= s.Min && score <= s.Max
}

// ParseScoreScale parses a "min-max" scale string such as "1-10" or
// "0.0-5.0".
func ParseScoreScale(scaleStr string) (ScoreScale, error) {
	parts := strings.SplitN(scaleStr, "-", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return ScoreScale{}, fmt.Errorf("score scale must be in format 'min-max', got: %s", scaleStr)
	}

	minVal, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return ScoreScale{}, fmt.Errorf("invalid minimum value in score scale: %w", err)
	}
	maxVal, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return ScoreScale{}, fmt.Errorf("invalid maximum value in score scale: %w", err)
	}
	if minVal >= maxVal {
		return ScoreScale{}, fmt.Errorf("minimum value must be less than maximum value in score scale")
	}

	return ScoreScale{Min: minVal, Max: maxVal}, nil
}

// DefaultRubric returns the standard five-dimension rubric scored 1-10.
func DefaultRubric() Rubric {
	return Rubric{
		Scale: "1-10",
		Dimensions: []Dimension{
			{Name: "personalization", Guidance: "How well the response adapts to the specific question and any context the user supplied."},
			{Name: "relevance", Guidance: "How directly the response addresses the question without drifting off topic."},
			{Name: "fluency", Guidance: "Grammatical correctness and natural, readable phrasing."},
			{Name: "coherence", Guidance: "Logical structure and internal consistency of the response."},
			{Name: "creativity", Guidance: "Originality and insight beyond a bare minimum answer."},
		},
	}
}

// Validate checks the rubric's structure and scale format, and rejects
// duplicate dimension names.
func (r Rubric) Validate(v *validator.Validate) error {
	if err := v.Struct(r); err != nil {
		return fmt.Errorf("rubric validation failed: %w", err)
	}
	if _, err := ParseScoreScale(r.Scale); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(r.Dimensions))
	for _, d := range r.Dimensions {
		name := strings.ToLower(d.Name)
		if _, dup := seen[name]; dup {
			return fmt.Errorf("duplicate rubric dimension: %s", d.Name)
		}
		seen[name] = struct{}{}
	}
	return nil
}

// LoadRubric reads and validates a rubric from a YAML file.
func LoadRubric(path string) (Rubric, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Rubric{}, fmt.Errorf("failed to read rubric file: %w", err)
	}

	var rubric Rubric
	if err := yaml.Unmarshal(data, &rubric); err != nil {
		return Rubric{}, fmt.Errorf("failed to parse rubric YAML: %w", err)
	}

	if err := rubric.Validate(validator.New()); err != nil {
		return Rubric{}, err
	}
	return rubric, nil
}
