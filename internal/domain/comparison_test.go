package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComparisonRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		request ComparisonRequest
		wantErr error
	}{
		{
			name:    "valid direct request",
			request: ComparisonRequest{Prompt: "What is 2+2?", ModelIDs: []string{"m1", "m2"}},
		},
		{
			name: "valid context-aware request",
			request: ComparisonRequest{
				Prompt:   "Summarize",
				ModelIDs: []string{"m1"},
				Context:  "Some background",
				UseCase:  UseCaseContextAware,
			},
		},
		{
			name:    "empty prompt",
			request: ComparisonRequest{ModelIDs: []string{"m1"}},
			wantErr: ErrEmptyPrompt,
		},
		{
			name:    "no models",
			request: ComparisonRequest{Prompt: "hi"},
			wantErr: ErrNoModels,
		},
		{
			name:    "blank model id",
			request: ComparisonRequest{Prompt: "hi", ModelIDs: []string{"m1", ""}},
			wantErr: ErrNoModels,
		},
		{
			name:    "duplicate model ids",
			request: ComparisonRequest{Prompt: "hi", ModelIDs: []string{"m1", "m1"}},
			wantErr: ErrDuplicateModel,
		},
		{
			name: "context-aware without context",
			request: ComparisonRequest{
				Prompt:   "hi",
				ModelIDs: []string{"m1"},
				UseCase:  UseCaseContextAware,
			},
			wantErr: ErrMissingContext,
		},
		{
			name: "explicit direct use case",
			request: ComparisonRequest{
				Prompt:   "hi",
				ModelIDs: []string{"m1"},
				UseCase:  UseCaseDirect,
			},
		},
		{
			name: "unknown use case",
			request: ComparisonRequest{
				Prompt:   "hi",
				ModelIDs: []string{"m1"},
				UseCase:  "general",
			},
			wantErr: ErrInvalidUseCase,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.request.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestModelCompletionFailed(t *testing.T) {
	assert.False(t, ModelCompletion{ModelID: "m1", Content: "4"}.Failed())
	assert.True(t, ModelCompletion{ModelID: "m2", Error: "timeout"}.Failed())
}
