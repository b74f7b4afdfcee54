package enrichment

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/launchradar/launchradar/internal/models"
)

type fakeLLM struct {
	response string
	err      error
}

func (f *fakeLLM) Complete(ctx context.Context, prompt string) (string, error) {
	return f.response, f.err
}

func (f *fakeLLM) Name() string { return "fake" }

func (f *fakeLLM) Close() error { return nil }

func TestGenerate_ValidResponse(t *testing.T) {
	llm := &fakeLLM{response: `{"pitch": "Great company. Ships fast.", "feature_summary": ["a", "b", "c"]}`}
	s := NewSynthesizer(llm, arbor.NewLogger())

	result := s.Generate(context.Background(), "Company: Acme.")

	assert.Equal(t, "Great company. Ships fast.", result.Pitch)
	assert.Equal(t, []string{"a", "b", "c"}, result.FeatureSummary)
}

func TestGenerate_StripsCodeFences(t *testing.T) {
	llm := &fakeLLM{response: "```json\n{\"pitch\": \"Fenced.\", \"feature_summary\": [\"x\"]}\n```"}
	s := NewSynthesizer(llm, arbor.NewLogger())

	result := s.Generate(context.Background(), "Company: Acme.")

	assert.Equal(t, "Fenced.", result.Pitch)
	assert.Equal(t, []string{"x"}, result.FeatureSummary)
}

func TestGenerate_MalformedJSONUsesParseSentinel(t *testing.T) {
	llm := &fakeLLM{response: `Here is your answer: pitch is great`}
	s := NewSynthesizer(llm, arbor.NewLogger())

	result := s.Generate(context.Background(), "Company: Acme.")

	assert.Equal(t, models.SentinelParsePitch, result.Pitch)
	assert.Equal(t, []string{models.SentinelParseFeature}, result.FeatureSummary)
}

func TestGenerate_MissingFieldUsesSchemaSentinel(t *testing.T) {
	// Valid JSON, wrong shape: no feature_summary
	llm := &fakeLLM{response: `{"pitch": "Only a pitch."}`}
	s := NewSynthesizer(llm, arbor.NewLogger())

	result := s.Generate(context.Background(), "Company: Acme.")

	assert.Equal(t, models.SentinelSchemaPitch, result.Pitch)
	assert.Equal(t, []string{models.SentinelSchemaFeature}, result.FeatureSummary)
}

func TestGenerate_ProviderErrorUsesGenerationSentinel(t *testing.T) {
	llm := &fakeLLM{err: fmt.Errorf("connection refused")}
	s := NewSynthesizer(llm, arbor.NewLogger())

	result := s.Generate(context.Background(), "Company: Acme.")

	assert.Contains(t, result.Pitch, "AI generation failed:")
	assert.Contains(t, result.Pitch, "connection refused")
	require.Len(t, result.FeatureSummary, 1)
	assert.Contains(t, result.FeatureSummary[0], "AI generation failed:")
}

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"no fence", `{"a": 1}`, `{"a": 1}`},
		{"json fence", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"bare fence", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"surrounding whitespace", "  ```json\n{\"a\": 1}\n```  ", `{"a": 1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, stripCodeFences(tt.input))
		})
	}
}
