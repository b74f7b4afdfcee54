package enrichment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/launchradar/launchradar/internal/interfaces"
	"github.com/launchradar/launchradar/internal/models"
)

const synthesisPrompt = `You are a product catalog assistant. Analyze the following company information and generate insights.

Company Information: %s

Respond with a valid JSON object that matches this exact structure:
{
    "pitch": "A compelling 2-sentence company pitch",
    "feature_summary": ["feature1", "feature2", "feature3"]
}

Your response should ONLY contain the JSON object and nothing else.`

// Synthesizer turns canonical company text into a pitch and feature
// summary via the configured LLM provider. Generate never returns an
// error: every failure mode maps to a sentinel Synthesis so one bad
// response cannot abort a batch.
type Synthesizer struct {
	llm      interfaces.LLMService
	validate *validator.Validate
	logger   arbor.ILogger
}

// NewSynthesizer creates a synthesizer over the given LLM provider.
func NewSynthesizer(llmService interfaces.LLMService, logger arbor.ILogger) *Synthesizer {
	return &Synthesizer{
		llm:      llmService,
		validate: validator.New(),
		logger:   logger,
	}
}

// Generate produces AI insights for the given canonical company text.
func (s *Synthesizer) Generate(ctx context.Context, content string) models.Synthesis {
	response, err := s.llm.Complete(ctx, fmt.Sprintf(synthesisPrompt, content))
	if err != nil {
		s.logger.Error().Err(err).Str("provider", s.llm.Name()).Msg("AI synthesis generation failed")
		degraded := fmt.Sprintf("%s %s", models.SentinelGenerationPrefix, err)
		return models.Synthesis{
			Pitch:          degraded,
			FeatureSummary: []string{degraded},
		}
	}

	cleaned := stripCodeFences(response)

	var synthesis models.Synthesis
	if err := json.Unmarshal([]byte(cleaned), &synthesis); err != nil {
		s.logger.Error().Err(err).Str("response", truncate(cleaned, 200)).Msg("AI synthesis response is not valid JSON")
		return models.Synthesis{
			Pitch:          models.SentinelParsePitch,
			FeatureSummary: []string{models.SentinelParseFeature},
		}
	}

	if err := s.validate.Struct(&synthesis); err != nil {
		s.logger.Error().Err(err).Str("response", truncate(cleaned, 200)).Msg("AI synthesis response failed schema validation")
		return models.Synthesis{
			Pitch:          models.SentinelSchemaPitch,
			FeatureSummary: []string{models.SentinelSchemaFeature},
		}
	}

	return synthesis
}

// stripCodeFences removes a surrounding markdown code fence, with or
// without a language tag. Models add these despite the prompt.
func stripCodeFences(response string) string {
	text := strings.TrimSpace(response)
	if !strings.HasPrefix(text, "```") {
		return text
	}

	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
