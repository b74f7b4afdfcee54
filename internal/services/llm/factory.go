package llm

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/launchradar/launchradar/internal/common"
	"github.com/launchradar/launchradar/internal/interfaces"
)

// NewLLMService creates the synthesis provider named by the enrichment
// configuration. Supported providers are "claude" and "gemini".
func NewLLMService(ctx context.Context, cfg *common.Config, logger arbor.ILogger) (interfaces.LLMService, error) {
	provider := cfg.Enrichment.Provider
	if provider == "" {
		provider = "claude"
	}

	logger.Info().Str("provider", provider).Msg("Initializing LLM service")

	switch provider {
	case "claude":
		return NewClaudeService(&cfg.Claude, logger)
	case "gemini":
		return NewGeminiService(ctx, &cfg.Gemini, logger)
	default:
		return nil, fmt.Errorf("invalid LLM provider '%s': must be 'claude' or 'gemini'", provider)
	}
}
