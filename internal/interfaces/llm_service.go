package interfaces

import "context"

// LLMService abstracts a chat-completion provider used for AI synthesis.
// Implementations must return the raw completion text; callers own JSON
// parsing and schema validation.
type LLMService interface {
	// Complete sends a single-prompt completion request and returns the
	// response text.
	Complete(ctx context.Context, prompt string) (string, error)

	// Name returns the provider name for logging ("claude", "gemini").
	Name() string

	// Close releases provider resources.
	Close() error
}
