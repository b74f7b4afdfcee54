package interfaces

import "context"

// EmbeddingService abstracts an embedding provider.
type EmbeddingService interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the embedding dimensionality.
	Dimension() int
}
