package ai

import "context"

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// The returned slice contains embeddings in the same order as the input texts.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Generator answers a prompt with a language model.
// Implementations must be thread-safe for concurrent use.
type Generator interface {
	// Generate sends the system and user prompts and returns the first choice.
	Generate(ctx context.Context, system, prompt string) (*Generation, error)
}

// Generation is a single model completion.
type Generation struct {
	Text string

	// Model is the model that produced the text, if the service reports it.
	Model string

	// TokensUsed is the total prompt plus completion token count, 0 if unknown.
	TokensUsed int
}

// AIProvider aggregates AI services for convenient initialization and lifecycle management.
type AIProvider interface {
	// Embedder returns the text embedding service.
	Embedder() Embedder

	// Generator returns the answer generation service.
	Generator() Generator

	// Close releases resources held by the provider and its services.
	Close() error
}
