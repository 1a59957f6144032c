package port

import "context"

// AIProvider abstracts the AI/LLM backend for embeddings and chat completions.
// Implementations can target OpenAI or any compatible API.
type AIProvider interface {
	// ModelName returns the identifier of the generative model being used.
	ModelName() string

	// Dimension returns the dimensionality of the embedding vectors this
	// provider produces. Constant for the lifetime of the provider.
	Dimension() int

	// Embed generates a vector embedding for the given text. Empty input is
	// rejected before any network call.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts. The output has the
	// same length and order as the input: vector[i] corresponds to texts[i].
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Chat sends a prompt with optional context chunks and returns the LLM
	// response.
	Chat(ctx context.Context, systemPrompt string, userPrompt string, contextChunks []string) (string, error)
}
