package llm

import "context"

// Request contains answer generation parameters
type Request struct {
	System string
	Prompt string
}

// Response contains LLM generation result
type Response struct {
	Text       string
	Model      string
	TokensUsed int
	LatencyMs  int64
}

// Embedder turns texts into vectors
type Embedder interface {
	// Embed returns one vector per input text, in input order
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// EmbeddingModel identifies the vector space the embeddings live in
	EmbeddingModel() string
}

// Provider defines the interface for LLM providers
type Provider interface {
	Embedder

	// Name returns the provider identifier
	Name() string

	// DefaultModel returns the generation model
	DefaultModel() string

	// IsConfigured checks if provider has valid credentials
	IsConfigured() bool

	// Generate produces an answer for a fully built prompt
	Generate(ctx context.Context, req Request) (*Response, error)
}

// ProviderFactory creates a provider bound to an API credential
type ProviderFactory func(apiKey string) Provider
