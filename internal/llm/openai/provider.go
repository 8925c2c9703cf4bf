package openai

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Rrens/chatpdf/internal/config"
	"github.com/Rrens/chatpdf/internal/llm"
	goopenai "github.com/sashabaranov/go-openai"
)

// Provider implements llm.Provider for OpenAI
type Provider struct {
	apiKey         string
	defaultModel   string
	embeddingModel string
	client         *goopenai.Client
}

// NewProvider creates a new OpenAI provider
func NewProvider(apiKey string, cfg config.OpenAIConfig, timeout time.Duration) *Provider {
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = string(goopenai.SmallEmbedding3)
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	clientCfg := goopenai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	clientCfg.HTTPClient = &http.Client{Timeout: timeout}

	return &Provider{
		apiKey:         apiKey,
		defaultModel:   cfg.Model,
		embeddingModel: cfg.EmbeddingModel,
		client:         goopenai.NewClientWithConfig(clientCfg),
	}
}

// Factory adapts NewProvider to llm.ProviderFactory
func Factory(cfg config.OpenAIConfig, timeout time.Duration) llm.ProviderFactory {
	return func(apiKey string) llm.Provider {
		return NewProvider(apiKey, cfg, timeout)
	}
}

// Name returns the provider identifier
func (p *Provider) Name() string {
	return "openai"
}

// DefaultModel returns the default model
func (p *Provider) DefaultModel() string {
	return p.defaultModel
}

// EmbeddingModel returns the embedding model
func (p *Provider) EmbeddingModel() string {
	return p.embeddingModel
}

// IsConfigured checks if provider has valid credentials
func (p *Provider) IsConfigured() bool {
	return p.apiKey != ""
}

// Generate answers a prompt with a chat completion
func (p *Provider) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	messages := make([]goopenai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, goopenai.ChatCompletionMessage{
			Role:    goopenai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, goopenai.ChatCompletionMessage{
		Role:    goopenai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	start := time.Now()
	resp, err := p.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:     p.defaultModel,
		Messages:  messages,
		MaxTokens: 1024,
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from OpenAI")
	}

	return &llm.Response{
		Text:       llm.CleanAnswer(resp.Choices[0].Message.Content),
		Model:      p.defaultModel,
		TokensUsed: resp.Usage.TotalTokens,
		LatencyMs:  time.Since(start).Milliseconds(),
	}, nil
}

// Embed generates embeddings for texts in a single request
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := p.client.CreateEmbeddings(ctx, goopenai.EmbeddingRequest{
		Model: goopenai.EmbeddingModel(p.embeddingModel),
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	embeddings := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		v := make([]float32, len(d.Embedding))
		for i := range d.Embedding {
			v[i] = float32(d.Embedding[i])
		}
		embeddings[d.Index] = v
	}

	return embeddings, nil
}
