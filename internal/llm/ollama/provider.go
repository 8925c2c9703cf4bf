package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Rrens/chatpdf/internal/config"
	"github.com/Rrens/chatpdf/internal/llm"
)

// Provider implements llm.Provider for a local Ollama server. The API
// credential is not sent anywhere.
type Provider struct {
	host           string
	defaultModel   string
	embeddingModel string
	client         *http.Client
}

// NewProvider creates a new Ollama provider
func NewProvider(cfg config.OllamaConfig, timeout time.Duration) *Provider {
	if cfg.Model == "" {
		cfg.Model = "llama3"
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = "nomic-embed-text"
	}
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	return &Provider{
		host:           strings.TrimRight(cfg.Host, "/"),
		defaultModel:   cfg.Model,
		embeddingModel: cfg.EmbeddingModel,
		client:         &http.Client{Timeout: timeout},
	}
}

// Factory adapts NewProvider to llm.ProviderFactory
func Factory(cfg config.OllamaConfig, timeout time.Duration) llm.ProviderFactory {
	return func(string) llm.Provider {
		return NewProvider(cfg, timeout)
	}
}

// Name returns the provider identifier
func (p *Provider) Name() string {
	return "ollama"
}

// DefaultModel returns the default model
func (p *Provider) DefaultModel() string {
	return p.defaultModel
}

// EmbeddingModel returns the embedding model
func (p *Provider) EmbeddingModel() string {
	return p.embeddingModel
}

// IsConfigured checks if the server address is known
func (p *Provider) IsConfigured() bool {
	return p.host != ""
}

type generateRequest struct {
	Model   string         `json:"model"`
	System  string         `json:"system,omitempty"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type generateResponse struct {
	Response  string `json:"response"`
	Done      bool   `json:"done"`
	EvalCount int    `json:"eval_count"`
}

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Generate answers a prompt with /api/generate
func (p *Provider) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	start := time.Now()

	var out generateResponse
	err := p.post(ctx, "/api/generate", generateRequest{
		Model:  p.defaultModel,
		System: req.System,
		Prompt: req.Prompt,
		Stream: false,
		Options: map[string]any{
			"temperature": 0.2,
		},
	}, &out)
	if err != nil {
		return nil, err
	}

	return &llm.Response{
		Text:       llm.CleanAnswer(out.Response),
		Model:      p.defaultModel,
		TokensUsed: out.EvalCount,
		LatencyMs:  time.Since(start).Milliseconds(),
	}, nil
}

// Embed calls /api/embeddings once per text
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		var out embedResponse
		if err := p.post(ctx, "/api/embeddings", embedRequest{Model: p.embeddingModel, Prompt: text}, &out); err != nil {
			return nil, fmt.Errorf("embedding text %d: %w", i, err)
		}
		if len(out.Embedding) == 0 {
			return nil, fmt.Errorf("embedding text %d: empty vector", i)
		}
		embeddings[i] = out.Embedding
	}
	return embeddings, nil
}

func (p *Provider) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.host+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
