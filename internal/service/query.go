package service

import (
	"context"
	"time"

	"github.com/Rrens/chatpdf/internal/domain"
	"github.com/Rrens/chatpdf/internal/llm"
	"github.com/Rrens/chatpdf/internal/security"
	"github.com/rs/zerolog/log"
)

const DefaultTopK = 4

// Retriever is the read side of a knowledge base
type Retriever interface {
	Query(ctx context.Context, text string, topK int) ([]domain.ScoredChunk, error)
	Len(ctx context.Context) (int, error)
}

// QuestionLimiter decides whether another question may be asked under key
type QuestionLimiter interface {
	Allow(ctx context.Context, key string) (bool, time.Time, error)
}

// Answer is a generated reply plus the excerpts it was grounded on
type Answer struct {
	Text      string
	Sources   []domain.ScoredChunk
	Provider  string
	Model     string
	LatencyMs int64
}

// QueryEngine answers questions against a knowledge base
type QueryEngine struct {
	kb         Retriever
	provider   llm.Provider
	credential *security.Credential
	limiter    QuestionLimiter
	topK       int
}

// NewQueryEngine creates a query engine. limiter may be nil.
func NewQueryEngine(kb Retriever, provider llm.Provider, credential *security.Credential, limiter QuestionLimiter, topK int) *QueryEngine {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &QueryEngine{
		kb:         kb,
		provider:   provider,
		credential: credential,
		limiter:    limiter,
		topK:       topK,
	}
}

// Ask retrieves the most relevant excerpts for question and asks the
// provider to answer from them.
func (e *QueryEngine) Ask(ctx context.Context, question string) (*Answer, error) {
	startTime := time.Now()

	if e.credential == nil || !e.credential.IsSet() || e.provider == nil {
		return nil, &domain.ConfigurationError{Err: domain.ErrCredentialMissing}
	}

	n, err := e.kb.Len(ctx)
	if err != nil {
		return nil, e.fail(err)
	}
	if n == 0 {
		return &Answer{
			Text:    llm.NoDocumentsAnswer,
			Sources: []domain.ScoredChunk{},
		}, nil
	}

	if e.limiter != nil {
		allowed, _, err := e.limiter.Allow(ctx, e.credential.Fingerprint())
		if err != nil {
			// limiter outages do not block questions
			log.Warn().Err(err).Msg("rate limit check failed")
		} else if !allowed {
			return nil, e.fail(domain.ErrRateLimited)
		}
	}

	sources, err := e.kb.Query(ctx, question, e.topK)
	if err != nil {
		return nil, e.fail(err)
	}

	resp, err := e.provider.Generate(ctx, llm.Request{
		System: llm.SystemPrompt,
		Prompt: llm.BuildPrompt(question, sources),
	})
	if err != nil {
		return nil, e.fail(err)
	}

	model := resp.Model
	if model == "" {
		model = e.provider.DefaultModel()
	}

	log.Debug().
		Str("provider", e.provider.Name()).
		Str("model", model).
		Int("sources", len(sources)).
		Int("tokens_used", resp.TokensUsed).
		Int64("latency_ms", time.Since(startTime).Milliseconds()).
		Msg("question answered")

	return &Answer{
		Text:      llm.CleanAnswer(resp.Text),
		Sources:   sources,
		Provider:  e.provider.Name(),
		Model:     model,
		LatencyMs: time.Since(startTime).Milliseconds(),
	}, nil
}

func (e *QueryEngine) fail(err error) error {
	return &domain.GenerationError{Provider: e.provider.Name(), Err: err}
}
