package service

import (
	"context"
	"strings"
	"time"
	"unicode"

	"github.com/Rrens/chatpdf/internal/domain"
	"github.com/Rrens/chatpdf/internal/llm"
	"github.com/stretchr/testify/mock"
)

// MockLLMProvider mocks llm.Provider. Generation is mocked; embeddings are
// letter-frequency vectors so retrieval behaves deterministically.
type MockLLMProvider struct {
	mock.Mock
	embedErr error
}

func (m *MockLLMProvider) Name() string           { return "mock" }
func (m *MockLLMProvider) DefaultModel() string   { return "mock-chat" }
func (m *MockLLMProvider) EmbeddingModel() string { return "mock-embed" }
func (m *MockLLMProvider) IsConfigured() bool     { return true }

func (m *MockLLMProvider) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*llm.Response), args.Error(1)
}

func (m *MockLLMProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec := make([]float32, 26)
		for _, r := range strings.ToLower(t) {
			if r >= 'a' && r <= 'z' && unicode.IsLetter(r) {
				vec[r-'a']++
			}
		}
		out[i] = vec
	}
	return out, nil
}

// MockLimiter mocks QuestionLimiter
type MockLimiter struct {
	mock.Mock
}

func (m *MockLimiter) Allow(ctx context.Context, key string) (bool, time.Time, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), time.Time{}, args.Error(1)
}

// stubExtractor returns canned pages keyed by the raw buffer
type stubExtractor map[string][]string

func (s stubExtractor) Extract(raw []byte) ([]string, error) {
	pages, ok := s[string(raw)]
	if !ok {
		return nil, domain.ErrNotPDF
	}
	return pages, nil
}

var testDocuments = stubExtractor{
	"guide": {
		"The warranty covers parts and labour for two years.",
		"Returns are accepted within thirty days of purchase.",
		"Contact support by email for repairs.",
	},
	"recipes": {
		"Bake the bread at two hundred degrees for forty minutes.",
	},
}
