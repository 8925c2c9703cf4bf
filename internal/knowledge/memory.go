package knowledge

import (
	"context"
	"sync"

	"github.com/Rrens/chatpdf/internal/domain"
)

// MemoryIndex keeps chunks in process memory
type MemoryIndex struct {
	mu     sync.RWMutex
	chunks []domain.Chunk
}

// NewMemoryIndex creates an empty in-memory index
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{}
}

func (m *MemoryIndex) Insert(ctx context.Context, chunks []domain.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.chunks = append(m.chunks, chunks...)
	return nil
}

func (m *MemoryIndex) Search(ctx context.Context, embedding []float32, topK int) ([]domain.ScoredChunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return Rank(m.chunks, embedding, topK), nil
}

func (m *MemoryIndex) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.chunks = nil
	return nil
}

func (m *MemoryIndex) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.chunks), nil
}
