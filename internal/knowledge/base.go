package knowledge

import (
	"context"
	"fmt"

	"github.com/Rrens/chatpdf/internal/domain"
	"github.com/Rrens/chatpdf/internal/llm"
	"github.com/rs/zerolog/log"
)

const defaultEmbedBatch = 64

// Base is the knowledge base of one session: an index plus the embedder
// that produced its vectors. Queries are embedded with the same embedder.
type Base struct {
	index      Index
	embedder   llm.Embedder
	embedBatch int
}

// NewBase creates a knowledge base over index. A non-positive embedBatch
// falls back to the default batch size.
func NewBase(index Index, embedder llm.Embedder, embedBatch int) *Base {
	if embedBatch <= 0 {
		embedBatch = defaultEmbedBatch
	}
	return &Base{
		index:      index,
		embedder:   embedder,
		embedBatch: embedBatch,
	}
}

// Add embeds chunks and appends them. Nothing is stored if any embedding
// call fails.
func (b *Base) Add(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors := make([][]float32, 0, len(chunks))
	for start := 0; start < len(texts); start += b.embedBatch {
		end := min(start+b.embedBatch, len(texts))
		batch, err := b.embedder.Embed(ctx, texts[start:end])
		if err != nil {
			return fmt.Errorf("embedding chunks %d-%d: %w", start, end-1, err)
		}
		if len(batch) != end-start {
			return fmt.Errorf("embedder returned %d vectors for %d chunks", len(batch), end-start)
		}
		vectors = append(vectors, batch...)
	}

	embedded := make([]domain.Chunk, len(chunks))
	for i, c := range chunks {
		c.Embedding = vectors[i]
		embedded[i] = c
	}

	if err := b.index.Insert(ctx, embedded); err != nil {
		return fmt.Errorf("storing chunks: %w", err)
	}

	log.Debug().
		Int("chunks", len(embedded)).
		Str("embedding_model", b.embedder.EmbeddingModel()).
		Msg("chunks added to knowledge base")
	return nil
}

// Query returns the topK chunks most similar to text, most relevant first.
// An empty knowledge base yields an empty result without embedding text.
func (b *Base) Query(ctx context.Context, text string, topK int) ([]domain.ScoredChunk, error) {
	n, err := b.index.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting chunks: %w", err)
	}
	if n == 0 {
		return []domain.ScoredChunk{}, nil
	}

	vectors, err := b.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for the query", len(vectors))
	}

	results, err := b.index.Search(ctx, vectors[0], topK)
	if err != nil {
		return nil, fmt.Errorf("searching chunks: %w", err)
	}
	return results, nil
}

// Reset discards every chunk. Safe on an empty base.
func (b *Base) Reset(ctx context.Context) error {
	if err := b.index.Clear(ctx); err != nil {
		return fmt.Errorf("clearing knowledge base: %w", err)
	}
	return nil
}

// Len returns the number of stored chunks
func (b *Base) Len(ctx context.Context) (int, error) {
	return b.index.Count(ctx)
}
