// Package knowledge holds the session's searchable store of document chunks.
package knowledge

import (
	"context"
	"math"
	"sort"

	"github.com/Rrens/chatpdf/internal/domain"
)

// Index stores embedded chunks and ranks them against a query vector.
// Implementations keep insertion order so equal scores rank stably.
type Index interface {
	// Insert appends chunks; all of them or none are stored
	Insert(ctx context.Context, chunks []domain.Chunk) error

	// Search returns the topK chunks closest to embedding, best first
	Search(ctx context.Context, embedding []float32, topK int) ([]domain.ScoredChunk, error)

	// Clear removes every chunk
	Clear(ctx context.Context) error

	// Count returns the number of stored chunks
	Count(ctx context.Context) (int, error)
}

// CosineSimilarity computes the cosine similarity between two vectors
// Returns a value between -1 and 1, where 1 means identical direction
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return float32(dotProduct / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// Rank scores chunks against embedding and keeps the topK best. Chunks must
// be passed in insertion order; ties keep that order.
func Rank(chunks []domain.Chunk, embedding []float32, topK int) []domain.ScoredChunk {
	results := make([]domain.ScoredChunk, 0, len(chunks))
	for _, c := range chunks {
		results = append(results, domain.ScoredChunk{
			Chunk: c,
			Score: CosineSimilarity(embedding, c.Embedding),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if topK > 0 && topK < len(results) {
		results = results[:topK]
	}
	return results
}
