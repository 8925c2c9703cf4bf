package postgres

import (
	"context"
	"fmt"

	"github.com/Rrens/chatpdf/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// ChunkIndex implements knowledge.Index on a pgvector table. Every row is
// tagged with the owning session's namespace.
type ChunkIndex struct {
	pool      *pgxpool.Pool
	namespace uuid.UUID
}

// NewChunkIndex creates an index scoped to namespace
func NewChunkIndex(pool *pgxpool.Pool, namespace uuid.UUID) *ChunkIndex {
	return &ChunkIndex{pool: pool, namespace: namespace}
}

// Insert stores chunks in a single transaction
func (r *ChunkIndex) Insert(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	query := `
		INSERT INTO knowledge_chunks (id, namespace, source, position, content, embedding)
		VALUES ($1, $2, $3, $4, $5, $6::vector)
	`

	batch := &pgx.Batch{}
	for _, c := range chunks {
		id := c.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		batch.Queue(query, id, r.namespace, c.Source, c.Position, c.Text, pgvector.NewVector(c.Embedding).String())
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert chunks: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit chunks: %w", err)
	}
	return nil
}

// Search ranks chunks by cosine distance using pgvector's <=> operator
func (r *ChunkIndex) Search(ctx context.Context, embedding []float32, topK int) ([]domain.ScoredChunk, error) {
	query := `
		SELECT id, source, position, content, 1 - (embedding <=> $2::vector) AS score
		FROM knowledge_chunks
		WHERE namespace = $1
		ORDER BY embedding <=> $2::vector, seq
		LIMIT $3
	`

	rows, err := r.pool.Query(ctx, query, r.namespace, pgvector.NewVector(embedding).String(), topK)
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}
	defer rows.Close()

	results := []domain.ScoredChunk{}
	for rows.Next() {
		var c domain.Chunk
		var score float64
		if err := rows.Scan(&c.ID, &c.Source, &c.Position, &c.Text, &score); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		results = append(results, domain.ScoredChunk{Chunk: c, Score: float32(score)})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate chunks: %w", err)
	}
	return results, nil
}

// Clear deletes this namespace's chunks
func (r *ChunkIndex) Clear(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM knowledge_chunks WHERE namespace = $1`, r.namespace)
	if err != nil {
		return fmt.Errorf("failed to clear chunks: %w", err)
	}
	return nil
}

// Count returns this namespace's chunk count
func (r *ChunkIndex) Count(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM knowledge_chunks WHERE namespace = $1`, r.namespace).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return n, nil
}
