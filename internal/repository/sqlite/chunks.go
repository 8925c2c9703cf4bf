// Package sqlite keeps knowledge chunks in a local SQLite file. Vectors are
// stored as JSON and ranked in process.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Rrens/chatpdf/internal/domain"
	"github.com/Rrens/chatpdf/internal/knowledge"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS knowledge_chunks (
	seq       INTEGER PRIMARY KEY AUTOINCREMENT,
	id        TEXT NOT NULL,
	namespace TEXT NOT NULL,
	source    TEXT NOT NULL,
	position  INTEGER NOT NULL,
	content   TEXT NOT NULL,
	embedding TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_knowledge_chunks_namespace ON knowledge_chunks (namespace, seq);
`

// Open opens (or creates) the database file at path and ensures the schema.
func Open(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create sqlite directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// one writer at a time
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return db, nil
}

// Purge deletes the chunks of every namespace. Namespaces are created per
// session, so rows left by an earlier process can never be read again.
func Purge(ctx context.Context, db *sql.DB) (int64, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM knowledge_chunks`)
	if err != nil {
		return 0, fmt.Errorf("failed to purge chunks: %w", err)
	}
	return res.RowsAffected()
}

// ChunkIndex implements knowledge.Index for one namespace of the database.
type ChunkIndex struct {
	db        *sql.DB
	namespace string
}

func NewChunkIndex(db *sql.DB, namespace uuid.UUID) *ChunkIndex {
	return &ChunkIndex{db: db, namespace: namespace.String()}
}

func (r *ChunkIndex) Insert(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO knowledge_chunks (id, namespace, source, position, content, embedding)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		vec, err := json.Marshal(c.Embedding)
		if err != nil {
			return fmt.Errorf("failed to encode embedding: %w", err)
		}
		id := c.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		if _, err := stmt.ExecContext(ctx, id.String(), r.namespace, c.Source, c.Position, c.Text, string(vec)); err != nil {
			return fmt.Errorf("failed to insert chunk: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit chunks: %w", err)
	}
	return nil
}

func (r *ChunkIndex) Search(ctx context.Context, embedding []float32, topK int) ([]domain.ScoredChunk, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, source, position, content, embedding
		FROM knowledge_chunks
		WHERE namespace = ?
		ORDER BY seq
	`, r.namespace)
	if err != nil {
		return nil, fmt.Errorf("failed to load chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.Chunk
	for rows.Next() {
		var (
			c       domain.Chunk
			id, vec string
		)
		if err := rows.Scan(&id, &c.Source, &c.Position, &c.Text, &vec); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		if c.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("invalid chunk id %q: %w", id, err)
		}
		if err := json.Unmarshal([]byte(vec), &c.Embedding); err != nil {
			return nil, fmt.Errorf("failed to decode embedding: %w", err)
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate chunks: %w", err)
	}

	return knowledge.Rank(chunks, embedding, topK), nil
}

func (r *ChunkIndex) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM knowledge_chunks WHERE namespace = ?`, r.namespace); err != nil {
		return fmt.Errorf("failed to clear chunks: %w", err)
	}
	return nil
}

func (r *ChunkIndex) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM knowledge_chunks WHERE namespace = ?`, r.namespace).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return n, nil
}
