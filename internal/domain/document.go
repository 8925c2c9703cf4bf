package domain

import "github.com/google/uuid"

// Document is an uploaded file while it is being ingested. It is not kept
// after its chunks are stored.
type Document struct {
	Source string `json:"source"`
	Size   int    `json:"size"`
	Pages  int    `json:"pages"`
}

// Chunk is a span of extracted document text plus its embedding
type Chunk struct {
	ID        uuid.UUID `json:"id"`
	Source    string    `json:"source"`
	Position  int       `json:"position"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"-"`
}

// ScoredChunk is a chunk returned by a similarity query
type ScoredChunk struct {
	Chunk Chunk   `json:"chunk"`
	Score float32 `json:"score"`
}
