// Package ingest turns uploaded PDF files into embedded knowledge base chunks.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Rrens/chatpdf/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Store receives the chunks of one document in a single call
type Store interface {
	Add(ctx context.Context, chunks []domain.Chunk) error
}

// Upload is a named document buffer
type Upload struct {
	Name string
	Data []byte
}

// Result describes one ingested document
type Result struct {
	Document domain.Document
	Chunks   int
}

// BatchReport lists the outcome of every document in a batch, in input order
type BatchReport struct {
	Results []Result
	Errors  []*domain.IngestionError
}

func (r *BatchReport) Succeeded() int { return len(r.Results) }
func (r *BatchReport) Failed() int    { return len(r.Errors) }

// Chunks is the total number of chunks added by the batch
func (r *BatchReport) Chunks() int {
	n := 0
	for _, res := range r.Results {
		n += res.Chunks
	}
	return n
}

// Ingestor extracts, chunks and stores documents
type Ingestor struct {
	extractor Extractor
	chunker   *Chunker
	store     Store
}

// NewIngestor creates an ingestor writing into store
func NewIngestor(extractor Extractor, chunker *Chunker, store Store) *Ingestor {
	if extractor == nil {
		extractor = NewPDFExtractor()
	}
	if chunker == nil {
		chunker = NewChunker(DefaultChunkSize, DefaultChunkOverlap)
	}
	return &Ingestor{
		extractor: extractor,
		chunker:   chunker,
		store:     store,
	}
}

// Ingest adds one document. Either all of its chunks are stored or none are.
func (i *Ingestor) Ingest(ctx context.Context, raw []byte, source string) (*Result, error) {
	start := time.Now()
	source = sourceName(source)

	fail := func(err error) (*Result, error) {
		log.Warn().Err(err).Str("source", source).Msg("document ingestion failed")
		return nil, &domain.IngestionError{Source: source, Err: err}
	}

	if len(raw) == 0 {
		return fail(fmt.Errorf("empty file: %w", domain.ErrNotPDF))
	}

	pages, err := i.extractor.Extract(raw)
	if err != nil {
		return fail(err)
	}

	var chunks []domain.Chunk
	for _, page := range pages {
		for _, text := range i.chunker.Split(page) {
			chunks = append(chunks, domain.Chunk{
				ID:       uuid.New(),
				Source:   source,
				Position: len(chunks),
				Text:     text,
			})
		}
	}
	if len(chunks) == 0 {
		return fail(domain.ErrNoText)
	}

	if err := i.store.Add(ctx, chunks); err != nil {
		return fail(err)
	}

	res := &Result{
		Document: domain.Document{Source: source, Size: len(raw), Pages: len(pages)},
		Chunks:   len(chunks),
	}

	log.Info().
		Str("source", source).
		Int("pages", len(pages)).
		Int("chunks", len(chunks)).
		Int64("latency_ms", time.Since(start).Milliseconds()).
		Msg("document ingested")

	return res, nil
}

// IngestBatch attempts every upload. Failed documents are reported and
// skipped; they do not stop the rest of the batch.
func (i *Ingestor) IngestBatch(ctx context.Context, uploads []Upload) *BatchReport {
	report := &BatchReport{}
	for _, u := range uploads {
		res, err := i.Ingest(ctx, u.Data, u.Name)
		if err != nil {
			var ingErr *domain.IngestionError
			if !errors.As(err, &ingErr) {
				ingErr = &domain.IngestionError{Source: sourceName(u.Name), Err: err}
			}
			report.Errors = append(report.Errors, ingErr)
			continue
		}
		report.Results = append(report.Results, *res)
	}
	return report
}

// LoadFile reads an upload from disk, named after the file's base name
func LoadFile(path string) (Upload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Upload{}, &domain.IngestionError{Source: filepath.Base(path), Err: err}
	}
	return Upload{Name: filepath.Base(path), Data: data}, nil
}

func sourceName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "document"
	}
	return name
}
