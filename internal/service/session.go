package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Rrens/chatpdf/internal/domain"
	"github.com/Rrens/chatpdf/internal/ingest"
	"github.com/Rrens/chatpdf/internal/knowledge"
	"github.com/Rrens/chatpdf/internal/llm"
	"github.com/Rrens/chatpdf/internal/security"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ReuploadWarning is shown when a credential change discards documents
const ReuploadWarning = "Please, upload the files again."

// IndexFactory opens the chunk index for a knowledge base namespace
type IndexFactory func(namespace uuid.UUID) knowledge.Index

// SessionOptions configures a Session. Zero values select defaults.
type SessionOptions struct {
	Provider   string
	TopK       int
	EmbedBatch int
	Chunker    *ingest.Chunker
	Extractor  ingest.Extractor
	NewIndex   IndexFactory
	// WrapEmbedder decorates the provider's embedder, given the
	// credential fingerprint it serves
	WrapEmbedder func(next llm.Embedder, fingerprint string) llm.Embedder
	Limiter      QuestionLimiter
}

// CredentialOutcome reports the effect of SetCredential
type CredentialOutcome struct {
	Changed bool
	Warning string
}

// IngestOutcome reports the effect of an ingest call
type IngestOutcome struct {
	Report     *ingest.BatchReport
	State      domain.IngestionState
	ChunkCount int
}

// Exchange is one question and its reply as they appear in the transcript.
// Model and LatencyMs are empty when no provider call was made.
type Exchange struct {
	Question  domain.Message
	Reply     domain.Message
	Sources   []domain.ScoredChunk
	Provider  string
	Model     string
	LatencyMs int64
}

// Session is the single conversation of the process: one credential, one
// knowledge base and the transcript of questions asked against it.
//
// opMu serialises mutating operations. mu guards the fields observers read,
// so the transcript can be rendered while a question is in flight.
type Session struct {
	opMu sync.Mutex

	mu         sync.RWMutex
	transcript []domain.Message
	seq        int
	state      domain.IngestionState
	pending    bool
	kb         *knowledge.Base

	credential *security.Credential
	router     *llm.Router
	opts       SessionOptions

	// rebuilt whenever the credential changes
	namespace uuid.UUID
	engine    *QueryEngine
	ingestor  *ingest.Ingestor
}

// NewSession creates an idle session with no credential
func NewSession(router *llm.Router, opts SessionOptions) (*Session, error) {
	credential, err := security.NewCredential()
	if err != nil {
		return nil, err
	}
	if opts.NewIndex == nil {
		opts.NewIndex = func(uuid.UUID) knowledge.Index { return knowledge.NewMemoryIndex() }
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.Chunker == nil {
		opts.Chunker = ingest.NewChunker(ingest.DefaultChunkSize, ingest.DefaultChunkOverlap)
	}

	return &Session{
		state:      domain.StateIdle,
		credential: credential,
		router:     router,
		opts:       opts,
	}, nil
}

// SetCredential stores a new API key. Any change discards the knowledge base
// and transcript, since they were built with the previous provider.
func (s *Session) SetCredential(ctx context.Context, value string) (*CredentialOutcome, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	changed, err := s.credential.Set(value)
	if err != nil {
		return nil, &domain.ConfigurationError{Err: err}
	}
	if !changed {
		return &CredentialOutcome{}, nil
	}

	hadDocuments := s.chunkCount(ctx) > 0
	resetErr := s.resetLocked(ctx)
	if resetErr != nil {
		// the old namespace is abandoned by rebuild either way
		s.clearLocked()
	}

	outcome := &CredentialOutcome{Changed: true}
	if hadDocuments {
		outcome.Warning = ReuploadWarning
	}

	if err := s.rebuild(); err != nil {
		return outcome, err
	}

	log.Info().
		Bool("credential_set", s.credential.IsSet()).
		Bool("documents_dropped", hadDocuments).
		Msg("session credential changed")

	if resetErr != nil {
		return outcome, fmt.Errorf("discarding previous documents: %w", resetErr)
	}
	return outcome, nil
}

// rebuild binds a fresh provider and knowledge base to the current
// credential. Caller holds opMu.
func (s *Session) rebuild() error {
	s.engine = nil
	s.ingestor = nil
	s.setKB(nil)

	if !s.credential.IsSet() {
		return nil
	}

	apiKey, err := s.credential.Value()
	if err != nil {
		return &domain.ConfigurationError{Err: err}
	}

	provider, err := s.router.NewProvider(s.opts.Provider, apiKey)
	if err != nil {
		return &domain.ConfigurationError{Err: err}
	}

	var embedder llm.Embedder = provider
	if s.opts.WrapEmbedder != nil {
		embedder = s.opts.WrapEmbedder(provider, s.credential.Fingerprint())
	}

	s.namespace = uuid.New()
	kb := knowledge.NewBase(s.opts.NewIndex(s.namespace), embedder, s.opts.EmbedBatch)

	s.engine = NewQueryEngine(kb, provider, s.credential, s.opts.Limiter, s.opts.TopK)
	s.ingestor = ingest.NewIngestor(s.opts.Extractor, s.opts.Chunker, kb)
	s.setKB(kb)

	log.Debug().
		Str("provider", provider.Name()).
		Str("model", provider.DefaultModel()).
		Str("embedding_model", embedder.EmbeddingModel()).
		Str("namespace", s.namespace.String()).
		Msg("knowledge base ready")

	return nil
}

// IngestDocuments adds uploads to the knowledge base. Documents that fail are
// reported and skipped. The error is the first failure when nothing could
// be ingested.
func (s *Session) IngestDocuments(ctx context.Context, uploads []ingest.Upload) (*IngestOutcome, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if err := s.requireCredential(); err != nil {
		return nil, err
	}
	return s.ingestLocked(ctx, uploads)
}

// ReplaceDocuments discards the current documents and transcript, then
// ingests uploads. Nothing is ingested when the old documents cannot be
// cleared.
func (s *Session) ReplaceDocuments(ctx context.Context, uploads []ingest.Upload) (*IngestOutcome, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if err := s.requireCredential(); err != nil {
		return nil, err
	}
	if err := s.resetLocked(ctx); err != nil {
		return nil, err
	}
	return s.ingestLocked(ctx, uploads)
}

func (s *Session) ingestLocked(ctx context.Context, uploads []ingest.Upload) (*IngestOutcome, error) {
	if len(uploads) == 0 {
		return &IngestOutcome{
			Report:     &ingest.BatchReport{},
			State:      s.State(),
			ChunkCount: s.chunkCount(ctx),
		}, nil
	}

	startTime := time.Now()
	s.setState(domain.StateIngesting)

	report := s.ingestor.IngestBatch(ctx, uploads)

	count := s.chunkCount(ctx)
	state := domain.StateIdle
	if report.Succeeded() > 0 || count > 0 {
		state = domain.StateReady
	}
	s.setState(state)

	log.Info().
		Int("documents", len(uploads)).
		Int("failed", report.Failed()).
		Int("chunks", count).
		Str("state", state.String()).
		Int64("latency_ms", time.Since(startTime).Milliseconds()).
		Msg("ingestion finished")

	outcome := &IngestOutcome{Report: report, State: state, ChunkCount: count}
	if report.Succeeded() == 0 && report.Failed() > 0 {
		return outcome, report.Errors[0]
	}
	return outcome, nil
}

// SubmitQuestion records question and the reply in the transcript. Blank
// questions are ignored. Without a credential the transcript is left alone.
func (s *Session) SubmitQuestion(ctx context.Context, question string) (*Exchange, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, nil
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	if err := s.requireCredential(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	asked := s.appendLocked(domain.OriginUser, question, false)
	s.pending = true
	s.mu.Unlock()

	answer, err := s.engine.Ask(ctx, question)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = false

	if err != nil {
		log.Error().Err(err).Msg("question failed")
		reply := s.appendLocked(domain.OriginSystem, domain.UserMessage(err), true)
		return &Exchange{Question: asked, Reply: reply}, err
	}

	reply := s.appendLocked(domain.OriginSystem, answer.Text, false)
	return &Exchange{
		Question:  asked,
		Reply:     reply,
		Sources:   answer.Sources,
		Provider:  answer.Provider,
		Model:     answer.Model,
		LatencyMs: answer.LatencyMs,
	}, nil
}

// Reset discards the knowledge base and the transcript. The credential is
// kept.
func (s *Session) Reset(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	return s.resetLocked(ctx)
}

// resetLocked leaves the session untouched when the knowledge base cannot
// be cleared.
func (s *Session) resetLocked(ctx context.Context) error {
	if kb := s.currentKB(); kb != nil {
		if err := kb.Reset(ctx); err != nil {
			log.Error().Err(err).Msg("failed to clear knowledge base")
			return err
		}
	}

	s.clearLocked()
	log.Debug().Msg("session reset")
	return nil
}

func (s *Session) clearLocked() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript = nil
	s.pending = false
	s.state = domain.StateIdle
}

// Transcript returns a copy of the messages in order
func (s *Session) Transcript() []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Message, len(s.transcript))
	copy(out, s.transcript)
	return out
}

func (s *Session) State() domain.IngestionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Pending is true while a question waits for its reply
func (s *Session) Pending() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pending
}

// ChunkCount returns the number of chunks in the knowledge base
func (s *Session) ChunkCount(ctx context.Context) (int, error) {
	kb := s.currentKB()
	if kb == nil {
		return 0, nil
	}
	return kb.Len(ctx)
}

// Provider names the provider the session builds from its credential
func (s *Session) Provider() string {
	if s.opts.Provider != "" {
		return s.opts.Provider
	}
	return s.router.DefaultProvider()
}

// Providers lists every provider the session could be configured with
func (s *Session) Providers() []string {
	return s.router.ListProviders()
}

func (s *Session) CredentialSet() bool {
	return s.credential.IsSet()
}

func (s *Session) requireCredential() error {
	if !s.credential.IsSet() || s.engine == nil {
		return &domain.ConfigurationError{Err: domain.ErrCredentialMissing}
	}
	return nil
}

func (s *Session) chunkCount(ctx context.Context) int {
	n, err := s.ChunkCount(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("failed to count chunks")
		return 0
	}
	return n
}

func (s *Session) appendLocked(origin domain.Origin, text string, isError bool) domain.Message {
	s.seq++
	msg := domain.Message{
		ID:        uuid.New(),
		Seq:       s.seq,
		Origin:    origin,
		Text:      text,
		IsError:   isError,
		CreatedAt: time.Now(),
	}
	s.transcript = append(s.transcript, msg)
	return msg
}

func (s *Session) setState(state domain.IngestionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

func (s *Session) currentKB() *knowledge.Base {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.kb
}

func (s *Session) setKB(kb *knowledge.Base) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kb = kb
}

// IsConfigurationError reports whether err asks the user for configuration
func IsConfigurationError(err error) bool {
	var cfgErr *domain.ConfigurationError
	return errors.As(err, &cfgErr)
}
