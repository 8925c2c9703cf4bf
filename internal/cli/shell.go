// Package cli is the interactive front end of a chat session.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/Rrens/chatpdf/internal/domain"
	"github.com/Rrens/chatpdf/internal/ingest"
	"github.com/Rrens/chatpdf/internal/service"
)

const helpText = `Commands:
  /key <api key>        set or change the API key
  /upload <file.pdf>... replace the documents with these files
  /add <file.pdf>...    add files to the current documents
  /reset                forget documents and conversation
  /history              show the conversation
  /status               show session state
  /quit                 exit
Anything else is a question about the uploaded documents.`

// Shell reads commands and questions line by line and prints replies
type Shell struct {
	session *service.Session
	out     io.Writer
	mu      sync.Mutex
}

func NewShell(session *service.Session, out io.Writer) *Shell {
	return &Shell{session: session, out: out}
}

// Run processes lines from in until EOF, /quit or ctx is cancelled. A
// cancelled ctx is returned as its error.
func (s *Shell) Run(ctx context.Context, in io.Reader) error {
	s.printf("ChatPDF. Type /help for commands.\n")
	if !s.session.CredentialSet() {
		s.printf("Set your API key with /key before asking questions.\n")
	}

	readCtx, stopReading := context.WithCancel(ctx)
	defer stopReading()

	lines, scanErr := readLines(readCtx, in)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.printf("> ")

		select {
		case <-ctx.Done():
			s.printf("\n")
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return ctx.Err()
				}
			}
			if quit := s.Handle(ctx, line); quit {
				return nil
			}
		}
	}
}

// readLines scans in on its own goroutine so a blocked read does not keep
// Run from seeing cancellation. The goroutine stays parked on in until the
// next line or EOF.
func readLines(ctx context.Context, in io.Reader) (<-chan string, <-chan error) {
	lines := make(chan string)
	errc := make(chan error, 1)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		errc <- scanner.Err()
	}()

	return lines, errc
}

// Handle executes one input line and reports whether the shell should exit
func (s *Shell) Handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if !strings.HasPrefix(line, "/") {
		s.ask(ctx, line)
		return false
	}

	cmd, rest, _ := strings.Cut(line, " ")
	args := strings.Fields(rest)

	switch strings.ToLower(cmd) {
	case "/quit", "/exit":
		return true
	case "/help":
		s.printf("%s\n", helpText)
	case "/key":
		s.setKey(ctx, strings.TrimSpace(rest))
	case "/upload":
		s.IngestFiles(ctx, args, true)
	case "/add":
		s.IngestFiles(ctx, args, false)
	case "/reset":
		if err := s.session.Reset(ctx); err != nil {
			s.printf("%s\n", domain.UserMessage(err))
			return false
		}
		s.printf("Session cleared.\n")
	case "/history":
		s.history()
	case "/status":
		s.status(ctx)
	default:
		s.printf("Unknown command %s. Type /help for commands.\n", cmd)
	}
	return false
}

func (s *Shell) setKey(ctx context.Context, value string) {
	out, err := s.session.SetCredential(ctx, value)
	switch {
	case err != nil:
		s.printf("%s\n", domain.UserMessage(err))
	case !out.Changed:
		s.printf("API key unchanged.\n")
	case value == "":
		s.printf("API key cleared.\n")
	default:
		s.printf("API key updated.\n")
	}
	if out != nil && out.Warning != "" {
		s.printf("%s\n", out.Warning)
	}
}

// IngestFiles loads paths from disk and ingests them. With replace set the
// current documents and conversation are discarded first.
func (s *Shell) IngestFiles(ctx context.Context, paths []string, replace bool) {
	if len(paths) == 0 {
		s.printf("Give at least one PDF file.\n")
		return
	}

	var uploads []ingest.Upload
	for _, p := range paths {
		up, err := ingest.LoadFile(p)
		if err != nil {
			s.printf("%s\n", domain.UserMessage(err))
			continue
		}
		uploads = append(uploads, up)
	}
	if len(uploads) == 0 {
		return
	}

	s.printf("Processing %d file(s)...\n", len(uploads))

	var (
		out *service.IngestOutcome
		err error
	)
	if replace {
		out, err = s.session.ReplaceDocuments(ctx, uploads)
	} else {
		out, err = s.session.IngestDocuments(ctx, uploads)
	}

	if out == nil {
		s.printf("%s\n", domain.UserMessage(err))
		return
	}
	for _, res := range out.Report.Results {
		s.printf("Read %s: %d page(s), %d chunk(s).\n", res.Document.Source, res.Document.Pages, res.Chunks)
	}
	for _, ingErr := range out.Report.Errors {
		s.printf("%s\n", domain.UserMessage(ingErr))
	}
	if out.Report.Succeeded() > 0 {
		s.printf("Added %d chunk(s) from %d file(s).\n", out.Report.Chunks(), out.Report.Succeeded())
	}
	if out.State == domain.StateReady {
		s.printf("Ready. You can ask questions about your documents.\n")
	}
}

func (s *Shell) ask(ctx context.Context, question string) {
	ex, err := s.session.SubmitQuestion(ctx, question)
	if ex == nil {
		if err != nil {
			s.printf("%s\n", domain.UserMessage(err))
		}
		if service.IsConfigurationError(err) {
			s.printf("Use /key <api key> to set it.\n")
		}
		return
	}

	s.printf("%s\n", ex.Reply.Text)
	if len(ex.Sources) > 0 {
		refs := make([]string, len(ex.Sources))
		for i, src := range ex.Sources {
			refs[i] = fmt.Sprintf("%s part %d", src.Chunk.Source, src.Chunk.Position+1)
		}
		s.printf("  sources: %s\n", strings.Join(refs, ", "))
	}
	if ex.Model != "" {
		s.printf("  answered by %s/%s in %d ms\n", ex.Provider, ex.Model, ex.LatencyMs)
	}
}

func (s *Shell) history() {
	transcript := s.session.Transcript()
	if len(transcript) == 0 {
		s.printf("No messages yet.\n")
		return
	}
	for _, m := range transcript {
		who := "Bot"
		if m.IsUser() {
			who = "You"
		}
		s.printf("[%d] %s: %s\n", m.Seq, who, m.Text)
	}
}

func (s *Shell) status(ctx context.Context) {
	chunks, err := s.session.ChunkCount(ctx)
	if err != nil {
		s.printf("%s\n", domain.UserMessage(err))
		return
	}
	s.printf("state: %s, chunks: %d, api key set: %t, messages: %d\n",
		s.session.State(), chunks, s.session.CredentialSet(), len(s.session.Transcript()))
	s.printf("provider: %s (available: %s)\n", s.session.Provider(), strings.Join(s.session.Providers(), ", "))
}

// printf serialises output from the prompt loop and background ingestion
func (s *Shell) printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, format, args...)
}
