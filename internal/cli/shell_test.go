package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Rrens/chatpdf/internal/domain"
	"github.com/Rrens/chatpdf/internal/llm"
	"github.com/Rrens/chatpdf/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoProvider struct{}

func (echoProvider) Name() string           { return "echo" }
func (echoProvider) DefaultModel() string   { return "echo-1" }
func (echoProvider) EmbeddingModel() string { return "echo-embed" }
func (echoProvider) IsConfigured() bool     { return true }

func (echoProvider) Generate(_ context.Context, req llm.Request) (*llm.Response, error) {
	return &llm.Response{Text: "answer from excerpts"}, nil
}

func (echoProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	return out, nil
}

type pagesExtractor struct{}

func (pagesExtractor) Extract(raw []byte) ([]string, error) {
	if !bytes.HasPrefix(raw, []byte("%PDF-")) {
		return nil, domain.ErrNotPDF
	}
	return strings.Split(string(raw[5:]), "|"), nil
}

func newTestShell(t *testing.T) (*Shell, *bytes.Buffer) {
	t.Helper()
	router := llm.NewRouter("echo")
	router.RegisterFactory("echo", func(string) llm.Provider { return echoProvider{} })

	session, err := service.NewSession(router, service.SessionOptions{Extractor: pagesExtractor{}})
	require.NoError(t, err)

	var out bytes.Buffer
	return NewShell(session, &out), &out
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestShell_Conversation(t *testing.T) {
	sh, out := newTestShell(t)
	good := writeFile(t, "manual.pdf", "%PDF-first page|second page")
	bad := writeFile(t, "notes.pdf", "plain text")

	script := strings.Join([]string{
		"What is this?",
		"/key sk-test",
		"/upload " + good + " " + bad,
		"What is this?",
		"/status",
		"/history",
		"/quit",
		"never reached",
	}, "\n")

	require.NoError(t, sh.Run(context.Background(), strings.NewReader(script)))

	text := out.String()
	assert.Contains(t, text, "Please set your API key first.")
	assert.Contains(t, text, "Use /key <api key> to set it.")
	assert.Contains(t, text, "API key updated.")
	assert.Contains(t, text, "Read manual.pdf: 2 page(s), 2 chunk(s).")
	assert.Contains(t, text, "Added 2 chunk(s) from 1 file(s).")
	assert.Contains(t, text, "Could not read notes.pdf")
	assert.Contains(t, text, "answer from excerpts")
	assert.Contains(t, text, "sources: manual.pdf part")
	assert.Contains(t, text, "answered by echo/echo-1 in ")
	assert.Contains(t, text, "provider: echo (available: echo)")
	assert.Contains(t, text, "state: ready, chunks: 2, api key set: true, messages: 2")
	assert.Contains(t, text, "[1] You: What is this?")
	assert.Contains(t, text, "[2] Bot: answer from excerpts")
	assert.NotContains(t, text, "never reached")
}

func TestShell_KeyChangeWarns(t *testing.T) {
	sh, out := newTestShell(t)
	ctx := context.Background()
	path := writeFile(t, "a.pdf", "%PDF-content")

	sh.Handle(ctx, "/key sk-one")
	sh.Handle(ctx, "/add "+path)
	sh.Handle(ctx, "/key sk-one")
	sh.Handle(ctx, "/key sk-two")

	text := out.String()
	assert.Contains(t, text, "API key unchanged.")
	assert.Contains(t, text, service.ReuploadWarning)
}

func TestShell_Commands(t *testing.T) {
	sh, out := newTestShell(t)
	ctx := context.Background()

	assert.False(t, sh.Handle(ctx, "/bogus"))
	assert.False(t, sh.Handle(ctx, "/add"))
	assert.False(t, sh.Handle(ctx, "/reset"))
	assert.False(t, sh.Handle(ctx, "/history"))
	assert.False(t, sh.Handle(ctx, "   "))
	assert.True(t, sh.Handle(ctx, "/EXIT"))

	text := out.String()
	assert.Contains(t, text, "Unknown command /bogus")
	assert.Contains(t, text, "Give at least one PDF file.")
	assert.Contains(t, text, "Session cleared.")
	assert.Contains(t, text, "No messages yet.")
}

func TestShell_RunStopsOnCancelledContext(t *testing.T) {
	sh, out := newTestShell(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := sh.Run(ctx, strings.NewReader("/status\n/help\n"))
	require.ErrorIs(t, err, context.Canceled)

	text := out.String()
	assert.NotContains(t, text, "state:")
	assert.NotContains(t, text, "Commands:")
}

func TestShell_RunStopsWhileWaitingForInput(t *testing.T) {
	sh, _ := newTestShell(t)
	ctx, cancel := context.WithCancel(context.Background())

	in, w := io.Pipe()
	defer w.Close()

	done := make(chan error, 1)
	go func() { done <- sh.Run(ctx, in) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}
