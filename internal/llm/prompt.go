package llm

import (
	"fmt"
	"strings"

	"github.com/Rrens/chatpdf/internal/domain"
)

// SystemPrompt frames every answer generation call
const SystemPrompt = "You are a helpful assistant that answers questions about the user's documents. " +
	"Use only the provided excerpts. If the excerpts do not contain the answer, say that you don't know."

// NoDocumentsAnswer is returned when the knowledge base is empty
const NoDocumentsAnswer = "No documents are available yet. Please upload a PDF so I can answer questions about it."

// BuildPrompt creates the answer prompt from the retrieved excerpts
func BuildPrompt(question string, sources []domain.ScoredChunk) string {
	var sb strings.Builder
	sb.WriteString("Answer the question using the document excerpts below. ")
	sb.WriteString("Keep the answer concise, at most three sentences.\n\n")
	sb.WriteString("Excerpts:\n")
	for i, s := range sources {
		fmt.Fprintf(&sb, "[%d] (%s, part %d)\n%s\n\n", i+1, s.Chunk.Source, s.Chunk.Position+1, s.Chunk.Text)
	}
	sb.WriteString("Question: ")
	sb.WriteString(strings.TrimSpace(question))
	sb.WriteString("\n\nAnswer:")
	return sb.String()
}

// CleanAnswer trims whitespace the models tend to add around the answer
func CleanAnswer(text string) string {
	return strings.TrimSpace(text)
}
