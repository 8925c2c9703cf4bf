package domain

import (
	"errors"
	"fmt"
)

var (
	ErrCredentialMissing = errors.New("api credential is not set")
	ErrNotPDF            = errors.New("not a PDF document")
	ErrNoText            = errors.New("no extractable text")
	ErrRateLimited       = errors.New("question rate limit exceeded")
)

// ConfigurationError means the session is missing something the caller must
// supply, usually the API credential.
type ConfigurationError struct {
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %v", e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// IngestionError reports a document that could not be turned into chunks.
type IngestionError struct {
	Source string
	Err    error
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("failed to ingest %s: %v", e.Source, e.Err)
}

func (e *IngestionError) Unwrap() error { return e.Err }

// GenerationError wraps a failed embedding or generation call.
type GenerationError struct {
	Provider string
	Err      error
}

func (e *GenerationError) Error() string {
	if e.Provider == "" {
		return fmt.Sprintf("generation failed: %v", e.Err)
	}
	return fmt.Sprintf("%s generation failed: %v", e.Provider, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// UserMessage renders err the way the transcript shows it.
func UserMessage(err error) string {
	var cfgErr *ConfigurationError
	var ingErr *IngestionError
	var genErr *GenerationError
	switch {
	case errors.As(err, &cfgErr):
		return "Please set your API key first."
	case errors.As(err, &ingErr):
		return fmt.Sprintf("Could not read %s: %v", ingErr.Source, ingErr.Err)
	case errors.Is(err, ErrRateLimited):
		return "Too many questions, please wait a minute and try again."
	case errors.As(err, &genErr):
		return fmt.Sprintf("Sorry, I could not get an answer: %v", genErr.Err)
	default:
		return fmt.Sprintf("Something went wrong: %v", err)
	}
}
