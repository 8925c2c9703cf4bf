package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("CHATPDF_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.OpenAI.Model)
	assert.Equal(t, 120*time.Second, cfg.LLM.RequestTimeout)
	assert.Equal(t, 1000, cfg.Ingest.ChunkSize)
	assert.Equal(t, 200, cfg.Ingest.ChunkOverlap)
	assert.Equal(t, 4, cfg.Retrieval.TopK)
	assert.Equal(t, "memory", cfg.Knowledge.Backend)
	assert.Empty(t, cfg.Session.APIKey)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
llm:
  provider: gemini
ingest:
  chunk_size: 400
  chunk_overlap: 40
retrieval:
  top_k: 6
`), 0o644))

	t.Setenv("CONFIG_PATH", path)
	t.Setenv("CHATPDF_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.Equal(t, 400, cfg.Ingest.ChunkSize)
	assert.Equal(t, 40, cfg.Ingest.ChunkOverlap)
	assert.Equal(t, 6, cfg.Retrieval.TopK)
	assert.Equal(t, "sk-test", cfg.Session.APIKey)
	// untouched sections keep defaults
	assert.Equal(t, "text-embedding-004", cfg.LLM.Gemini.EmbeddingModel)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			LLM:       LLMConfig{Provider: "openai", RequestTimeout: time.Minute},
			Ingest:    IngestConfig{ChunkSize: 100, ChunkOverlap: 10, EmbedBatch: 8},
			Retrieval: RetrievalConfig{TopK: 4},
			Knowledge: KnowledgeConfig{Backend: "memory"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"unknown provider", func(c *Config) { c.LLM.Provider = "anthropic" }, "Provider"},
		{"overlap not below size", func(c *Config) { c.Ingest.ChunkOverlap = 100 }, "ChunkOverlap"},
		{"zero top k", func(c *Config) { c.Retrieval.TopK = 0 }, "TopK"},
		{"unknown backend", func(c *Config) { c.Knowledge.Backend = "qdrant" }, "Backend"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "Level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := Validate(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	c := DatabaseConfig{User: "u", Password: "p", Host: "db", Port: 5433, Database: "kb", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@db:5433/kb?sslmode=disable", c.DSN())
}
