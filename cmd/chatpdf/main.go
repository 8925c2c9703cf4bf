package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Rrens/chatpdf/internal/cli"
	"github.com/Rrens/chatpdf/internal/config"
	"github.com/Rrens/chatpdf/internal/ingest"
	"github.com/Rrens/chatpdf/internal/knowledge"
	"github.com/Rrens/chatpdf/internal/llm"
	"github.com/Rrens/chatpdf/internal/llm/gemini"
	"github.com/Rrens/chatpdf/internal/llm/ollama"
	"github.com/Rrens/chatpdf/internal/llm/openai"
	"github.com/Rrens/chatpdf/internal/logging"
	"github.com/Rrens/chatpdf/internal/repository/postgres"
	"github.com/Rrens/chatpdf/internal/repository/redis"
	"github.com/Rrens/chatpdf/internal/repository/sqlite"
	"github.com/Rrens/chatpdf/internal/service"
	"github.com/Rrens/chatpdf/internal/watcher"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	watchDir := flag.String("watch", "", "ingest PDF files dropped into this directory")
	flag.Parse()

	// Load .env file - try multiple locations
	for _, p := range []string{".env", "../.env", "../../.env"} {
		if err := godotenv.Load(p); err == nil {
			break
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logCloser, err := logging.Setup(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("provider", cfg.LLM.Provider).
		Str("backend", cfg.Knowledge.Backend).
		Msg("Starting ChatPDF")

	// Initialize LLM router
	router := llm.NewRouter(cfg.LLM.Provider)
	router.RegisterFactory("openai", openai.Factory(cfg.LLM.OpenAI, cfg.LLM.RequestTimeout))
	router.RegisterFactory("gemini", gemini.Factory(cfg.LLM.Gemini))
	router.RegisterFactory("ollama", ollama.Factory(cfg.LLM.Ollama, cfg.LLM.RequestTimeout))

	opts := service.SessionOptions{
		Provider:   cfg.LLM.Provider,
		TopK:       cfg.Retrieval.TopK,
		EmbedBatch: cfg.Ingest.EmbedBatch,
		Chunker:    ingest.NewChunker(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap),
	}

	// Initialize knowledge base storage
	switch cfg.Knowledge.Backend {
	case "sqlite":
		db, err := sqlite.Open(cfg.SQLite.Path)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open sqlite database")
		}
		defer db.Close()
		if purged, err := sqlite.Purge(ctx, db); err != nil {
			log.Fatal().Err(err).Msg("Failed to remove chunks of earlier sessions")
		} else if purged > 0 {
			log.Info().Int64("chunks", purged).Msg("Removed chunks of earlier sessions")
		}
		opts.NewIndex = func(ns uuid.UUID) knowledge.Index { return sqlite.NewChunkIndex(db, ns) }
	case "postgres":
		if err := postgres.RunMigrations(cfg.Database); err != nil {
			log.Fatal().Err(err).Msg("Failed to migrate database")
		}
		db, err := postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer db.Close()
		opts.NewIndex = func(ns uuid.UUID) knowledge.Index { return postgres.NewChunkIndex(db.Pool, ns) }
	}

	// Initialize Redis
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(ctx, cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer redisClient.Close()

		opts.WrapEmbedder = func(next llm.Embedder, fingerprint string) llm.Embedder {
			return redis.NewEmbeddingCache(redisClient, next, fingerprint, cfg.Redis.CacheTTL)
		}
		if cfg.RateLimit.QuestionsPerMinute > 0 {
			opts.Limiter = redis.NewQuestionLimiter(redisClient, cfg.RateLimit.QuestionsPerMinute, cfg.RateLimit.Burst)
		}
	}

	session, err := service.NewSession(router, opts)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create session")
	}
	if cfg.Session.APIKey != "" {
		if _, err := session.SetCredential(ctx, cfg.Session.APIKey); err != nil {
			log.Error().Err(err).Msg("Failed to apply API key from configuration")
		}
	}

	shell := cli.NewShell(session, os.Stdout)

	if *watchDir != "" {
		w, err := watcher.New(0)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create watcher")
		}
		defer w.Stop()

		paths, err := w.Watch(ctx, *watchDir)
		if err != nil {
			log.Fatal().Err(err).Str("dir", *watchDir).Msg("Failed to watch directory")
		}
		log.Info().Str("dir", *watchDir).Msg("Watching for PDF files")

		go func() {
			for path := range paths {
				shell.IngestFiles(ctx, []string{path}, false)
			}
		}()
	}

	if err := shell.Run(ctx, os.Stdin); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("Input error")
	}

	log.Info().Msg("ChatPDF stopped")
}
